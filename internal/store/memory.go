package store

import (
	"context"
	"sync"
)

// Memory 进程内设置存储；Redis 未启用时的退路，进程重启后丢失。
type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemory 创建空的内存设置存储
func NewMemory() *Memory {
	return &Memory{m: make(map[string]string)}
}

// Get 读取命名设置
func (s *Memory) Get(_ context.Context, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[name]
	return v, ok, nil
}

// Set 写入命名设置
func (s *Memory) Set(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[name] = value
	return nil
}
