package engine

import (
	"context"
	"sync"
)

// Event 可置位/清位的广播信号：单写者，任意多等待者。
// 置位通过关闭通道广播，清位换新通道。
type Event struct {
	mu  sync.Mutex
	ch  chan struct{}
	set bool
}

// NewEvent 创建未置位的信号
func NewEvent() *Event {
	return &Event{ch: make(chan struct{})}
}

// Set 置位并唤醒所有等待者；重复置位无效果
func (e *Event) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.set {
		e.set = true
		close(e.ch)
	}
}

// Clear 清位；此后的 Wait 将阻塞直到下一次 Set
func (e *Event) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		e.set = false
		e.ch = make(chan struct{})
	}
}

// IsSet 返回当前是否置位
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Wait 阻塞直到信号置位或 ctx 取消
func (e *Event) Wait(ctx context.Context) error {
	e.mu.Lock()
	if e.set {
		e.mu.Unlock()
		return nil
	}
	ch := e.ch
	e.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EventSet 引擎的全部命名信号。
// 每个信号只有一个写者（路由器或调度器），等待者不限。
type EventSet struct {
	Acknowledged  *Event // 写者：路由器（置位）/调度器（清位）
	TrackPlaying  *Event
	TrackEnded    *Event
	ErrorRaised   *Event
	MediaInserted *Event
	MediaRemoved  *Event
	QueryAnswered *Event
}

// NewEventSet 创建信号集。TrackEnded 初始置位：会话起始等价于上一曲已结束。
func NewEventSet() *EventSet {
	es := &EventSet{
		Acknowledged:  NewEvent(),
		TrackPlaying:  NewEvent(),
		TrackEnded:    NewEvent(),
		ErrorRaised:   NewEvent(),
		MediaInserted: NewEvent(),
		MediaRemoved:  NewEvent(),
		QueryAnswered: NewEvent(),
	}
	es.TrackEnded.Set()
	return es
}
