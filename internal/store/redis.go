package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
)

// Redis 基于 Redis 的设置存储。键形如 <prefix><name>，值为字符串。
// 设置条目很少（音量、均衡器），不设过期时间。
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis 创建并连通 Redis 设置存储
func NewRedis(cfg cfgpkg.RedisConfig) (*Redis, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "dfp:settings:"
	}
	return &Redis{rdb: rdb, prefix: prefix}, nil
}

func (r *Redis) key(name string) string { return r.prefix + name }

// Get 读取命名设置；键不存在时返回 found=false 而非错误
func (r *Redis) Get(ctx context.Context, name string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.key(name)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w", name, err)
	}
	return v, true, nil
}

// Set 写入命名设置
func (r *Redis) Set(ctx context.Context, name, value string) error {
	if err := r.rdb.Set(ctx, r.key(name), value, 0).Err(); err != nil {
		return fmt.Errorf("set setting %q: %w", name, err)
	}
	return nil
}

// HealthCheck 探测 Redis 连通性
func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close 关闭连接池
func (r *Redis) Close() error {
	if r.rdb != nil {
		return r.rdb.Close()
	}
	return nil
}
