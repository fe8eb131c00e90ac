package transport

import (
	"context"

	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfp"
)

// 队列容量允许区间；模块应答速率低，更大的缓冲只会增加失步后的恢复时间
const (
	MinQueueSize     = 8
	MaxQueueSize     = 20
	DefaultQueueSize = 16
)

// Queue 接收帧的有界 FIFO。
// 多生产者/单消费者；满时 Put 阻塞形成背压，帧不会被静默丢弃。
type Queue struct {
	ch chan dfp.Frame
}

// NewQueue 创建帧队列，容量钳制到 [MinQueueSize, MaxQueueSize]
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	if capacity < MinQueueSize {
		capacity = MinQueueSize
	}
	if capacity > MaxQueueSize {
		capacity = MaxQueueSize
	}
	return &Queue{ch: make(chan dfp.Frame, capacity)}
}

// Put 入队；队列满时阻塞直到消费者取走一帧或 ctx 取消
func (q *Queue) Put(ctx context.Context, f dfp.Frame) error {
	select {
	case q.ch <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get 出队；队列空时阻塞直到有帧可取或 ctx 取消
func (q *Queue) Get(ctx context.Context) (dfp.Frame, error) {
	select {
	case f := <-q.ch:
		return f, nil
	case <-ctx.Done():
		return dfp.Frame{}, ctx.Err()
	}
}

// Len 当前队列深度
func (q *Queue) Len() int { return len(q.ch) }

// Cap 队列容量
func (q *Queue) Cap() int { return cap(q.ch) }
