package transport

import (
	"context"
	"testing"
	"time"

	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfp"
)

func TestQueueCapacityClamp(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"默认", 0, DefaultQueueSize},
		{"过小", 2, MinQueueSize},
		{"过大", 64, MaxQueueSize},
		{"区间内", 12, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewQueue(tt.in).Cap(); got != tt.want {
				t.Fatalf("NewQueue(%d).Cap() = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

// 队列满时 Put 必须阻塞，Get 之后立即恢复
func TestQueuePutBlocksWhenFull(t *testing.T) {
	q := NewQueue(MinQueueSize)
	ctx := context.Background()

	for i := 0; i < q.Cap(); i++ {
		if err := q.Put(ctx, dfp.Encode(dfp.CmdAck, uint16(i), false)); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	unblocked := make(chan error, 1)
	go func() {
		unblocked <- q.Put(ctx, dfp.Encode(dfp.CmdAck, 0xFF, false))
	}()

	select {
	case <-unblocked:
		t.Fatal("Put() returned on a full queue without a Get()")
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := q.Get(ctx); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	select {
	case err := <-unblocked:
		if err != nil {
			t.Fatalf("Put() after drain error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Put() still blocked after Get()")
	}
}

// 超过容量的多轮 put/get 必须跨环绕保持 FIFO 顺序
func TestQueueFIFOAcrossWrap(t *testing.T) {
	q := NewQueue(MinQueueSize)
	ctx := context.Background()

	const n = MinQueueSize * 3
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			_ = q.Put(ctx, dfp.Encode(dfp.CmdTrackFinished, uint16(i), false))
		}
	}()

	for i := 0; i < n; i++ {
		f, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if f.Param() != uint16(i) {
			t.Fatalf("Get()[%d].Param() = %d, want %d", i, f.Param(), i)
		}
	}
	<-done
}

func TestQueueContextCancel(t *testing.T) {
	q := NewQueue(MinQueueSize)
	ctx, cancel := context.WithCancel(context.Background())

	errC := make(chan error, 1)
	go func() {
		_, err := q.Get(ctx)
		errC <- err
	}()
	cancel()

	select {
	case err := <-errC:
		if err != context.Canceled {
			t.Fatalf("Get() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Get() not unblocked by cancel")
	}
}
