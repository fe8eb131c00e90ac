package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfp"
	"github.com/taoyao-code/dfplayer-server/internal/transport"
)

// fakeModule 在 FrameWriter 背后模拟 DFPlayer：记录写出的帧，
// 并按 respond 策略把应答帧推回接收队列。
type fakeModule struct {
	t *testing.T
	q *transport.Queue

	mu   sync.Mutex
	sent []dfp.Frame

	respond func(cmd dfp.Command, param uint16) []dfp.Frame
}

func (m *fakeModule) WriteFrame(f dfp.Frame) error {
	m.mu.Lock()
	m.sent = append(m.sent, f)
	resp := m.respond
	m.mu.Unlock()

	if resp != nil {
		for _, rf := range resp(f.Command(), f.Param()) {
			if err := m.q.Put(context.Background(), rf); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *fakeModule) sentCommands() []dfp.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]dfp.Command, len(m.sent))
	for i, f := range m.sent {
		out[i] = f.Command()
	}
	return out
}

func (m *fakeModule) sentFrames() []dfp.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dfp.Frame(nil), m.sent...)
}

func (m *fakeModule) waitSent(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		cur := len(m.sent)
		m.mu.Unlock()
		if cur >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sent frames", n)
}

// ackAll 对一切命令回 ACK；复位命令额外回 TF 卡在线的初始化帧，
// 文件数查询回 fileCount。
func ackAll(fileCount uint16) func(dfp.Command, uint16) []dfp.Frame {
	return func(cmd dfp.Command, _ uint16) []dfp.Frame {
		out := []dfp.Frame{dfp.Encode(dfp.CmdAck, 0, false)}
		switch cmd {
		case dfp.CmdReset:
			out = append(out, dfp.Encode(dfp.CmdInit, dfp.InitOnlineTF, false))
		case dfp.CmdQueryFiles:
			out = append(out, dfp.Encode(dfp.CmdQueryFiles, fileCount, false))
		}
		return out
	}
}

type harness struct {
	queue   *transport.Queue
	state   *State
	events  *EventSet
	router  *Router
	disp    *Dispatcher
	module  *fakeModule
	session *Session
	cancel  context.CancelFunc
}

// testPlayerConfig 收紧时间参数，让测试不用等真实热身窗口
func testPlayerConfig() cfgpkg.PlayerConfig {
	return cfgpkg.PlayerConfig{
		AckTimeout:    150 * time.Millisecond,
		ResetSettle:   30 * time.Millisecond,
		QueryTimeout:  200 * time.Millisecond,
		SendRatePerS:  2000,
		Feedback:      true,
		DefaultVolume: 12,
	}
}

func newHarness(t *testing.T, respond func(dfp.Command, uint16) []dfp.Frame) *harness {
	t.Helper()
	q := transport.NewQueue(transport.DefaultQueueSize)
	st := NewState()
	ev := NewEventSet()
	module := &fakeModule{t: t, q: q, respond: respond}

	cfg := testPlayerConfig()
	ctx, cancel := context.WithCancel(context.Background())
	disp := NewDispatcher(module, st, ev, cfg, nil, nil)
	router := NewRouter(q, st, ev, nil, nil, nil)
	sess := NewSession(ctx, disp, st, ev, nil, cfg, nil)

	go func() { _ = router.Run(ctx) }()
	t.Cleanup(cancel)

	return &harness{queue: q, state: st, events: ev, router: router, disp: disp, module: module, session: sess, cancel: cancel}
}

// inject 直接把一帧推入接收队列（模拟设备主动上报）
func (h *harness) inject(t *testing.T, f dfp.Frame) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.queue.Put(ctx, f); err != nil {
		t.Fatalf("inject: %v", err)
	}
}

// waitPhase 轮询等待状态机到达目标阶段
func (h *harness) waitPhase(t *testing.T, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.state.Phase() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("phase = %v, want %v", h.state.Phase(), want)
}
