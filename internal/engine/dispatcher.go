package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	"github.com/taoyao-code/dfplayer-server/internal/metrics"
	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfp"
)

var (
	// ErrCommandTimeout 命令在时限内未被模块 ACK；不自动重试，由调用方决定
	ErrCommandTimeout = errors.New("engine: command not acknowledged")
	// ErrNoStorage 初始化未检测到 TF 卡
	ErrNoStorage = errors.New("engine: no storage online")
	// ErrStorageGone 播放中 TF 卡被拔出
	ErrStorageGone = errors.New("engine: storage removed")
	// ErrQueryTimeout 查询在时限内未收到应答帧
	ErrQueryTimeout = errors.New("engine: query not answered")
)

// FrameWriter 下行帧写出能力（由 transport.Link 提供）
type FrameWriter interface {
	WriteFrame(dfp.Frame) error
}

// Dispatcher 命令调度器：编码、下发、等待 ACK。
// 互斥保证同一时刻只有一条未确认命令在途。
type Dispatcher struct {
	w      FrameWriter
	state  *State
	events *EventSet
	log    *zap.Logger
	appm   *metrics.AppMetrics

	// 命令间最小间隔，模块处理不过来会丢帧
	limiter *rate.Limiter

	feedback     bool
	ackTimeout   time.Duration
	resetWindow  time.Duration
	queryTimeout time.Duration

	mu      sync.Mutex
	queryMu sync.Mutex

	onSent func(cmd dfp.Command, param uint16, err error)
}

// NewDispatcher 创建调度器。appm 可为 nil。
func NewDispatcher(w FrameWriter, st *State, ev *EventSet, cfg cfgpkg.PlayerConfig, log *zap.Logger, appm *metrics.AppMetrics) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	ackTimeout := cfg.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = 200 * time.Millisecond
	}
	resetWindow := cfg.ResetSettle
	if resetWindow <= 0 {
		resetWindow = 3 * time.Second
	}
	queryTimeout := cfg.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = 500 * time.Millisecond
	}
	ratePerSec := cfg.SendRatePerS
	if ratePerSec <= 0 {
		ratePerSec = 20
	}
	return &Dispatcher{
		w:            w,
		state:        st,
		events:       ev,
		log:          log,
		appm:         appm,
		limiter:      rate.NewLimiter(rate.Limit(ratePerSec), 1),
		feedback:     cfg.Feedback,
		ackTimeout:   ackTimeout,
		resetWindow:  resetWindow,
		queryTimeout: queryTimeout,
	}
}

// SetOnSent 安装命令发送回调（命令日志落库用）
func (d *Dispatcher) SetOnSent(fn func(cmd dfp.Command, param uint16, err error)) { d.onSent = fn }

// startsPlayback 模块对这些命令要到转入忙碌后才回 ACK，
// 因此发送时先行清 TrackEnded、置 TrackPlaying。
func startsPlayback(cmd dfp.Command) bool {
	switch cmd {
	case dfp.CmdTrack, dfp.CmdNext, dfp.CmdPrev, dfp.CmdPlay:
		return true
	}
	return false
}

// Send 下发一条命令并等待 ACK（或超时）。
// 终态下除 reset 外一律拒绝，帧不会被写出。
func (d *Dispatcher) Send(ctx context.Context, cmd dfp.Command, param uint16) error {
	err := d.send(ctx, cmd, param)
	if d.onSent != nil {
		d.onSent(cmd, param, err)
	}
	return err
}

func (d *Dispatcher) send(ctx context.Context, cmd dfp.Command, param uint16) error {
	if p := d.state.Phase(); p.Terminal() && cmd != dfp.CmdReset {
		if p == PhaseStorageLost {
			return ErrStorageGone
		}
		return ErrNoStorage
	}
	if err := dfp.ValidateParam(cmd, param); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	d.events.Acknowledged.Clear()
	if startsPlayback(cmd) {
		d.events.TrackEnded.Clear()
		d.events.TrackPlaying.Set()
		d.state.SetPhase(PhasePlaying)
		if d.appm != nil {
			d.appm.PlayingGauge.Set(1)
		}
	}

	f := dfp.Encode(cmd, param, d.feedback)
	sentAt := time.Now()
	if err := d.w.WriteFrame(f); err != nil {
		return fmt.Errorf("write %s: %w", cmd, err)
	}
	if d.appm != nil {
		d.appm.CommandsSentTotal.WithLabelValues(cmd.String()).Inc()
	}
	d.log.Debug("command sent", zap.String("cmd", cmd.String()), zap.Uint16("param", param))

	if !d.feedback {
		return nil
	}

	window := d.ackTimeout
	if cmd == dfp.CmdReset {
		// 复位后模块要热身数秒才应答
		window = d.resetWindow
	}
	waitCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()
	if err := d.events.Acknowledged.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.appm != nil {
			d.appm.CommandTimeouts.Inc()
		}
		return fmt.Errorf("%w: %s after %s", ErrCommandTimeout, cmd, window)
	}
	if d.appm != nil {
		d.appm.AckLatency.Observe(time.Since(sentAt).Seconds())
	}
	return nil
}

// Query 下发查询命令并等待同码应答帧（路由器置 QueryAnswered）。
// 查询串行化，应答写入 DeviceState 后由调用方读取快照。
func (d *Dispatcher) Query(ctx context.Context, cmd dfp.Command) error {
	switch cmd {
	case dfp.CmdQueryVolume, dfp.CmdQueryEQ, dfp.CmdQueryFiles, dfp.CmdQueryTrack:
	default:
		return fmt.Errorf("engine: %s is not a query command", cmd)
	}

	d.queryMu.Lock()
	defer d.queryMu.Unlock()

	d.events.QueryAnswered.Clear()
	if err := d.Send(ctx, cmd, 0); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, d.queryTimeout)
	defer cancel()
	if err := d.events.QueryAnswered.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s", ErrQueryTimeout, cmd)
	}
	return nil
}
