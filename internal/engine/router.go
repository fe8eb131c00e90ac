package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/taoyao-code/dfplayer-server/internal/metrics"
	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfp"
	"github.com/taoyao-code/dfplayer-server/internal/transport"
)

// Router 上行帧消费循环：取队列、解码、按命令码分发，
// 更新设备状态并触发事件信号。唯一的 DeviceState 写者。
type Router struct {
	queue   *transport.Queue
	state   *State
	events  *EventSet
	log     *zap.Logger
	appm    *metrics.AppMetrics
	reasons *dfp.ReasonMap

	onFinished func(track int)
}

// NewRouter 创建路由器。appm 可为 nil（不上报指标）。
func NewRouter(q *transport.Queue, st *State, ev *EventSet, reasons *dfp.ReasonMap, log *zap.Logger, appm *metrics.AppMetrics) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	if reasons == nil {
		reasons = dfp.DefaultReasonMap()
	}
	return &Router{queue: q, state: st, events: ev, log: log, appm: appm, reasons: reasons}
}

// SetOnTrackFinished 安装曲目结束回调（播放历史记录用）
func (r *Router) SetOnTrackFinished(fn func(track int)) { r.onFinished = fn }

// Run 消费循环，阻塞直至 ctx 取消
func (r *Router) Run(ctx context.Context) error {
	for {
		f, err := r.queue.Get(ctx)
		if err != nil {
			return err
		}
		if r.appm != nil {
			r.appm.QueueDepth.Set(float64(r.queue.Len()))
		}
		r.route(f)
	}
}

func (r *Router) route(f dfp.Frame) {
	cmd, param, err := dfp.Decode(f.Bytes())
	if err != nil {
		// 校验失败是软错误：记日志丢帧，命令由上层调用方重发
		if errors.Is(err, dfp.ErrChecksum) {
			r.log.Warn("inbound frame dropped", zap.Error(err), zap.String("frame", f.String()))
			r.countParse("checksum")
			return
		}
		r.log.Warn("malformed inbound frame", zap.Error(err))
		r.countParse("malformed")
		return
	}
	r.countParse("ok")
	if r.appm != nil {
		r.appm.FramesRoutedTotal.WithLabelValues(cmd.String()).Inc()
	}

	switch cmd {
	case dfp.CmdAck:
		r.events.Acknowledged.Set()

	case dfp.CmdTrackFinished:
		track := int(param)
		r.state.SetLastFinished(track)
		r.state.SetPhase(PhaseIdle)
		r.events.TrackPlaying.Clear()
		r.events.TrackEnded.Set()
		if r.appm != nil {
			r.appm.TracksFinished.Inc()
			r.appm.PlayingGauge.Set(0)
		}
		r.log.Debug("track finished", zap.Int("track", track))
		if r.onFinished != nil {
			r.onFinished(track)
		}

	case dfp.CmdInit:
		if param&dfp.InitOnlineTF == 0 {
			// 无 TF 卡：致命，会话终止
			r.state.SetOnline(false)
			r.state.SetPhase(PhaseStorageMissing)
			r.events.TrackEnded.Set() // 释放等待曲目结束的任务
			r.log.Error("module initialised without tf card", zap.Uint16("param", param))
			return
		}
		r.state.SetOnline(true)
		r.state.SetPhase(PhaseIdle)
		r.log.Info("module online", zap.Uint16("param", param))

	case dfp.CmdQueryVolume:
		r.state.SetVolume(int(param))
		r.events.QueryAnswered.Set()

	case dfp.CmdQueryEQ:
		r.state.SetEQ(dfp.EQ(param))
		r.events.QueryAnswered.Set()

	case dfp.CmdQueryFiles:
		r.state.SetTrackCount(int(param))
		r.events.QueryAnswered.Set()

	case dfp.CmdQueryTrack:
		r.state.SetCurrentTrack(int(param))
		r.events.QueryAnswered.Set()

	case dfp.CmdMediaInsert:
		r.state.SetOnline(true)
		r.events.MediaInserted.Set()
		r.log.Info("tf card inserted")

	case dfp.CmdMediaRemove:
		r.state.SetOnline(false)
		r.events.MediaRemoved.Set()
		if r.state.Phase() == PhasePlaying {
			// 播放中拔卡：致命，会话终止
			r.state.SetPhase(PhaseStorageLost)
			r.events.TrackPlaying.Clear()
			r.events.TrackEnded.Set()
			if r.appm != nil {
				r.appm.PlayingGauge.Set(0)
			}
			r.log.Error("tf card removed while playing")
			return
		}
		r.log.Warn("tf card removed")

	case dfp.CmdError:
		r.state.SetLastError(int(param))
		r.events.ErrorRaised.Set()
		r.log.Warn("module reported error",
			zap.Int("code", int(param)),
			zap.String("reason", r.reasons.Describe(int(param))))

	default:
		// 未知命令码：为前向兼容忽略
		r.log.Debug("unknown opcode ignored", zap.String("cmd", cmd.String()), zap.Uint16("param", param))
	}
}

func (r *Router) countParse(result string) {
	if r.appm != nil {
		r.appm.FramesParsedTotal.WithLabelValues(result).Inc()
	}
}
