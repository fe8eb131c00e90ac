package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfp"
)

// SettingsStore 命名设置的持久化能力（音量、均衡器）
type SettingsStore interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name string, value string) error
}

// 持久化键名
const (
	SettingVolume = "volume"
	SettingEQ     = "eq"
)

// ErrTrackRange 曲目号越界或曲目总数未知
var ErrTrackRange = errors.New("engine: track out of range")

// Session 播放会话：在调度器之上叠加曲目顺序策略。
// 状态与信号在会话构造时创建并随会话销毁，不使用全局量。
type Session struct {
	id     string
	disp   *Dispatcher
	state  *State
	events *EventSet
	store  SettingsStore
	log    *zap.Logger

	// 会话生命周期上下文：后台循环（区间循环、全部播放）挂在它上面，
	// 不随发起调用方（如单个HTTP请求）的上下文结束而终止
	lifeCtx context.Context

	settle        time.Duration
	defaultVolume int

	mu       sync.Mutex
	cursor   int
	trackMax int

	repeat atomic.Bool
}

// NewSession 创建会话。lifeCtx 约束后台循环的存活期（可为 nil，即进程生命周期）；
// store 可为 nil（设置不持久化）。
func NewSession(lifeCtx context.Context, disp *Dispatcher, st *State, ev *EventSet, store SettingsStore, cfg cfgpkg.PlayerConfig, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	if lifeCtx == nil {
		lifeCtx = context.Background()
	}
	id := uuid.NewString()
	settle := cfg.ResetSettle
	if settle <= 0 {
		settle = 3 * time.Second
	}
	return &Session{
		id:            id,
		disp:          disp,
		state:         st,
		events:        ev,
		store:         store,
		log:           log.With(zap.String("session", id)),
		lifeCtx:       lifeCtx,
		settle:        settle,
		defaultVolume: cfg.DefaultVolume,
	}
}

// ID 会话标识
func (s *Session) ID() string { return s.id }

// SessionSnapshot 会话级只读视图（API 暴露）
type SessionSnapshot struct {
	Snapshot
	SessionID    string `json:"sessionId"`
	Cursor       int    `json:"cursor"`
	RepeatActive bool   `json:"repeatActive"`
}

// Snapshot 返回设备状态加会话游标
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	cursor := s.cursor
	s.mu.Unlock()
	return SessionSnapshot{
		Snapshot:     s.state.Snapshot(),
		SessionID:    s.id,
		Cursor:       cursor,
		RepeatActive: s.repeat.Load(),
	}
}

// Reset 复位模块并等待热身；校验 TF 卡在线后查询曲目总数、恢复持久化设置。
// 终态（缺卡/拔卡）的唯一恢复路径。
func (s *Session) Reset(ctx context.Context) error {
	s.repeat.Store(false)

	if err := s.disp.Send(ctx, dfp.CmdReset, 0); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	// 模块热身；0x3F 初始化帧在此窗口内到达
	select {
	case <-time.After(s.settle):
	case <-ctx.Done():
		return ctx.Err()
	}

	if snap := s.state.Snapshot(); snap.Phase == PhaseStorageMissing || !snap.Online {
		return ErrNoStorage
	}

	if err := s.disp.Query(ctx, dfp.CmdQueryFiles); err != nil {
		return fmt.Errorf("query file count: %w", err)
	}
	count := s.state.Snapshot().TrackCount
	s.mu.Lock()
	s.trackMax = count
	s.cursor = 0
	s.mu.Unlock()
	s.events.TrackEnded.Set()
	s.log.Info("module reset", zap.Int("trackCount", count))

	s.restoreSettings(ctx)
	return nil
}

// restoreSettings 从设置存储恢复音量与均衡器；失败只记日志
func (s *Session) restoreSettings(ctx context.Context) {
	vol := s.defaultVolume
	if s.store != nil {
		if v, ok, err := s.store.Get(ctx, SettingVolume); err != nil {
			s.log.Warn("read persisted volume failed", zap.Error(err))
		} else if ok {
			if parsed, perr := strconv.Atoi(v); perr == nil {
				vol = parsed
			}
		}
	}
	if err := s.SetVolume(ctx, vol); err != nil {
		s.log.Warn("restore volume failed", zap.Error(err))
	}

	if s.store == nil {
		return
	}
	if v, ok, err := s.store.Get(ctx, SettingEQ); err != nil {
		s.log.Warn("read persisted eq failed", zap.Error(err))
	} else if ok {
		if eq, found := dfp.EQByName(v); found {
			if err := s.SetEQ(ctx, eq); err != nil {
				s.log.Warn("restore eq failed", zap.Error(err))
			}
		}
	}
}

func (s *Session) checkTrack(n int) error {
	s.mu.Lock()
	max := s.trackMax
	s.mu.Unlock()
	if max <= 0 {
		return fmt.Errorf("%w: track count unknown, reset first", ErrTrackRange)
	}
	if n < dfp.TrackMin || n > max {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrTrackRange, n, dfp.TrackMin, max)
	}
	return nil
}

// PlayTrack 播放曲目 n；不等待播放完成，允许随后立即暂停
func (s *Session) PlayTrack(ctx context.Context, n int) error {
	if err := s.checkTrack(n); err != nil {
		return err
	}
	if err := s.disp.Send(ctx, dfp.CmdTrack, uint16(n)); err != nil {
		return err
	}
	s.mu.Lock()
	s.cursor = n
	s.mu.Unlock()
	s.state.SetCurrentTrack(n)
	return nil
}

// PlayTrackWait 等待上一曲结束后再下发；用于串行化曲目序列
func (s *Session) PlayTrackWait(ctx context.Context, n int) error {
	if err := s.checkTrack(n); err != nil {
		return err
	}
	if err := s.events.TrackEnded.Wait(ctx); err != nil {
		return err
	}
	return s.PlayTrack(ctx, n)
}

// WaitTrackEnd 等待当前曲目结束
func (s *Session) WaitTrackEnd(ctx context.Context) error {
	return s.events.TrackEnded.Wait(ctx)
}

// Next 游标下一曲，越过上界回绕到第一曲
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	n := s.cursor + 1
	if n > s.trackMax {
		n = dfp.TrackMin
	}
	s.mu.Unlock()
	return s.PlayTrackWait(ctx, n)
}

// Prev 游标上一曲，越过下界回绕到最后一曲
func (s *Session) Prev(ctx context.Context) error {
	s.mu.Lock()
	n := s.cursor - 1
	if n < dfp.TrackMin {
		n = s.trackMax
	}
	s.mu.Unlock()
	return s.PlayTrackWait(ctx, n)
}

// RepeatRange 后台循环播放闭区间 [start,end]，方向由 end-start 符号决定。
// 标志在每次下发前检查：清除后在途曲目自然播完，循环不再下发。
// ctx 仅用于校验阶段；循环本身挂在会话生命周期上，调用方返回后继续运行。
func (s *Session) RepeatRange(ctx context.Context, start, end int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkTrack(start); err != nil {
		return err
	}
	if err := s.checkTrack(end); err != nil {
		return err
	}
	if start == end {
		return fmt.Errorf("%w: repeat range is empty", ErrTrackRange)
	}

	s.repeat.Store(true)
	go s.repeatLoop(s.lifeCtx, start, end)
	return nil
}

func (s *Session) repeatLoop(ctx context.Context, start, end int) {
	inc := 1
	if end < start {
		inc = -1
	}
	rewind := end + inc

	trk := start
	for s.repeat.Load() {
		// 下发后等待本曲结束；标志在两曲之间检查，在途曲目总能播完
		if err := s.PlayTrack(ctx, trk); err != nil {
			s.log.Warn("repeat loop stopped", zap.Error(err))
			s.repeat.Store(false)
			return
		}
		if err := s.events.TrackEnded.Wait(ctx); err != nil {
			s.repeat.Store(false)
			return
		}
		trk += inc
		if trk == rewind {
			trk = start
		}
	}
}

// StopRepeat 清除循环标志；在途曲目播完后停止
func (s *Session) StopRepeat() { s.repeat.Store(false) }

// RepeatActive 循环是否仍在运行
func (s *Session) RepeatActive() bool { return s.repeat.Load() }

// PlaySequence 按序播放一组曲目，完全串行
func (s *Session) PlaySequence(ctx context.Context, tracks []int) error {
	for _, n := range tracks {
		if err := s.PlayTrackWait(ctx, n); err != nil {
			return err
		}
	}
	return s.events.TrackEnded.Wait(ctx)
}

// PlayAll 循环播放全部曲目，可选乱序。
// 与 RepeatRange 相同：循环挂在会话生命周期上，不随调用方上下文结束。
func (s *Session) PlayAll(ctx context.Context, shuffled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	max := s.trackMax
	s.mu.Unlock()
	if max <= 0 {
		return fmt.Errorf("%w: track count unknown, reset first", ErrTrackRange)
	}

	seq := make([]int, max)
	for i := range seq {
		seq[i] = i + 1
	}
	if shuffled {
		Shuffle(seq)
	}

	s.repeat.Store(true)
	go func() {
		for s.repeat.Load() {
			if err := s.PlaySequence(s.lifeCtx, seq); err != nil {
				s.log.Warn("play-all stopped", zap.Error(err))
				s.repeat.Store(false)
				return
			}
		}
	}()
	return nil
}

// SetVolume 设置音量（0..30，越界钳制）并持久化
func (s *Session) SetVolume(ctx context.Context, level int) error {
	if level < 0 {
		level = 0
	}
	if level > dfp.VolumeMax {
		level = dfp.VolumeMax
	}
	if err := s.disp.Send(ctx, dfp.CmdVolSet, uint16(level)); err != nil {
		return err
	}
	s.state.SetVolume(level)
	s.persist(ctx, SettingVolume, strconv.Itoa(level))
	return nil
}

// SetEQ 设置均衡器档位并持久化
func (s *Session) SetEQ(ctx context.Context, eq dfp.EQ) error {
	if err := s.disp.Send(ctx, dfp.CmdEQSet, uint16(eq)); err != nil {
		return err
	}
	s.state.SetEQ(eq)
	s.persist(ctx, SettingEQ, eq.String())
	return nil
}

func (s *Session) persist(ctx context.Context, name, value string) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(ctx, name, value); err != nil {
		s.log.Warn("persist setting failed", zap.String("name", name), zap.Error(err))
	}
}

// Pause 暂停播放并释放序列等待者（对应源设备的 stop 语义）
func (s *Session) Pause(ctx context.Context) error {
	if err := s.disp.Send(ctx, dfp.CmdPause, 0); err != nil {
		return err
	}
	s.state.SetPhase(PhaseIdle)
	s.events.TrackPlaying.Clear()
	s.events.TrackEnded.Set()
	return nil
}

// Resume 从暂停恢复播放
func (s *Session) Resume(ctx context.Context) error {
	return s.disp.Send(ctx, dfp.CmdPlay, 0)
}

// QueryVolume 查询模块音量
func (s *Session) QueryVolume(ctx context.Context) (int, error) {
	if err := s.disp.Query(ctx, dfp.CmdQueryVolume); err != nil {
		return 0, err
	}
	return s.state.Snapshot().Volume, nil
}

// QueryEQ 查询均衡器档位
func (s *Session) QueryEQ(ctx context.Context) (dfp.EQ, error) {
	if err := s.disp.Query(ctx, dfp.CmdQueryEQ); err != nil {
		return 0, err
	}
	return s.state.Snapshot().EQ, nil
}

// QueryFiles 查询 TF 卡曲目总数并同步游标上界
func (s *Session) QueryFiles(ctx context.Context) (int, error) {
	if err := s.disp.Query(ctx, dfp.CmdQueryFiles); err != nil {
		return 0, err
	}
	count := s.state.Snapshot().TrackCount
	s.mu.Lock()
	s.trackMax = count
	s.mu.Unlock()
	return count, nil
}

// QueryTrack 查询当前曲目号
func (s *Session) QueryTrack(ctx context.Context) (int, error) {
	if err := s.disp.Query(ctx, dfp.CmdQueryTrack); err != nil {
		return 0, err
	}
	return s.state.Snapshot().CurrentTrack, nil
}

// Shuffle 就地 Durstenfeld / Fisher-Yates 洗牌，均匀分布
func Shuffle(tracks []int) {
	for i := len(tracks) - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		tracks[i], tracks[j] = tracks[j], tracks[i]
	}
}
