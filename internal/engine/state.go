package engine

import (
	"encoding/json"
	"sync"

	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfp"
)

// Phase 会话状态机阶段
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePlaying
	// 终态：停止一切下发，仅 reset 可恢复
	PhaseStorageMissing
	PhaseStorageLost
)

var phaseNames = map[Phase]string{
	PhaseIdle:           "idle",
	PhasePlaying:        "playing",
	PhaseStorageMissing: "storage_missing",
	PhaseStorageLost:    "storage_lost",
}

func (p Phase) String() string { return phaseNames[p] }

// MarshalJSON 以阶段名而非数字输出
func (p Phase) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

// Terminal 是否处于会话终态
func (p Phase) Terminal() bool {
	return p == PhaseStorageMissing || p == PhaseStorageLost
}

// Snapshot 设备状态只读快照
type Snapshot struct {
	Phase         Phase  `json:"phase"`
	Volume        int    `json:"volume"`
	EQ            dfp.EQ `json:"eq"`
	TrackCount    int    `json:"trackCount"`
	CurrentTrack  int    `json:"currentTrack"`
	LastFinished  int    `json:"lastFinished"`
	LastErrorCode int    `json:"lastErrorCode"`
	Online        bool   `json:"online"`
}

// State 设备可变状态。
// 除 Phase 的播放转换由调度器写入外，字段仅由路由器改写；
// 其余组件只通过 Snapshot 读取。
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewState 创建初始状态（IDLE、离线）
func NewState() *State {
	return &State{}
}

// Snapshot 返回状态拷贝
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Phase 返回当前阶段
func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Phase
}

// SetPhase 写入阶段；已处终态时只允许回到 Idle（reset 恢复路径）
func (s *State) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Phase.Terminal() && p != PhaseIdle {
		return
	}
	s.snap.Phase = p
}

func (s *State) SetVolume(v int) {
	s.mu.Lock()
	s.snap.Volume = v
	s.mu.Unlock()
}

func (s *State) SetEQ(e dfp.EQ) {
	s.mu.Lock()
	s.snap.EQ = e
	s.mu.Unlock()
}

func (s *State) SetTrackCount(n int) {
	s.mu.Lock()
	s.snap.TrackCount = n
	s.mu.Unlock()
}

func (s *State) SetCurrentTrack(n int) {
	s.mu.Lock()
	s.snap.CurrentTrack = n
	s.mu.Unlock()
}

func (s *State) SetLastFinished(n int) {
	s.mu.Lock()
	s.snap.LastFinished = n
	s.mu.Unlock()
}

func (s *State) SetLastError(code int) {
	s.mu.Lock()
	s.snap.LastErrorCode = code
	s.mu.Unlock()
}

func (s *State) SetOnline(online bool) {
	s.mu.Lock()
	s.snap.Online = online
	s.mu.Unlock()
}
