package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfp"
)

func TestDispatcherSendAcked(t *testing.T) {
	h := newHarness(t, ackAll(10))

	err := h.disp.Send(context.Background(), dfp.CmdVolSet, 20)
	require.NoError(t, err)

	frames := h.module.sentFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, dfp.CmdVolSet, frames[0].Command())
	assert.Equal(t, uint16(20), frames[0].Param())
}

func TestDispatcherTimeoutWithoutAck(t *testing.T) {
	h := newHarness(t, nil) // 设备不应答

	err := h.disp.Send(context.Background(), dfp.CmdPause, 0)
	assert.ErrorIs(t, err, ErrCommandTimeout)
	// 帧已写出：超时只向调用方呈现，不自动重试
	assert.Len(t, h.module.sentFrames(), 1)
}

func TestDispatcherParamValidation(t *testing.T) {
	h := newHarness(t, ackAll(10))

	err := h.disp.Send(context.Background(), dfp.CmdVolSet, 31)
	assert.Error(t, err)
	assert.Empty(t, h.module.sentFrames(), "invalid command must not reach the wire")
}

func TestDispatcherOptimisticPlaying(t *testing.T) {
	h := newHarness(t, ackAll(10))

	require.NoError(t, h.disp.Send(context.Background(), dfp.CmdTrack, 7))
	// 播放类命令在发送时即置 TrackPlaying、清 TrackEnded
	assert.True(t, h.events.TrackPlaying.IsSet())
	assert.False(t, h.events.TrackEnded.IsSet())
	assert.Equal(t, PhasePlaying, h.state.Phase())
}

func TestDispatcherTerminalRejectsWithoutTransmit(t *testing.T) {
	h := newHarness(t, ackAll(10))
	h.state.SetPhase(PhaseStorageMissing)

	err := h.disp.Send(context.Background(), dfp.CmdTrack, 1)
	assert.ErrorIs(t, err, ErrNoStorage)
	assert.Empty(t, h.module.sentFrames())

	h2 := newHarness(t, ackAll(10))
	h2.state.SetPhase(PhaseStorageLost)
	err = h2.disp.Send(context.Background(), dfp.CmdNext, 0)
	assert.ErrorIs(t, err, ErrStorageGone)
	assert.Empty(t, h2.module.sentFrames())
}

// 终态下 reset 仍可下发：唯一的恢复路径
func TestDispatcherResetAllowedInTerminal(t *testing.T) {
	h := newHarness(t, ackAll(10))
	h.state.SetPhase(PhaseStorageMissing)

	err := h.disp.Send(context.Background(), dfp.CmdReset, 0)
	require.NoError(t, err)
	assert.Len(t, h.module.sentFrames(), 1)
}

func TestDispatcherQuery(t *testing.T) {
	h := newHarness(t, func(cmd dfp.Command, _ uint16) []dfp.Frame {
		out := []dfp.Frame{dfp.Encode(dfp.CmdAck, 0, false)}
		if cmd == dfp.CmdQueryVolume {
			out = append(out, dfp.Encode(dfp.CmdQueryVolume, 18, false))
		}
		return out
	})

	require.NoError(t, h.disp.Query(context.Background(), dfp.CmdQueryVolume))
	assert.Equal(t, 18, h.state.Snapshot().Volume)

	err := h.disp.Query(context.Background(), dfp.CmdPlay)
	assert.Error(t, err, "non-query command must be rejected")
}

func TestDispatcherQueryTimeout(t *testing.T) {
	// 只回 ACK、不回应答帧
	h := newHarness(t, func(dfp.Command, uint16) []dfp.Frame {
		return []dfp.Frame{dfp.Encode(dfp.CmdAck, 0, false)}
	})

	err := h.disp.Query(context.Background(), dfp.CmdQueryFiles)
	assert.ErrorIs(t, err, ErrQueryTimeout)
}

func TestDispatcherContextCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.disp.Send(ctx, dfp.CmdPause, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
