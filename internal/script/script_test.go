package script

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfp"
)

// fakeController 记录调用序列
type fakeController struct {
	calls []string
	fail  string // 该命令返回错误
}

func (f *fakeController) record(s string) error {
	f.calls = append(f.calls, s)
	if strings.HasPrefix(s, f.fail) && f.fail != "" {
		return fmt.Errorf("boom")
	}
	return nil
}

func (f *fakeController) Reset(context.Context) error { return f.record("reset") }
func (f *fakeController) PlaySequence(_ context.Context, tracks []int) error {
	return f.record(fmt.Sprintf("seq%v", tracks))
}
func (f *fakeController) Next(context.Context) error { return f.record("next") }
func (f *fakeController) Prev(context.Context) error { return f.record("prev") }
func (f *fakeController) SetVolume(_ context.Context, level int) error {
	return f.record(fmt.Sprintf("vol=%d", level))
}
func (f *fakeController) SetEQ(_ context.Context, eq dfp.EQ) error {
	return f.record("eq=" + eq.String())
}
func (f *fakeController) RepeatRange(_ context.Context, start, end int) error {
	return f.record(fmt.Sprintf("rpt=%d,%d", start, end))
}
func (f *fakeController) StopRepeat()                    { _ = f.record("stop-repeat") }
func (f *fakeController) Pause(context.Context) error    { return f.record("pause") }
func (f *fakeController) Resume(context.Context) error   { return f.record("resume") }
func (f *fakeController) PlayAll(_ context.Context, shuffled bool) error {
	return f.record(fmt.Sprintf("all shuffled=%v", shuffled))
}
func (f *fakeController) WaitTrackEnd(context.Context) error { return f.record("wait-end") }

func TestParse(t *testing.T) {
	src := `
# 开场脚本
rst
vol 18
trk 1, 2, 3
eq jazz

rpt 2 5
stp
`
	steps, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, steps, 6)
	assert.Equal(t, "rst", steps[0].Cmd)
	assert.Equal(t, []string{"1", "2", "3"}, steps[2].Args)
	assert.Equal(t, 5, steps[2].Line)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"未知命令", "fly 1"},
		{"参数不足", "rpt 3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.src))
			assert.Error(t, err)
		})
	}
}

func TestRunnerDispatch(t *testing.T) {
	src := `
rst
vol 18
eq jazz
trk 4 2 9
nxt
prv
rpt 2 5
stp
ply
shf
`
	steps, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	ctl := &fakeController{}
	require.NoError(t, NewRunner(ctl, nil).Run(context.Background(), steps))
	assert.Equal(t, []string{
		"reset",
		"vol=18",
		"eq=jazz",
		"seq[4 2 9]",
		"next",
		"prev",
		"rpt=2,5",
		"stop-repeat",
		"pause",
		"resume",
		"all shuffled=true",
	}, ctl.calls)
}

func TestRunnerZzzWaitsForTrackEnd(t *testing.T) {
	steps, err := Parse(strings.NewReader("zzz 0"))
	require.NoError(t, err)

	ctl := &fakeController{}
	require.NoError(t, NewRunner(ctl, nil).Run(context.Background(), steps))
	assert.Equal(t, []string{"wait-end"}, ctl.calls)
}

func TestRunnerStopsOnError(t *testing.T) {
	steps, err := Parse(strings.NewReader("rst\nnxt\nprv"))
	require.NoError(t, err)

	ctl := &fakeController{fail: "next"}
	err = NewRunner(ctl, nil).Run(context.Background(), steps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, []string{"reset", "next"}, ctl.calls)
}

func TestParseEQNumeric(t *testing.T) {
	eq, err := parseEQ("3")
	require.NoError(t, err)
	assert.Equal(t, dfp.EQJazz, eq)

	_, err = parseEQ("metal")
	assert.Error(t, err)
}
