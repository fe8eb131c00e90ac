package dfp

import (
	"errors"
	"fmt"
)

// Command DFPlayer 命令码（闭合枚举）。
// 采用厂商 FN-M16P 文档表；文件夹/USB/Flash 寻址命令不在支持范围。
type Command byte

// 控制命令
const (
	CmdNext   Command = 0x01
	CmdPrev   Command = 0x02
	CmdTrack  Command = 0x03
	CmdVolSet Command = 0x06
	CmdEQSet  Command = 0x07
	CmdReset  Command = 0x0C
	CmdPlay   Command = 0x0D
	CmdPause  Command = 0x0E
)

// 上行通知
const (
	CmdMediaInsert   Command = 0x3A
	CmdMediaRemove   Command = 0x3B
	CmdTrackFinished Command = 0x3D
	CmdInit          Command = 0x3F
	CmdError         Command = 0x40
	CmdAck           Command = 0x41
)

// 查询命令；模块以同命令码帧应答
const (
	CmdQueryVolume Command = 0x43
	CmdQueryEQ     Command = 0x44
	CmdQueryFiles  Command = 0x48
	CmdQueryTrack  Command = 0x4C
)

// InitOnlineTF 0x3F 应答参数中 TF 卡在线位
const InitOnlineTF = 0x0002

var cmdNames = map[Command]string{
	CmdNext:          "next",
	CmdPrev:          "prev",
	CmdTrack:         "track",
	CmdVolSet:        "vol_set",
	CmdEQSet:         "eq_set",
	CmdReset:         "reset",
	CmdPlay:          "play",
	CmdPause:         "pause",
	CmdMediaInsert:   "media_insert",
	CmdMediaRemove:   "media_remove",
	CmdTrackFinished: "track_finished",
	CmdInit:          "init",
	CmdError:         "error",
	CmdAck:           "ack",
	CmdQueryVolume:   "q_vol",
	CmdQueryEQ:       "q_eq",
	CmdQueryFiles:    "q_files",
	CmdQueryTrack:    "q_track",
}

// 名称反查表（静态生成）
var cmdByName = func() map[string]Command {
	m := make(map[string]Command, len(cmdNames))
	for c, n := range cmdNames {
		m[n] = c
	}
	return m
}()

func (c Command) String() string {
	if n, ok := cmdNames[c]; ok {
		return n
	}
	return fmt.Sprintf("0x%02X", byte(c))
}

// CommandByName 按符号名反查命令码
func CommandByName(name string) (Command, bool) {
	c, ok := cmdByName[name]
	return c, ok
}

// 参数域边界
const (
	TrackMin  = 1
	TrackMax  = 3000
	VolumeMax = 30
	EQMax     = 5
)

// ParamRange 返回命令的合法参数闭区间。未列出的命令参数固定为0。
func ParamRange(c Command) (lo, hi uint16) {
	switch c {
	case CmdTrack:
		return TrackMin, TrackMax
	case CmdVolSet:
		return 0, VolumeMax
	case CmdEQSet:
		return 0, EQMax
	default:
		return 0, 0
	}
}

// ErrParamRange 参数越出命令的参数域
var ErrParamRange = errors.New("dfp: param out of range")

// ValidateParam 检查参数是否落在命令的参数域内
func ValidateParam(c Command, param uint16) error {
	lo, hi := ParamRange(c)
	if param < lo || param > hi {
		return fmt.Errorf("%w: %s param %d not in [%d,%d]", ErrParamRange, c, param, lo, hi)
	}
	return nil
}

// EQ 均衡器档位
type EQ uint16

const (
	EQNormal  EQ = 0
	EQPop     EQ = 1
	EQRock    EQ = 2
	EQJazz    EQ = 3
	EQClassic EQ = 4
	EQBass    EQ = 5
)

var eqNames = map[EQ]string{
	EQNormal:  "normal",
	EQPop:     "pop",
	EQRock:    "rock",
	EQJazz:    "jazz",
	EQClassic: "classic",
	EQBass:    "bass",
}

var eqByName = func() map[string]EQ {
	m := make(map[string]EQ, len(eqNames))
	for e, n := range eqNames {
		m[n] = e
	}
	return m
}()

func (e EQ) String() string {
	if n, ok := eqNames[e]; ok {
		return n
	}
	return fmt.Sprintf("eq(%d)", uint16(e))
}

// EQByName 按名称反查均衡器档位
func EQByName(name string) (EQ, bool) {
	e, ok := eqByName[name]
	return e, ok
}
