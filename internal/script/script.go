// Package script 从文本命令驱动播放会话。
// 命令格式：每行 "cmd p0 p1 ..."，空格或逗号分隔；# 开头为注释行。
package script

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfp"
)

// Controller 脚本所需的会话操作子集
type Controller interface {
	Reset(ctx context.Context) error
	PlaySequence(ctx context.Context, tracks []int) error
	Next(ctx context.Context) error
	Prev(ctx context.Context) error
	SetVolume(ctx context.Context, level int) error
	SetEQ(ctx context.Context, eq dfp.EQ) error
	RepeatRange(ctx context.Context, start, end int) error
	StopRepeat()
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	PlayAll(ctx context.Context, shuffled bool) error
	WaitTrackEnd(ctx context.Context) error
}

// ErrUnknownCommand 脚本中出现不认识的命令字
var ErrUnknownCommand = errors.New("script: unknown command")

// Step 一条已解析的脚本命令
type Step struct {
	Cmd  string
	Args []string
	Line int
}

// 合法命令字及其参数个数下限
var cmdArity = map[string]int{
	"trk": 1, // trk n0 n1 ... 顺序播放曲目
	"nxt": 0, // 下一曲
	"prv": 0, // 上一曲
	"rst": 0, // 复位模块
	"vol": 1, // vol n 设置音量
	"eq":  1, // eq name|n 设置均衡器
	"rpt": 2, // rpt a b 循环播放区间
	"stp": 0, // 停止循环并暂停
	"ply": 0, // 恢复播放
	"shf": 0, // 乱序播放全部
	"zzz": 1, // zzz s 等待当前曲目结束后休眠 s 秒
}

// Parse 把脚本文本解析为步骤序列；空行与注释行跳过
func Parse(r io.Reader) ([]Step, error) {
	var steps []Step
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.ReplaceAll(line, ",", " ")
		tokens := strings.Fields(line)
		cmd := strings.ToLower(tokens[0])
		need, ok := cmdArity[cmd]
		if !ok {
			return nil, fmt.Errorf("%w: %q (line %d)", ErrUnknownCommand, cmd, lineNo)
		}
		args := tokens[1:]
		if len(args) < need {
			return nil, fmt.Errorf("script: %q needs %d args, got %d (line %d)", cmd, need, len(args), lineNo)
		}
		steps = append(steps, Step{Cmd: cmd, Args: args, Line: lineNo})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return steps, nil
}

// ParseFile 从文件解析脚本
func ParseFile(path string) ([]Step, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Runner 顺序执行脚本步骤
type Runner struct {
	ctl Controller
	log *zap.Logger
}

// NewRunner 创建脚本执行器
func NewRunner(ctl Controller, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{ctl: ctl, log: log}
}

// Run 逐条执行；任何一步出错即中止并返回该步位置
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	for _, st := range steps {
		r.log.Info("script step", zap.String("cmd", st.Cmd), zap.Strings("args", st.Args), zap.Int("line", st.Line))
		if err := r.exec(ctx, st); err != nil {
			return fmt.Errorf("script line %d (%s): %w", st.Line, st.Cmd, err)
		}
	}
	return nil
}

func (r *Runner) exec(ctx context.Context, st Step) error {
	switch st.Cmd {
	case "trk":
		tracks, err := intArgs(st.Args)
		if err != nil {
			return err
		}
		return r.ctl.PlaySequence(ctx, tracks)
	case "nxt":
		return r.ctl.Next(ctx)
	case "prv":
		return r.ctl.Prev(ctx)
	case "rst":
		return r.ctl.Reset(ctx)
	case "vol":
		level, err := strconv.Atoi(st.Args[0])
		if err != nil {
			return fmt.Errorf("volume: %w", err)
		}
		return r.ctl.SetVolume(ctx, level)
	case "eq":
		eq, err := parseEQ(st.Args[0])
		if err != nil {
			return err
		}
		return r.ctl.SetEQ(ctx, eq)
	case "rpt":
		bounds, err := intArgs(st.Args[:2])
		if err != nil {
			return err
		}
		return r.ctl.RepeatRange(ctx, bounds[0], bounds[1])
	case "stp":
		r.ctl.StopRepeat()
		return r.ctl.Pause(ctx)
	case "ply":
		return r.ctl.Resume(ctx)
	case "shf":
		return r.ctl.PlayAll(ctx, true)
	case "zzz":
		secs, err := strconv.Atoi(st.Args[0])
		if err != nil {
			return fmt.Errorf("sleep seconds: %w", err)
		}
		if err := r.ctl.WaitTrackEnd(ctx); err != nil {
			return err
		}
		select {
		case <-time.After(time.Duration(secs) * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, st.Cmd)
}

func intArgs(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("numeric argument %q: %w", a, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// parseEQ 接受档位名（jazz）或数字（3）
func parseEQ(arg string) (dfp.EQ, error) {
	if eq, ok := dfp.EQByName(strings.ToLower(arg)); ok {
		return eq, nil
	}
	if n, err := strconv.Atoi(arg); err == nil && n >= 0 && n <= dfp.EQMax {
		return dfp.EQ(n), nil
	}
	return 0, fmt.Errorf("unknown eq %q", arg)
}
