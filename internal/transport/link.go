package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfp"
)

// ErrLinkClosed 链路已关闭
var ErrLinkClosed = errors.New("transport: link closed")

// Link 与模块之间的双工串口链路。
// 读循环把字节流切分成帧后送入接收队列；写操作互斥，整帧写出。
type Link struct {
	rw      io.ReadWriteCloser
	queue   *Queue
	log     *zap.Logger
	scanner *dfp.Scanner

	readBuf   int
	readDelay time.Duration

	writeMu sync.Mutex
	closed  atomic.Bool

	onRxBytes func(int)
	onTxBytes func(int)
}

// Open 打开串口（8数据位、无校验、1停止位）并构造链路
func Open(cfg cfgpkg.SerialConfig, q *Queue, log *zap.Logger) (*Link, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, err
	}
	return NewLink(port, cfg, q, log), nil
}

// NewLink 基于任意字节流构造链路；测试与仿真用
func NewLink(rw io.ReadWriteCloser, cfg cfgpkg.SerialConfig, q *Queue, log *zap.Logger) *Link {
	if log == nil {
		log = zap.NewNop()
	}
	bufSize := cfg.ReadBuf
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Link{
		rw:        rw,
		queue:     q,
		log:       log,
		scanner:   dfp.NewScanner(),
		readBuf:   bufSize,
		readDelay: cfg.ReadDelay,
	}
}

// SetOnRxBytes 安装接收字节数回调（指标上报）
func (l *Link) SetOnRxBytes(fn func(int)) { l.onRxBytes = fn }

// SetOnTxBytes 安装发送字节数回调
func (l *Link) SetOnTxBytes(fn func(int)) { l.onTxBytes = fn }

// Run 读循环：读串口字节、切分帧、入队。阻塞直至 ctx 取消或读出错。
func (l *Link) Run(ctx context.Context) error {
	// ctx 取消时关闭底层流，解除阻塞中的 Read；
	// Run 因读错误先退出时通过 done 收掉本协程
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-done:
		}
	}()

	buf := make([]byte, l.readBuf)
	for {
		n, err := l.rw.Read(buf)
		if n > 0 {
			if l.onRxBytes != nil {
				l.onRxBytes(n)
			}
			for _, f := range l.scanner.Feed(buf[:n]) {
				if perr := l.queue.Put(ctx, f); perr != nil {
					return perr
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil || l.closed.Load() {
				return ctx.Err()
			}
			l.log.Error("serial read failed", zap.Error(err))
			return err
		}
		if l.readDelay > 0 {
			time.Sleep(l.readDelay)
		}
	}
}

// WriteFrame 整帧写出；对并发调用互斥
func (l *Link) WriteFrame(f dfp.Frame) error {
	if l.closed.Load() {
		return ErrLinkClosed
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	n, err := l.rw.Write(f.Bytes())
	if err != nil {
		return err
	}
	if l.onTxBytes != nil {
		l.onTxBytes(n)
	}
	// 串口实现支持时等待发送缓冲排空
	if d, ok := l.rw.(interface{ Drain() error }); ok {
		return d.Drain()
	}
	return nil
}

// Close 关闭链路与底层流
func (l *Link) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.rw.Close()
}
