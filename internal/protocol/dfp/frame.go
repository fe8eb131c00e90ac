package dfp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DFPlayer Mini 串口帧格式（固定10字节）：
// 0x7E + 0xFF(版本) + 0x06(长度) + cmd(1) + feedback(1) + param(2, 大端) + checksum(2, 大端) + 0xEF
const (
	FrameLen = 10

	ByteStart   = 0x7E
	ByteVersion = 0xFF
	ByteLength  = 0x06
	ByteEnd     = 0xEF
)

// 帧内字节下标
const (
	idxStart    = 0
	idxVersion  = 1
	idxLength   = 2
	idxCmd      = 3
	idxFeedback = 4
	idxParamHi  = 5
	idxParamLo  = 6
	idxCsumHi   = 7
	idxCsumLo   = 8
	idxEnd      = 9
)

var (
	// ErrChecksum 校验和不匹配（软错误：丢弃该帧，循环继续）
	ErrChecksum = errors.New("dfp: checksum mismatch")
	// ErrFrameLength 帧长度不是10字节
	ErrFrameLength = errors.New("dfp: bad frame length")
	// ErrFrameMarker 包头/版本/包尾标记字节不符
	ErrFrameMarker = errors.New("dfp: bad frame marker")
)

// Frame 固定10字节协议帧
type Frame [FrameLen]byte

// Command 返回帧命令码
func (f Frame) Command() Command { return Command(f[idxCmd]) }

// Param 返回16位参数（大端）
func (f Frame) Param() uint16 { return binary.BigEndian.Uint16(f[idxParamHi : idxParamLo+1]) }

// Bytes 返回帧的字节切片拷贝
func (f Frame) Bytes() []byte {
	b := make([]byte, FrameLen)
	copy(b, f[:])
	return b
}

func (f Frame) String() string {
	return fmt.Sprintf("dfp.Frame{cmd=0x%02X param=0x%04X}", f[idxCmd], f.Param())
}

// Checksum 计算校验和：字节1..6累加和的二进制补码（mod 65536）
func Checksum(f *Frame) uint16 {
	var sum uint16
	for _, b := range f[idxVersion:idxCsumHi] {
		sum += uint16(b)
	}
	return -sum
}

// VerifyChecksum 校验帧：字节1..6累加和加上16位校验字，mod 65536 应为0
func VerifyChecksum(f *Frame) error {
	var sum uint16
	for _, b := range f[idxVersion:idxCsumHi] {
		sum += uint16(b)
	}
	if sum+binary.BigEndian.Uint16(f[idxCsumHi:idxCsumLo+1]) != 0 {
		return ErrChecksum
	}
	return nil
}

// Encode 构造下行帧。feedback 指示是否要求模块回 ACK。
// 参数范围不在此处钳制，由调用方负责（见 ValidateParam）。
func Encode(cmd Command, param uint16, feedback bool) Frame {
	f := Frame{
		idxStart:   ByteStart,
		idxVersion: ByteVersion,
		idxLength:  ByteLength,
		idxCmd:     byte(cmd),
		idxEnd:     ByteEnd,
	}
	if feedback {
		f[idxFeedback] = 0x01
	}
	binary.BigEndian.PutUint16(f[idxParamHi:idxParamLo+1], param)
	binary.BigEndian.PutUint16(f[idxCsumHi:idxCsumLo+1], Checksum(&f))
	return f
}

// Decode 解析上行帧，返回命令码与参数。
// 校验失败返回 ErrChecksum；调用方应记日志后丢弃，帧不重试。
func Decode(b []byte) (Command, uint16, error) {
	if len(b) != FrameLen {
		return 0, 0, fmt.Errorf("%w: %d", ErrFrameLength, len(b))
	}
	if b[idxStart] != ByteStart || b[idxVersion] != ByteVersion || b[idxEnd] != ByteEnd {
		return 0, 0, ErrFrameMarker
	}
	var f Frame
	copy(f[:], b)
	if err := VerifyChecksum(&f); err != nil {
		return 0, 0, err
	}
	return f.Command(), f.Param(), nil
}
