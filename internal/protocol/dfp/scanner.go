package dfp

// Scanner 从串口原始字节流中切分完整10字节帧。
// 丢失同步时逐字节前移，直到重新对齐 0x7E 包头。
type Scanner struct {
	buf []byte
}

// NewScanner 创建流切分器
func NewScanner() *Scanner { return &Scanner{} }

// Feed 追加收到的字节并返回其中的完整帧。
// 只做边界切分，不做校验和验证（由 Decode 负责）。
func (s *Scanner) Feed(p []byte) []Frame {
	s.buf = append(s.buf, p...)
	var out []Frame
	for {
		// 对齐包头
		for len(s.buf) > 0 && s.buf[0] != ByteStart {
			s.buf = s.buf[1:]
		}
		if len(s.buf) < FrameLen {
			return out
		}
		// 包尾不符则视为伪包头，前移一字节重新同步
		if s.buf[idxEnd] != ByteEnd {
			s.buf = s.buf[1:]
			continue
		}
		var f Frame
		copy(f[:], s.buf[:FrameLen])
		out = append(out, f)
		s.buf = s.buf[FrameLen:]
	}
}

// Pending 返回缓冲中尚未成帧的字节数
func (s *Scanner) Pending() int { return len(s.buf) }

// Reset 清空缓冲
func (s *Scanner) Reset() { s.buf = s.buf[:0] }
