package dfp

import (
	"bytes"
	"testing"
)

func TestScannerWholeFrame(t *testing.T) {
	s := NewScanner()
	f := Encode(CmdAck, 0, false)

	out := s.Feed(f.Bytes())
	if len(out) != 1 {
		t.Fatalf("Feed() got %d frames, want 1", len(out))
	}
	if !bytes.Equal(out[0].Bytes(), f.Bytes()) {
		t.Fatalf("frame mismatch: got %v", out[0])
	}
	if s.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", s.Pending())
	}
}

// 帧被任意切分到达也应重组
func TestScannerSplitDelivery(t *testing.T) {
	s := NewScanner()
	f := Encode(CmdTrackFinished, 7, false)
	raw := f.Bytes()

	var got []Frame
	for _, b := range raw {
		got = append(got, s.Feed([]byte{b})...)
	}
	if len(got) != 1 || got[0].Command() != CmdTrackFinished || got[0].Param() != 7 {
		t.Fatalf("split feed got %v", got)
	}
}

// 包头前的垃圾字节与伪包头均应被丢弃并重新同步
func TestScannerResync(t *testing.T) {
	s := NewScanner()
	f := Encode(CmdAck, 0, false)

	var in []byte
	in = append(in, 0x00, 0x13, 0xEF)       // 垃圾
	in = append(in, 0x7E, 0x01, 0x02, 0x03) // 伪包头，后续不足且包尾不符
	in = append(in, f.Bytes()...)

	out := s.Feed(in)
	if len(out) != 1 {
		t.Fatalf("Feed() got %d frames, want 1", len(out))
	}
	if out[0].Command() != CmdAck {
		t.Fatalf("resync produced %v", out[0])
	}
}

func TestScannerBackToBackFrames(t *testing.T) {
	s := NewScanner()
	var in []byte
	for i := 1; i <= 3; i++ {
		f := Encode(CmdTrackFinished, uint16(i), false)
		in = append(in, f.Bytes()...)
	}

	out := s.Feed(in)
	if len(out) != 3 {
		t.Fatalf("Feed() got %d frames, want 3", len(out))
	}
	for i, f := range out {
		if f.Param() != uint16(i+1) {
			t.Fatalf("frame[%d].Param() = %d, want %d", i, f.Param(), i+1)
		}
	}
}
