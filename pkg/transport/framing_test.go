package transport

import (
	"bytes"
	"errors"
	"testing"

	"github.com/halink-protocol/halink-go/pkg/log"
)

func frameStrings(frames [][]byte) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = string(f)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDecoderSplitsOnTerminator(t *testing.T) {
	tests := []struct {
		name  string
		feeds []string
		want  []string
	}{
		{"two frames", []string{"A\x00B\x00"}, []string{"A", "B"}},
		{"split across feeds", []string{"A", "B\x00"}, []string{"AB"}},
		{"terminator alone", []string{"AB", "\x00"}, []string{"AB"}},
		{"empty frames dropped", []string{"\x00\x00A\x00\x00"}, []string{"A"}},
		{"partial tail kept", []string{"A\x00B"}, []string{"A"}},
		{"json frames", []string{`{"s":{"t":1}}` + "\x00" + `{"e":"boot"}` + "\x00"}, []string{`{"s":{"t":1}}`, `{"e":"boot"}`}},
		{"byte at a time", []string{"H", "i", "\x00", "!", "\x00"}, []string{"Hi", "!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(0)
			var got []string
			for _, f := range tt.feeds {
				got = append(got, frameStrings(d.Feed([]byte(f)))...)
			}
			if !equalStrings(got, tt.want) {
				t.Errorf("frames = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecoderOverflowResetsBuffer(t *testing.T) {
	d := NewDecoder(DefaultMaxFrameSize)
	var discarded []int
	d.OnOverflow = func(n int) { discarded = append(discarded, n) }

	frames := d.Feed(bytes.Repeat([]byte("x"), DefaultMaxFrameSize+904))
	if len(frames) != 0 {
		t.Fatalf("got %d frames from unterminated overflow, want 0", len(frames))
	}
	if d.Overflows() != 1 || len(discarded) != 1 {
		t.Fatalf("overflows = %d (callbacks %d), want 1", d.Overflows(), len(discarded))
	}
	if discarded[0] != DefaultMaxFrameSize+904 {
		t.Errorf("discarded = %d, want %d", discarded[0], DefaultMaxFrameSize+904)
	}
	if d.Buffered() != 0 {
		t.Errorf("buffered = %d after overflow, want 0", d.Buffered())
	}

	got := frameStrings(d.Feed([]byte("C\x00")))
	if !equalStrings(got, []string{"C"}) {
		t.Errorf("frames after overflow = %q, want [C]", got)
	}
}

func TestDecoderOverflowAcrossFeeds(t *testing.T) {
	d := NewDecoder(100)
	chunk := bytes.Repeat([]byte("y"), 40)

	for i := 0; i < 2; i++ {
		if frames := d.Feed(chunk); len(frames) != 0 {
			t.Fatalf("unexpected frames")
		}
	}
	if d.Overflows() != 0 {
		t.Fatalf("overflow signaled at 80 bytes")
	}
	d.Feed(chunk)
	if d.Overflows() != 1 {
		t.Fatalf("overflows = %d at 120 bytes, want 1", d.Overflows())
	}
	if got := frameStrings(d.Feed([]byte("ok\x00"))); !equalStrings(got, []string{"ok"}) {
		t.Errorf("frames = %q, want [ok]", got)
	}
}

func TestDecoderTerminatedOversizeFrame(t *testing.T) {
	d := NewDecoder(16)
	input := append(bytes.Repeat([]byte("z"), 17), 0)
	input = append(input, []byte("D\x00")...)

	got := frameStrings(d.Feed(input))
	if !equalStrings(got, []string{"D"}) {
		t.Errorf("frames = %q, want [D]", got)
	}
	if d.Overflows() != 1 {
		t.Errorf("overflows = %d, want 1", d.Overflows())
	}
}

func TestDecoderExactMaxSize(t *testing.T) {
	d := NewDecoder(16)
	payload := bytes.Repeat([]byte("m"), 16)
	frames := d.Feed(append(payload, 0))
	if len(frames) != 1 || !bytes.Equal(frames[0], payload) {
		t.Fatalf("max-size frame not delivered intact")
	}
	if d.Overflows() != 0 {
		t.Errorf("overflows = %d, want 0", d.Overflows())
	}
}

func TestDecoderFramesDoNotAlias(t *testing.T) {
	d := NewDecoder(0)
	d.Feed([]byte("first"))
	frames := d.Feed([]byte("\x00"))
	d.Feed([]byte("second\x00"))
	if string(frames[0]) != "first" {
		t.Errorf("frame mutated by later feed: %q", frames[0])
	}
}

func TestEncode(t *testing.T) {
	frame, err := Encode([]byte("pump=1"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(frame, []byte("pump=1\x00")) {
		t.Errorf("frame = %q", frame)
	}

	if _, err := Encode(nil); !errors.Is(err, ErrFrameEmpty) {
		t.Errorf("expected ErrFrameEmpty, got %v", err)
	}
	if _, err := Encode([]byte("a\x00b")); !errors.Is(err, ErrFrameContainsTerminator) {
		t.Errorf("expected ErrFrameContainsTerminator, got %v", err)
	}
}

func TestIsKeepAlive(t *testing.T) {
	for _, f := range []string{":", " : ", ":\r\n"} {
		if !IsKeepAlive([]byte(f)) {
			t.Errorf("IsKeepAlive(%q) = false", f)
		}
	}
	for _, f := range []string{"::", `{":":1}`, "a:b"} {
		if IsKeepAlive([]byte(f)) {
			t.Errorf("IsKeepAlive(%q) = true", f)
		}
	}
}

func TestFrameWriterTracesFrames(t *testing.T) {
	var buf bytes.Buffer
	var trace log.MemoryLogger

	w := NewFrameWriter(&buf)
	w.SetLogger(&trace, "conn-1", "boiler")

	if err := w.WriteFrame([]byte(`{"set":{"a":{"value":1}}}`)); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if err := w.WriteFrame(PingFrame); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	if got := buf.String(); got != `{"set":{"a":{"value":1}}}`+"\x00:\x00" {
		t.Errorf("written = %q", got)
	}

	events := trace.Events()
	if len(events) != 2 {
		t.Fatalf("got %d trace events, want 2", len(events))
	}
	if events[0].Frame == nil || events[0].Frame.Size != 26 || events[0].DeviceID != "boiler" {
		t.Errorf("frame event = %+v", events[0])
	}
	if events[1].ControlMsg == nil || events[1].ControlMsg.Type != log.ControlMsgPing {
		t.Errorf("ping event = %+v", events[1])
	}
}

func TestFrameWriterRejectsEmpty(t *testing.T) {
	w := NewFrameWriter(&bytes.Buffer{})
	if err := w.WriteFrame(nil); !errors.Is(err, ErrFrameEmpty) {
		t.Errorf("expected ErrFrameEmpty, got %v", err)
	}
}
