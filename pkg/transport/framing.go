package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/halink-protocol/halink-go/pkg/log"
)

// Framing constants.
const (
	// Terminator ends every frame.
	Terminator byte = 0x00

	// DefaultMaxFrameSize is the default reassembly limit in bytes.
	DefaultMaxFrameSize = 4096

	// MaxLogFrameDataSize is the maximum frame data size to include in logs (4 KB).
	MaxLogFrameDataSize = 4096
)

// PingFrame is the application keepalive payload. Devices echo or ignore it.
var PingFrame = []byte(":")

// Framing errors.
var (
	// ErrFrameOverflow indicates a frame exceeded the maximum size.
	ErrFrameOverflow = errors.New("frame overflow")

	// ErrFrameEmpty indicates an empty outbound frame.
	ErrFrameEmpty = errors.New("frame is empty")

	// ErrFrameContainsTerminator indicates an outbound payload with a NUL byte.
	ErrFrameContainsTerminator = errors.New("frame contains terminator")
)

// Decoder splits a byte stream into frames on the terminator byte.
// It is not safe for concurrent use; a connection owns one decoder.
type Decoder struct {
	buf       []byte
	maxSize   int
	overflows int

	// OnOverflow is called with the number of bytes discarded.
	OnOverflow func(discarded int)
}

// NewDecoder creates a decoder. maxSize <= 0 selects DefaultMaxFrameSize.
func NewDecoder(maxSize int) *Decoder {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Decoder{maxSize: maxSize}
}

// Feed appends p and returns the frames it completes, in stream order.
// Frames exclude the terminator; empty frames are dropped. When more than
// the maximum size accumulates without a terminator, everything buffered
// is discarded and an overflow is signaled.
func (d *Decoder) Feed(p []byte) [][]byte {
	var frames [][]byte
	for len(p) > 0 {
		i := bytes.IndexByte(p, Terminator)
		if i < 0 {
			d.buf = append(d.buf, p...)
			if len(d.buf) > d.maxSize {
				d.overflow(len(d.buf))
			}
			break
		}

		if len(d.buf)+i > d.maxSize {
			d.overflow(len(d.buf) + i)
		} else if len(d.buf)+i > 0 {
			frame := make([]byte, 0, len(d.buf)+i)
			frame = append(frame, d.buf...)
			frame = append(frame, p[:i]...)
			frames = append(frames, frame)
		}
		d.buf = d.buf[:0]
		p = p[i+1:]
	}
	return frames
}

func (d *Decoder) overflow(discarded int) {
	d.buf = d.buf[:0]
	d.overflows++
	if d.OnOverflow != nil {
		d.OnOverflow(discarded)
	}
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Overflows returns the number of overflows signaled.
func (d *Decoder) Overflows() int {
	return d.overflows
}

// MaxSize returns the reassembly limit.
func (d *Decoder) MaxSize() int {
	return d.maxSize
}

// Reset discards any partial frame.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Encode returns payload followed by the terminator.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrFrameEmpty
	}
	if bytes.IndexByte(payload, Terminator) >= 0 {
		return nil, ErrFrameContainsTerminator
	}
	frame := make([]byte, len(payload)+1)
	copy(frame, payload)
	frame[len(payload)] = Terminator
	return frame, nil
}

// IsKeepAlive reports whether an inbound frame is a keepalive marker.
func IsKeepAlive(frame []byte) bool {
	return bytes.Equal(bytes.TrimSpace(frame), PingFrame)
}

// FrameWriter writes terminated frames to an underlying writer.
// Each frame is written with a single Write call under a mutex so that
// concurrent writers never interleave.
type FrameWriter struct {
	w  io.Writer
	mu sync.Mutex

	// Logging support (optional)
	logger   log.Logger
	connID   string
	deviceID string
}

// NewFrameWriter creates a new frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// SetLogger configures tracing for this writer.
// Pass nil to disable tracing.
func (fw *FrameWriter) SetLogger(logger log.Logger, connID, deviceID string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.logger = logger
	fw.connID = connID
	fw.deviceID = deviceID
}

// WriteFrame writes payload plus terminator.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	frame, err := Encode(payload)
	if err != nil {
		return err
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	if fw.logger != nil {
		fw.logger.Log(makeFrameEvent(payload, log.DirectionOut, fw.connID, fw.deviceID))
	}
	return nil
}

// makeFrameEvent creates a trace event for a frame.
func makeFrameEvent(data []byte, direction log.Direction, connID, deviceID string) log.Event {
	frameData := data
	truncated := false

	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}

	category := log.CategoryMessage
	var ctrl *log.ControlMsgEvent
	if IsKeepAlive(data) {
		category = log.CategoryControl
		ctrl = &log.ControlMsgEvent{Type: log.ControlMsgEcho}
		if direction == log.DirectionOut {
			ctrl.Type = log.ControlMsgPing
		}
	}

	ev := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		DeviceID:     deviceID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     category,
		ControlMsg:   ctrl,
	}
	if ctrl == nil {
		ev.Frame = &log.FrameEvent{
			Size:      len(data) + 1,
			Data:      append([]byte(nil), frameData...),
			Truncated: truncated,
		}
	}
	return ev
}
