package transport

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/halink-protocol/halink-go/pkg/log"
)

type recordingHandler struct {
	mu        sync.Mutex
	frames    []string
	overflows []int
	closed    chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{closed: make(chan error, 1)}
}

func (h *recordingHandler) OnFrame(frame []byte) {
	h.mu.Lock()
	h.frames = append(h.frames, string(frame))
	h.mu.Unlock()
}

func (h *recordingHandler) OnOverflow(n int) {
	h.mu.Lock()
	h.overflows = append(h.overflows, n)
	h.mu.Unlock()
}

func (h *recordingHandler) OnClose(err error) {
	h.closed <- err
}

func (h *recordingHandler) Frames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.frames...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestConnectionDeliversFrames(t *testing.T) {
	client, device := net.Pipe()
	defer device.Close()

	var trace log.MemoryLogger
	h := newRecordingHandler()
	cfg := DefaultConnectionConfig()
	cfg.KeepAlive = KeepAliveConfig{}
	cfg.Logger = &trace
	cfg.ConnectionID = "c1"
	conn := NewConnection(client, cfg, h)
	conn.Start(context.Background())
	defer conn.Close()

	go device.Write([]byte(`{"e":"boot"}` + "\x00:\x00" + `{"s":{"t":1}}` + "\x00"))

	waitFor(t, func() bool { return len(h.Frames()) == 2 })
	got := h.Frames()
	if got[0] != `{"e":"boot"}` || got[1] != `{"s":{"t":1}}` {
		t.Errorf("frames = %q", got)
	}
	if conn.Stats().FramesIn != 2 {
		t.Errorf("FramesIn = %d, want 2 (keepalive excluded)", conn.Stats().FramesIn)
	}

	var echoes int
	for _, e := range trace.Events() {
		if e.ControlMsg != nil && e.ControlMsg.Type == log.ControlMsgEcho {
			echoes++
		}
	}
	if echoes != 1 {
		t.Errorf("traced %d keepalive echoes, want 1", echoes)
	}
}

func TestConnectionSendSerializes(t *testing.T) {
	client, device := net.Pipe()
	defer device.Close()

	cfg := DefaultConnectionConfig()
	cfg.KeepAlive = KeepAliveConfig{}
	conn := NewConnection(client, cfg, newRecordingHandler())
	conn.Start(context.Background())
	defer conn.Close()

	const writers, perWriter = 4, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := conn.Send([]byte("key=some-longer-value")); err != nil {
					t.Errorf("Send failed: %v", err)
					return
				}
			}
		}()
	}

	r := bufio.NewReader(device)
	for i := 0; i < writers*perWriter; i++ {
		frame, err := r.ReadString(0)
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if frame != "key=some-longer-value\x00" {
			t.Fatalf("frame %d interleaved: %q", i, frame)
		}
	}
	wg.Wait()
}

func TestConnectionReportsOverflow(t *testing.T) {
	client, device := net.Pipe()
	defer device.Close()

	h := newRecordingHandler()
	cfg := DefaultConnectionConfig()
	cfg.MaxFrameSize = 32
	cfg.KeepAlive = KeepAliveConfig{}
	conn := NewConnection(client, cfg, h)
	conn.Start(context.Background())
	defer conn.Close()

	go func() {
		device.Write([]byte("0123456789012345678901234567890123456789"))
		device.Write([]byte("\x00ok\x00"))
	}()

	waitFor(t, func() bool { return len(h.Frames()) == 1 })
	if h.Frames()[0] != "ok" {
		t.Errorf("frames = %q, want [ok]", h.Frames())
	}
	if conn.Stats().Overflows != 1 {
		t.Errorf("Overflows = %d, want 1", conn.Stats().Overflows)
	}
}

func TestConnectionOnCloseAfterPeerClose(t *testing.T) {
	client, device := net.Pipe()

	h := newRecordingHandler()
	cfg := DefaultConnectionConfig()
	cfg.KeepAlive = KeepAliveConfig{}
	conn := NewConnection(client, cfg, h)
	conn.Start(context.Background())

	device.Close()

	select {
	case err := <-h.closed:
		if err == nil {
			t.Error("OnClose error is nil")
		}
	case <-time.After(time.Second):
		t.Fatal("OnClose not called")
	}
	<-conn.Done()

	if err := conn.Send([]byte("x=1")); err != ErrConnectionClosed {
		t.Errorf("Send after close = %v, want ErrConnectionClosed", err)
	}
}

func TestConnectionCloseIsSilent(t *testing.T) {
	client, device := net.Pipe()
	defer device.Close()

	h := newRecordingHandler()
	cfg := DefaultConnectionConfig()
	cfg.KeepAlive = KeepAliveConfig{}
	conn := NewConnection(client, cfg, h)
	conn.Start(context.Background())

	conn.Close()
	<-conn.Done()

	select {
	case err := <-h.closed:
		t.Errorf("OnClose called after Close: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnectionSendsPing(t *testing.T) {
	client, device := net.Pipe()
	defer device.Close()

	cfg := DefaultConnectionConfig()
	cfg.KeepAlive = KeepAliveConfig{PingInterval: 20 * time.Millisecond}
	conn := NewConnection(client, cfg, newRecordingHandler())
	conn.Start(context.Background())
	defer conn.Close()

	device.SetReadDeadline(time.Now().Add(time.Second))
	frame, err := bufio.NewReader(device).ReadString(0)
	if err != nil {
		t.Fatalf("no ping received: %v", err)
	}
	if frame != ":\x00" {
		t.Errorf("ping frame = %q", frame)
	}
}
