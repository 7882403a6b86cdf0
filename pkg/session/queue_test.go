package session

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halink-protocol/halink-go/pkg/wire"
)

func TestSetQueue(t *testing.T) {
	t0 := time.Unix(1700000000, 0)

	t.Run("FIFO", func(t *testing.T) {
		q := newSetQueue(10 * time.Minute)
		for _, k := range []string{"a", "b", "c"} {
			q.push(wire.NewSetCommand(k, 1), t0)
		}
		require.Equal(t, 3, q.len())

		for _, want := range []string{"a", "b", "c"} {
			item, ok := q.pop()
			require.True(t, ok)
			assert.Equal(t, []string{want}, item.cmd.Keys())
		}
		_, ok := q.pop()
		assert.False(t, ok)
	})

	t.Run("ExpiryIsStrict", func(t *testing.T) {
		q := newSetQueue(10 * time.Minute)
		q.push(wire.NewSetCommand("a", 1), t0)

		assert.Zero(t, q.expire(t0.Add(10*time.Minute)))
		assert.Equal(t, 1, q.expire(t0.Add(10*time.Minute+time.Nanosecond)))
		assert.Zero(t, q.len())
	})

	t.Run("ExpiryTrimsHeadOnly", func(t *testing.T) {
		q := newSetQueue(time.Minute)
		q.push(wire.NewSetCommand("old", 1), t0)
		q.push(wire.NewSetCommand("older", 1), t0.Add(time.Second))
		q.push(wire.NewSetCommand("new", 1), t0.Add(time.Minute))

		assert.Equal(t, 2, q.expire(t0.Add(time.Minute+2*time.Second)))
		head, ok := q.head()
		require.True(t, ok)
		assert.Equal(t, []string{"new"}, head.cmd.Keys())
		assert.Equal(t, t0.Add(2*time.Minute), head.expiresAt)
	})

	t.Run("Reset", func(t *testing.T) {
		q := newSetQueue(time.Minute)
		q.push(wire.NewSetCommand("a", 1), t0)
		assert.Equal(t, 1, q.reset())
		assert.Zero(t, q.len())
	})
}

func TestDispatcherOrder(t *testing.T) {
	d := newDispatcher()
	d.start()
	defer d.stop()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	for i := range 100 {
		d.push(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 99 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifications not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestDispatcherStopDropsPending(t *testing.T) {
	d := newDispatcher()
	d.stop()

	called := false
	d.push(func() { called = true })
	d.start()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, called)
	assert.Zero(t, d.pending())
}

func TestWarnLimiter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	now := time.Unix(1700000000, 0)
	w := newWarnLimiter(logger, func() time.Time { return now })

	w.Warn("k", "bad frame")
	w.Warn("k", "bad frame")
	w.Warn("other", "other problem")
	now = now.Add(warnInterval)
	w.Warn("k", "bad frame")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "level=WARN")
	assert.Contains(t, lines[1], "level=DEBUG")
	assert.Contains(t, lines[2], "level=WARN")
	assert.Contains(t, lines[3], "level=WARN")
}
