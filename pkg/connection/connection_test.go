package connection

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff()

		expected := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			32 * time.Second,
			60 * time.Second,
			60 * time.Second, // stays at max
		}

		for i, exp := range expected {
			base := b.Current()
			_ = b.Next()
			assert.Equal(t, exp, base, "attempt %d", i)
		}
		assert.Equal(t, len(expected), b.Attempts())
	})

	t.Run("JitterBounds", func(t *testing.T) {
		b := NewBackoff()

		samples := make([]time.Duration, 20)
		for i := range samples {
			samples[i] = b.Peek()
		}

		for i, s := range samples {
			assert.GreaterOrEqual(t, s, 1*time.Second, "sample %d", i)
			assert.LessOrEqual(t, s, 1250*time.Millisecond, "sample %d", i)
		}
	})

	t.Run("JitterOnlyLengthens", func(t *testing.T) {
		b := NewBackoff()
		for i := range 10 {
			base := b.Current()
			d := b.Next()
			assert.GreaterOrEqual(t, d, base, "attempt %d", i)
			assert.LessOrEqual(t, d, min(base+base/4, MaxBackoff), "attempt %d", i)
		}
	})

	t.Run("JitterNeverExceedsMax", func(t *testing.T) {
		b := NewBackoff()
		for range 20 {
			assert.LessOrEqual(t, b.Next(), MaxBackoff)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()
		for range 5 {
			b.Next()
		}
		require.Equal(t, 32*time.Second, b.Current())

		b.Reset()
		assert.Equal(t, InitialBackoff, b.Current())
		assert.Equal(t, 0, b.Attempts())
	})

	t.Run("NoJitter", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Initial: 100 * time.Millisecond, Max: time.Second})
		assert.Equal(t, 100*time.Millisecond, b.Next())
		assert.Equal(t, 200*time.Millisecond, b.Next())
		assert.Equal(t, 400*time.Millisecond, b.Next())
	})

	t.Run("DefaultsFilled", func(t *testing.T) {
		cfg := NewBackoffWithConfig(BackoffConfig{}).Config()
		assert.Equal(t, InitialBackoff, cfg.Initial)
		assert.Equal(t, MaxBackoff, cfg.Max)
		assert.Equal(t, BackoffMultiplier, cfg.Multiplier)
		assert.Zero(t, cfg.Jitter)
	})

	t.Run("MaxBelowInitial", func(t *testing.T) {
		cfg := NewBackoffWithConfig(BackoffConfig{Initial: 5 * time.Second, Max: time.Second}).Config()
		assert.Equal(t, 5*time.Second, cfg.Max)
	})
}

func TestSequence(t *testing.T) {
	got := Sequence(DefaultBackoffConfig(), 8)
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, 60 * time.Second, 60 * time.Second,
	}, got)

	assert.Empty(t, Sequence(DefaultBackoffConfig(), 0))
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateAwaitingHandshake, "AWAITING_HANDSHAKE"},
		{StateActive, "ACTIVE"},
		{StateBackoffWait, "BACKOFF_WAIT"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
			if tt.want == "UNKNOWN" {
				return
			}
			parsed, ok := ParseState(tt.want)
			require.True(t, ok)
			assert.Equal(t, tt.state, parsed)
		})
	}
}

func TestStateAvailability(t *testing.T) {
	assert.True(t, StateActive.Available())
	assert.False(t, StateAwaitingHandshake.Available())
	assert.False(t, StateBackoffWait.Available())

	assert.True(t, StateAwaitingHandshake.Connected())
	assert.True(t, StateActive.Connected())
	assert.False(t, StateConnecting.Connected())
}

func TestMachine(t *testing.T) {
	t.Run("HappyPath", func(t *testing.T) {
		var seen []Transition
		m := NewMachine(func(tr Transition) { seen = append(seen, tr) })
		assert.Equal(t, StateDisconnected, m.State())

		for _, ev := range []Event{EventConnect, EventEstablished, EventHandshake} {
			_, err := m.Fire(ev, "")
			require.NoError(t, err)
		}
		assert.Equal(t, StateActive, m.State())

		require.Len(t, seen, 3)
		assert.Equal(t, Transition{From: StateDisconnected, To: StateConnecting, Event: EventConnect}, seen[0])
		assert.Equal(t, Transition{From: StateAwaitingHandshake, To: StateActive, Event: EventHandshake}, seen[2])
	})

	t.Run("FailAndRetry", func(t *testing.T) {
		m := NewMachine(nil)
		_, _ = m.Fire(EventConnect, "")
		_, _ = m.Fire(EventEstablished, "")

		tr, err := m.Fire(EventFail, "handshake timeout")
		require.NoError(t, err)
		assert.Equal(t, StateBackoffWait, tr.To)
		assert.Equal(t, "handshake timeout", tr.Reason)

		_, err = m.Fire(EventRetry, "")
		require.NoError(t, err)
		assert.Equal(t, StateConnecting, m.State())
	})

	t.Run("InvalidTransitions", func(t *testing.T) {
		tests := []struct {
			name  string
			setup []Event
			event Event
		}{
			{"HandshakeWhileDisconnected", nil, EventHandshake},
			{"RetryWhileActive", []Event{EventConnect, EventEstablished, EventHandshake}, EventRetry},
			{"HandshakeInBackoff", []Event{EventConnect, EventFail}, EventHandshake},
			{"FailWhileDisconnected", nil, EventFail},
			{"ConnectTwice", []Event{EventConnect}, EventConnect},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				m := NewMachine(nil)
				for _, ev := range tt.setup {
					_, err := m.Fire(ev, "")
					require.NoError(t, err)
				}
				before := m.State()

				assert.False(t, m.Can(tt.event))
				_, err := m.Fire(tt.event, "")
				assert.True(t, errors.Is(err, ErrInvalidTransition), "got %v", err)
				assert.Equal(t, before, m.State())
			})
		}
	})

	t.Run("Close", func(t *testing.T) {
		m := NewMachine(nil)
		_, _ = m.Fire(EventConnect, "")
		_, err := m.Fire(EventClose, "")
		require.NoError(t, err)
		assert.Equal(t, StateClosed, m.State())

		_, err = m.Fire(EventConnect, "")
		assert.ErrorIs(t, err, ErrClosed)
	})
}
