package session

import (
	"log/slog"
	"sync"
	"time"
)

// warnInterval is the minimum spacing of identical warnings.
const warnInterval = 30 * time.Second

// warnLimiter demotes repeats of the same warning to debug level so a
// device spamming bad frames cannot flood the log.
type warnLimiter struct {
	mu       sync.Mutex
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	last     map[string]time.Time
}

func newWarnLimiter(logger *slog.Logger, now func() time.Time) *warnLimiter {
	return &warnLimiter{
		logger:   logger,
		interval: warnInterval,
		now:      now,
		last:     make(map[string]time.Time),
	}
}

// Warn logs msg at warn level at most once per interval per key, and at
// debug level otherwise.
func (w *warnLimiter) Warn(key, msg string, args ...any) {
	w.mu.Lock()
	now := w.now()
	prev, seen := w.last[key]
	loud := !seen || now.Sub(prev) >= w.interval
	if loud {
		w.last[key] = now
	}
	w.mu.Unlock()

	if loud {
		w.logger.Warn(msg, args...)
	} else {
		w.logger.Debug(msg, args...)
	}
}
