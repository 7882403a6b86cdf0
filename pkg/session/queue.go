package session

import (
	"time"

	"github.com/halink-protocol/halink-go/pkg/wire"
)

// queuedSet is a SET command waiting for its transmission slot.
type queuedSet struct {
	cmd        wire.SetCommand
	enqueuedAt time.Time
	expiresAt  time.Time
}

// setQueue is a strict FIFO of SET commands with a fixed time-to-live.
// Entries expire in enqueue order, so expiry only ever trims the head.
// The owning session serializes access.
type setQueue struct {
	ttl   time.Duration
	items []queuedSet
}

func newSetQueue(ttl time.Duration) *setQueue {
	return &setQueue{ttl: ttl}
}

func (q *setQueue) push(cmd wire.SetCommand, now time.Time) {
	q.items = append(q.items, queuedSet{
		cmd:        cmd,
		enqueuedAt: now,
		expiresAt:  now.Add(q.ttl),
	})
}

// expire drops head entries whose TTL has passed and returns how many
// were dropped.
func (q *setQueue) expire(now time.Time) int {
	n := 0
	for n < len(q.items) && now.After(q.items[n].expiresAt) {
		n++
	}
	if n > 0 {
		clear(q.items[:n])
		q.items = q.items[n:]
	}
	return n
}

func (q *setQueue) head() (queuedSet, bool) {
	if len(q.items) == 0 {
		return queuedSet{}, false
	}
	return q.items[0], true
}

func (q *setQueue) pop() (queuedSet, bool) {
	item, ok := q.head()
	if !ok {
		return queuedSet{}, false
	}
	q.items[0] = queuedSet{}
	q.items = q.items[1:]
	return item, true
}

func (q *setQueue) len() int {
	return len(q.items)
}

func (q *setQueue) reset() int {
	n := len(q.items)
	q.items = nil
	return n
}
