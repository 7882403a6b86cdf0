package session

import (
	"time"

	"github.com/halink-protocol/halink-go/pkg/connection"
	"github.com/halink-protocol/halink-go/pkg/transport"
)

// Stats is a snapshot of session counters.
type Stats struct {
	State        connection.State
	ConnectionID string

	// Connects counts established sockets; Reconnects counts entries
	// into backoff.
	Connects   uint64
	Reconnects uint64

	FramesIn     uint64
	FramesOut    uint64
	Overflows    uint64
	ParseErrors  uint64
	ConfigErrors uint64
	Configs      uint64
	Events       uint64

	SetsSent     uint64
	SetsQueued   uint64
	SetsRejected uint64
	SetsExpired  uint64
	QueueDepth   int

	Entities   int
	Backoff    time.Duration
	LastConfig time.Time

	// Connection is nil while no socket is open.
	Connection *transport.ConnectionStats
}
