package log

import (
	"sort"
	"time"
)

// Stats summarizes a trace.
type Stats struct {
	Events      int
	First, Last time.Time

	Connections map[string]bool
	Devices     map[string]int

	FramesIn, FramesOut int
	BytesIn, BytesOut   int

	Messages     map[MessageType]int
	Errors       map[string]int
	Pings        int
	Transitions  int
	Reconnects   int
	ConfigsTaken int
}

// NewStats returns an empty summary.
func NewStats() *Stats {
	return &Stats{
		Connections: make(map[string]bool),
		Devices:     make(map[string]int),
		Messages:    make(map[MessageType]int),
		Errors:      make(map[string]int),
	}
}

// Add folds one event into the summary.
func (s *Stats) Add(e Event) {
	s.Events++
	if s.First.IsZero() || e.Timestamp.Before(s.First) {
		s.First = e.Timestamp
	}
	if e.Timestamp.After(s.Last) {
		s.Last = e.Timestamp
	}
	if e.ConnectionID != "" {
		s.Connections[e.ConnectionID] = true
	}
	if e.DeviceID != "" {
		s.Devices[e.DeviceID]++
	}

	switch {
	case e.Frame != nil:
		if e.Direction == DirectionIn {
			s.FramesIn++
			s.BytesIn += e.Frame.Size
		} else {
			s.FramesOut++
			s.BytesOut += e.Frame.Size
		}
	case e.Message != nil:
		s.Messages[e.Message.Type]++
	case e.ControlMsg != nil:
		if e.ControlMsg.Type == ControlMsgPing {
			s.Pings++
		}
	case e.StateChange != nil:
		s.Transitions++
		sc := e.StateChange
		if sc.Entity == StateEntityConnection && sc.NewState == "BACKOFF_WAIT" {
			s.Reconnects++
		}
		if sc.Entity == StateEntityConfig && sc.NewState == "ACCEPTED" {
			s.ConfigsTaken++
		}
	case e.Error != nil:
		reason := e.Error.Reason
		if reason == "" {
			reason = "other"
		}
		s.Errors[reason]++
	}
}

// Duration returns the time covered by the trace.
func (s *Stats) Duration() time.Duration {
	if s.First.IsZero() {
		return 0
	}
	return s.Last.Sub(s.First)
}

// ErrorReasons returns the error reasons sorted by name.
func (s *Stats) ErrorReasons() []string {
	reasons := make([]string, 0, len(s.Errors))
	for r := range s.Errors {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	return reasons
}
