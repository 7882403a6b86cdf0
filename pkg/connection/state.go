package connection

import "errors"

// Connection errors.
var (
	ErrClosed            = errors.New("connection closed")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// State represents the connection state of one device session.
type State uint8

const (
	// StateDisconnected indicates the session has not been started.
	StateDisconnected State = iota

	// StateConnecting indicates a connect attempt is in progress.
	StateConnecting

	// StateAwaitingHandshake indicates the socket is up and a valid
	// CONFIG is expected within the handshake timeout.
	StateAwaitingHandshake

	// StateActive indicates a valid CONFIG was accepted. Only Active
	// sessions transmit SET commands.
	StateActive

	// StateBackoffWait indicates a retry is scheduled.
	StateBackoffWait

	// StateClosed indicates the session was torn down.
	StateClosed
)

var stateNames = [...]string{
	StateDisconnected:      "DISCONNECTED",
	StateConnecting:        "CONNECTING",
	StateAwaitingHandshake: "AWAITING_HANDSHAKE",
	StateActive:            "ACTIVE",
	StateBackoffWait:       "BACKOFF_WAIT",
	StateClosed:            "CLOSED",
}

// String returns a human-readable state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// ParseState converts a state name back to a State.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return 0, false
}

// Available reports whether the device is usable in this state.
func (s State) Available() bool {
	return s == StateActive
}

// Connected reports whether a socket is open in this state.
func (s State) Connected() bool {
	return s == StateAwaitingHandshake || s == StateActive
}

// Event names a state machine input.
type Event string

// State machine events.
const (
	EventConnect     Event = "connect"
	EventEstablished Event = "established"
	EventHandshake   Event = "handshake"
	EventFail        Event = "fail"
	EventRetry       Event = "retry"
	EventClose       Event = "close"
)

// Transition records one state change.
type Transition struct {
	From   State
	To     State
	Event  Event
	Reason string
}
