package log

import (
	"time"
)

// Event represents a protocol trace event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies one TCP connection attempt (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the device address (host:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// DeviceID is the configured device identifier.
	DeviceID string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (parsed)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/session state
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"` // Keepalive
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a device-to-client frame.
	DirectionIn Direction = 0
	// DirectionOut indicates a client-to-device frame.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the message layer (parsed JSON).
	LayerWire Layer = 1
	// LayerSession is the per-device session layer.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message (config/state/event/set).
	CategoryMessage Category = 0
	// CategoryControl indicates a keepalive frame.
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including the terminator).
	Size int `cbor:"1,keyasint"`

	// Data is the frame text (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a parsed message at the wire layer.
type MessageEvent struct {
	// Type is the message shape.
	Type MessageType `cbor:"1,keyasint"`

	// Keys lists the entity, event or SET keys carried, in message order.
	Keys []string `cbor:"2,keyasint,omitempty"`

	// EntityCount is the number of entities declared (config only).
	EntityCount int `cbor:"3,keyasint,omitempty"`

	// Payload is a plain representation of the message body.
	Payload any `cbor:"4,keyasint,omitempty"`
}

// MessageType distinguishes the HaLink message shapes.
type MessageType uint8

const (
	// MessageTypeConfig indicates a CONFIG message.
	MessageTypeConfig MessageType = 0
	// MessageTypeState indicates a STATE message.
	MessageTypeState MessageType = 1
	// MessageTypeEvent indicates an EVENT message.
	MessageTypeEvent MessageType = 2
	// MessageTypeSet indicates an outbound SET command.
	MessageTypeSet MessageType = 3
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeConfig:
		return "CONFIG"
	case MessageTypeState:
		return "STATE"
	case MessageTypeEvent:
		return "EVENT"
	case MessageTypeSet:
		return "SET"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityConfig indicates a CONFIG was accepted or rejected.
	StateEntityConfig StateEntity = 1
	// StateEntityQueue indicates a SET queue change (expiry).
	StateEntityQueue StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityConfig:
		return "CONFIG"
	case StateEntityQueue:
		return "QUEUE"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures keepalive traffic.
type ControlMsgEvent struct {
	// Type of control frame.
	Type ControlMsgType `cbor:"1,keyasint"`
}

// ControlMsgType indicates the type of control frame.
type ControlMsgType uint8

const (
	// ControlMsgPing indicates an application ping sent to the device.
	ControlMsgPing ControlMsgType = 0
	// ControlMsgEcho indicates a keepalive frame received from the device.
	ControlMsgEcho ControlMsgType = 1
)

// String returns the control message type name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgPing:
		return "PING"
	case ControlMsgEcho:
		return "ECHO"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Reason is a short machine-readable classification
	// (e.g. "frame_overflow", "malformed", "duplicate_entity").
	Reason string `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
