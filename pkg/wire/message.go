package wire

import (
	"errors"
	"fmt"
)

// Kind identifies the top-level shape of an inbound message.
type Kind uint8

const (
	// KindConfig is a CONFIG message.
	KindConfig Kind = iota + 1

	// KindState is a STATE message.
	KindState

	// KindEvent is an EVENT message.
	KindEvent
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "CONFIG"
	case KindState:
		return "STATE"
	case KindEvent:
		return "EVENT"
	default:
		return "UNKNOWN"
	}
}

// ParseReason classifies a ParseError.
type ParseReason uint8

const (
	// ParseMalformed indicates the frame is not a JSON object.
	ParseMalformed ParseReason = iota + 1

	// ParseUnknownShape indicates no recognized top-level key.
	ParseUnknownShape
)

// String returns the reason name.
func (r ParseReason) String() string {
	switch r {
	case ParseMalformed:
		return "malformed"
	case ParseUnknownShape:
		return "unknown_shape"
	default:
		return "unknown"
	}
}

// Parse errors. A *ParseError matches the sentinel for its reason with
// errors.Is.
var (
	ErrMalformed    = errors.New("malformed frame")
	ErrUnknownShape = errors.New("unknown message shape")
)

// ParseError reports a frame that could not be classified.
type ParseError struct {
	Reason ParseReason
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.Reason, e.Err)
	}
	return "parse " + e.Reason.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's reason.
func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrMalformed:
		return e.Reason == ParseMalformed
	case ErrUnknownShape:
		return e.Reason == ParseUnknownShape
	}
	return false
}

// Message is a classified, fully expanded inbound message.
type Message struct {
	Kind Kind

	// Body is the expanded value under the top-level key.
	Body any
}

var kindByKey = map[string]Kind{
	KeyConfig: KindConfig,
	KeyState:  KindState,
	KeyEvent:  KindEvent,
}

// Parse decodes a frame, expands short keys and classifies it.
//
// A frame must hold a JSON object. The first member whose expanded key is
// config, state or event selects the kind; remaining members are ignored.
func Parse(frame []byte) (*Message, error) {
	v, err := Decode(frame)
	if err != nil {
		return nil, &ParseError{Reason: ParseMalformed, Err: err}
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, &ParseError{Reason: ParseMalformed, Err: fmt.Errorf("top-level value is %s", typeName(v))}
	}

	expanded := Expand(obj, ContextRoot).(Object)
	for _, m := range expanded {
		if kind, ok := kindByKey[m.Key]; ok {
			return &Message{Kind: kind, Body: m.Value}, nil
		}
	}

	if len(expanded) == 0 {
		return nil, &ParseError{Reason: ParseUnknownShape, Err: errors.New("empty object")}
	}
	return nil, &ParseError{Reason: ParseUnknownShape, Err: fmt.Errorf("top-level key %q", expanded[0].Key)}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case Object:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	default:
		return "number"
	}
}
