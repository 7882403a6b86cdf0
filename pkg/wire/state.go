package wire

import (
	"fmt"
	"math"
	"time"
)

// StateDelta is a partial update for one entity. Fields not carried by
// the message are left unset; absence means no change.
type StateDelta struct {
	EntityKey string

	// Value is meaningful only when HasValue is set. A present null
	// value has HasValue set and Value nil.
	Value    any
	HasValue bool

	// Attributes is nil when the message carries no attributes.
	Attributes map[string]any

	Timestamp *time.Time

	// Options republishes the option set of a select entity.
	Options    []string
	HasOptions bool
}

// NormalizeState extracts the deltas of an expanded STATE body.
func NormalizeState(body any) ([]StateDelta, error) {
	return (&Normalizer{}).State(body)
}

// State extracts one delta per member of an expanded STATE body, in
// message order. A primitive member is a bare value update. An object
// member may carry value, attributes, ts and options.
func (n *Normalizer) State(body any) ([]StateDelta, error) {
	obj, ok := body.(Object)
	if !ok {
		return nil, &ParseError{Reason: ParseUnknownShape, Err: fmt.Errorf("state body is %s", typeName(body))}
	}

	deltas := make([]StateDelta, 0, len(obj))
	for _, m := range obj {
		key := Slug(m.Key)
		if key == "" {
			n.logger().Warn("skipping state with empty key", "device", n.DeviceID, "name", m.Key)
			continue
		}

		fields, isObject := m.Value.(Object)
		if !isObject {
			deltas = append(deltas, StateDelta{EntityKey: key, Value: Plain(m.Value), HasValue: true})
			continue
		}

		d := StateDelta{EntityKey: key}
		if v, ok := fields.Get(KeyValue); ok {
			d.Value = Plain(v)
			d.HasValue = true
		}
		if v, ok := fields.Get(KeyAttributes); ok {
			d.Attributes, _ = Plain(v).(map[string]any)
		}
		if v, ok := fields.Get(KeyTimestamp); ok {
			d.Timestamp = unixTime(v)
		}
		if v, ok := fields.Get(KeyOptions); ok {
			if list, ok := v.([]any); ok {
				d.Options = stringList(list)
				d.HasOptions = true
			}
		}
		deltas = append(deltas, d)
	}
	return deltas, nil
}

// unixTime converts a unix-seconds value. Non-numeric values yield nil.
func unixTime(v any) *time.Time {
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	sec, frac := math.Modf(f)
	t := time.Unix(int64(sec), int64(frac*float64(time.Second)))
	return &t
}

func stringList(list []any) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		switch t := e.(type) {
		case string:
			out = append(out, t)
		case nil:
		default:
			out = append(out, fmt.Sprint(Plain(t)))
		}
	}
	return out
}
