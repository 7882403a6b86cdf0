package wire

import (
	"fmt"
	"time"
)

// EventRecord is one normalized EVENT.
type EventRecord struct {
	Key       string
	Payload   map[string]any
	Timestamp time.Time
}

// Events normalizes an expanded EVENT body.
//
// A string body is an event key with an empty payload. An object body
// yields one record per member in message order: an object value supplies
// the payload (without "ts"), any other value becomes {"value": v}.
func (n *Normalizer) Events(body any) ([]EventRecord, error) {
	switch t := body.(type) {
	case string:
		key := Slug(t)
		if key == "" {
			return nil, &ParseError{Reason: ParseUnknownShape, Err: fmt.Errorf("event key %q", t)}
		}
		return []EventRecord{{Key: key, Payload: map[string]any{}, Timestamp: n.now()}}, nil

	case Object:
		records := make([]EventRecord, 0, len(t))
		for _, m := range t {
			key := Slug(m.Key)
			if key == "" {
				n.logger().Warn("skipping event with empty key", "device", n.DeviceID, "name", m.Key)
				continue
			}
			rec := EventRecord{Key: key, Payload: map[string]any{}, Timestamp: n.now()}
			if fields, ok := m.Value.(Object); ok {
				for _, f := range fields {
					if f.Key == KeyTimestamp {
						if ts := unixTime(f.Value); ts != nil {
							rec.Timestamp = *ts
						}
						continue
					}
					rec.Payload[f.Key] = Plain(f.Value)
				}
			} else if m.Value != nil {
				rec.Payload[KeyValue] = Plain(m.Value)
			}
			records = append(records, rec)
		}
		return records, nil
	}

	return nil, &ParseError{Reason: ParseUnknownShape, Err: fmt.Errorf("event body is %s", typeName(body))}
}

// NormalizeEvent normalizes a single-event EVENT body with the wall clock.
// For bodies with several members only the first record is returned.
func NormalizeEvent(body any) (EventRecord, error) {
	records, err := (&Normalizer{}).Events(body)
	if err != nil {
		return EventRecord{}, err
	}
	if len(records) == 0 {
		return EventRecord{}, &ParseError{Reason: ParseUnknownShape, Err: fmt.Errorf("empty event")}
	}
	return records[0], nil
}
