package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SET encoding errors.
var (
	ErrEmptyCommand     = errors.New("set command has no entries")
	ErrInvalidKey       = errors.New("invalid set key")
	ErrUnsupportedValue = errors.New("unsupported set value")
)

// SetEntry is one key/value pair of a SET command.
type SetEntry struct {
	Key   string
	Value any

	// Timestamp overrides the send time in object mode with ts_enable.
	Timestamp *time.Time
}

// SetCommand is an ordered batch of entries.
type SetCommand struct {
	Entries []SetEntry
}

// NewSetCommand returns a command with a single entry.
func NewSetCommand(key string, value any) SetCommand {
	return SetCommand{Entries: []SetEntry{{Key: key, Value: value}}}
}

// With returns a copy of the command with an entry appended.
func (c SetCommand) With(key string, value any) SetCommand {
	entries := make([]SetEntry, len(c.Entries), len(c.Entries)+1)
	copy(entries, c.Entries)
	c.Entries = append(entries, SetEntry{Key: key, Value: value})
	return c
}

// Keys returns the entry keys in order.
func (c SetCommand) Keys() []string {
	keys := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		keys[i] = e.Key
	}
	return keys
}

// SetEncoder encodes commands in the mode negotiated by CONFIG.
// The zero value encodes light frames.
type SetEncoder struct {
	Mode     SetMode
	TSEnable bool
}

// Encode returns the frame payloads for cmd, without terminators.
// Light mode yields one payload per entry, object mode exactly one.
func (e SetEncoder) Encode(cmd SetCommand, now time.Time) ([][]byte, error) {
	if len(cmd.Entries) == 0 {
		return nil, ErrEmptyCommand
	}
	for _, entry := range cmd.Entries {
		if err := validateKey(entry.Key); err != nil {
			return nil, err
		}
	}

	if e.Mode == SetModeObject {
		payload, err := EncodeObject(cmd.Entries, e.TSEnable, now)
		if err != nil {
			return nil, err
		}
		return [][]byte{payload}, nil
	}

	frames := make([][]byte, 0, len(cmd.Entries))
	for _, entry := range cmd.Entries {
		payload, err := EncodeLight(entry)
		if err != nil {
			return nil, err
		}
		frames = append(frames, payload)
	}
	return frames, nil
}

// EncodeLight encodes one entry as "key=value".
func EncodeLight(entry SetEntry) ([]byte, error) {
	if err := validateKey(entry.Key); err != nil {
		return nil, err
	}
	value, err := FormatValue(entry.Value)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", entry.Key, err)
	}
	if strings.IndexByte(value, 0) >= 0 {
		return nil, fmt.Errorf("key %q: %w: value contains NUL", entry.Key, ErrUnsupportedValue)
	}
	return []byte(entry.Key + "=" + value), nil
}

// EncodeObject encodes entries as {"set": {key: {"value": v, "ts": t}}}.
// "ts" is included only when tsEnable is set.
func EncodeObject(entries []SetEntry, tsEnable bool, now time.Time) ([]byte, error) {
	set := make(Object, 0, len(entries))
	for _, entry := range entries {
		if err := validateKey(entry.Key); err != nil {
			return nil, err
		}
		field := Object{{Key: KeyValue, Value: entry.Value}}
		if tsEnable {
			ts := now
			if entry.Timestamp != nil {
				ts = *entry.Timestamp
			}
			field = append(field, Member{Key: KeyTimestamp, Value: ts.Unix()})
		}
		set.Set(entry.Key, field)
	}

	payload, err := json.Marshal(Object{{Key: KeySet, Value: set}})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	return payload, nil
}

// FormatValue renders a value for light mode. Booleans become 1 or 0.
func FormatValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(t), nil
	case int8:
		return strconv.FormatInt(int64(t), 10), nil
	case int16:
		return strconv.FormatInt(int64(t), 10), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case json.Number:
		return t.String(), nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func validateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	case strings.ContainsAny(key, "=\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
