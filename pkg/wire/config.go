package wire

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"
)

// ProtocolVersion is the only CONFIG version accepted.
const ProtocolVersion = 3

// MaxDelayMS caps the negotiated SET spacing at the default queue TTL.
const MaxDelayMS = 600_000

// ReservedEntityKeys cannot be declared as entities. "alive" carries the
// device heartbeat in STATE messages.
var ReservedEntityKeys = map[string]bool{
	KeyAlive: true,
}

// SetMode selects the outbound SET encoding.
type SetMode string

const (
	// SetModeLight sends one "key=value" frame per entry.
	SetModeLight SetMode = "light"

	// SetModeObject sends one {"set": {...}} frame per command.
	SetModeObject SetMode = "object"
)

// Valid reports whether m is a known mode.
func (m SetMode) Valid() bool {
	return m == SetModeLight || m == SetModeObject
}

// ConfigReason classifies a ConfigError.
type ConfigReason uint8

const (
	// ConfigUnsupportedVersion indicates a missing or unsupported version.
	ConfigUnsupportedVersion ConfigReason = iota + 1

	// ConfigDuplicateEntity indicates two entities with the same key.
	ConfigDuplicateEntity
)

// String returns the reason name.
func (r ConfigReason) String() string {
	switch r {
	case ConfigUnsupportedVersion:
		return "unsupported_version"
	case ConfigDuplicateEntity:
		return "duplicate_entity"
	default:
		return "unknown"
	}
}

// Config errors. A *ConfigError matches the sentinel for its reason with
// errors.Is.
var (
	ErrUnsupportedVersion = errors.New("unsupported config version")
	ErrDuplicateEntity    = errors.New("duplicate entity")
)

// ConfigError reports a rejected CONFIG. The whole message is rejected.
type ConfigError struct {
	Reason ConfigReason
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Reason, e.Detail)
}

// Is matches the sentinel for the error's reason.
func (e *ConfigError) Is(target error) bool {
	switch target {
	case ErrUnsupportedVersion:
		return e.Reason == ConfigUnsupportedVersion
	case ErrDuplicateEntity:
		return e.Reason == ConfigDuplicateEntity
	}
	return false
}

// DeviceInfo is the optional device metadata of a CONFIG.
type DeviceInfo struct {
	Name         string
	Manufacturer string
	Model        string
	SWVersion    string
	HWVersion    string
}

// EntityDescriptor is one declared entity after the base merge.
type EntityDescriptor struct {
	Platform     string
	FriendlyName string

	// Key is the slug of FriendlyName. STATE messages address entities by it.
	Key string

	EntityID   string
	Attributes map[string]any
}

// Clone returns a deep copy of the descriptor.
func (d EntityDescriptor) Clone() EntityDescriptor {
	d.Attributes = CloneMap(d.Attributes)
	return d
}

// ConfigModel is a normalized CONFIG.
type ConfigModel struct {
	Version  int
	Device   *DeviceInfo
	SetMode  SetMode
	DelayMS  int
	TSEnable bool

	// Entities are in declaration order.
	Entities []EntityDescriptor

	// Alive and Events are passed through without interpretation.
	Alive  map[string]any
	Events map[string]any
}

// Delay returns the SET spacing interval.
func (c *ConfigModel) Delay() time.Duration {
	return time.Duration(c.DelayMS) * time.Millisecond
}

// Entity returns the descriptor with the given key.
func (c *ConfigModel) Entity(key string) (EntityDescriptor, bool) {
	for _, e := range c.Entities {
		if e.Key == key {
			return e, true
		}
	}
	return EntityDescriptor{}, false
}

// Encoder returns the SET encoder negotiated by this CONFIG.
func (c *ConfigModel) Encoder() SetEncoder {
	return SetEncoder{Mode: c.SetMode, TSEnable: c.TSEnable}
}

// Clone returns a deep copy of the model.
func (c *ConfigModel) Clone() *ConfigModel {
	if c == nil {
		return nil
	}
	out := *c
	if c.Device != nil {
		dev := *c.Device
		out.Device = &dev
	}
	out.Entities = make([]EntityDescriptor, len(c.Entities))
	for i, e := range c.Entities {
		out.Entities[i] = e.Clone()
	}
	out.Alive = CloneMap(c.Alive)
	out.Events = CloneMap(c.Events)
	return &out
}

// Normalizer turns expanded message bodies into normalized records for
// one device.
type Normalizer struct {
	// DeviceID is slugged into every entity ID.
	DeviceID string

	// Logger receives warnings about recoverable problems. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Now supplies the timestamp for records without "ts". Defaults to
	// time.Now.
	Now func() time.Time
}

func (n *Normalizer) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n *Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// NormalizeConfig normalizes an expanded CONFIG body for deviceID.
func NormalizeConfig(body any, deviceID string) (*ConfigModel, error) {
	n := &Normalizer{DeviceID: deviceID}
	return n.Config(body)
}

// Config validates an expanded CONFIG body and merges entity attributes.
func (n *Normalizer) Config(body any) (*ConfigModel, error) {
	obj, ok := body.(Object)
	if !ok {
		return nil, &ConfigError{Reason: ConfigUnsupportedVersion, Detail: "config body is " + typeName(body)}
	}

	version, err := configVersion(obj)
	if err != nil {
		return nil, err
	}

	model := &ConfigModel{
		Version: version,
		SetMode: SetModeLight,
	}
	n.readPolicy(obj, model)

	if v, ok := obj.Get(KeyDevice); ok {
		model.Device = deviceInfo(v)
	}
	if v, ok := obj.Get(KeyAlive); ok {
		model.Alive, _ = Plain(v).(map[string]any)
	}
	if v, ok := obj.Get(KeyEvents); ok {
		model.Events, _ = Plain(v).(map[string]any)
	}

	base, _ := obj.Get(KeyBase)
	baseObj, _ := base.(Object)
	global, _ := baseObj.Get(KeyGlobalLayer)

	seen := make(map[string]string)
	for _, m := range obj {
		if !IsPlatform(m.Key) {
			continue
		}
		group, ok := m.Value.(Object)
		if !ok {
			n.logger().Warn("ignoring non-object platform group", "device", n.DeviceID, "platform", m.Key)
			continue
		}
		platformLayer, _ := baseObj.Get(m.Key)

		for _, ent := range group {
			key := Slug(ent.Key)
			if key == "" {
				n.logger().Warn("skipping entity with empty key", "device", n.DeviceID, "platform", m.Key, "name", ent.Key)
				continue
			}
			if ReservedEntityKeys[key] {
				n.logger().Warn("skipping reserved entity key", "device", n.DeviceID, "platform", m.Key, "key", key)
				continue
			}
			if prev, dup := seen[key]; dup {
				return nil, &ConfigError{
					Reason: ConfigDuplicateEntity,
					Detail: fmt.Sprintf("%q (%s) and %q (%s) both map to %q", prev, model.platformOf(prev), ent.Key, m.Key, key),
				}
			}
			seen[key] = ent.Key

			attrs := make(map[string]any)
			overlay(attrs, global)
			overlay(attrs, platformLayer)
			overlay(attrs, ent.Value)

			model.Entities = append(model.Entities, EntityDescriptor{
				Platform:     m.Key,
				FriendlyName: ent.Key,
				Key:          key,
				EntityID:     EntityID(m.Key, n.DeviceID, key),
				Attributes:   attrs,
			})
		}
	}

	return model, nil
}

func (c *ConfigModel) platformOf(name string) string {
	for _, e := range c.Entities {
		if e.FriendlyName == name {
			return e.Platform
		}
	}
	return ""
}

func configVersion(obj Object) (int, error) {
	v, ok := obj.Get(KeyVersion)
	if !ok {
		return 0, &ConfigError{Reason: ConfigUnsupportedVersion, Detail: "missing version"}
	}
	i, ok := asInt(v)
	if !ok || i != ProtocolVersion {
		return 0, &ConfigError{Reason: ConfigUnsupportedVersion, Detail: fmt.Sprintf("version %v", Plain(v))}
	}
	return ProtocolVersion, nil
}

func (n *Normalizer) readPolicy(obj Object, model *ConfigModel) {
	if v, ok := obj.Get(KeySetMode); ok {
		s, _ := v.(string)
		mode := SetMode(strings.ToLower(strings.TrimSpace(s)))
		if mode.Valid() {
			model.SetMode = mode
		} else {
			n.logger().Warn("unknown set_mode, using light", "device", n.DeviceID, "set_mode", Plain(v))
		}
	}

	if v, ok := obj.Get(KeyDelayMS); ok {
		f, ok := asFloat(v)
		switch {
		case !ok:
			n.logger().Warn("non-numeric delay_ms, using 0", "device", n.DeviceID, "delay_ms", Plain(v))
		case f > MaxDelayMS:
			n.logger().Warn("delay_ms too large, capping", "device", n.DeviceID, "delay_ms", Plain(v), "max", MaxDelayMS)
			model.DelayMS = MaxDelayMS
		case f > 0:
			model.DelayMS = int(f)
		}
	}

	if v, ok := obj.Get(KeyTSEnable); ok {
		model.TSEnable = truthy(v)
	}
}

// overlay merges one attribute layer into dst, member by member. The
// nested "attributes" map is merged per key instead of replaced.
func overlay(dst map[string]any, layer any) {
	obj, ok := layer.(Object)
	if !ok {
		return
	}
	for _, m := range obj {
		val := Plain(m.Value)
		if m.Key == KeyAttributes {
			prev, okPrev := dst[KeyAttributes].(map[string]any)
			next, okNext := val.(map[string]any)
			if okPrev && okNext {
				maps.Copy(prev, next)
				continue
			}
		}
		dst[m.Key] = val
	}
}

func deviceInfo(v any) *DeviceInfo {
	obj, ok := v.(Object)
	if !ok {
		return nil
	}
	str := func(key string) string {
		val, ok := obj.Get(key)
		if !ok || val == nil {
			return ""
		}
		if s, ok := val.(string); ok {
			return s
		}
		return fmt.Sprint(Plain(val))
	}
	return &DeviceInfo{
		Name:         str("name"),
		Manufacturer: str("manufacturer"),
		Model:        str("model"),
		SWVersion:    str("sw_version"),
		HWVersion:    str("hw_version"),
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "on", "yes":
			return true
		}
		return false
	}
	if f, ok := asFloat(v); ok {
		return f != 0
	}
	return false
}

// CloneMap returns a deep copy of a plain attribute map.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue returns a deep copy of a plain value. Maps and slices are
// copied; scalars are returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
