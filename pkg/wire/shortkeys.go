package wire

// Context identifies the nesting level a key appears at. The same short
// key can mean different things in different contexts.
type Context uint8

const (
	// ContextRoot is the top level of a frame.
	ContextRoot Context = iota

	// ContextConfig is the body of a CONFIG message.
	ContextConfig

	// ContextDevice is the device metadata object.
	ContextDevice

	// ContextBase is the base object holding the "*" and per-platform layers.
	ContextBase

	// ContextPlatform is a platform group; its keys are entity names.
	ContextPlatform

	// ContextEntity is an entity attribute object.
	ContextEntity

	// ContextState is the body of a STATE message.
	ContextState

	// ContextEvent is the body of an EVENT message.
	ContextEvent

	// ContextLeaf is any opaque value. Nothing below it is rewritten.
	ContextLeaf
)

// String returns the context name.
func (c Context) String() string {
	switch c {
	case ContextRoot:
		return "ROOT"
	case ContextConfig:
		return "CONFIG"
	case ContextDevice:
		return "DEVICE"
	case ContextBase:
		return "BASE"
	case ContextPlatform:
		return "PLATFORM"
	case ContextEntity:
		return "ENTITY"
	case ContextState:
		return "STATE"
	case ContextEvent:
		return "EVENT"
	case ContextLeaf:
		return "LEAF"
	default:
		return "UNKNOWN"
	}
}

// Canonical top-level keys.
const (
	KeyConfig = "config"
	KeyState  = "state"
	KeyEvent  = "event"
	KeySet    = "set"
)

// Canonical CONFIG keys.
const (
	KeyVersion  = "version"
	KeyDevice   = "device"
	KeyBase     = "base"
	KeySetMode  = "set_mode"
	KeyDelayMS  = "delay_ms"
	KeyTSEnable = "ts_enable"
	KeyAlive    = "alive"
	KeyEvents   = "events"

	// KeyGlobalLayer is the base layer applied to every platform.
	KeyGlobalLayer = "*"
)

// Canonical STATE, EVENT and SET field keys.
const (
	KeyValue      = "value"
	KeyAttributes = "attributes"
	KeyTimestamp  = "ts"
	KeyOptions    = "options"
)

// Platform names.
const (
	PlatformSensor       = "sensor"
	PlatformNumber       = "number"
	PlatformSwitch       = "switch"
	PlatformBinarySensor = "binary_sensor"
	PlatformSelect       = "select"
	PlatformButton       = "button"
)

// Platforms lists the known platforms.
var Platforms = []string{
	PlatformSensor,
	PlatformNumber,
	PlatformSwitch,
	PlatformBinarySensor,
	PlatformSelect,
	PlatformButton,
}

// IsPlatform reports whether name is a known platform.
func IsPlatform(name string) bool {
	for _, p := range Platforms {
		if p == name {
			return true
		}
	}
	return false
}

var platformAliases = map[string]string{
	"s":  PlatformSensor,
	"n":  PlatformNumber,
	"sw": PlatformSwitch,
	"bs": PlatformBinarySensor,
	"sl": PlatformSelect,
	"b":  PlatformButton,
	"bn": PlatformButton,
}

var rootKeys = map[string]string{
	"c":  KeyConfig,
	"s":  KeyState,
	"st": KeyState,
	"e":  KeyEvent,
}

var configKeys = merge(platformAliases, map[string]string{
	"v":  KeyVersion,
	"d":  KeyDevice,
	"sm": KeySetMode,
	"dm": KeyDelayMS,
	"te": KeyTSEnable,
	"ts": KeyTSEnable,
	"al": KeyAlive,
	"ev": KeyEvents,
})

var deviceKeys = map[string]string{
	"n":   "name",
	"m":   "manufacturer",
	"mod": "model",
	"sw":  "sw_version",
	"hw":  "hw_version",
}

var entityKeys = map[string]string{
	"u":    "unit",
	"dc":   "device_class",
	"ic":   "icon",
	"sc":   "state_class",
	"mn":   "min",
	"mx":   "max",
	"st":   "step",
	"opt":  KeyOptions,
	"def":  "default",
	"ec":   "entity_category",
	"pv":   "press_value",
	"attr": KeyAttributes,
	"as":   "assumed_state",
	"m":    "mode",
}

func merge(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// table returns the alias table for a context.
func (c Context) table() map[string]string {
	switch c {
	case ContextRoot:
		return rootKeys
	case ContextConfig:
		return configKeys
	case ContextDevice:
		return deviceKeys
	case ContextBase:
		return platformAliases
	case ContextEntity:
		return entityKeys
	default:
		return nil
	}
}

// child returns the context of the value stored under the canonical key.
func (c Context) child(key string) Context {
	switch c {
	case ContextRoot:
		switch key {
		case KeyConfig:
			return ContextConfig
		case KeyState:
			return ContextState
		case KeyEvent:
			return ContextEvent
		}
	case ContextConfig:
		switch {
		case key == KeyDevice:
			return ContextDevice
		case key == KeyBase:
			return ContextBase
		case IsPlatform(key):
			return ContextPlatform
		}
	case ContextBase, ContextPlatform:
		return ContextEntity
	}
	return ContextLeaf
}

// ExpandKey resolves a single key in the given context.
// Unknown keys are returned unchanged.
func ExpandKey(ctx Context, key string) string {
	if long, ok := ctx.table()[key]; ok {
		return long
	}
	return key
}

// Expand rewrites short keys to canonical keys at every level of v,
// starting in context ctx. Unknown keys pass through. The input is not
// modified. Expanding an already expanded value returns an equal value.
func Expand(v any, ctx Context) any {
	if ctx == ContextLeaf {
		return v
	}
	switch t := v.(type) {
	case Object:
		out := make(Object, 0, len(t))
		for _, m := range t {
			key := ExpandKey(ctx, m.Key)
			out.Set(key, Expand(m.Value, ctx.child(key)))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Expand(e, ctx)
		}
		return out
	default:
		return v
	}
}
