package entity

import (
	"fmt"
	"slices"
	"time"

	"github.com/halink-protocol/halink-go/pkg/wire"
)

// View is the observable state of one entity.
type View struct {
	// Value is the last reported value (sensor, number) or the raw
	// value behind IsOn and Option.
	Value any

	// IsOn is set for switch and binary_sensor entities once a value
	// has been reported.
	IsOn *bool

	// Option is the current option of a select entity.
	Option  string
	Options []string

	Attributes map[string]any

	// Updated is the device timestamp of the last delta, or the local
	// receive time when the delta carried none.
	Updated time.Time
}

// Clone returns a deep copy of the view.
func (v View) Clone() View {
	if v.IsOn != nil {
		on := *v.IsOn
		v.IsOn = &on
	}
	v.Value = wire.CloneValue(v.Value)
	v.Options = slices.Clone(v.Options)
	v.Attributes = wire.CloneMap(v.Attributes)
	return v
}

// InitialView returns the view of a freshly declared entity. Select
// entities start at their default when it is a declared option.
func InitialView(desc Descriptor) View {
	v := View{}
	if attrs, ok := desc.Attributes[AttrAttributes].(map[string]any); ok {
		v.Attributes = wire.CloneMap(attrs)
	}
	if desc.Kind == KindSelect {
		v.Options = desc.Options()
		if def, ok := desc.Attr(AttrDefault); ok && def != nil {
			if opt := optionString(def); slices.Contains(v.Options, opt) {
				v.Option = opt
				v.Value = opt
			}
		}
	}
	return v
}

// Apply folds a STATE delta into a view. The input view is not
// modified. now is used as Updated when the delta has no timestamp.
func Apply(desc Descriptor, view View, delta wire.StateDelta, now time.Time) View {
	out := view.Clone()

	if delta.Attributes != nil {
		if out.Attributes == nil {
			out.Attributes = make(map[string]any, len(delta.Attributes))
		}
		for k, val := range delta.Attributes {
			out.Attributes[k] = wire.CloneValue(val)
		}
	}

	switch desc.Kind {
	case KindSelect:
		if delta.HasOptions && len(delta.Options) > 0 {
			out.Options = slices.Clone(delta.Options)
		}
		if delta.HasValue && delta.Value != nil {
			if opt := optionString(delta.Value); slices.Contains(out.Options, opt) {
				out.Option = opt
				out.Value = opt
			}
		}

	case KindNumber:
		if delta.HasValue {
			if delta.Value == nil {
				out.Value = nil
			} else if f, ok := toFloat(delta.Value); ok {
				out.Value = f
			}
		}

	case KindSwitch, KindBinarySensor:
		if delta.HasValue {
			on := truthy(delta.Value)
			out.IsOn = &on
			out.Value = wire.CloneValue(delta.Value)
		}

	case KindButton:

	default:
		if delta.HasValue {
			out.Value = wire.CloneValue(delta.Value)
		}
	}

	if delta.Timestamp != nil {
		out.Updated = *delta.Timestamp
	} else {
		out.Updated = now
	}
	return out
}

// SetValue returns the value to send for a user action on an entity.
// input is ignored for buttons; switches accept anything truthy.
func SetValue(desc Descriptor, input any) (any, error) {
	switch desc.Kind {
	case KindSwitch:
		if truthy(input) {
			return int64(1), nil
		}
		return int64(0), nil

	case KindNumber:
		f, ok := toFloat(input)
		if !ok {
			return nil, fmt.Errorf("%w: %v is not a number", ErrInvalidValue, input)
		}
		if lo, ok := desc.Float(AttrMin); ok && f < lo {
			return nil, fmt.Errorf("%w: %v < min %v", ErrOutOfRange, f, lo)
		}
		if hi, ok := desc.Float(AttrMax); ok && f > hi {
			return nil, fmt.Errorf("%w: %v > max %v", ErrOutOfRange, f, hi)
		}
		return f, nil

	case KindSelect:
		opt := optionString(input)
		if input == nil || !slices.Contains(desc.Options(), opt) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOption, opt)
		}
		return opt, nil

	case KindButton:
		return desc.PressValue(), nil

	default:
		return nil, fmt.Errorf("%s: %w", desc.EntityID, ErrReadOnly)
	}
}
