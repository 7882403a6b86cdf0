package entity

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/halink-protocol/halink-go/pkg/wire"
)

// Well-known descriptor attributes.
const (
	AttrUnit           = "unit"
	AttrDeviceClass    = "device_class"
	AttrIcon           = "icon"
	AttrStateClass     = "state_class"
	AttrMin            = "min"
	AttrMax            = "max"
	AttrStep           = "step"
	AttrOptions        = wire.KeyOptions
	AttrDefault        = "default"
	AttrEntityCategory = "entity_category"
	AttrPressValue     = "press_value"
	AttrAttributes     = wire.KeyAttributes
	AttrMode           = "mode"
)

// Descriptor is a declared entity with its resolved kind.
type Descriptor struct {
	wire.EntityDescriptor
	Kind Kind
}

// NewDescriptor resolves the kind of a normalized descriptor.
func NewDescriptor(d wire.EntityDescriptor) (Descriptor, error) {
	k, err := ParseKind(d.Platform)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%s: %w", d.EntityID, err)
	}
	return Descriptor{EntityDescriptor: d.Clone(), Kind: k}, nil
}

func (d Descriptor) clone() Descriptor {
	return Descriptor{EntityDescriptor: d.EntityDescriptor.Clone(), Kind: d.Kind}
}

// Attr returns a descriptor attribute.
func (d Descriptor) Attr(name string) (any, bool) {
	v, ok := d.Attributes[name]
	return v, ok
}

// Text returns a string attribute, or "" when absent.
func (d Descriptor) Text(name string) string {
	if v, ok := d.Attributes[name].(string); ok {
		return v
	}
	return ""
}

// Float returns a numeric attribute.
func (d Descriptor) Float(name string) (float64, bool) {
	v, ok := d.Attributes[name]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Options returns the declared option set of a select entity.
func (d Descriptor) Options() []string {
	list, ok := d.Attributes[AttrOptions].([]any)
	if !ok {
		return nil
	}
	return optionList(list)
}

// PressValue returns the value a button sends; 1 when not declared.
func (d Descriptor) PressValue() any {
	if v, ok := d.Attributes[AttrPressValue]; ok && v != nil {
		return v
	}
	return int64(1)
}

func optionList(list []any) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v == nil {
			continue
		}
		out = append(out, optionString(v))
	}
	return out
}

func optionString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, err := wire.FormatValue(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "on", "yes":
			return true
		}
		return false
	}
	f, ok := toFloat(v)
	return ok && f != 0
}
