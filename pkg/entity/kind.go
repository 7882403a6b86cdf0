package entity

import (
	"errors"

	"github.com/halink-protocol/halink-go/pkg/wire"
)

// Entity errors.
var (
	ErrUnknownKind   = errors.New("unknown entity kind")
	ErrReadOnly      = errors.New("entity is read-only")
	ErrInvalidValue  = errors.New("invalid value")
	ErrOutOfRange    = errors.New("value out of range")
	ErrInvalidOption = errors.New("invalid option")
)

// Kind is the platform of an entity.
type Kind uint8

const (
	KindSensor Kind = iota + 1
	KindNumber
	KindSwitch
	KindBinarySensor
	KindSelect
	KindButton
)

var kindPlatforms = map[Kind]string{
	KindSensor:       wire.PlatformSensor,
	KindNumber:       wire.PlatformNumber,
	KindSwitch:       wire.PlatformSwitch,
	KindBinarySensor: wire.PlatformBinarySensor,
	KindSelect:       wire.PlatformSelect,
	KindButton:       wire.PlatformButton,
}

// String returns the platform name.
func (k Kind) String() string {
	if p, ok := kindPlatforms[k]; ok {
		return p
	}
	return "unknown"
}

// ParseKind converts a platform name to a Kind.
func ParseKind(platform string) (Kind, error) {
	for k, p := range kindPlatforms {
		if p == platform {
			return k, nil
		}
	}
	return 0, ErrUnknownKind
}

// Writable reports whether the entity accepts SET commands.
func (k Kind) Writable() bool {
	switch k {
	case KindNumber, KindSwitch, KindSelect, KindButton:
		return true
	default:
		return false
	}
}

// Stateful reports whether STATE deltas change the entity's value.
func (k Kind) Stateful() bool {
	return k != KindButton
}
