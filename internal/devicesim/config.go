package devicesim

import (
	"encoding/json"
	"fmt"

	"github.com/halink-protocol/halink-go/pkg/wire"
)

// Entity declares one simulated entity.
type Entity struct {
	Platform   string         `yaml:"platform"`
	Name       string         `yaml:"name"`
	Attributes map[string]any `yaml:"attributes,omitempty"`

	// Value is the initial state reported after the CONFIG.
	Value any `yaml:"value,omitempty"`
}

// Key returns the entity key the client addresses this entity by.
func (e Entity) Key() string {
	return wire.Slug(e.Name)
}

// Config describes the simulated device.
type Config struct {
	Name         string       `yaml:"name"`
	Manufacturer string       `yaml:"manufacturer,omitempty"`
	Model        string       `yaml:"model,omitempty"`
	SetMode      wire.SetMode `yaml:"set_mode,omitempty"`
	DelayMS      int          `yaml:"delay_ms,omitempty"`
	TSEnable     bool         `yaml:"ts_enable,omitempty"`
	Entities     []Entity     `yaml:"entities"`

	// Silent suppresses the CONFIG on connect.
	Silent bool `yaml:"silent,omitempty"`

	// Echo reports every received SET back as a STATE.
	Echo bool `yaml:"echo,omitempty"`
}

// DefaultConfig returns a small climate controller.
func DefaultConfig() Config {
	return Config{
		Name:         "Demo Thermostat",
		Manufacturer: "HaLink",
		Model:        "sim-1",
		SetMode:      wire.SetModeLight,
		Echo:         true,
		Entities: []Entity{
			{Platform: wire.PlatformSensor, Name: "Room Temperature", Attributes: map[string]any{"unit": "°C", "device_class": "temperature"}, Value: 21.5},
			{Platform: wire.PlatformNumber, Name: "Target Temperature", Attributes: map[string]any{"min": 5, "max": 30, "step": 0.5}, Value: 21.0},
			{Platform: wire.PlatformSwitch, Name: "Heating", Value: 0},
			{Platform: wire.PlatformSelect, Name: "Mode", Attributes: map[string]any{"options": []any{"auto", "manual", "boost"}, "default": "auto"}},
			{Platform: wire.PlatformButton, Name: "Reset Filter"},
			{Platform: wire.PlatformBinarySensor, Name: "Window Open", Value: false},
		},
	}
}

// Validate checks platforms and key uniqueness.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Entities))
	for _, e := range c.Entities {
		if !wire.IsPlatform(e.Platform) {
			return fmt.Errorf("entity %q: unknown platform %q", e.Name, e.Platform)
		}
		key := e.Key()
		if key == "" {
			return fmt.Errorf("entity %q: empty key", e.Name)
		}
		if seen[key] {
			return fmt.Errorf("entity %q: duplicate key %q", e.Name, key)
		}
		seen[key] = true
	}
	return nil
}

// ConfigFrame renders the CONFIG message, grouping entities by platform
// in order of first appearance.
func (c Config) ConfigFrame() ([]byte, error) {
	body := wire.Object{{Key: wire.KeyVersion, Value: wire.ProtocolVersion}}

	dev := wire.Object{{Key: "name", Value: c.Name}}
	if c.Manufacturer != "" {
		dev.Set("manufacturer", c.Manufacturer)
	}
	if c.Model != "" {
		dev.Set("model", c.Model)
	}
	body.Set(wire.KeyDevice, dev)

	if c.SetMode != "" {
		body.Set(wire.KeySetMode, string(c.SetMode))
	}
	if c.DelayMS > 0 {
		body.Set(wire.KeyDelayMS, c.DelayMS)
	}
	if c.TSEnable {
		body.Set(wire.KeyTSEnable, 1)
	}

	for _, e := range c.Entities {
		group, _ := body.Get(e.Platform)
		platform, _ := group.(wire.Object)
		attrs := e.Attributes
		if attrs == nil {
			attrs = map[string]any{}
		}
		platform.Set(e.Name, attrs)
		body.Set(e.Platform, platform)
	}

	return json.Marshal(wire.Object{{Key: wire.KeyConfig, Value: body}})
}

// StateFrame renders a STATE message for one entity value.
func StateFrame(key string, value any) ([]byte, error) {
	return json.Marshal(wire.Object{{Key: wire.KeyState, Value: wire.Object{{Key: key, Value: value}}}})
}

// EventFrame renders an EVENT message.
func EventFrame(key string, payload map[string]any) ([]byte, error) {
	if payload == nil {
		return json.Marshal(wire.Object{{Key: wire.KeyEvent, Value: key}})
	}
	return json.Marshal(wire.Object{{Key: wire.KeyEvent, Value: wire.Object{{Key: key, Value: payload}}}})
}
