package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halink-protocol/halink-go/pkg/wire"
)

func configModel(t *testing.T, frame string) *wire.ConfigModel {
	t.Helper()
	msg, err := wire.Parse([]byte(frame))
	require.NoError(t, err)
	require.Equal(t, wire.KindConfig, msg.Kind)
	model, err := wire.NormalizeConfig(msg.Body, "dev1")
	require.NoError(t, err)
	return model
}

func descriptor(t *testing.T, platform string, attrs map[string]any) Descriptor {
	t.Helper()
	d, err := NewDescriptor(wire.EntityDescriptor{
		Platform:     platform,
		FriendlyName: "Test",
		Key:          "test",
		EntityID:     platform + ".dev1_test",
		Attributes:   attrs,
	})
	require.NoError(t, err)
	return d
}

func valueDelta(v any) wire.StateDelta {
	return wire.StateDelta{EntityKey: "test", Value: v, HasValue: true}
}

func TestParseKind(t *testing.T) {
	for _, p := range wire.Platforms {
		t.Run(p, func(t *testing.T) {
			k, err := ParseKind(p)
			require.NoError(t, err)
			assert.Equal(t, p, k.String())
		})
	}

	_, err := ParseKind("climate")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestKindCapabilities(t *testing.T) {
	assert.True(t, KindSwitch.Writable())
	assert.True(t, KindButton.Writable())
	assert.False(t, KindSensor.Writable())
	assert.False(t, KindBinarySensor.Writable())
	assert.False(t, KindButton.Stateful())
}

func TestApply(t *testing.T) {
	now := time.Unix(1700000000, 0)

	t.Run("SensorPassthrough", func(t *testing.T) {
		d := descriptor(t, wire.PlatformSensor, nil)
		v := Apply(d, View{}, valueDelta("ok"), now)
		assert.Equal(t, "ok", v.Value)
		assert.Equal(t, now, v.Updated)
	})

	t.Run("NumberParsesStrings", func(t *testing.T) {
		d := descriptor(t, wire.PlatformNumber, nil)
		v := Apply(d, View{}, valueDelta("21.5"), now)
		assert.Equal(t, 21.5, v.Value)

		v = Apply(d, v, valueDelta(int64(3)), now)
		assert.Equal(t, 3.0, v.Value)
	})

	t.Run("NumberInvalidKeepsValue", func(t *testing.T) {
		d := descriptor(t, wire.PlatformNumber, nil)
		v := Apply(d, View{Value: 7.0}, valueDelta("warm"), now)
		assert.Equal(t, 7.0, v.Value)
	})

	t.Run("NumberNullClears", func(t *testing.T) {
		d := descriptor(t, wire.PlatformNumber, nil)
		v := Apply(d, View{Value: 7.0}, valueDelta(nil), now)
		assert.Nil(t, v.Value)
	})

	t.Run("SwitchTruthy", func(t *testing.T) {
		d := descriptor(t, wire.PlatformSwitch, nil)
		tests := []struct {
			in   any
			want bool
		}{
			{true, true},
			{int64(1), true},
			{2.5, true},
			{"on", true},
			{"TRUE", true},
			{"1", true},
			{false, false},
			{int64(0), false},
			{"off", false},
			{nil, false},
		}
		for _, tt := range tests {
			v := Apply(d, View{}, valueDelta(tt.in), now)
			require.NotNil(t, v.IsOn, "%v", tt.in)
			assert.Equal(t, tt.want, *v.IsOn, "%v", tt.in)
		}
	})

	t.Run("BinarySensorAttributesOnly", func(t *testing.T) {
		d := descriptor(t, wire.PlatformBinarySensor, nil)
		on := true
		v := Apply(d, View{IsOn: &on}, wire.StateDelta{
			EntityKey:  "test",
			Attributes: map[string]any{"battery": int64(80)},
		}, now)
		require.NotNil(t, v.IsOn)
		assert.True(t, *v.IsOn)
		assert.Equal(t, int64(80), v.Attributes["battery"])
	})

	t.Run("SelectValidOption", func(t *testing.T) {
		d := descriptor(t, wire.PlatformSelect, map[string]any{"options": []any{"auto", "heat"}})
		v := Apply(d, InitialView(d), valueDelta("heat"), now)
		assert.Equal(t, "heat", v.Option)

		v = Apply(d, v, valueDelta("boost"), now)
		assert.Equal(t, "heat", v.Option, "unknown option is ignored")
	})

	t.Run("SelectRepublishesOptions", func(t *testing.T) {
		d := descriptor(t, wire.PlatformSelect, map[string]any{"options": []any{"auto"}})
		v := Apply(d, InitialView(d), wire.StateDelta{
			EntityKey:  "test",
			Value:      "boost",
			HasValue:   true,
			Options:    []string{"auto", "boost"},
			HasOptions: true,
		}, now)
		assert.Equal(t, []string{"auto", "boost"}, v.Options)
		assert.Equal(t, "boost", v.Option)
	})

	t.Run("ButtonIgnoresState", func(t *testing.T) {
		d := descriptor(t, wire.PlatformButton, nil)
		v := Apply(d, View{}, valueDelta(int64(1)), now)
		assert.Nil(t, v.Value)
	})

	t.Run("AttributesMergeKeyByKey", func(t *testing.T) {
		d := descriptor(t, wire.PlatformSensor, nil)
		v := View{Attributes: map[string]any{"a": int64(1), "b": int64(2)}}
		out := Apply(d, v, wire.StateDelta{EntityKey: "test", Attributes: map[string]any{"b": int64(3)}}, now)
		assert.Equal(t, map[string]any{"a": int64(1), "b": int64(3)}, out.Attributes)
		assert.Equal(t, int64(2), v.Attributes["b"], "input view unchanged")
	})

	t.Run("NestedValuesNotShared", func(t *testing.T) {
		d := descriptor(t, wire.PlatformSensor, nil)
		delta := wire.StateDelta{
			EntityKey:  "test",
			Value:      map[string]any{"l1": 230.1},
			HasValue:   true,
			Attributes: map[string]any{"phase": map[string]any{"l1": int64(1)}, "tags": []any{"a"}},
		}
		out := Apply(d, View{}, delta, now)

		delta.Value.(map[string]any)["l1"] = 0.0
		delta.Attributes["phase"].(map[string]any)["l1"] = int64(9)
		delta.Attributes["tags"].([]any)[0] = "z"

		assert.Equal(t, map[string]any{"l1": 230.1}, out.Value)
		assert.Equal(t, map[string]any{"l1": int64(1)}, out.Attributes["phase"])
		assert.Equal(t, []any{"a"}, out.Attributes["tags"])

		clone := out.Clone()
		clone.Attributes["phase"].(map[string]any)["l1"] = int64(5)
		assert.Equal(t, map[string]any{"l1": int64(1)}, out.Attributes["phase"])
	})

	t.Run("DeviceTimestamp", func(t *testing.T) {
		d := descriptor(t, wire.PlatformSensor, nil)
		ts := time.Unix(1600000000, 0)
		v := Apply(d, View{}, wire.StateDelta{EntityKey: "test", Value: 1.0, HasValue: true, Timestamp: &ts}, now)
		assert.Equal(t, ts, v.Updated)
	})
}

func TestInitialView(t *testing.T) {
	t.Run("SelectDefault", func(t *testing.T) {
		d := descriptor(t, wire.PlatformSelect, map[string]any{
			"options": []any{"auto", "heat"},
			"default": "heat",
		})
		v := InitialView(d)
		assert.Equal(t, "heat", v.Option)
		assert.Equal(t, []string{"auto", "heat"}, v.Options)
	})

	t.Run("SelectInvalidDefault", func(t *testing.T) {
		d := descriptor(t, wire.PlatformSelect, map[string]any{
			"options": []any{"auto"},
			"default": "boost",
		})
		assert.Empty(t, InitialView(d).Option)
	})

	t.Run("DeclaredAttributes", func(t *testing.T) {
		d := descriptor(t, wire.PlatformSensor, map[string]any{
			"attributes": map[string]any{"room": "hall"},
		})
		assert.Equal(t, "hall", InitialView(d).Attributes["room"])
	})
}

func TestSetValue(t *testing.T) {
	tests := []struct {
		name     string
		platform string
		attrs    map[string]any
		input    any
		want     any
		wantErr  error
	}{
		{"SwitchOn", wire.PlatformSwitch, nil, true, int64(1), nil},
		{"SwitchOff", wire.PlatformSwitch, nil, "off", int64(0), nil},
		{"NumberInRange", wire.PlatformNumber, map[string]any{"min": int64(5), "max": int64(30)}, 21.5, 21.5, nil},
		{"NumberString", wire.PlatformNumber, nil, "7", 7.0, nil},
		{"NumberBelowMin", wire.PlatformNumber, map[string]any{"min": int64(5)}, 4.0, nil, ErrOutOfRange},
		{"NumberAboveMax", wire.PlatformNumber, map[string]any{"max": 30.0}, int64(31), nil, ErrOutOfRange},
		{"NumberInvalid", wire.PlatformNumber, nil, "warm", nil, ErrInvalidValue},
		{"SelectOption", wire.PlatformSelect, map[string]any{"options": []any{"auto", "heat"}}, "heat", "heat", nil},
		{"SelectInvalid", wire.PlatformSelect, map[string]any{"options": []any{"auto"}}, "boost", nil, ErrInvalidOption},
		{"ButtonDefault", wire.PlatformButton, nil, nil, int64(1), nil},
		{"ButtonPressValue", wire.PlatformButton, map[string]any{"press_value": "restart"}, nil, "restart", nil},
		{"SensorReadOnly", wire.PlatformSensor, nil, 1, nil, ErrReadOnly},
		{"BinarySensorReadOnly", wire.PlatformBinarySensor, nil, true, nil, ErrReadOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SetValue(descriptor(t, tt.platform, tt.attrs), tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry(t *testing.T) {
	first := `{"config":{"version":3,"sensor":{"Room Temperature":{"unit":"°C"}},"switch":{"Pump":{}}}}`
	second := `{"config":{"version":3,"number":{"Target":{"min":5,"max":30}}}}`

	t.Run("ApplyConfigAdditive", func(t *testing.T) {
		r := NewRegistry()
		res := r.ApplyConfig(configModel(t, first), RetainMissing)
		assert.Equal(t, []string{"room_temperature", "pump"}, res.Added)

		res = r.ApplyConfig(configModel(t, second), RetainMissing)
		assert.Equal(t, []string{"target"}, res.Added)
		assert.Empty(t, res.Removed)
		assert.Equal(t, 3, r.Len())

		snap := r.Snapshot()
		require.Len(t, snap, 3)
		assert.Equal(t, "sensor.dev1_room_temperature", snap[0].Descriptor.EntityID)
		assert.Equal(t, KindNumber, snap[2].Descriptor.Kind)
	})

	t.Run("ApplyConfigRemoveMissing", func(t *testing.T) {
		r := NewRegistry()
		r.ApplyConfig(configModel(t, first), RemoveMissing)
		res := r.ApplyConfig(configModel(t, second), RemoveMissing)
		assert.Equal(t, []string{"room_temperature", "pump"}, res.Removed)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("ResendKeepsView", func(t *testing.T) {
		r := NewRegistry()
		r.ApplyConfig(configModel(t, first), RetainMissing)
		r.ApplyDeltas([]wire.StateDelta{{EntityKey: "room_temperature", Value: 21.8, HasValue: true}}, time.Now())

		res := r.ApplyConfig(configModel(t, first), RetainMissing)
		assert.Equal(t, []string{"room_temperature", "pump"}, res.Updated)

		_, view, ok := r.Get("room_temperature")
		require.True(t, ok)
		assert.Equal(t, 21.8, view.Value)
	})

	t.Run("ApplyDeltasUnknown", func(t *testing.T) {
		r := NewRegistry()
		r.ApplyConfig(configModel(t, first), RetainMissing)
		res := r.ApplyDeltas([]wire.StateDelta{
			{EntityKey: "pump", Value: int64(1), HasValue: true},
			{EntityKey: "ghost", Value: int64(1), HasValue: true},
		}, time.Now())
		assert.Equal(t, []string{"pump"}, res.Applied)
		assert.Equal(t, []string{"ghost"}, res.Unknown)

		_, view, _ := r.Get("pump")
		require.NotNil(t, view.IsOn)
		assert.True(t, *view.IsOn)
	})

	t.Run("SetValueUsesLiveOptions", func(t *testing.T) {
		r := NewRegistry()
		r.ApplyConfig(configModel(t, `{"config":{"version":3,"select":{"Mode":{"options":["auto"]}}}}`), RetainMissing)

		_, err := r.SetValue("mode", "boost")
		assert.ErrorIs(t, err, ErrInvalidOption)

		r.ApplyDeltas([]wire.StateDelta{{EntityKey: "mode", Options: []string{"auto", "boost"}, HasOptions: true}}, time.Now())
		v, err := r.SetValue("mode", "boost")
		require.NoError(t, err)
		assert.Equal(t, "boost", v)

		_, err = r.SetValue("ghost", 1)
		assert.ErrorIs(t, err, ErrUnknownEntity)
	})

	t.Run("SnapshotDeepCopiesViews", func(t *testing.T) {
		r := NewRegistry()
		r.ApplyConfig(configModel(t, first), RetainMissing)
		deltas := []wire.StateDelta{{
			EntityKey:  "room_temperature",
			Value:      21.8,
			HasValue:   true,
			Attributes: map[string]any{"probe": map[string]any{"battery": int64(90)}},
		}}
		r.ApplyDeltas(deltas, time.Now())

		deltas[0].Attributes["probe"].(map[string]any)["battery"] = int64(10)
		snap := r.Snapshot()
		snap[0].View.Attributes["probe"].(map[string]any)["battery"] = int64(0)

		_, view, _ := r.Get("room_temperature")
		assert.Equal(t, map[string]any{"battery": int64(90)}, view.Attributes["probe"])
	})

	t.Run("SnapshotIsCopy", func(t *testing.T) {
		r := NewRegistry()
		r.ApplyConfig(configModel(t, first), RetainMissing)
		snap := r.Snapshot()
		snap[0].Descriptor.Attributes["unit"] = "K"

		d, _, _ := r.Get("room_temperature")
		assert.Equal(t, "°C", d.Attributes["unit"])
	})
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, RetainMissing, p)

	p, err = ParsePolicy("remove")
	require.NoError(t, err)
	assert.Equal(t, RemoveMissing, p)
	assert.Equal(t, "remove", p.String())

	_, err = ParsePolicy("drop")
	assert.Error(t, err)
}
