package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePreservesOrder(t *testing.T) {
	v, err := Decode([]byte(`{"z":1,"a":{"y":true,"b":null},"m":[1,"x"]}`))
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok, "top-level value should be an Object, got %T", v)
	assert.Equal(t, []string{"z", "a", "m"}, obj.Keys())

	inner, _ := obj.Get("a")
	assert.Equal(t, []string{"y", "b"}, inner.(Object).Keys())

	n, _ := obj.Get("z")
	assert.Equal(t, json.Number("1"), n)
}

func TestDecodeDuplicateKeys(t *testing.T) {
	v, err := Decode([]byte(`{"a":1,"b":2,"a":3}`))
	require.NoError(t, err)

	obj := v.(Object)
	assert.Equal(t, []string{"a", "b"}, obj.Keys())
	got, _ := obj.Get("a")
	assert.Equal(t, json.Number("3"), got)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ``},
		{"truncated", `{"a":`},
		{"trailing", `{"a":1} {"b":2}`},
		{"bare word", `hello`},
		{"key=value", `temp=21`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.input)); err == nil {
				t.Errorf("Decode(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	_, err := Decode([]byte("{\"name\":\"caf\xe9\"}"))
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	v, err := Decode([]byte(`{"name":"café"}`))
	require.NoError(t, err)
	name, _ := v.(Object).Get("name")
	assert.Equal(t, "café", name)
}

func TestDecodeDepthLimit(t *testing.T) {
	deep := ""
	for i := 0; i <= MaxDepth+1; i++ {
		deep += "["
	}
	_, err := Decode([]byte(deep))
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestObjectMarshalJSON(t *testing.T) {
	obj := Object{
		{Key: "z", Value: 1},
		{Key: "a", Value: Object{{Key: "k", Value: "v"}}},
		{Key: "n", Value: nil},
	}
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":{"k":"v"},"n":null}`, string(data))
}

func TestPlain(t *testing.T) {
	v, err := Decode([]byte(`{"i":42,"f":21.8,"neg":-3,"e":1e2,"list":[1,{"x":"y"}]}`))
	require.NoError(t, err)

	got := Plain(v)
	want := map[string]any{
		"i":    int64(42),
		"f":    21.8,
		"neg":  int64(-3),
		"e":    100.0,
		"list": []any{int64(1), map[string]any{"x": "y"}},
	}
	assert.Equal(t, want, got)
}
