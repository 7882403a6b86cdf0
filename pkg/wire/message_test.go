package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKinds(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		kind  Kind
	}{
		{"config long", `{"config":{"version":3}}`, KindConfig},
		{"config short", `{"c":{"v":3}}`, KindConfig},
		{"state long", `{"state":{"temp":1}}`, KindState},
		{"state s", `{"s":{"temp":1}}`, KindState},
		{"state st", `{"st":{"temp":1}}`, KindState},
		{"event long", `{"event":"boot"}`, KindEvent},
		{"event short", `{"e":{"click":{}}}`, KindEvent},
		{"first recognized key wins", `{"x":1,"s":{"a":1},"e":"boot"}`, KindState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, msg.Kind)
		})
	}
}

func TestParseExpandsBody(t *testing.T) {
	msg, err := Parse([]byte(`{"c":{"v":3,"s":{"Temp":{"u":"C"}}}}`))
	require.NoError(t, err)

	body := msg.Body.(Object)
	assert.True(t, body.Has(KeyVersion))
	sensors, ok := body.Get(PlatformSensor)
	require.True(t, ok)
	temp, _ := sensors.(Object).Get("Temp")
	unit, _ := temp.(Object).Get("unit")
	assert.Equal(t, "C", unit)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		frame  string
		reason ParseReason
		target error
	}{
		{"not json", `hello`, ParseMalformed, ErrMalformed},
		{"truncated", `{"state":`, ParseMalformed, ErrMalformed},
		{"array", `[1,2]`, ParseMalformed, ErrMalformed},
		{"string", `"state"`, ParseMalformed, ErrMalformed},
		{"set light echo", `temp=21`, ParseMalformed, ErrMalformed},
		{"invalid utf-8 in string", "{\"state\":{\"temp\":\"\xff\xfe\"}}", ParseMalformed, ErrInvalidUTF8},
		{"invalid utf-8 in key", "{\"state\":{\"t\xc3\":1}}", ParseMalformed, ErrMalformed},
		{"empty object", `{}`, ParseUnknownShape, ErrUnknownShape},
		{"unknown key", `{"set":{"a":{"value":1}}}`, ParseUnknownShape, ErrUnknownShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.frame))
			require.Error(t, err)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "expected *ParseError, got %T", err)
			assert.Equal(t, tt.reason, pe.Reason)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}
