package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halink-protocol/halink-go/pkg/log"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleEvents() []log.Event {
	return []log.Event{
		{
			Timestamp: base, ConnectionID: "conn-aaaa-1111", DeviceID: "thermo",
			Layer: log.LayerSession, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityConnection, OldState: "CONNECTING", NewState: "AWAITING_HANDSHAKE"},
		},
		{
			Timestamp: base.Add(10 * time.Millisecond), ConnectionID: "conn-aaaa-1111", DeviceID: "thermo",
			Direction: log.DirectionIn, Layer: log.LayerTransport, Category: log.CategoryMessage,
			Frame: &log.FrameEvent{Size: 28, Data: []byte(`{"state":{"temp":21.5}}`)},
		},
		{
			Timestamp: base.Add(11 * time.Millisecond), ConnectionID: "conn-aaaa-1111", DeviceID: "thermo",
			Direction: log.DirectionIn, Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Type: log.MessageTypeState, Keys: []string{"temp"}, Payload: map[string]any{"temp": 21.5}},
		},
		{
			Timestamp: base.Add(20 * time.Millisecond), ConnectionID: "conn-aaaa-1111", DeviceID: "thermo",
			Direction: log.DirectionOut, Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Type: log.MessageTypeSet, Keys: []string{"pump"}},
		},
		{
			Timestamp: base.Add(30 * time.Millisecond), ConnectionID: "conn-bbbb-2222", DeviceID: "boiler",
			Direction: log.DirectionIn, Layer: log.LayerWire, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerWire, Message: "unexpected end of JSON input", Reason: "malformed"},
		},
	}
}

func writeTrace(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace"+log.FileExtension)
	fl, err := log.NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range sampleEvents() {
		fl.Log(e)
	}
	require.NoError(t, fl.Close())
	return path
}

func TestRunView(t *testing.T) {
	path := writeTrace(t)

	t.Run("all", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RunView(path, log.Filter{}, &buf))
		out := buf.String()

		assert.Contains(t, out, "2026-03-01T12:00:00.000000Z [conn:conn-aaa] thermo")
		assert.Contains(t, out, "CONNECTING -> AWAITING_HANDSHAKE")
		assert.Contains(t, out, `Data: "{\"state\":{\"temp\":21.5}}"`)
		assert.Contains(t, out, "Keys: temp")
		assert.Contains(t, out, `Payload: {"temp":21.5}`)
		assert.Contains(t, out, "Reason: malformed")
	})

	t.Run("filtered", func(t *testing.T) {
		dir := log.DirectionOut
		var buf bytes.Buffer
		require.NoError(t, RunView(path, log.Filter{Direction: &dir}, &buf))
		assert.Contains(t, buf.String(), "OUT WIRE SET")
		assert.NotContains(t, buf.String(), "STATE")
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, RunView(filepath.Join(t.TempDir(), "nope.hlog"), log.Filter{}, &bytes.Buffer{}))
	})
}

func TestRunExport(t *testing.T) {
	path := writeTrace(t)

	t.Run("jsonl", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out.jsonl")
		require.NoError(t, RunExport(path, "jsonl", out))
		data, err := os.ReadFile(out)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, len(sampleEvents()))
		var first map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
		assert.Equal(t, "thermo", first["DeviceID"])
	})

	t.Run("csv", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out.csv")
		require.NoError(t, RunExport(path, "csv", out))
		f, err := os.Open(out)
		require.NoError(t, err)
		defer f.Close()

		rows, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, len(sampleEvents())+1)
		assert.Equal(t, "timestamp", rows[0][0])
		assert.Equal(t, []string{"State", "CONNECTING->AWAITING_HANDSHAKE"}, rows[1][6:])
		assert.Equal(t, []string{"SET", "pump"}, rows[4][6:])
		assert.Equal(t, []string{"Error", "malformed"}, rows[5][6:])
	})

	t.Run("unknown format", func(t *testing.T) {
		assert.Error(t, RunExport(path, "xml", filepath.Join(t.TempDir(), "out.xml")))
	})
}

func TestRunFilter(t *testing.T) {
	path := writeTrace(t)

	tests := []struct {
		name string
		opts FilterOptions
		want int
	}{
		{"device", FilterOptions{DeviceID: "thermo"}, 4},
		{"connection", FilterOptions{ConnID: "conn-bbbb-2222"}, 1},
		{"layer", FilterOptions{Layer: "wire"}, 3},
		{"message type", FilterOptions{MessageType: "set"}, 1},
		{"error reason", FilterOptions{ErrorReason: "malformed"}, 1},
		{"time window", FilterOptions{TimeStart: "2026-03-01T12:00:00Z", TimeEnd: "2026-03-01T12:00:00.015Z"}, 3},
		{"category", FilterOptions{Category: "state"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := tt.opts.Build()
			require.NoError(t, err)

			out := filepath.Join(t.TempDir(), "filtered"+log.FileExtension)
			n, err := RunFilter(path, out, filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			r, err := log.NewReader(out)
			require.NoError(t, err)
			defer r.Close()
			events, err := r.All()
			require.NoError(t, err)
			assert.Len(t, events, tt.want)
		})
	}
}

func TestFilterOptionsErrors(t *testing.T) {
	tests := []FilterOptions{
		{Layer: "service"},
		{Direction: "sideways"},
		{Category: "snapshot"},
		{MessageType: "ping"},
		{TimeStart: "yesterday"},
		{TimeEnd: "12:00"},
	}
	for _, opts := range tests {
		_, err := opts.Build()
		assert.Error(t, err, "%+v", opts)
	}
}

func TestRunStats(t *testing.T) {
	path := writeTrace(t)

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	out := buf.String()

	assert.Contains(t, out, "Events:       5")
	assert.Contains(t, out, "Connections:  2")
	assert.Contains(t, out, "Frames:       1 in (28 bytes), 0 out (0 bytes)")
	assert.Contains(t, out, "thermo")
	assert.Contains(t, out, "STATE    1")
	assert.Contains(t, out, "SET      1")
	assert.Contains(t, out, "malformed")
}
