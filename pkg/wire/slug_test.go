package wire

import "testing"

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Room Temperature", "room_temperature"},
		{"  padded  ", "padded"},
		{"Température", "temperature"},
		{"Größe", "groe"},
		{"a  -  b", "a_b"},
		{"multi__under___score", "multi_under_score"},
		{"_edge_", "edge"},
		{"CO2 (ppm)", "co2_ppm"},
		{"tab\tsep", "tab_sep"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slug(tt.in); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEntityID(t *testing.T) {
	if got := EntityID(PlatformSensor, "Living Room", "temp"); got != "sensor.living_room_temp" {
		t.Errorf("EntityID = %q", got)
	}
	if got := EntityID(PlatformSwitch, "!!", "pump"); got != "switch.halink_pump" {
		t.Errorf("EntityID with empty device slug = %q", got)
	}
}
