package wire

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultDeviceSlug is used in entity IDs when the device identifier
// slugs to nothing.
const DefaultDeviceSlug = "halink"

// Slug reduces a name to lowercase ASCII letters, digits and single
// underscores. Accents are folded ("Température" becomes "temperature"),
// whitespace becomes "_" and other characters are dropped.
func Slug(s string) string {
	// Chained transformers carry state, so build one per call.
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
		case r == '_', unicode.IsSpace(r):
			pending = true
		}
	}
	return b.String()
}

// EntityID derives the stable entity ID for an entity key on a device.
func EntityID(platform, deviceID, key string) string {
	dev := Slug(deviceID)
	if dev == "" {
		dev = DefaultDeviceSlug
	}
	return platform + "." + dev + "_" + key
}
