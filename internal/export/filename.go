package export

import "strings"

// DefaultStem is used when a display name yields no usable characters.
const DefaultStem = "card"

// FileStem derives a file-system-safe name from a display name: every rune
// outside [a-zA-Z0-9] becomes a hyphen and the result is lower-cased. A
// result without any letter or digit falls back to fallback (DefaultStem
// when empty).
func FileStem(displayName, fallback string) string {
	if fallback == "" {
		fallback = DefaultStem
	}
	var b strings.Builder
	alnum := false
	for _, r := range displayName {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			alnum = true
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
			alnum = true
		default:
			b.WriteByte('-')
		}
	}
	if !alnum {
		return fallback
	}
	return b.String()
}
