package barcode

import "strings"

// Normalize strips everything that is not a decimal digit and converts a
// 12-digit UPC-A to its 13-digit EAN-13 form by padding a leading zero.
// Input that contains no digits at all falls back to the trimmed raw string.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if len(digits) == 12 { // UPC-A
		return "0" + digits // as EAN-13
	}
	if digits != "" {
		return digits
	}
	return strings.TrimSpace(raw)
}
