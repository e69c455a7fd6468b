// Package pathenc encodes arbitrary queue pool identifiers into filesystem
// safe subdirectory names.
package pathenc

import (
	"fmt"
	"strings"
)

// isSafe reports whether b may appear unescaped in an encoded name.
func isSafe(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '(', ')', '_', '-', '|', '.':
		return true
	}
	return false
}

// Encode percent-encodes every byte of id outside [A-Za-z0-9()_|.-] as
// %HH (lowercase hex).
func Encode(id string) string {
	var b strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		if isSafe(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02x", c)
	}
	return b.String()
}

// Decode reverses Encode. It returns an error-free best-effort decoding;
// malformed escapes are copied through verbatim.
func Decode(enc string) string {
	var b strings.Builder
	for i := 0; i < len(enc); i++ {
		if enc[i] == '%' && i+2 < len(enc) {
			var v int
			if _, err := fmt.Sscanf(enc[i+1:i+3], "%02x", &v); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(enc[i])
	}
	return b.String()
}
