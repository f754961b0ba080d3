package normalize

import (
	"strings"
	"unicode/utf8"
)

// Sanitize drops bytes that never belong in a stored value:
// NUL and other ASCII controls except tab and newlines, DEL, C1 controls
// (U+0080..U+009F) and invalid UTF-8. Clean input is returned unchanged.
func Sanitize(s string) string {
	if s == "" || isClean(s) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if dropRune(r) {
			return -1
		}
		return r
	}, strings.ToValidUTF8(s, ""))
}

func isClean(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if dropRune(r) {
			return false
		}
	}
	return true
}

func dropRune(r rune) bool {
	switch {
	case r == '\n' || r == '\r' || r == '\t':
		return false
	case r < 0x20, r == 0x7F:
		return true
	case r >= 0x80 && r <= 0x9F:
		return true
	}
	return false
}
