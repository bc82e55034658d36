package textconv

import (
	"encoding/base64"
	"strings"
)

// decodeBase64Lenient decodes base64 in either the standard or URL-safe
// alphabet, restoring stripped padding and ignoring embedded whitespace.
func decodeBase64Lenient(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		case '-':
			return '+'
		case '_':
			return '/'
		}
		return r
	}, s)
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return base64.StdEncoding.DecodeString(s)
}
