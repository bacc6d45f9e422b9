package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims free text typed on a phone, folds runs of whitespace and
// control characters into single spaces, and caps the result at maxLen runes so the
// cap agrees with the validator's max tag. maxLen <= 0 disables the cap.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	space := false
	runes := 0
	for _, r := range strings.TrimSpace(input) {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			space = true
			continue
		}
		if r == utf8.RuneError {
			continue
		}
		if space && b.Len() > 0 {
			if maxLen > 0 && runes+1 >= maxLen {
				break
			}
			b.WriteByte(' ')
			runes++
		}
		space = false
		if maxLen > 0 && runes >= maxLen {
			break
		}
		b.WriteRune(r)
		runes++
	}
	return b.String()
}
