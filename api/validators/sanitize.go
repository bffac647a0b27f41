package validators

import (
	"strings"
	"unicode"
)

// QueryText normalises free-text query input: control characters are dropped,
// whitespace runs collapse to one space, and the result is cut to maxRunes.
func QueryText(raw string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(raw))
	runes, pendingSpace := 0, false
	for _, r := range raw {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if maxRunes > 0 && runes >= maxRunes {
			break
		}
		if pendingSpace {
			if maxRunes > 0 && runes+1 >= maxRunes {
				break
			}
			b.WriteByte(' ')
			runes++
			pendingSpace = false
		}
		b.WriteRune(r)
		runes++
	}
	return b.String()
}
