package urlutil

import (
	"strings"
	"unicode"
)

// Slugify lowercases text and collapses every non-alphanumeric run into a
// single hyphen, producing filesystem-safe county and program slugs.
// Returns "item" for input with no usable characters.
func Slugify(text string) string {
	var b strings.Builder

	lastHyphen := true // suppress leading hyphen

	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		if unicode.IsLetter(r) && r < unicode.MaxASCII || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}

		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "item"
	}

	return slug
}
