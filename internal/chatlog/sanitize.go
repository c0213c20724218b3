package chatlog

import (
	"strings"
	"unicode/utf8"
)

var escaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// Sanitize trims s and escapes the characters that could open markup when a
// client renders chat as HTML.
func Sanitize(s string) string {
	return escaper.Replace(strings.TrimSpace(s))
}

// SanitizeName cuts a display name to maxRunes (0 = no limit) and escapes it.
// The cut happens before escaping so no entity is ever split.
func SanitizeName(s string, maxRunes int) string {
	s = strings.TrimSpace(s)
	if maxRunes > 0 && utf8.RuneCountInString(s) > maxRunes {
		s = string([]rune(s)[:maxRunes])
	}
	return Sanitize(s)
}
