package dailynote

import "strings"

const (
	// DefaultMaxContentLength caps a single message body, in characters.
	DefaultMaxContentLength = 2000

	// TruncationMarker is appended when content is cut.
	TruncationMarker = "...(truncated)"
)

// Sanitize caps text at maxLen characters and escapes the characters that
// would open code spans or links in the generated Markdown. Characters
// already preceded by a backslash are left alone, so sanitized text is a
// fixed point as long as it stays under maxLen.
func Sanitize(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxContentLength
	}
	if runes := []rune(text); len(runes) > maxLen {
		text = string(runes[:maxLen]) + TruncationMarker
	}
	return escapeMarkdown(text)
}

func escapeMarkdown(text string) string {
	if !strings.ContainsAny(text, "`[]") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + 8)
	var prev rune
	for _, r := range text {
		switch r {
		case '`', '[', ']':
			if prev != '\\' {
				b.WriteRune('\\')
			}
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// truncateRunes cuts s to n characters without a marker.
func truncateRunes(s string, n int) string {
	if runes := []rune(s); len(runes) > n {
		return string(runes[:n])
	}
	return s
}
