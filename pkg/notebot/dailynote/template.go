package dailynote

import (
	"fmt"
	"regexp"
	"strings"
)

// Layout selects the document body shape.
type Layout string

const (
	// LayoutStructured writes a template with named sections and a single
	// insertion point for incoming lines.
	LayoutStructured Layout = "structured"

	// LayoutFlat writes a two-line header followed by appended lines.
	LayoutFlat Layout = "flat"
)

// InsertionMarker opens the section that receives entry lines.
const InsertionMarker = "## 📋 Messages\n<!-- captured from chat -->\n"

// entryPattern matches formatted entry lines in either style.
var entryPattern = regexp.MustCompile(`^(?:\d+\. )?\*\*\d{2}:\d{2}\*\*`)

// NewDocumentBody returns the initial body for date.
func NewDocumentBody(layout Layout, date string) string {
	if layout == LayoutFlat {
		return fmt.Sprintf("# %s\n## 📋 Messages\n", date)
	}
	return fmt.Sprintf(`# %s

## 📝 Daily Summary
<!-- notable events of the day -->

## 🎯 Today's Goals
- [ ] 

## 📈 Progress & Achievements

## 💭 Thoughts & Reflections

%s
`, date, InsertionMarker)
}

// CountEntries returns the number of entry lines in body.
func CountEntries(body string) int {
	n := 0
	for _, line := range strings.Split(body, "\n") {
		if entryPattern.MatchString(line) {
			n++
		}
	}
	return n
}

// InsertEntry places line into body. Structured bodies receive it at the
// end of the messages section, after the marker and any earlier entries.
// Bodies without the marker (flat layout, or hand-edited notes) get it
// appended at the end.
func InsertEntry(layout Layout, body, line string) string {
	idx := strings.Index(body, InsertionMarker)
	if layout == LayoutFlat || idx < 0 {
		if body != "" && !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		return body + line + "\n"
	}

	start := idx + len(InsertionMarker)
	rest := body[start:]
	end := len(rest)
	if next := strings.Index(rest, "\n## "); next >= 0 {
		end = next + 1
	}

	var b strings.Builder
	b.Grow(len(body) + len(line) + 2)
	b.WriteString(body[:start])
	b.WriteString(strings.TrimRight(rest[:end], "\n"))
	b.WriteString("\n")
	b.WriteString(line)
	b.WriteString("\n")
	if end < len(rest) {
		b.WriteString("\n")
		b.WriteString(rest[end:])
	}
	return b.String()
}
