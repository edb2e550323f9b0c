package news

import (
	"fmt"
	"strings"
)

// FormatHeadlines renders one line per headline. Links are wrapped in
// angle brackets so the chat client does not unfurl a preview.
func FormatHeadlines(items []Headline) []string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("・[%s](<%s>)", it.Title, it.Link))
	}
	return lines
}

// FailureLine is posted in place of the headline list when a fetch fails.
func FailureLine(feedName string) string {
	return fmt.Sprintf("News could not be fetched from %s.", feedName)
}

// ComposeBroadcast joins the greeting and headline lines with blank lines
// between them. A fetch error replaces the list with FailureLine.
func ComposeBroadcast(greeting, feedName string, items []Headline, fetchErr error) string {
	var lines []string
	if fetchErr != nil {
		lines = []string{FailureLine(feedName)}
	} else {
		lines = FormatHeadlines(items)
	}
	return greeting + "\n\n" + strings.Join(lines, "\n\n")
}

// MatchesKeyword reports whether content contains any keyword,
// case-insensitively.
func MatchesKeyword(content string, keywords []string) bool {
	lower := strings.ToLower(content)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
