package dailynote

import (
	"fmt"
	"sort"
	"strings"
)

// LineStyle selects the shape of a formatted entry line.
type LineStyle string

const (
	// StylePlain renders "**HH:MM** *author*: content".
	StylePlain LineStyle = "plain"

	// StyleNumbered renders "N. **HH:MM** author: content".
	StyleNumbered LineStyle = "numbered"
)

// lineBreaks folds multi-line messages onto the single entry line.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

const (
	maxMentionName = 30
	maxAuthorName  = 50
)

// NormalizedMessage is one inbound event already translated to local time.
type NormalizedMessage struct {
	// LocalDate is the partition key ("YYYY-MM-DD"), derived once from the
	// event's creation time.
	LocalDate string

	// LocalTime is the "HH:MM" display label.
	LocalTime string

	AuthorName string

	// RawContent is the original text including mention placeholders.
	RawContent string

	// MentionedUsers maps user id to display name.
	MentionedUsers map[string]string

	// MentionedChannels maps channel id to channel name.
	MentionedChannels map[string]string

	// MessageID is the platform id, kept for logging only.
	MessageID string
}

// Formatter renders normalized messages into single entry lines.
// It is deterministic: no clock reads, map iteration in sorted key order.
type Formatter struct {
	Style            LineStyle
	MaxContentLength int
}

// Format renders msg. seq is only used by StyleNumbered.
func (f Formatter) Format(msg NormalizedMessage, seq int) string {
	content := ResolveMentions(msg.RawContent, msg.MentionedUsers, msg.MentionedChannels)
	content = Sanitize(lineBreaks.Replace(content), f.MaxContentLength)
	author := Sanitize(truncateRunes(msg.AuthorName, maxAuthorName), maxAuthorName)

	if f.Style == StyleNumbered {
		return fmt.Sprintf("%d. **%s** %s: %s", seq, msg.LocalTime, author, content)
	}
	return fmt.Sprintf("**%s** *%s*: %s", msg.LocalTime, author, content)
}

// ResolveMentions substitutes exact placeholder tokens for ids present in
// the maps: <@id> and <@!id> become @name, <#id> becomes #name. Tokens for
// unknown ids pass through untouched.
func ResolveMentions(content string, users, channels map[string]string) string {
	for _, id := range sortedKeys(users) {
		name := "@" + truncateRunes(users[id], maxMentionName)
		content = strings.ReplaceAll(content, "<@"+id+">", name)
		content = strings.ReplaceAll(content, "<@!"+id+">", name)
	}
	for _, id := range sortedKeys(channels) {
		name := "#" + truncateRunes(channels[id], maxMentionName)
		content = strings.ReplaceAll(content, "<#"+id+">", name)
	}
	return content
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
