package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jholhewres/notebot/pkg/notebot/channels"
	"github.com/jholhewres/notebot/pkg/notebot/dailynote"
	"github.com/jholhewres/notebot/pkg/notebot/metrics"
)

// Slash command names.
const (
	CmdHelp         = "help"
	CmdNewsHelp     = "news_help"
	CmdNewsStatus   = "news_status"
	CmdNotesStatus  = "notes_status"
	CmdDownloadNote = "download_note"
	CmdListNotes    = "list_notes"
)

// Embed colors.
const (
	colorGreen  = 0x00ff00
	colorBlue   = 0x0099ff
	colorPurple = 0x9f7aea
	colorMint   = 0x00ff88
)

const wrongGuildText = "This command can only be used in the designated server."

// CommandSpecs lists the slash commands the bot registers.
func CommandSpecs() []channels.CommandSpec {
	return []channels.CommandSpec{
		{Name: CmdHelp, Description: "Show how to use this bot"},
		{Name: CmdNewsHelp, Description: "Show the news broadcast features"},
		{Name: CmdNewsStatus, Description: "Show the news broadcast status"},
		{Name: CmdNotesStatus, Description: "Show the message collection status"},
		{
			Name:        CmdDownloadNote,
			Description: "Download a day's messages as a Markdown file",
			Options: []channels.CommandOption{
				{Name: "date", Description: "Date as YYYY-MM-DD (default: today)"},
			},
		},
		{Name: CmdListNotes, Description: "List the days with collected messages"},
	}
}

// HandleCommand answers one slash command invocation.
func (b *Bot) HandleCommand(ctx context.Context, req *channels.CommandRequest) *channels.CommandResponse {
	if !b.guildAllowed(req.GuildID) {
		return ephemeral(wrongGuildText)
	}
	b.logger.Info("command", "name", req.Name, "user", req.UserName, "chat_id", req.ChatID)

	switch req.Name {
	case CmdHelp:
		return b.cmdHelp()
	case CmdNewsHelp:
		return b.cmdNewsHelp()
	case CmdNewsStatus:
		return b.cmdNewsStatus()
	case CmdNotesStatus:
		return b.cmdNotesStatus(ctx)
	case CmdDownloadNote:
		return b.cmdDownloadNote(ctx, req.Option("date"))
	case CmdListNotes:
		return b.cmdListNotes(ctx)
	default:
		return ephemeral(fmt.Sprintf("Unknown command: %s", req.Name))
	}
}

func ephemeral(text string) *channels.CommandResponse {
	return &channels.CommandResponse{Content: text, Ephemeral: true}
}

func (b *Bot) cmdHelp() *channels.CommandResponse {
	var cmds strings.Builder
	for _, spec := range CommandSpecs() {
		fmt.Fprintf(&cmds, "`/%s` - %s\n", spec.Name, spec.Description)
	}

	var features []string
	if len(b.cfg.NotesChannelIDs) > 0 {
		features = append(features, "・Messages in "+channelList(b.cfg.NotesChannelIDs)+" are collected into daily notes")
	}
	if b.cfg.NewsEnabled {
		features = append(features, "・Scheduled news broadcasts; say \"news\" to get the latest one again")
	}
	if len(b.cfg.EchoChannelIDs) > 0 {
		features = append(features, "・Echo in "+channelList(b.cfg.EchoChannelIDs))
	}
	if len(b.cfg.GreetingChannelIDs) > 0 {
		features = append(features, fmt.Sprintf("・Replies \"%s\" in %s", b.cfg.GreetingReply, channelList(b.cfg.GreetingChannelIDs)))
	}
	features = append(features, "・"+b.cfg.ReactionEmoji+" reaction acknowledgement")

	return &channels.CommandResponse{Embed: &channels.Embed{
		Title:       "🤖 Bot guide",
		Description: "What this bot does and how to use it",
		Color:       colorGreen,
		Fields: []channels.EmbedField{
			{Name: "📝 Features", Value: strings.Join(features, "\n")},
			{Name: "⚡ Slash commands", Value: strings.TrimRight(cmds.String(), "\n")},
		},
		Footer: "Feel free to ask if you have any questions!",
	}}
}

func (b *Bot) cmdNewsHelp() *channels.CommandResponse {
	var schedule []string
	for _, f := range b.cfg.Feeds {
		schedule = append(schedule, fmt.Sprintf("・**%s** - %s", f.At, f.Name))
	}
	if len(schedule) == 0 {
		schedule = append(schedule, "No feeds configured")
	}

	var other []string
	if len(b.cfg.EchoChannelIDs) > 0 {
		other = append(other, "・Echo (designated channels)")
	}
	other = append(other, "・"+b.cfg.ReactionEmoji+" reaction replies", "・Keyword replay of the latest broadcast")

	return &channels.CommandResponse{Embed: &channels.Embed{
		Title:       "📰 News bot features",
		Description: "About this bot's news broadcasts",
		Color:       colorGreen,
		Fields: []channels.EmbedField{
			{Name: "⏰ Scheduled broadcasts", Value: strings.Join(schedule, "\n")},
			{Name: "💬 Other features", Value: strings.Join(other, "\n")},
			{Name: "📡 Broadcast channel", Value: channelMention(b.cfg.NewsChannelID)},
		},
		Footer: "Broadcasting around the clock 📺",
	}}
}

func (b *Bot) cmdNewsStatus() *channels.CommandResponse {
	now := b.now().In(b.Zone())

	var schedule []string
	for _, f := range b.cfg.Feeds {
		schedule = append(schedule, fmt.Sprintf("%s: %s", f.Slot, f.At))
	}
	scheduleText := strings.Join(schedule, " | ")
	if scheduleText == "" {
		scheduleText = "none"
	}

	next := "not scheduled"
	if at, ok := b.nextBroadcast(now); ok {
		next = fmt.Sprintf("%s (in %s)", at.In(b.Zone()).Format("15:04"), untilText(at.Sub(now)))
	}

	return &channels.CommandResponse{Embed: &channels.Embed{
		Title: "📊 News broadcast status",
		Color: colorBlue,
		Fields: []channels.EmbedField{
			{Name: "⏰ Current time", Value: now.Format("2006-01-02 15:04:05") + " " + dailynote.FormatOffset(b.cfg.Offset)},
			{Name: "📰 Schedule", Value: scheduleText},
			{Name: "📡 Broadcast channel", Value: channelMention(b.cfg.NewsChannelID)},
			{Name: "⏭️ Next broadcast", Value: next},
		},
	}}
}

func (b *Bot) cmdNotesStatus(ctx context.Context) *channels.CommandResponse {
	today := dailynote.Today(b.now(), b.cfg.Offset)
	todayCount := 0
	if doc, err := b.notebook.Document(ctx, today); err == nil {
		todayCount = doc.Entries
	} else if !errors.Is(err, dailynote.ErrNotFound) {
		return ephemeral("❌ Failed to read status: " + err.Error())
	}

	infos, err := b.exporter.List(ctx)
	if err != nil {
		return ephemeral("❌ Failed to read status: " + err.Error())
	}

	fields := []channels.EmbedField{
		{Name: "Monitored channels", Value: channelList(b.cfg.NotesChannelIDs)},
		{Name: "Messages collected today", Value: fmt.Sprintf("%d", todayCount)},
		{Name: "Days collected", Value: fmt.Sprintf("%d", len(infos))},
	}
	if len(infos) > 0 {
		fields = append(fields, channels.EmbedField{Name: "Recent days", Value: dateLines(infos, 5, "")})
	}
	fields = append(fields, channels.EmbedField{Name: "Storage", Value: b.notebook.Backend().Describe()})

	return &channels.CommandResponse{Embed: &channels.Embed{
		Title:  "📝 Message collection status",
		Color:  colorPurple,
		Fields: fields,
	}}
}

func (b *Bot) cmdDownloadNote(ctx context.Context, date string) *channels.CommandResponse {
	art, err := b.exporter.ExportManual(ctx, strings.TrimSpace(date))
	b.metrics.ExportFinished(metrics.ExportManual, exportResult(err))
	if err != nil {
		var tooLarge *dailynote.TooLargeError
		switch {
		case errors.Is(err, dailynote.ErrInvalidDateKey):
			return ephemeral("❌ Invalid date format. Use YYYY-MM-DD.")
		case errors.Is(err, dailynote.ErrNotFound):
			if date == "" {
				date = dailynote.Today(b.now(), b.cfg.Offset)
			}
			return ephemeral(fmt.Sprintf("❌ No messages found for %s.", date))
		case errors.As(err, &tooLarge):
			return ephemeral(fmt.Sprintf("❌ The file is too large (%.1fMB). It must be %.0fMB or less.",
				float64(tooLarge.Size)/(1<<20), float64(tooLarge.Limit)/(1<<20)))
		default:
			return ephemeral("❌ Failed to send the file: " + err.Error())
		}
	}

	return &channels.CommandResponse{
		Embed: &channels.Embed{
			Title:       "📄 Message download",
			Description: fmt.Sprintf("Messages for **%s**", art.Date),
			Color:       colorMint,
			Fields: []channels.EmbedField{
				{Name: "📊 Stats", Value: fmt.Sprintf("Messages: %d\nCharacters: %d", art.Entries, utf8.RuneCount(art.Data))},
				{Name: "💾 Usage", Value: "Download the attachment and import it into your Obsidian vault."},
			},
		},
		File: &channels.MediaMessage{Data: art.Data, Filename: art.Filename},
	}
}

func (b *Bot) cmdListNotes(ctx context.Context) *channels.CommandResponse {
	infos, err := b.exporter.List(ctx)
	if err != nil {
		return ephemeral("❌ Failed to list notes: " + err.Error())
	}
	if len(infos) == 0 {
		return ephemeral("📝 No messages have been collected yet.")
	}
	return &channels.CommandResponse{Embed: &channels.Embed{
		Title:       "📋 Collected notes",
		Description: fmt.Sprintf("Messages collected on %d days", len(infos)),
		Color:       colorPurple,
		Fields: []channels.EmbedField{
			{Name: "🕒 Latest days", Value: dateLines(infos, 10, "📄 ")},
			{Name: "💡 Usage", Value: "`/download_note YYYY-MM-DD` downloads a day's Markdown file\n`/download_note` downloads today's"},
		},
	}}
}

func dateLines(infos []dailynote.DocumentInfo, limit int, prefix string) string {
	lines := make([]string, 0, limit)
	for i, info := range infos {
		if i == limit {
			break
		}
		lines = append(lines, fmt.Sprintf("%s`%s` (%d)", prefix, info.Date, info.Entries))
	}
	return strings.Join(lines, "\n")
}

func channelMention(id string) string {
	if id == "" {
		return "not configured"
	}
	return "<#" + id + ">"
}

func channelList(ids []string) string {
	if len(ids) == 0 {
		return "not configured"
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = channelMention(id)
	}
	return strings.Join(out, ", ")
}

// untilText renders d as "Xh Ym", rounding down to the minute.
func untilText(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Minute)
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
