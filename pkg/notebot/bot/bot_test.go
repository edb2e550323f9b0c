package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jholhewres/notebot/pkg/notebot/channels"
	"github.com/jholhewres/notebot/pkg/notebot/config"
	"github.com/jholhewres/notebot/pkg/notebot/dailynote"
	"github.com/jholhewres/notebot/pkg/notebot/news"
	"github.com/jholhewres/notebot/pkg/notebot/scheduler"
)

const jst = 9 * time.Hour

type stubSource struct{}

func (stubSource) Fetch(_ context.Context, name, _ string) ([]news.Headline, error) {
	return []news.Headline{{Title: name + " headline", Link: "https://example.com/1"}}, nil
}

type harness struct {
	bot      *Bot
	ch       *fakeChannel
	notebook *dailynote.Notebook
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	cfg := Config{
		GuildID:            "g1",
		NotesChannelIDs:    []string{"notes"},
		EchoChannelIDs:     []string{"echo"},
		GreetingChannelIDs: []string{"hello"},
		NewsChannelID:      "news",
		GreetingReply:      "Hello! 👋",
		ReactionEmoji:      "👍",
		Offset:             jst,
		AutoExport:         true,
		NewsEnabled:        true,
		NewsKeywords:       []string{"news", "ニュース"},
		Feeds:              news.DefaultFeeds(),
		ReplayCooldown:     30 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	ch := newFakeChannel()
	nb := dailynote.New(dailynote.NewMemoryBackend(), dailynote.DefaultConfig(), testLogger())
	ex := dailynote.NewExporter(nb, nil, dailynote.ExporterConfig{Offset: jst}, testLogger())
	bc := news.NewBroadcaster(stubSource{}, ch, nil, cfg.NewsChannelID, nil, testLogger())

	b := New(cfg, Deps{Channel: ch, Notebook: nb, Exporter: ex, Broadcaster: bc}, testLogger())
	// 09:30 JST
	fixed := time.Date(2025, 7, 25, 0, 30, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }
	return &harness{bot: b, ch: ch, notebook: nb}
}

func noteMessage(id, content string, at time.Time) *channels.IncomingMessage {
	return &channels.IncomingMessage{
		ID:        id,
		Channel:   "fake",
		GuildID:   "g1",
		From:      "u1",
		FromName:  "Alice",
		ChatID:    "notes",
		Type:      channels.MessageText,
		Content:   content,
		Timestamp: at,
	}
}

func chatMessage(chatID, content string) *channels.IncomingMessage {
	return &channels.IncomingMessage{
		ID:        "m-" + chatID,
		GuildID:   "g1",
		From:      "u1",
		FromName:  "Alice",
		ChatID:    chatID,
		Type:      channels.MessageText,
		Content:   content,
		Timestamp: time.Date(2025, 7, 25, 0, 30, 0, 0, time.UTC),
	}
}

func TestBot_CaptureAndAutoExportOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	// 00:03 UTC is 09:03 JST.
	h.bot.HandleMessage(ctx, noteMessage("1", "hello <@42>", time.Date(2025, 7, 25, 0, 3, 0, 0, time.UTC)))
	h.bot.HandleMessage(ctx, noteMessage("2", "second", time.Date(2025, 7, 25, 0, 4, 0, 0, time.UTC)))

	doc, err := h.notebook.Document(ctx, "2025-07-25")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Entries != 2 {
		t.Errorf("entries = %d, want 2", doc.Entries)
	}
	if !strings.Contains(doc.Body, "**09:03** *Alice*: hello <@42>") {
		t.Errorf("body missing first entry:\n%s", doc.Body)
	}

	media := h.ch.media()
	if len(media) != 1 {
		t.Fatalf("auto exports = %d, want 1", len(media))
	}
	if media[0].Filename != "2025-07-25.md" {
		t.Errorf("filename = %q", media[0].Filename)
	}
	if !strings.Contains(media[0].Caption, "(1 messages)") {
		t.Errorf("caption = %q", media[0].Caption)
	}
	if len(h.ch.texts()) != 0 {
		t.Errorf("notes channel got chat replies: %v", h.ch.texts())
	}
}

func TestBot_LateNightMessageGoesToNextDay(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(c *Config) { c.AutoExport = false })

	// 15:30 UTC on the 24th is 00:30 JST on the 25th.
	h.bot.HandleMessage(ctx, noteMessage("1", "late", time.Date(2025, 7, 24, 15, 30, 0, 0, time.UTC)))

	if _, err := h.notebook.Document(ctx, "2025-07-25"); err != nil {
		t.Errorf("expected note on the 25th: %v", err)
	}
	if _, err := h.notebook.Document(ctx, "2025-07-24"); !errors.Is(err, dailynote.ErrNotFound) {
		t.Errorf("note on the 24th: %v", err)
	}
	if len(h.ch.media()) != 0 {
		t.Error("auto export ran while disabled")
	}
}

func TestBot_AutoExportFailureReleasesGuard(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.ch.mediaErr = errors.New("upload rejected")

	h.bot.HandleMessage(ctx, noteMessage("1", "first", time.Date(2025, 7, 25, 1, 0, 0, 0, time.UTC)))

	texts := h.ch.texts()
	if len(texts) != 1 || !strings.HasPrefix(texts[0], "❌ Failed to generate the markdown file") {
		t.Fatalf("failure notice = %v", texts)
	}

	h.ch.mediaErr = nil
	h.bot.HandleMessage(ctx, noteMessage("2", "second", time.Date(2025, 7, 25, 1, 1, 0, 0, time.UTC)))
	if media := h.ch.media(); len(media) != 1 || !strings.Contains(media[0].Caption, "(2 messages)") {
		t.Errorf("retry export = %+v", media)
	}
}

func TestBot_IgnoredEvents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	fromBot := noteMessage("1", "beep", time.Date(2025, 7, 25, 1, 0, 0, 0, time.UTC))
	fromBot.IsBot = true
	otherGuild := noteMessage("2", "hi", time.Date(2025, 7, 25, 1, 0, 0, 0, time.UTC))
	otherGuild.GuildID = "g2"
	noTime := noteMessage("3", "when?", time.Time{})

	for _, msg := range []*channels.IncomingMessage{fromBot, otherGuild, noTime, nil} {
		h.bot.HandleMessage(ctx, msg)
	}

	infos, err := h.notebook.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Errorf("notes recorded: %+v", infos)
	}
	if got := h.ch.all(); len(got) != 0 {
		t.Errorf("sent %d messages", len(got))
	}
}

func TestBot_EchoGreetingAndNews(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	h.bot.HandleMessage(ctx, chatMessage("echo", "ping"))
	h.bot.HandleMessage(ctx, chatMessage("hello", "good morning"))
	h.bot.HandleMessage(ctx, chatMessage("elsewhere", "nothing to do"))

	want := []string{"ping", "Hello! 👋"}
	got := h.ch.texts()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("texts = %q, want %q", got, want)
	}
}

func TestBot_NewsKeywordBeatsEcho(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	h.bot.HandleMessage(ctx, chatMessage("echo", "Any NEWS today?"))

	got := h.ch.texts()
	if len(got) != 1 || got[0] != news.NoNewsYet {
		t.Errorf("texts = %q, want only the no-news reply", got)
	}
}

func TestBot_NewsReplayCooldown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	start := h.bot.now()

	if err := h.bot.HandleJob(ctx, &scheduler.Job{ID: "NHK"}); err != nil {
		t.Fatal(err)
	}
	h.bot.HandleMessage(ctx, chatMessage("lobby", "ニュースある？"))
	h.bot.HandleMessage(ctx, chatMessage("lobby", "news again"))
	h.bot.now = func() time.Time { return start.Add(31 * time.Second) }
	h.bot.HandleMessage(ctx, chatMessage("lobby", "news now"))

	var replays []string
	for _, s := range h.ch.all() {
		if s.to == "lobby" {
			replays = append(replays, s.msg.Content)
		}
	}
	if len(replays) != 2 {
		t.Fatalf("replays = %d, want 2 (one suppressed)", len(replays))
	}
	if !strings.HasPrefix(replays[0], "📰 **Latest morning news**") || !strings.Contains(replays[0], "NHK headline") {
		t.Errorf("replay = %q", replays[0])
	}
}

func TestBot_Reaction(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	long := strings.Repeat("あ", 60)
	react := func(emoji, content string) *channels.IncomingMessage {
		return &channels.IncomingMessage{
			ID: "r1", GuildID: "g1", ChatID: "lobby", Type: channels.MessageReaction,
			Content: content, Reaction: &channels.ReactionInfo{Emoji: emoji, MessageID: "r1", From: "u2"},
		}
	}
	h.bot.HandleMessage(ctx, react("👍", "short"))
	h.bot.HandleMessage(ctx, react("🎉", "ignored"))
	h.bot.HandleMessage(ctx, react("👍", long))

	got := h.ch.texts()
	if len(got) != 2 {
		t.Fatalf("texts = %q", got)
	}
	if got[0] != `👍 was added to the message "short"!` {
		t.Errorf("reply = %q", got[0])
	}
	if want := strings.Repeat("あ", 50) + "..."; !strings.Contains(got[1], want) {
		t.Errorf("long reply = %q", got[1])
	}
}

func TestBot_HandleJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	if err := h.bot.HandleJob(ctx, &scheduler.Job{ID: "Yahoo! News"}); err != nil {
		t.Fatal(err)
	}
	all := h.ch.all()
	if len(all) != 1 || all[0].to != "news" || !strings.Contains(all[0].msg.Content, "Yahoo! News headline") {
		t.Errorf("broadcast = %+v", all)
	}
	if _, _, ok := h.bot.broadcaster.Digest().Latest(news.SlotLunch); !ok {
		t.Error("digest not updated")
	}

	if err := h.bot.HandleJob(ctx, &scheduler.Job{ID: "missing"}); err == nil {
		t.Error("unknown feed: expected error")
	}
}

func TestBot_Run(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.AutoExport = false })

	h.ch.in <- chatMessage("echo", "one")
	h.ch.in <- chatMessage("echo", "two")
	close(h.ch.in)

	if err := h.bot.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := h.ch.texts(); strings.Join(got, ",") != "one,two" {
		t.Errorf("texts = %q", got)
	}
	if len(h.ch.specs) != len(CommandSpecs()) || h.ch.handler == nil {
		t.Error("commands not registered")
	}
}

func TestBot_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestConfigFrom(t *testing.T) {
	c := config.DefaultConfig()
	c.Discord.GuildID = "g"
	c.Notes.UTCOffset = "-05:30"

	cfg, err := ConfigFrom(c)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GuildID != "g" || cfg.Offset != -(5*time.Hour+30*time.Minute) || !cfg.AutoExport {
		t.Errorf("cfg = %+v", cfg)
	}

	c.Notes.UTCOffset = "bogus"
	if _, err := ConfigFrom(c); err == nil {
		t.Error("expected offset error")
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 5, "abc"},
		{"abcde", 5, "abcde"},
		{"abcdef", 5, "abcde..."},
		{"日本語テキスト", 3, "日本語..."},
	}
	for _, tt := range tests {
		if got := quote(tt.in, tt.n); got != tt.want {
			t.Errorf("quote(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
