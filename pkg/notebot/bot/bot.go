// Package bot routes chat events to the daily note engine, the news
// broadcaster and the small reply features, and answers slash commands.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jholhewres/notebot/pkg/notebot/channels"
	"github.com/jholhewres/notebot/pkg/notebot/config"
	"github.com/jholhewres/notebot/pkg/notebot/dailynote"
	"github.com/jholhewres/notebot/pkg/notebot/metrics"
	"github.com/jholhewres/notebot/pkg/notebot/news"
	"github.com/jholhewres/notebot/pkg/notebot/scheduler"
)

// Config holds the routing rules.
type Config struct {
	// GuildID is the only server the bot acts in. Empty allows any.
	GuildID string

	NotesChannelIDs    []string
	EchoChannelIDs     []string
	GreetingChannelIDs []string
	NewsChannelID      string

	GreetingReply string
	ReactionEmoji string

	// Offset is the fixed UTC offset used for date keys and clocks.
	Offset time.Duration

	AutoExport bool

	NewsEnabled    bool
	NewsKeywords   []string
	Feeds          []news.Feed
	ReplayCooldown time.Duration
}

// ConfigFrom derives the routing rules from the loaded configuration.
func ConfigFrom(c *config.Config) (Config, error) {
	offset, err := c.Notes.Offset()
	if err != nil {
		return Config{}, err
	}
	return Config{
		GuildID:            c.Discord.GuildID,
		NotesChannelIDs:    c.Discord.NotesChannelIDs,
		EchoChannelIDs:     c.Discord.EchoChannelIDs,
		GreetingChannelIDs: c.Discord.GreetingChannelIDs,
		NewsChannelID:      c.Discord.NewsChannelID,
		GreetingReply:      c.Discord.GreetingReply,
		ReactionEmoji:      c.Discord.ReactionEmoji,
		Offset:             offset,
		AutoExport:         c.Notes.AutoExport,
		NewsEnabled:        c.News.Enabled,
		NewsKeywords:       c.News.Keywords,
		Feeds:              c.News.Feeds,
		ReplayCooldown:     c.News.ReplayCooldown,
	}, nil
}

// Deps are the collaborators a Bot drives. Broadcaster may be nil when
// news is disabled.
type Deps struct {
	Channel     channels.MediaChannel
	Notebook    *dailynote.Notebook
	Exporter    *dailynote.Exporter
	Broadcaster *news.Broadcaster
	Metrics     metrics.Recorder
}

// Bot is the event router.
type Bot struct {
	cfg         Config
	channel     channels.MediaChannel
	notebook    *dailynote.Notebook
	exporter    *dailynote.Exporter
	broadcaster *news.Broadcaster
	scheduler   *scheduler.Scheduler
	metrics     metrics.Recorder
	logger      *slog.Logger
	now         func() time.Time

	replayMu      sync.Mutex
	replayLimiter map[string]*rate.Limiter
}

// New creates a Bot.
func New(cfg Config, deps Deps, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if cfg.ReactionEmoji == "" {
		cfg.ReactionEmoji = "👍"
	}
	return &Bot{
		cfg:           cfg,
		channel:       deps.Channel,
		notebook:      deps.Notebook,
		exporter:      deps.Exporter,
		broadcaster:   deps.Broadcaster,
		metrics:       deps.Metrics,
		logger:        logger.With("component", "bot"),
		now:           time.Now,
		replayLimiter: make(map[string]*rate.Limiter),
	}
}

// SetScheduler attaches the broadcast scheduler used by news_status.
func (b *Bot) SetScheduler(s *scheduler.Scheduler) {
	b.scheduler = s
}

// Zone returns the fixed zone dates are computed in.
func (b *Bot) Zone() *time.Location { return dailynote.FixedZone(b.cfg.Offset) }

// Run consumes incoming events until ctx is done or the channel closes.
// Events are handled one at a time in arrival order.
func (b *Bot) Run(ctx context.Context) error {
	if cc, ok := b.channel.(channels.CommandChannel); ok {
		if err := cc.RegisterCommands(ctx, CommandSpecs(), b.HandleCommand); err != nil {
			return fmt.Errorf("registering commands: %w", err)
		}
	}

	b.logger.Info("bot running",
		"guild_id", b.cfg.GuildID,
		"notes_channels", len(b.cfg.NotesChannelIDs),
		"news", b.cfg.NewsEnabled,
		"auto_export", b.cfg.AutoExport)

	incoming := b.channel.Receive()
	for {
		select {
		case msg, ok := <-incoming:
			if !ok {
				return nil
			}
			b.HandleMessage(ctx, msg)
		case <-ctx.Done():
			return nil
		}
	}
}

// HandleMessage processes one event. Bot authors and other servers are
// ignored without side effects. Messages in a notes channel are captured
// and nothing else; elsewhere a news keyword takes priority over echo, and
// greeting channels always get the greeting.
func (b *Bot) HandleMessage(ctx context.Context, msg *channels.IncomingMessage) {
	if msg == nil || msg.IsBot {
		return
	}
	if !b.guildAllowed(msg.GuildID) {
		b.logger.Debug("event from other guild ignored", "guild_id", msg.GuildID)
		return
	}
	if msg.Type == channels.MessageReaction {
		b.handleReaction(ctx, msg)
		return
	}

	logger := b.logger.With("chat_id", msg.ChatID, "msg_id", msg.ID)

	if slices.Contains(b.cfg.NotesChannelIDs, msg.ChatID) {
		b.captureNote(ctx, msg, logger)
		return
	}

	switch {
	case b.cfg.NewsEnabled && news.MatchesKeyword(msg.Content, b.cfg.NewsKeywords):
		b.replayNews(ctx, msg, logger)
	case slices.Contains(b.cfg.EchoChannelIDs, msg.ChatID) && msg.Content != "":
		b.reply(ctx, msg.ChatID, msg.Content, logger)
	}

	if slices.Contains(b.cfg.GreetingChannelIDs, msg.ChatID) && b.cfg.GreetingReply != "" {
		b.reply(ctx, msg.ChatID, b.cfg.GreetingReply, logger)
	}
}

// handleReaction acknowledges the configured emoji with a quote of the
// reacted message.
func (b *Bot) handleReaction(ctx context.Context, msg *channels.IncomingMessage) {
	if msg.Reaction == nil || msg.Reaction.Emoji != b.cfg.ReactionEmoji {
		return
	}
	text := fmt.Sprintf("%s was added to the message \"%s\"!", b.cfg.ReactionEmoji, quote(msg.Content, 50))
	b.reply(ctx, msg.ChatID, text, b.logger.With("chat_id", msg.ChatID, "msg_id", msg.ID))
}

func (b *Bot) reply(ctx context.Context, chatID, text string, logger *slog.Logger) {
	if err := b.channel.Send(ctx, chatID, &channels.OutgoingMessage{Content: text}); err != nil {
		logger.Error("send failed", "error", err)
	}
}

func (b *Bot) guildAllowed(guildID string) bool {
	return b.cfg.GuildID == "" || guildID == b.cfg.GuildID
}

// quote returns the first n runes of s, with "..." when cut.
func quote(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
