package news

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jholhewres/notebot/pkg/notebot/channels"
	"github.com/jholhewres/notebot/pkg/notebot/metrics"
)

// Feed is one scheduled broadcast source.
type Feed struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	At       string `yaml:"at"`
	Slot     Slot   `yaml:"slot"`
	Greeting string `yaml:"greeting"`
}

// DefaultFeeds are the three daily broadcasts.
func DefaultFeeds() []Feed {
	return []Feed{
		{
			Name:     "NHK",
			URL:      "https://www.nhk.or.jp/rss/news/cat0.xml",
			At:       "06:00",
			Slot:     SlotMorning,
			Greeting: "🌅 Good morning! Here are today's top stories",
		},
		{
			Name:     "Yahoo! News",
			URL:      "https://news.yahoo.co.jp/rss/topics/top-picks.xml",
			At:       "12:00",
			Slot:     SlotLunch,
			Greeting: "🍽️ Here is the lunchtime news",
		},
		{
			Name:     "Google News",
			URL:      "https://news.google.com/rss?hl=ja&gl=JP&ceid=JP:ja",
			At:       "18:00",
			Slot:     SlotEvening,
			Greeting: "🌇 Here is the evening news",
		},
	}
}

// HeadlineSource is satisfied by *Fetcher.
type HeadlineSource interface {
	Fetch(ctx context.Context, name, url string) ([]Headline, error)
}

// Poster is the part of a channel a Broadcaster needs.
type Poster interface {
	Send(ctx context.Context, to string, message *channels.OutgoingMessage) error
}

// Broadcaster posts feed summaries to the news channel and keeps the
// digest used for keyword replays.
type Broadcaster struct {
	source    HeadlineSource
	poster    Poster
	digest    *Digest
	channelID string
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewBroadcaster creates a Broadcaster posting to channelID.
func NewBroadcaster(source HeadlineSource, poster Poster, digest *Digest, channelID string, rec metrics.Recorder, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	if digest == nil {
		digest = NewDigest()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Broadcaster{
		source:    source,
		poster:    poster,
		digest:    digest,
		channelID: channelID,
		metrics:   rec,
		logger:    logger.With("component", "broadcaster"),
		now:       time.Now,
	}
}

// Digest returns the replay digest.
func (b *Broadcaster) Digest() *Digest { return b.digest }

// ChannelID returns the broadcast destination.
func (b *Broadcaster) ChannelID() string { return b.channelID }

// Broadcast fetches feed, posts the composed message and stores it in the
// digest. A fetch failure still posts, with the failure line in place of
// the headlines; only a send failure is returned.
func (b *Broadcaster) Broadcast(ctx context.Context, feed Feed) error {
	items, fetchErr := b.source.Fetch(ctx, feed.Name, feed.URL)
	message := ComposeBroadcast(feed.Greeting, feed.Name, items, fetchErr)

	if err := b.poster.Send(ctx, b.channelID, &channels.OutgoingMessage{Content: message}); err != nil {
		b.logger.Error("broadcast send failed", "feed", feed.Name, "slot", feed.Slot, "error", err)
		return fmt.Errorf("broadcast %s: %w", feed.Name, err)
	}

	b.digest.Store(feed.Slot, message, b.now())
	b.metrics.BroadcastSent(string(feed.Slot))
	b.logger.Info("broadcast sent", "feed", feed.Name, "slot", feed.Slot, "items", len(items), "fetch_ok", fetchErr == nil)
	return nil
}
