package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/jholhewres/notebot/pkg/notebot/channels"
	"github.com/jholhewres/notebot/pkg/notebot/news"
	"github.com/jholhewres/notebot/pkg/notebot/scheduler"
)

// replayNews answers a keyword with the most relevant stored broadcast.
// Each chat gets at most one replay per cooldown.
func (b *Bot) replayNews(ctx context.Context, msg *channels.IncomingMessage, logger *slog.Logger) {
	if b.broadcaster == nil {
		return
	}
	if !b.allowReplay(msg.ChatID) {
		logger.Debug("news replay suppressed by cooldown")
		return
	}
	hour := b.now().In(b.Zone()).Hour()
	b.reply(ctx, msg.ChatID, b.broadcaster.Digest().Replay(hour), logger)
}

func (b *Bot) allowReplay(chatID string) bool {
	if b.cfg.ReplayCooldown <= 0 {
		return true
	}
	b.replayMu.Lock()
	defer b.replayMu.Unlock()
	lim, ok := b.replayLimiter[chatID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(b.cfg.ReplayCooldown), 1)
		b.replayLimiter[chatID] = lim
	}
	return lim.AllowN(b.now(), 1)
}

// ScheduleFeeds registers one daily job per configured feed. The job ID is
// the feed name.
func (b *Bot) ScheduleFeeds(s *scheduler.Scheduler) error {
	for _, feed := range b.cfg.Feeds {
		if err := s.Add(&scheduler.Job{
			ID:          feed.Name,
			At:          feed.At,
			Description: fmt.Sprintf("%s broadcast (%s)", feed.Name, feed.Slot),
		}); err != nil {
			return fmt.Errorf("scheduling %s: %w", feed.Name, err)
		}
	}
	b.SetScheduler(s)
	return nil
}

// HandleJob is the scheduler callback: it broadcasts the feed named by the
// job.
func (b *Bot) HandleJob(ctx context.Context, job *scheduler.Job) error {
	if b.broadcaster == nil {
		return fmt.Errorf("news broadcasting is disabled")
	}
	feed, ok := b.feed(job.ID)
	if !ok {
		return fmt.Errorf("no feed named %q", job.ID)
	}
	return b.broadcaster.Broadcast(ctx, feed)
}

func (b *Bot) feed(name string) (news.Feed, bool) {
	for _, f := range b.cfg.Feeds {
		if f.Name == name {
			return f, true
		}
	}
	return news.Feed{}, false
}

// nextBroadcast returns the next scheduled broadcast after now.
func (b *Bot) nextBroadcast(now time.Time) (time.Time, bool) {
	if b.scheduler == nil {
		return time.Time{}, false
	}
	at, _, ok := b.scheduler.Next(now)
	return at, ok
}
