package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jholhewres/notebot/pkg/notebot/channels"
	"github.com/jholhewres/notebot/pkg/notebot/dailynote"
	"github.com/jholhewres/notebot/pkg/notebot/metrics"
)

// captureNote records msg into its day's note and, when enabled, posts the
// day's document back to the channel once per date.
func (b *Bot) captureNote(ctx context.Context, msg *channels.IncomingMessage, logger *slog.Logger) {
	date, clock, err := dailynote.Normalize(msg.Timestamp, b.cfg.Offset)
	if err != nil {
		b.metrics.MessageDropped("invalid_timestamp")
		logger.Warn("message dropped", "error", err)
		return
	}

	_, err = b.notebook.Record(ctx, dailynote.NormalizedMessage{
		LocalDate:         date,
		LocalTime:         clock,
		AuthorName:        msg.FromName,
		RawContent:        msg.Content,
		MentionedUsers:    msg.Mentions,
		MentionedChannels: msg.ChannelMentions,
		MessageID:         msg.ID,
	})
	if err != nil {
		// Already logged by the notebook.
		b.metrics.MessageDropped("storage")
		return
	}
	b.metrics.MessageRecorded(date)

	if b.cfg.AutoExport {
		b.autoExport(ctx, msg.ChatID, date, logger)
	}
}

func (b *Bot) autoExport(ctx context.Context, chatID, date string, logger *slog.Logger) {
	sent, err := b.exporter.AutoExport(ctx, date, func(ctx context.Context, art *dailynote.Artifact) error {
		return b.channel.SendMedia(ctx, chatID, &channels.MediaMessage{
			Data:     art.Data,
			Filename: art.Filename,
			Caption:  fmt.Sprintf("📄 **%s** markdown generated (%d messages)", art.Date, art.Entries),
		})
	})
	switch {
	case err != nil:
		b.metrics.ExportFinished(metrics.ExportAuto, exportResult(err))
		logger.Error("auto export failed", "date", date, "error", err)
		b.reply(ctx, chatID, "❌ Failed to generate the markdown file: "+err.Error(), logger)
	case sent:
		b.metrics.ExportFinished(metrics.ExportAuto, metrics.ResultOK)
	default:
		b.metrics.ExportFinished(metrics.ExportAuto, metrics.ResultDuplicate)
	}
}

// exportResult maps an export error to a metrics label.
func exportResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, dailynote.ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, dailynote.ErrTooLarge):
		return metrics.ResultTooLarge
	default:
		return metrics.ResultError
	}
}
