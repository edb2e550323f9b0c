package dailynote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxExportBytes matches the chat platform's attachment ceiling.
const DefaultMaxExportBytes int64 = 24 * 1024 * 1024

// Artifact is a downloadable export of one daily note.
type Artifact struct {
	ID       string
	Date     string
	Filename string
	Data     []byte
	Entries  int
}

// Size returns the encoded size in bytes.
func (a *Artifact) Size() int64 { return int64(len(a.Data)) }

// ExporterConfig configures an Exporter.
type ExporterConfig struct {
	MaxBytes  int64
	Extension string
	Offset    time.Duration
}

// Exporter produces downloadable artifacts and listings on request.
type Exporter struct {
	notebook *Notebook
	guard    *SendGuard
	cfg      ExporterConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewExporter creates an Exporter. A nil guard gets a fresh one.
func NewExporter(notebook *Notebook, guard *SendGuard, cfg ExporterConfig, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if guard == nil {
		guard = NewSendGuard()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxExportBytes
	}
	if cfg.Extension == "" {
		cfg.Extension = ".md"
	}
	if !strings.HasPrefix(cfg.Extension, ".") {
		cfg.Extension = "." + cfg.Extension
	}
	return &Exporter{
		notebook: notebook,
		guard:    guard,
		cfg:      cfg,
		logger:   logger.With("component", "exporter"),
		now:      time.Now,
	}
}

// Guard returns the duplicate-send guard.
func (e *Exporter) Guard() *SendGuard { return e.guard }

// Today returns the current date key at the configured offset.
func (e *Exporter) Today() string { return Today(e.now(), e.cfg.Offset) }

// Export reads date's document (today when empty) and returns it as an
// artifact. It fails with ErrInvalidDateKey, ErrNotFound, or a
// *TooLargeError; oversized documents are never truncated.
func (e *Exporter) Export(ctx context.Context, date string) (*Artifact, error) {
	if date == "" {
		date = e.Today()
	}
	doc, err := e.notebook.Document(ctx, date)
	if err != nil {
		return nil, err
	}
	data := []byte(doc.Body)
	if size := int64(len(data)); size > e.cfg.MaxBytes {
		return nil, &TooLargeError{Date: date, Size: size, Limit: e.cfg.MaxBytes}
	}
	return &Artifact{
		ID:       uuid.NewString(),
		Date:     date,
		Filename: date + e.cfg.Extension,
		Data:     data,
		Entries:  doc.Entries,
	}, nil
}

// ExportManual serves an explicit user request. It bypasses the guard and
// clears it afterwards so the next auto-export for date regenerates.
func (e *Exporter) ExportManual(ctx context.Context, date string) (*Artifact, error) {
	art, err := e.Export(ctx, date)
	if err != nil {
		e.logger.Warn("manual export failed", "date", date, "error", err)
		return nil, err
	}
	e.guard.ClearExported(art.Date)
	e.logger.Info("manual export",
		"export_id", art.ID, "date", art.Date, "entries", art.Entries, "bytes", art.Size())
	return art, nil
}

// AutoExport exports date at most once per process lifetime. ok is false
// when the guard already holds date. deliver is called with the artifact;
// if export or delivery fails the reservation is released.
func (e *Exporter) AutoExport(ctx context.Context, date string, deliver func(context.Context, *Artifact) error) (ok bool, err error) {
	if !e.guard.ShouldAutoExport(date) {
		e.logger.Debug("auto export skipped, already sent", "date", date)
		return false, nil
	}
	art, err := e.Export(ctx, date)
	if err == nil && deliver != nil {
		err = deliver(ctx, art)
	}
	if err != nil {
		e.guard.ClearExported(date)
		return false, fmt.Errorf("auto export %s: %w", date, err)
	}
	e.logger.Info("auto export",
		"export_id", art.ID, "date", date, "entries", art.Entries, "bytes", art.Size())
	return true, nil
}

// List returns every known document, newest first.
func (e *Exporter) List(ctx context.Context) ([]DocumentInfo, error) {
	return e.notebook.List(ctx)
}
