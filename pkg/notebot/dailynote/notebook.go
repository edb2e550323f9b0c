// Package dailynote turns a stream of timestamped chat messages into one
// appendable Markdown document per local calendar day.
//
// A Notebook owns every document body: it creates the template on first
// write, computes the next entry number from the current body, splices new
// lines in, and hands the result to a Backend (memory, vault files, or
// SQLite). Appends to the same date are serialized.
package dailynote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Config controls document shape.
type Config struct {
	Layout           Layout
	Style            LineStyle
	MaxContentLength int
}

// DefaultConfig returns the structured, plain-line configuration.
func DefaultConfig() Config {
	return Config{
		Layout:           LayoutStructured,
		Style:            StylePlain,
		MaxContentLength: DefaultMaxContentLength,
	}
}

// Document is a snapshot of one daily note.
type Document struct {
	Date      string
	Body      string
	Entries   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Notebook is the daily note aggregation engine.
type Notebook struct {
	backend   Backend
	cfg       Config
	formatter Formatter
	locks     *keyedMutex
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Notebook over backend.
func New(backend Backend, cfg Config, logger *slog.Logger) *Notebook {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Layout == "" {
		cfg.Layout = LayoutStructured
	}
	if cfg.Style == "" {
		cfg.Style = StylePlain
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = DefaultMaxContentLength
	}
	return &Notebook{
		backend:   backend,
		cfg:       cfg,
		formatter: Formatter{Style: cfg.Style, MaxContentLength: cfg.MaxContentLength},
		locks:     newKeyedMutex(),
		logger:    logger.With("component", "notebook"),
		now:       time.Now,
	}
}

// Backend returns the storage backend.
func (n *Notebook) Backend() Backend { return n.backend }

// Config returns the document configuration.
func (n *Notebook) Config() Config { return n.cfg }

// Record formats msg and appends it to its date's document, creating the
// document from the template on first write. It returns the line written.
// Storage failures are logged and returned wrapped in ErrStorage; the
// message is not retried.
func (n *Notebook) Record(ctx context.Context, msg NormalizedMessage) (string, error) {
	if err := ValidateDateKey(msg.LocalDate); err != nil {
		return "", err
	}
	unlock := n.locks.Lock(msg.LocalDate)
	defer unlock()

	doc, err := n.loadOrCreate(ctx, msg.LocalDate)
	if err != nil {
		return "", n.dropped(msg.LocalDate, msg.MessageID, err)
	}
	line := n.formatter.Format(msg, CountEntries(doc.Body)+1)
	if err := n.write(ctx, doc, line); err != nil {
		return "", n.dropped(msg.LocalDate, msg.MessageID, err)
	}
	n.logger.Debug("entry recorded", "date", msg.LocalDate, "message_id", msg.MessageID)
	return line, nil
}

// Append inserts an already formatted line into date's document.
func (n *Notebook) Append(ctx context.Context, date, line string) error {
	if err := ValidateDateKey(date); err != nil {
		return err
	}
	unlock := n.locks.Lock(date)
	defer unlock()

	doc, err := n.loadOrCreate(ctx, date)
	if err != nil {
		return n.dropped(date, "", err)
	}
	if err := n.write(ctx, doc, line); err != nil {
		return n.dropped(date, "", err)
	}
	return nil
}

// NextSequenceNumber scans the current body and returns entries+1, or 1
// when the date has no document yet.
func (n *Notebook) NextSequenceNumber(ctx context.Context, date string) (int, error) {
	if err := ValidateDateKey(date); err != nil {
		return 0, err
	}
	doc, err := n.backend.Load(ctx, date)
	if errors.Is(err, ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return CountEntries(doc.Body) + 1, nil
}

// Document returns the stored note for date or ErrNotFound.
func (n *Notebook) Document(ctx context.Context, date string) (*Document, error) {
	if err := ValidateDateKey(date); err != nil {
		return nil, err
	}
	unlock := n.locks.Lock(date)
	defer unlock()

	doc, err := n.backend.Load(ctx, date)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, date)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &Document{
		Date:      doc.Date,
		Body:      doc.Body,
		Entries:   CountEntries(doc.Body),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// List returns every known document, newest date first. It never mutates
// state.
func (n *Notebook) List(ctx context.Context) ([]DocumentInfo, error) {
	infos, err := n.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	sortInfosDesc(infos)
	return infos, nil
}

// loadOrCreate returns the stored document, or a fresh template body that
// has not been saved yet.
func (n *Notebook) loadOrCreate(ctx context.Context, date string) (*StoredDocument, error) {
	doc, err := n.backend.Load(ctx, date)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	now := n.now()
	n.logger.Info("creating daily note", "date", date, "backend", n.backend.Describe())
	return &StoredDocument{
		Date:      date,
		Body:      NewDocumentBody(n.cfg.Layout, date),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (n *Notebook) write(ctx context.Context, doc *StoredDocument, line string) error {
	doc.Body = InsertEntry(n.cfg.Layout, doc.Body, line)
	doc.UpdatedAt = n.now()
	return n.backend.Save(ctx, doc)
}

func (n *Notebook) dropped(date, messageID string, err error) error {
	n.logger.Error("daily note write failed, dropping message",
		"date", date, "message_id", messageID, "error", err)
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
