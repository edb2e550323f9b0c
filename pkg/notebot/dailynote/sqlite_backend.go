package dailynote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteBackend stores note bodies in the notes table created by
// database.Migrate.
type SQLiteBackend struct {
	db   *sql.DB
	name string
}

// NewSQLiteBackend wraps an open database. name is only used by Describe.
func NewSQLiteBackend(db *sql.DB, name string) *SQLiteBackend {
	return &SQLiteBackend{db: db, name: name}
}

func (s *SQLiteBackend) Load(ctx context.Context, date string) (*StoredDocument, error) {
	var (
		doc                  StoredDocument
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT date, body, created_at, updated_at FROM notes WHERE date = ?`, date,
	).Scan(&doc.Date, &doc.Body, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load note %s: %w", date, err)
	}
	doc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	doc.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &doc, nil
}

func (s *SQLiteBackend) Save(ctx context.Context, doc *StoredDocument) error {
	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := doc.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (date, body, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		doc.Date,
		doc.Body,
		created.UTC().Format(time.RFC3339),
		updated.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save note %s: %w", doc.Date, err)
	}
	return nil
}

func (s *SQLiteBackend) List(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, body, created_at FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var infos []DocumentInfo
	for rows.Next() {
		var date, body, createdAt string
		if err := rows.Scan(&date, &body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		created, _ := time.Parse(time.RFC3339, createdAt)
		infos = append(infos, DocumentInfo{
			Date:      date,
			Entries:   CountEntries(body),
			Size:      int64(len(body)),
			CreatedAt: created,
		})
	}
	return infos, rows.Err()
}

func (s *SQLiteBackend) Describe() string { return "sqlite:" + s.name }
