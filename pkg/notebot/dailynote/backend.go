package dailynote

import (
	"context"
	"sort"
	"time"
)

// StoredDocument is the persisted form of one daily note.
type StoredDocument struct {
	Date      string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentInfo is a lightweight listing entry.
type DocumentInfo struct {
	Date      string    `json:"date"`
	Entries   int       `json:"entries"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Backend persists daily note bodies keyed by date. Implementations do not
// interpret bodies; Notebook owns all body mutations.
type Backend interface {
	// Load returns the stored document or ErrNotFound.
	Load(ctx context.Context, date string) (*StoredDocument, error)

	// Save creates or replaces the document for doc.Date.
	Save(ctx context.Context, doc *StoredDocument) error

	// List enumerates stored documents in no particular order.
	List(ctx context.Context) ([]DocumentInfo, error)

	// Describe names the backend and its location for status output.
	Describe() string
}

func sortInfosDesc(infos []DocumentInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Date > infos[j].Date })
}
