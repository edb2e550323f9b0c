package dailynote

import (
	"context"
	"sync"
)

// MemoryBackend keeps documents in process memory. State is lost on
// restart.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string]StoredDocument
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string]StoredDocument)}
}

func (m *MemoryBackend) Load(_ context.Context, date string) (*StoredDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[date]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (m *MemoryBackend) Save(_ context.Context, doc *StoredDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.Date] = *doc
	return nil
}

func (m *MemoryBackend) List(_ context.Context) ([]DocumentInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]DocumentInfo, 0, len(m.docs))
	for _, doc := range m.docs {
		infos = append(infos, DocumentInfo{
			Date:      doc.Date,
			Entries:   CountEntries(doc.Body),
			Size:      int64(len(doc.Body)),
			CreatedAt: doc.CreatedAt,
		})
	}
	return infos, nil
}

func (m *MemoryBackend) Describe() string { return "memory" }
