package dailynote

import "sync"

// SendGuard remembers which dates have had their full document exported
// automatically during this process lifetime.
type SendGuard struct {
	mu   sync.Mutex
	sent map[string]struct{}
}

// NewSendGuard creates an empty guard.
func NewSendGuard() *SendGuard {
	return &SendGuard{sent: make(map[string]struct{})}
}

// ShouldAutoExport reports whether date may be auto-exported and, if so,
// reserves it. Only the first call for a date returns true until
// ClearExported is called.
func (g *SendGuard) ShouldAutoExport(date string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sent[date]; ok {
		return false
	}
	g.sent[date] = struct{}{}
	return true
}

// MarkExported records date as exported.
func (g *SendGuard) MarkExported(date string) {
	g.mu.Lock()
	g.sent[date] = struct{}{}
	g.mu.Unlock()
}

// ClearExported forgets date so the next auto-export regenerates it.
func (g *SendGuard) ClearExported(date string) {
	g.mu.Lock()
	delete(g.sent, date)
	g.mu.Unlock()
}

// Exported reports whether date is currently marked.
func (g *SendGuard) Exported(date string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.sent[date]
	return ok
}
