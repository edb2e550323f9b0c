package news

import (
	"fmt"
	"sync"
	"time"
)

// Slot names a broadcast time of day.
type Slot string

const (
	SlotMorning Slot = "morning"
	SlotLunch   Slot = "lunch"
	SlotEvening Slot = "evening"
)

// Valid reports whether s is a known slot.
func (s Slot) Valid() bool {
	return s == SlotMorning || s == SlotLunch || s == SlotEvening
}

// NoNewsYet is the replay answer before the first broadcast.
const NoNewsYet = "📰 No news has been broadcast yet. Please check back later."

type replayChoice struct {
	slot  Slot
	label string
}

// Replay priorities by time of day. Labels describe how old the replayed
// broadcast is relative to the request.
var (
	morningPriority = []replayChoice{
		{SlotMorning, "Latest morning news"},
		{SlotEvening, "Last night's news"},
		{SlotLunch, "Yesterday's lunchtime news"},
	}
	afternoonPriority = []replayChoice{
		{SlotLunch, "Latest lunchtime news"},
		{SlotMorning, "This morning's news"},
		{SlotEvening, "Last night's news"},
	}
	nightPriority = []replayChoice{
		{SlotEvening, "Latest evening news"},
		{SlotLunch, "Today's lunchtime news"},
		{SlotMorning, "This morning's news"},
	}
)

// Digest remembers the latest broadcast per slot for the process lifetime.
type Digest struct {
	mu     sync.RWMutex
	latest map[Slot]string
	sentAt map[Slot]time.Time
}

// NewDigest creates an empty digest.
func NewDigest() *Digest {
	return &Digest{
		latest: make(map[Slot]string),
		sentAt: make(map[Slot]time.Time),
	}
}

// Store records message as the latest broadcast for slot.
func (d *Digest) Store(slot Slot, message string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.latest[slot] = message
	d.sentAt[slot] = at
}

// Latest returns the stored broadcast for slot.
func (d *Digest) Latest(slot Slot) (message string, at time.Time, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	message, ok = d.latest[slot]
	return message, d.sentAt[slot], ok
}

// Replay picks the broadcast to repeat for a request at local hour and
// renders it with its label, or NoNewsYet.
func (d *Digest) Replay(hour int) string {
	var order []replayChoice
	switch {
	case hour >= 6 && hour < 12:
		order = morningPriority
	case hour >= 12 && hour < 18:
		order = afternoonPriority
	default:
		order = nightPriority
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range order {
		if msg, ok := d.latest[c.slot]; ok {
			return fmt.Sprintf("📰 **%s**\n%s", c.label, msg)
		}
	}
	return NoNewsYet
}
