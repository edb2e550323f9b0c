package news

import (
	"strings"
	"testing"
	"time"
)

func TestDigest_ReplayPriority(t *testing.T) {
	t.Parallel()

	full := NewDigest()
	full.Store(SlotMorning, "M", time.Now())
	full.Store(SlotLunch, "L", time.Now())
	full.Store(SlotEvening, "E", time.Now())

	onlyMorning := NewDigest()
	onlyMorning.Store(SlotMorning, "M", time.Now())

	onlyLunch := NewDigest()
	onlyLunch.Store(SlotLunch, "L", time.Now())

	lunchEvening := NewDigest()
	lunchEvening.Store(SlotLunch, "L", time.Now())
	lunchEvening.Store(SlotEvening, "E", time.Now())

	tests := []struct {
		name   string
		digest *Digest
		hour   int
		want   string
	}{
		{"morning prefers morning", full, 7, "📰 **Latest morning news**\nM"},
		{"noon prefers lunch", full, 12, "📰 **Latest lunchtime news**\nL"},
		{"evening prefers evening", full, 18, "📰 **Latest evening news**\nE"},
		{"small hours prefer evening", full, 3, "📰 **Latest evening news**\nE"},
		{"morning falls back to evening", lunchEvening, 9, "📰 **Last night's news**\nE"},
		{"afternoon falls back to morning", onlyMorning, 15, "📰 **This morning's news**\nM"},
		{"night falls back to lunch", onlyLunch, 23, "📰 **Today's lunchtime news**\nL"},
		{"morning falls back to lunch last", onlyLunch, 6, "📰 **Yesterday's lunchtime news**\nL"},
		{"night falls back to morning", onlyMorning, 21, "📰 **This morning's news**\nM"},
		{"empty", NewDigest(), 10, NoNewsYet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.digest.Replay(tt.hour); got != tt.want {
				t.Errorf("Replay(%d) = %q, want %q", tt.hour, got, tt.want)
			}
		})
	}
}

func TestDigest_StoreOverwrites(t *testing.T) {
	t.Parallel()
	d := NewDigest()
	at := time.Date(2025, 7, 25, 6, 0, 0, 0, time.UTC)
	d.Store(SlotMorning, "old", at)
	d.Store(SlotMorning, "new", at.Add(24*time.Hour))

	msg, sent, ok := d.Latest(SlotMorning)
	if !ok || msg != "new" || !sent.Equal(at.Add(24*time.Hour)) {
		t.Errorf("Latest = (%q, %v, %v)", msg, sent, ok)
	}
	if _, _, ok := d.Latest(SlotLunch); ok {
		t.Error("unset slot reported present")
	}
	if !strings.Contains(d.Replay(8), "new") {
		t.Error("replay should use the newest broadcast")
	}
}

func TestSlotValid(t *testing.T) {
	t.Parallel()
	for _, s := range []Slot{SlotMorning, SlotLunch, SlotEvening} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if Slot("midnight").Valid() {
		t.Error("unknown slot accepted")
	}
}
