package dailynote

import (
	"errors"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ts        time.Time
		offset    time.Duration
		wantDate  string
		wantClock string
	}{
		{"morning UTC is same day JST", time.Date(2025, 7, 25, 0, 3, 0, 0, time.UTC), DefaultOffset, "2025-07-25", "09:03"},
		{"late UTC rolls to next day", time.Date(2025, 7, 24, 15, 30, 0, 0, time.UTC), DefaultOffset, "2025-07-25", "00:30"},
		{"year boundary", time.Date(2024, 12, 31, 20, 0, 0, 0, time.UTC), DefaultOffset, "2025-01-01", "05:00"},
		{"negative offset", time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC), -5 * time.Hour, "2025-02-28", "21:00"},
		{"input zone ignored", time.Date(2025, 7, 25, 9, 3, 0, 0, time.FixedZone("X", 9*3600)), DefaultOffset, "2025-07-25", "09:03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			date, clock, err := Normalize(tt.ts, tt.offset)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if date != tt.wantDate || clock != tt.wantClock {
				t.Errorf("Normalize = (%s, %s), want (%s, %s)", date, clock, tt.wantDate, tt.wantClock)
			}
		})
	}
}

func TestNormalize_RejectsZero(t *testing.T) {
	t.Parallel()
	if _, _, err := Normalize(time.Time{}, DefaultOffset); !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("expected ErrInvalidTimestamp, got %v", err)
	}
}

func TestParseOffset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", DefaultOffset, false},
		{"+09:00", 9 * time.Hour, false},
		{"+9:00", 9 * time.Hour, false},
		{"-0530", -(5*time.Hour + 30*time.Minute), false},
		{"+00:00", 0, false},
		{"09:00", 0, true},
		{"+15:00", 0, true},
		{"+09:75", 0, true},
		{"Asia/Tokyo", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseOffset(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOffset(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseOffset(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatOffset(t *testing.T) {
	t.Parallel()
	if got := FormatOffset(DefaultOffset); got != "UTC+09:00" {
		t.Errorf("FormatOffset = %q", got)
	}
	if got := FormatOffset(-(3*time.Hour + 30*time.Minute)); got != "UTC-03:30" {
		t.Errorf("FormatOffset = %q", got)
	}
}
