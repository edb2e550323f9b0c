package dailynote

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	// DateLayout is the partition key format.
	DateLayout = "2006-01-02"

	// ClockLayout is the per-line time label format.
	ClockLayout = "15:04"
)

// DefaultOffset is UTC+9, the offset used by every deployment so far.
const DefaultOffset = 9 * time.Hour

var offsetPattern = regexp.MustCompile(`^([+-])(\d{1,2}):?(\d{2})$`)

// Normalize converts an event timestamp to the local calendar date and
// "HH:MM" label for a fixed UTC offset. A fixed zone is used instead of
// the tz database because the target host may not ship zone data.
func Normalize(ts time.Time, offset time.Duration) (date, clock string, err error) {
	if ts.IsZero() || ts.Unix() < 0 {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidTimestamp, ts)
	}
	local := ts.In(FixedZone(offset))
	return local.Format(DateLayout), local.Format(ClockLayout), nil
}

// Today returns the current date key at the given offset.
func Today(now time.Time, offset time.Duration) string {
	return now.In(FixedZone(offset)).Format(DateLayout)
}

// FixedZone builds a location named after its offset ("UTC+09:00").
func FixedZone(offset time.Duration) *time.Location {
	return time.FixedZone(FormatOffset(offset), int(offset/time.Second))
}

// FormatOffset renders an offset as "UTC+09:00".
func FormatOffset(offset time.Duration) string {
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return fmt.Sprintf("UTC%s%02d:%02d", sign, h, m)
}

// ParseOffset parses "+09:00", "-0530" or "+9:00". Empty input yields
// DefaultOffset.
func ParseOffset(s string) (time.Duration, error) {
	if s == "" {
		return DefaultOffset, nil
	}
	m := offsetPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid UTC offset %q (want +HH:MM)", s)
	}
	h, _ := strconv.Atoi(m[2])
	min, _ := strconv.Atoi(m[3])
	if h > 14 || min > 59 {
		return 0, fmt.Errorf("UTC offset %q out of range", s)
	}
	d := time.Duration(h)*time.Hour + time.Duration(min)*time.Minute
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}
