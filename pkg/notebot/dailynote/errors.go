package dailynote

import (
	"errors"
	"fmt"
)

// Errors.
var (
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidDateKey   = errors.New("invalid date key: expected YYYY-MM-DD")
	ErrStorage          = errors.New("note storage failure")
	ErrNotFound         = errors.New("daily note not found")
	ErrTooLarge         = errors.New("daily note exceeds export size limit")
)

// TooLargeError reports an export whose encoded size exceeds the limit.
// It unwraps to ErrTooLarge.
type TooLargeError struct {
	Date  string
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("daily note %s is %.1f MiB, limit is %.1f MiB",
		e.Date, mib(e.Size), mib(e.Limit))
}

func (e *TooLargeError) Unwrap() error { return ErrTooLarge }

func mib(n int64) float64 { return float64(n) / (1024 * 1024) }
