package dailynote

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var dateKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidateDateKey checks that date is exactly YYYY-MM-DD, names a real
// calendar day, and carries nothing usable for path traversal.
func ValidateDateKey(date string) error {
	if strings.Contains(date, "..") || strings.ContainsAny(date, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidDateKey, date)
	}
	if !dateKeyPattern.MatchString(date) {
		return fmt.Errorf("%w: %q", ErrInvalidDateKey, date)
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q is not a calendar date", ErrInvalidDateKey, date)
	}
	return nil
}

// DocumentPath derives <root>/YYYY/MM/DD/YYYY-MM-DD<ext>.
func DocumentPath(root, date, ext string) (string, error) {
	if err := ValidateDateKey(date); err != nil {
		return "", err
	}
	if ext == "" {
		ext = ".md"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(root, date[0:4], date[5:7], date[8:10], date+ext), nil
}
