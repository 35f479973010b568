package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the canonical calendar date format used in storage and cache keys.
	DateLayout = "2006-01-02"
	// FeedDateLayout is the compact form used by feed file names.
	FeedDateLayout = "20060102"
)

// ErrInvalidDate is returned when a value is neither YYYY-MM-DD nor YYYYMMDD.
var ErrInvalidDate = errors.New("invalid date")

// ParseDate accepts YYYY-MM-DD or YYYYMMDD and returns the date at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layout := DateLayout
	if len(s) == len(FeedDateLayout) && !strings.Contains(s, "-") {
		layout = FeedDateLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, s, err)
	}
	return t, nil
}

// NormalizeDate converts either accepted layout into YYYY-MM-DD.
func NormalizeDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return FormatDate(t), nil
}

// FormatDate renders the calendar date of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Today returns the current calendar date in UTC.
func Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
