package date

import (
	"errors"
	"strings"
	"time"
)

// Epoch is the watermark of an entity that has no persisted state yet.
var Epoch = time.Unix(0, 0).UTC()

// DefaultFarFuture is the `_valid_until` value of open versions unless the project overrides it.
const DefaultFarFuture = "9999-12-31 23:59:59"

var allowedFormats = []string{
	"2006-01-02 15:04:05.000000Z07:00",
	"2006-01-02T15:04:05.000000Z07:00",
	"2006-01-02 15:04:05.000000",
	"2006-01-02T15:04:05.000000",
	"2006-01-02 15:04:05.000Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"02 Jan 2006 15:04:05.000Z07:00",
	"02 Jan 2006 15:04:05Z07:00",
	"02 Jan 2006 15:04Z07:00",
	"02 Jan 2006",
	time.RFC3339Nano,
}

// ParseTime parses the given input with the first matching layout and normalizes it to UTC.
func ParseTime(input string) (time.Time, error) {
	t, _, err := ParseTimeWithFormat(input)
	return t, err
}

func ParseTimeWithFormat(input string) (time.Time, string, error) {
	input = strings.TrimSpace(input)
	for _, format := range allowedFormats {
		t, err := time.Parse(format, input)
		if err == nil {
			return t.UTC(), format, nil
		}
	}

	return time.Time{}, "", errors.New("invalid datetime format")
}

// TruncateToDate drops the time-of-day component, keeping the value in UTC.
func TruncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Max returns the later of the two timestamps.
func Max(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
