package store

import (
	"errors"
	"time"
)

// NullableString converts an empty string to a SQL NULL argument.
func NullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// NullableTime converts a nil time pointer to a SQL NULL argument.
func NullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

// NullableInt64 converts a nil int64 pointer to a SQL NULL argument.
func NullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

// BoolToInt converts a bool to SQLite's integer representation.
func BoolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// ParseTimeString parses the timestamp formats the store writes.
func ParseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// FormatTime renders a timestamp the way the store persists them.
func FormatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}
