package shared

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date wire format used everywhere.
const DateLayout = "2006-01-02"

// MonthLayout is the calendar-month key format ("YYYY-MM").
const MonthLayout = "2006-01"

// Epoch is the first month with recorded data. Carry-forward walks and the
// daily snapshot fold both terminate here with an implicit zero balance.
const Epoch = "2025-11"

// EpochDate is the first calendar day of the epoch month.
var EpochDate = time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)

// ParseDate parses an ISO calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("shared: parse date %q: %w", s, err)
	}
	return t, nil
}

// ParseMonth parses a "YYYY-MM" month key.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("shared: parse month %q: %w", s, err)
	}
	return t, nil
}

// MonthOf returns the month key covering the supplied date.
func MonthOf(date time.Time) string {
	return date.Format(MonthLayout)
}

// MonthOfString returns the month key for an ISO date string.
func MonthOfString(date string) string {
	if len(date) >= 7 {
		return date[:7]
	}
	return date
}

// MonthStart returns the first day of the month identified by key.
func MonthStart(month string) (time.Time, error) {
	return ParseMonth(month)
}

// MonthEnd returns the last day of the month identified by key.
func MonthEnd(month string) (time.Time, error) {
	start, err := ParseMonth(month)
	if err != nil {
		return time.Time{}, err
	}
	return start.AddDate(0, 1, -1), nil
}

// PrevMonth returns the month key immediately before month.
func PrevMonth(month string) (string, error) {
	t, err := ParseMonth(month)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, -1, 0).Format(MonthLayout), nil
}

// NextMonth returns the month key immediately after month.
func NextMonth(month string) (string, error) {
	t, err := ParseMonth(month)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 1, 0).Format(MonthLayout), nil
}

// MonthsBack reports how many whole months month lies after Epoch. Negative
// means the month predates any recorded data.
func MonthsBack(month string) (int, error) {
	t, err := ParseMonth(month)
	if err != nil {
		return 0, err
	}
	e, _ := ParseMonth(Epoch)
	return (t.Year()-e.Year())*12 + int(t.Month()) - int(e.Month()), nil
}
