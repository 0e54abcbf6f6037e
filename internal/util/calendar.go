package util

import (
	"fmt"
	"time"

	"github.com/ncruces/go-strftime"
)

// DateFormatError reports a date string that does not match its strftime
// format.
type DateFormatError struct {
	Value  string
	Format string
	Err    error
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("date %q does not match format %q: %v", e.Value, e.Format, e.Err)
}

func (e *DateFormatError) Unwrap() error { return e.Err }

// ParseDate parses value with a strftime format such as "%Y-%m-%d".
func ParseDate(value, format string) (time.Time, error) {
	t, err := strftime.Parse(format, value)
	if err != nil {
		return time.Time{}, &DateFormatError{Value: value, Format: format, Err: err}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// FormatDate renders t with a strftime format.
func FormatDate(t time.Time, format string) string {
	return strftime.Format(format, t)
}

// PrevTradingDay returns the trading day before t. Weekends are skipped
// without consulting a holiday calendar: Monday goes back to Friday, Sunday
// back to Friday, every other day back one day.
func PrevTradingDay(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Monday:
		return t.AddDate(0, 0, -3)
	case time.Sunday:
		return t.AddDate(0, 0, -2)
	default:
		return t.AddDate(0, 0, -1)
	}
}

// TradingWindow returns [previous trading day, date], both rendered in
// format. It is the minimal span needed to compute a day-over-day change for
// date.
func TradingWindow(date, format string) ([]string, error) {
	d, err := ParseDate(date, format)
	if err != nil {
		return nil, err
	}
	return []string{FormatDate(PrevTradingDay(d), format), FormatDate(d, format)}, nil
}

// IsWeekday reports whether t falls on Monday through Friday.
func IsWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// ListDates returns the trading window for date when singleDay is set.
// Otherwise it lists every weekday from the previous trading day of date
// through today, inclusive.
func ListDates(date, format string, singleDay bool, today time.Time) ([]string, error) {
	if singleDay {
		return TradingWindow(date, format)
	}

	d, err := ParseDate(date, format)
	if err != nil {
		return nil, err
	}
	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	var dates []string
	for cur := PrevTradingDay(d); !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		if IsWeekday(cur) {
			dates = append(dates, FormatDate(cur, format))
		}
	}
	return dates, nil
}

// looseLayouts are the date spellings NormalizeDate accepts.
var looseLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006/01/02",
	"02.01.2006",
	time.RFC3339,
}

// NormalizeDate parses a loosely written date and renders it in the strftime
// format. It reports false when raw matches none of the accepted layouts.
func NormalizeDate(raw, format string) (string, bool) {
	for _, layout := range looseLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return FormatDate(t, format), true
		}
	}
	return "", false
}
