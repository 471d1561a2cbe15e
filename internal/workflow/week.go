package workflow

import (
	"fmt"
	"time"
)

// Week identifies an ISO-8601 week (weeks start on Monday).
type Week struct {
	Year   int
	Number int
}

// WeekOf returns the ISO week containing the calendar date of t.
func WeekOf(t time.Time) Week {
	y, w := t.ISOWeek()
	return Week{Year: y, Number: w}
}

// ParseWeek accepts keys in the form "2026-W42".
func ParseWeek(key string) (Week, error) {
	var w Week
	if _, err := fmt.Sscanf(key, "%4d-W%2d", &w.Year, &w.Number); err != nil || w.Key() != key {
		return Week{}, fmt.Errorf("invalid week key %q: expected YYYY-Www", key)
	}
	if err := w.Validate(); err != nil {
		return Week{}, err
	}
	return w, nil
}

// Validate rejects week numbers the year does not have.
func (w Week) Validate() error {
	if w.Year < 1970 || w.Year > 9999 || w.Number < 1 || w.Number > 53 {
		return fmt.Errorf("invalid iso week %d-W%02d", w.Year, w.Number)
	}
	if WeekOf(w.Start()) != w {
		return fmt.Errorf("year %d has no iso week %d", w.Year, w.Number)
	}
	return nil
}

// Key renders the canonical "YYYY-Www" form.
func (w Week) Key() string {
	return fmt.Sprintf("%04d-W%02d", w.Year, w.Number)
}

// String implements fmt.Stringer.
func (w Week) String() string {
	return w.Key()
}

// Start is the Monday of the week as a UTC date.
func (w Week) Start() time.Time {
	// January 4th always falls in week 1.
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -offset+(w.Number-1)*7)
}

// End is the Sunday of the week as a UTC date.
func (w Week) End() time.Time {
	return w.Start().AddDate(0, 0, 6)
}

// Contains reports whether the calendar date of t falls within the week.
func (w Week) Contains(t time.Time) bool {
	d := DateOf(t)
	return !d.Before(w.Start()) && !d.After(w.End())
}

// DateOf truncates t to its calendar date, expressed in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MondayOf returns the Monday of the calendar week containing t, as a UTC date.
func MondayOf(t time.Time) time.Time {
	d := DateOf(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
