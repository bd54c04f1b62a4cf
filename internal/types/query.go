package types

import (
	"fmt"
	"strings"
	"time"
)

// DateWindow is an inclusive [Start, End] publication window.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// NewDateWindow validates and returns a window.
func NewDateWindow(start, end time.Time) (DateWindow, error) {
	if start.IsZero() || end.IsZero() {
		return DateWindow{}, fmt.Errorf("%w: both bounds are required", ErrInvalidWindow)
	}
	if start.After(end) {
		return DateWindow{}, fmt.Errorf("%w: start %s is after end %s",
			ErrInvalidWindow, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return DateWindow{Start: start, End: end}, nil
}

// Contains reports whether t falls inside the window, bounds included.
func (w DateWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w DateWindow) String() string {
	return w.Start.Format(time.DateOnly) + ".." + w.End.Format(time.DateOnly)
}

// DurationUnit is the unit of a relative date window.
type DurationUnit string

const (
	UnitDay   DurationUnit = "day"
	UnitWeek  DurationUnit = "week"
	UnitMonth DurationUnit = "month"
	UnitYear  DurationUnit = "year"
)

// ParseDurationUnit accepts singular or plural unit names.
func ParseDurationUnit(s string) (DurationUnit, error) {
	u := DurationUnit(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	switch u {
	case UnitDay, UnitWeek, UnitMonth, UnitYear:
		return u, nil
	}
	return "", fmt.Errorf("invalid duration unit %q (valid: day, week, month, year)", s)
}

// Days converts count units into days. Months are 30 days and years 365.
func (u DurationUnit) Days(count int) int {
	switch u {
	case UnitWeek:
		return count * 7
	case UnitMonth:
		return count * 30
	case UnitYear:
		return count * 365
	default:
		return count
	}
}

// RelativeWindow returns the window of count units ending at end.
func RelativeWindow(unit DurationUnit, count int, end time.Time) (DateWindow, error) {
	if count < 1 {
		return DateWindow{}, fmt.Errorf("%w: count must be >= 1, got %d", ErrInvalidWindow, count)
	}
	return NewDateWindow(end.AddDate(0, 0, -unit.Days(count)), end)
}

// SearchQuery describes one crawl run. It is not mutated once the run starts.
type SearchQuery struct {
	Keyword    string
	Window     DateWindow
	MaxPages   int  // 0 means unbounded
	MaxResults int  // accepted candidates to stop at; 0 means unbounded
	Parallel   bool // resolve article bodies with the bounded worker pool
}

// Validate checks the query before a run starts.
func (q SearchQuery) Validate() error {
	if strings.TrimSpace(q.Keyword) == "" {
		return ErrEmptyKeyword
	}
	if _, err := NewDateWindow(q.Window.Start, q.Window.End); err != nil {
		return err
	}
	if q.MaxPages < 0 {
		return fmt.Errorf("max pages must be >= 0, got %d", q.MaxPages)
	}
	if q.MaxResults < 0 {
		return fmt.Errorf("max results must be >= 0, got %d", q.MaxResults)
	}
	return nil
}
