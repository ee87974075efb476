package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	WindowMonth    WindowKind = "month"
	WindowYear     WindowKind = "year"
	WindowLifetime WindowKind = "lifetime"
)

type (
	WindowKind string

	// Window is an inclusive time range. A lifetime window has zero bounds.
	Window struct {
		Kind  WindowKind
		Start time.Time
		End   time.Time
	}
)

func ParseWindowKind(s string) (WindowKind, error) {
	switch k := WindowKind(strings.ToLower(strings.TrimSpace(s))); k {
	case WindowMonth, WindowYear, WindowLifetime:
		return k, nil
	case "":
		return WindowMonth, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidWindow, s)
}

// Window years are bounded so both ends fit in int64 Unix nanoseconds,
// which the SQL backends store.
const (
	MinWindowYear = 1970
	MaxWindowYear = 2261
)

func checkYear(year int) error {
	if year < MinWindowYear || year > MaxWindowYear {
		return fmt.Errorf("%w: year %d (want %d-%d)", ErrInvalidWindow, year, MinWindowYear, MaxWindowYear)
	}
	return nil
}

// StorableDate reports whether t falls inside the window year range.
func StorableDate(t time.Time) bool {
	y := t.UTC().Year()
	return y >= MinWindowYear && y <= MaxWindowYear
}

// MonthWindow spans the first to the last instant of month in loc.
func MonthWindow(year, month int, loc *time.Location) (Window, error) {
	if month < 1 || month > 12 {
		return Window{}, fmt.Errorf("%w: month %d", ErrInvalidWindow, month)
	}
	if err := checkYear(year); err != nil {
		return Window{}, err
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, locOrUTC(loc))
	return Window{Kind: WindowMonth, Start: start, End: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}, nil
}

// YearWindow spans the whole calendar year in loc.
func YearWindow(year int, loc *time.Location) (Window, error) {
	if err := checkYear(year); err != nil {
		return Window{}, err
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, locOrUTC(loc))
	return Window{Kind: WindowYear, Start: start, End: start.AddDate(1, 0, 0).Add(-time.Nanosecond)}, nil
}

func Lifetime() Window {
	return Window{Kind: WindowLifetime}
}

// ResolveWindow builds a window of kind, filling a missing month or year
// (zero) from now in loc.
func ResolveWindow(kind WindowKind, month, year int, now time.Time, loc *time.Location) (Window, error) {
	local := now.In(locOrUTC(loc))
	if year == 0 {
		year = local.Year()
	}
	if month == 0 {
		month = int(local.Month())
	}
	switch kind {
	case WindowMonth:
		return MonthWindow(year, month, loc)
	case WindowYear:
		return YearWindow(year, loc)
	case WindowLifetime:
		return Lifetime(), nil
	}
	return Window{}, fmt.Errorf("%w: %q", ErrInvalidWindow, kind)
}

// Bounded is false for the lifetime window.
func (w Window) Bounded() bool {
	return !w.Start.IsZero() || !w.End.IsZero()
}

func (w Window) Contains(t time.Time) bool {
	if !w.Bounded() {
		return true
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

// Key identifies the window in cache keys and logs.
func (w Window) Key() string {
	if !w.Bounded() {
		return string(WindowLifetime)
	}
	return fmt.Sprintf("%s:%d:%d", w.Kind, w.Start.Unix(), w.End.Unix())
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
