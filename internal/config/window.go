package config

import (
	"fmt"
	"time"

	"github.com/IshaanNene/newsgoat/internal/types"
)

// WindowFlags is the CLI surface for the date window: either an explicit
// From/To pair (YYYY-MM-DD) or Last units ending at To (or now).
type WindowFlags struct {
	From string
	To   string
	Last int
	Unit string
}

// ResolveWindow turns WindowFlags into a validated DateWindow in loc. The
// end date covers the whole day.
func ResolveWindow(f WindowFlags, now time.Time, loc *time.Location) (types.DateWindow, error) {
	if loc == nil {
		loc = time.UTC
	}

	end := now.In(loc)
	if f.To != "" {
		day, err := time.ParseInLocation(time.DateOnly, f.To, loc)
		if err != nil {
			return types.DateWindow{}, fmt.Errorf("%w: --to %q: expected YYYY-MM-DD", types.ErrInvalidWindow, f.To)
		}
		end = endOfDay(day)
	}

	switch {
	case f.From != "" && f.Last > 0:
		return types.DateWindow{}, fmt.Errorf("%w: use either --from or --last, not both", types.ErrInvalidWindow)
	case f.From != "":
		start, err := time.ParseInLocation(time.DateOnly, f.From, loc)
		if err != nil {
			return types.DateWindow{}, fmt.Errorf("%w: --from %q: expected YYYY-MM-DD", types.ErrInvalidWindow, f.From)
		}
		return types.NewDateWindow(start, end)
	case f.Last > 0:
		unit, err := types.ParseDurationUnit(f.Unit)
		if err != nil {
			return types.DateWindow{}, fmt.Errorf("%w: %v", types.ErrInvalidWindow, err)
		}
		return types.RelativeWindow(unit, f.Last, end)
	default:
		return types.DateWindow{}, fmt.Errorf("%w: provide --from or --last", types.ErrInvalidWindow)
	}
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
