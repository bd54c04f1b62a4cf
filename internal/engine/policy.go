package engine

import (
	"time"

	"github.com/IshaanNene/newsgoat/internal/types"
)

// Decision is the date policy's verdict on one candidate.
type Decision int

const (
	Accept Decision = iota
	Skip
	Terminate
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Skip:
		return "skip"
	case Terminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// DateWindowPolicy filters candidates against an inclusive window.
//
// Descending records that the source lists newest first. Only then does an
// item older than the window prove that no later page can match, so only
// then is Terminate returned; otherwise old items are skipped and the walk
// scans every page.
type DateWindowPolicy struct {
	Window     types.DateWindow
	Descending bool
}

// Decide classifies a listing date. An unknown date is accepted for now and
// checked again with Admits once the article page has been read.
func (p DateWindowPolicy) Decide(publishedAt *time.Time) Decision {
	if publishedAt == nil {
		return Accept
	}
	t := *publishedAt
	switch {
	case t.Before(p.Window.Start):
		if p.Descending {
			return Terminate
		}
		return Skip
	case t.After(p.Window.End):
		return Skip
	default:
		return Accept
	}
}

// Admits reports whether a resolved date lies inside the window.
func (p DateWindowPolicy) Admits(t time.Time) bool {
	return !t.IsZero() && p.Window.Contains(t)
}
