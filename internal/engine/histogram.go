package engine

import (
	"sort"

	"github.com/IshaanNene/newsgoat/internal/types"
)

// DateHistogram counts records per publication month and year.
type DateHistogram struct {
	Monthly map[string]int
	Yearly  map[string]int
	Undated int
}

// NewDateHistogram buckets records by their date. Zero dates are counted
// as undated.
func NewDateHistogram(records []types.Record) *DateHistogram {
	h := &DateHistogram{
		Monthly: make(map[string]int),
		Yearly:  make(map[string]int),
	}
	for _, r := range records {
		if r.Date.IsZero() {
			h.Undated++
			continue
		}
		h.Monthly[r.Date.Format("2006-01")]++
		h.Yearly[r.Date.Format("2006")]++
	}
	return h
}

// Months returns the month keys in chronological order.
func (h *DateHistogram) Months() []string {
	return sortedKeys(h.Monthly)
}

// Years returns the year keys in chronological order.
func (h *DateHistogram) Years() []string {
	return sortedKeys(h.Yearly)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
