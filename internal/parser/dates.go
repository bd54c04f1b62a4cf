package parser

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/IshaanNene/newsgoat/internal/types"
)

// DefaultDateLayouts cover the listing and article formats seen on
// Indonesian portals once month names are translated.
var DefaultDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2 January 2006 15:04:05",
	"2 January 2006 15:04",
	"2 January 2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2/1/2006 15:04",
	"2/1/2006",
	"02-01-2006 15:04",
	"02-01-2006",
}

var errNoLayout = errors.New("no layout matched")

var monthNames = map[string]string{
	"januari": "January", "jan": "January", "january": "January",
	"februari": "February", "pebruari": "February", "feb": "February", "february": "February",
	"maret": "March", "mar": "March", "march": "March",
	"april": "April", "apr": "April",
	"mei": "May", "may": "May",
	"juni": "June", "jun": "June", "june": "June",
	"juli": "July", "jul": "July", "july": "July",
	"agustus": "August", "agu": "August", "agt": "August", "aug": "August", "august": "August",
	"september": "September", "sep": "September", "sept": "September",
	"oktober": "October", "okt": "October", "oct": "October", "october": "October",
	"november": "November", "nov": "November", "nopember": "November",
	"desember": "December", "des": "December", "dec": "December", "december": "December",
}

// zoneTokens are timezone labels that carry no offset information the
// configured location does not already provide.
var zoneTokens = map[string]bool{"wib": true, "wita": true, "wit": true, "pukul": true}

var relativeDate = regexp.MustCompile(`(?i)(\d+)\s+(detik|menit|jam|hari|minggu|bulan|tahun)\s+(?:yang\s+)?lalu`)

// DateParser parses human-written publication dates.
type DateParser struct {
	Layouts  []string
	Location *time.Location
	Now      func() time.Time
}

// NewDateParser returns a parser for loc with layouts tried first, then
// DefaultDateLayouts.
func NewDateParser(layouts []string, loc *time.Location) *DateParser {
	if loc == nil {
		loc = time.UTC
	}
	all := make([]string, 0, len(layouts)+len(DefaultDateLayouts))
	all = append(all, layouts...)
	all = append(all, DefaultDateLayouts...)
	return &DateParser{Layouts: all, Location: loc, Now: time.Now}
}

// ParseDate is a convenience wrapper around NewDateParser(layouts, loc).Parse.
func ParseDate(value string, layouts []string, loc *time.Location) (time.Time, error) {
	return NewDateParser(layouts, loc).Parse(value)
}

// Parse accepts Indonesian or English month names, ignores day names,
// source labels and WIB markers, and understands "N jam yang lalu".
func (p *DateParser) Parse(value string) (time.Time, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return time.Time{}, &types.DateParseError{Value: value, Err: types.ErrEmptyText}
	}

	for _, layout := range p.Layouts {
		if t, err := time.ParseInLocation(layout, raw, p.Location); err == nil {
			return t, nil
		}
	}

	if m := relativeDate.FindStringSubmatch(raw); m != nil {
		n, _ := strconv.Atoi(m[1])
		return relativeTo(p.Now().In(p.Location), n, strings.ToLower(m[2])), nil
	}

	normalized := normalizeDate(raw)
	for _, layout := range p.Layouts {
		if t, err := time.ParseInLocation(layout, normalized, p.Location); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &types.DateParseError{Value: value, Err: errNoLayout}
}

func relativeTo(now time.Time, n int, unit string) time.Time {
	switch unit {
	case "detik":
		return now.Add(-time.Duration(n) * time.Second)
	case "menit":
		return now.Add(-time.Duration(n) * time.Minute)
	case "jam":
		return now.Add(-time.Duration(n) * time.Hour)
	case "hari":
		return now.AddDate(0, 0, -n)
	case "minggu":
		return now.AddDate(0, 0, -7*n)
	case "bulan":
		return now.AddDate(0, -n, 0)
	default:
		return now.AddDate(-n, 0, 0)
	}
}

// normalizeDate rewrites "detikNews | Senin, 12 Feb 2024 10:15 WIB" into
// "12 February 2024 10:15".
func normalizeDate(s string) string {
	s = strings.NewReplacer("|", " ", ",", " ", " - ", " ", " ", " ").Replace(s)

	var out []string
	for _, tok := range strings.Fields(s) {
		key := strings.ToLower(strings.Trim(tok, ".:'"))
		if zoneTokens[key] {
			continue
		}
		// Leading labels and weekday names never contain digits.
		if len(out) == 0 && !strings.ContainsFunc(tok, unicode.IsDigit) {
			continue
		}
		if month, ok := monthNames[key]; ok {
			out = append(out, month)
			continue
		}
		out = append(out, tok)
	}

	// 10.15 -> 10:15 for trailing clock times.
	if n := len(out); n > 0 {
		last := out[n-1]
		if len(last) == 5 && last[2] == '.' && isDigits(last[:2]) && isDigits(last[3:]) {
			out[n-1] = last[:2] + ":" + last[3:]
		}
	}
	return strings.Join(out, " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

var urlDate = regexp.MustCompile(`/(\d{4})/(\d{2})/(\d{2})/`)

// DateFromURL extracts a /YYYY/MM/DD/ path segment as midnight in loc.
func DateFromURL(link string, loc *time.Location) (time.Time, bool) {
	m := urlDate.FindStringSubmatch(link)
	if m == nil {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02", m[1]+"-"+m[2]+"-"+m[3], loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
