package engine

import (
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/IshaanNene/newsgoat/internal/config"
)

// Normalizer maps a link to the key it is deduplicated under.
type Normalizer func(rawURL string) string

// ExactURL compares links as given, apart from surrounding whitespace.
func ExactURL(rawURL string) string {
	return strings.TrimSpace(rawURL)
}

// urlStep rewrites a parsed link in place.
type urlStep func(u *url.URL)

func lowercaseHost(u *url.URL) {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
}

func dropDefaultPort(u *url.URL) {
	switch port := u.Port(); {
	case u.Scheme == "http" && port == "80", u.Scheme == "https" && port == "443":
		u.Host = u.Hostname()
	}
}

func stripQuery(u *url.URL) {
	u.RawQuery = ""
	u.ForceQuery = false
}

// sortQuery orders parameters by key, then value, so links that differ
// only in parameter order share a key.
func sortQuery(u *url.URL) {
	if u.RawQuery == "" {
		return
	}
	params := u.Query()
	pairs := make([]string, 0, len(params))
	for _, k := range slices.Sorted(maps.Keys(params)) {
		vals := slices.Clone(params[k])
		slices.Sort(vals)
		for _, v := range vals {
			pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	u.RawQuery = strings.Join(pairs, "&")
}

func stripFragment(u *url.URL) {
	u.Fragment = ""
	u.RawFragment = ""
}

func trimTrailingSlash(u *url.URL) {
	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
}

// NewNormalizer builds a Normalizer from the configured options. With every
// option off it is ExactURL.
//
// Canonical turns on lowercasing, fragment and trailing slash removal and
// adds default port removal and query sorting. StripQuery still applies on
// top of it.
func NewNormalizer(opts config.NormalizeConfig) Normalizer {
	var steps []urlStep
	if opts.LowercaseHost || opts.Canonical {
		steps = append(steps, lowercaseHost)
	}
	if opts.Canonical {
		steps = append(steps, dropDefaultPort)
	}
	switch {
	case opts.StripQuery:
		steps = append(steps, stripQuery)
	case opts.Canonical:
		steps = append(steps, sortQuery)
	}
	if opts.StripFragment || opts.Canonical {
		steps = append(steps, stripFragment)
	}
	if opts.TrailingSlash || opts.Canonical {
		steps = append(steps, trimTrailingSlash)
	}
	if len(steps) == 0 {
		return ExactURL
	}

	canonical := opts.Canonical
	return func(rawURL string) string {
		raw := strings.TrimSpace(rawURL)
		u, err := url.Parse(raw)
		if err != nil {
			return raw
		}
		for _, step := range steps {
			step(u)
		}
		if canonical && u.Path == "" && u.Host != "" {
			u.Path = "/"
		}
		return u.String()
	}
}

// Deduplicator is the set of links seen during one crawl run. It is safe
// for concurrent use.
type Deduplicator struct {
	mu        sync.RWMutex
	seen      map[string]struct{}
	normalize Normalizer
}

// NewDeduplicator creates a Deduplicator. A nil normalizer means ExactURL.
func NewDeduplicator(normalize Normalizer, sizeHint int) *Deduplicator {
	if normalize == nil {
		normalize = ExactURL
	}
	return &Deduplicator{
		seen:      make(map[string]struct{}, sizeHint),
		normalize: normalize,
	}
}

// IsNew reports whether rawURL has not been seen yet and records it. Of
// several concurrent callers with the same link exactly one gets true.
func (d *Deduplicator) IsNew(rawURL string) bool {
	key := d.normalize(rawURL)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.seen[key]; dup {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Count returns the number of distinct keys recorded.
func (d *Deduplicator) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.seen)
}
