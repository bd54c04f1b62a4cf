package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request tags, also used as the "kind" metric label.
const (
	TagListing = "listing"
	TagArticle = "article"
)

// Request is one page a fetcher should retrieve: a listing page or an
// article page.
type Request struct {
	URL     *url.URL
	Method  string // GET when empty
	Headers http.Header

	// Timeout overrides the per-call timeout when positive.
	Timeout time.Duration

	Tag  string
	Page int // listing page the URL came from

	// WaitSelector is a CSS selector the browser fetcher waits for
	// before taking the DOM. Ignored by the HTTP fetcher.
	WaitSelector string
}

// NewRequest parses rawURL into a GET request. Only http and https URLs
// are accepted since that is all a portal links to.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL %q: scheme must be http or https", rawURL)
	}
	return &Request{URL: u, Method: http.MethodGet, Headers: http.Header{}}, nil
}

func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}
