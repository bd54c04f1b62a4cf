package types

import (
	"bytes"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Response is a fetched page, decoded and ready for a PageParser.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Request    *Request

	// FinalURL is where redirects (or a script) ended up. Relative links
	// on the page resolve against it.
	FinalURL string
	Elapsed  time.Duration

	doc *goquery.Document
}

// NewResponse wraps an HTTP response whose body has already been read
// and decoded.
func NewResponse(req *Request, httpResp *http.Response, body []byte, elapsed time.Duration) *Response {
	final := req.URLString()
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		final = httpResp.Request.URL.String()
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		Request:    req,
		FinalURL:   final,
		Elapsed:    elapsed,
	}
}

// NewBrowserResponse wraps the DOM a headless browser rendered. The
// browser does not expose the document status, so it is reported as 200.
func NewBrowserResponse(req *Request, html []byte, finalURL string, elapsed time.Duration) *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"text/html"}},
		Body:       html,
		Request:    req,
		FinalURL:   finalURL,
		Elapsed:    elapsed,
	}
}

// NewStaticResponse wraps an in-memory page. Tests and fixture replays
// use it.
func NewStaticResponse(rawURL, html string) *Response {
	req, err := NewRequest(rawURL)
	if err != nil {
		req = &Request{Method: http.MethodGet, Headers: http.Header{}}
	}
	return &Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"text/html"}},
		Body:       []byte(html),
		Request:    req,
		FinalURL:   rawURL,
	}
}

// URL returns the final URL, falling back to the requested one.
func (r *Response) URL() string {
	switch {
	case r.FinalURL != "":
		return r.FinalURL
	case r.Request != nil:
		return r.Request.URLString()
	}
	return ""
}

// Document parses the body once and caches the tree; the listing and
// article parsers may both ask for it.
func (r *Response) Document() (*goquery.Document, error) {
	if r.doc == nil {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			return nil, err
		}
		r.doc = doc
	}
	return r.doc, nil
}
