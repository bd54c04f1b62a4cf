package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

const (
	acceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptEncoding = "gzip, deflate, br"

	// Bytes of an error body kept in the error message.
	errorSnippet = 512

	defaultRetryAfter = 5 * time.Second
	maxRetryAfter     = 2 * time.Minute
)

// retryStatus lists the HTTP statuses worth another attempt besides 5xx.
var retryStatus = map[int]bool{
	http.StatusRequestTimeout:  true,
	http.StatusTooEarly:        true,
	http.StatusTooManyRequests: true,
}

// HTTPFetcher implements Fetcher using net/http. Each call makes exactly
// one attempt; retries belong to Retrier.
type HTTPFetcher struct {
	client  *http.Client
	agents  UserAgentPicker
	lang    string
	maxBody int64
	logger  *slog.Logger
}

// NewHTTPFetcher builds the portal client. The cookie jar lives as long as
// the fetcher, which is one crawl run, so consent cookies set by the
// first listing page carry over to the article pages.
func NewHTTPFetcher(cfg *config.Config, agents UserAgentPicker, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if agents == nil {
		agents = NewUserAgentPicker(cfg.Engine.UserAgentMode, cfg.Engine.UserAgents, nil)
	}

	fc := cfg.Fetcher
	return &HTTPFetcher{
		client: &http.Client{
			Transport:     newTransport(fc),
			Jar:           jar,
			Timeout:       cfg.Engine.RequestTimeout,
			CheckRedirect: redirectPolicy(fc.FollowRedirects, fc.MaxRedirects),
		},
		agents:  agents,
		lang:    fc.AcceptLanguage,
		maxBody: fc.MaxBodySize,
		logger:  logger.With("component", "http_fetcher"),
	}, nil
}

func newTransport(fc config.FetcherConfig) *http.Transport {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        fc.MaxIdleConns,
		MaxIdleConnsPerHost: max(fc.MaxIdleConns/2, 1),
		IdleConnTimeout:     fc.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: fc.TLSInsecure},
		// Decoding happens in decodeBody so brotli is covered too.
		DisableCompression: true,
	}
}

func redirectPolicy(follow bool, limit int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		switch {
		case !follow:
			return http.ErrUseLastResponse
		case len(via) >= limit:
			return fmt.Errorf("stopped after %d redirects", limit)
		}
		return nil
	}
}

// Fetch performs one GET (or req.Method) against a portal page.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	target := req.URLString()
	httpReq, err := f.newRequest(ctx, req)
	if err != nil {
		return nil, &types.NetworkError{URL: target, Err: err}
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		return nil, &types.NetworkError{URL: target, Err: err, Retryable: transient(err)}
	}
	defer httpResp.Body.Close()

	if err := statusError(target, httpResp); err != nil {
		return nil, err
	}

	body, err := f.decodeBody(httpResp)
	if err != nil {
		var ne *types.NetworkError
		if errors.As(err, &ne) {
			return nil, ne
		}
		return nil, &types.NetworkError{URL: target, StatusCode: httpResp.StatusCode, Err: err, Retryable: true}
	}

	f.logger.Debug("page fetched",
		"url", target,
		"tag", req.Tag,
		"status", httpResp.StatusCode,
		"bytes", len(body),
		"took", elapsed,
	)
	return types.NewResponse(req, httpResp, body, elapsed), nil
}

func (f *HTTPFetcher) newRequest(ctx context.Context, req *types.Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URLString(), nil)
	if err != nil {
		return nil, err
	}

	h := httpReq.Header
	h.Set("User-Agent", f.agents.UserAgent())
	h.Set("Accept", acceptHTML)
	h.Set("Accept-Encoding", acceptEncoding)
	if f.lang != "" {
		h.Set("Accept-Language", f.lang)
	}
	// Per-request headers win over the defaults.
	for key, values := range req.Headers {
		h.Del(key)
		for _, v := range values {
			h.Add(key, v)
		}
	}
	return httpReq, nil
}

// statusError maps a non-2xx/3xx response to a NetworkError, or returns
// nil for a usable response.
func statusError(target string, resp *http.Response) error {
	code := resp.StatusCode
	if code < 400 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippet))
	ne := &types.NetworkError{
		URL:        target,
		StatusCode: code,
		Retryable:  code >= 500 || retryStatus[code],
	}
	if code == http.StatusTooManyRequests {
		ne.RetryAfter = retryAfter(resp.Header.Get("Retry-After"), time.Now())
	}

	msg := strings.TrimSpace(string(snippet))
	if msg == "" {
		msg = http.StatusText(code)
	}
	ne.Err = fmt.Errorf("HTTP %d: %s", code, msg)
	return ne
}

// decodeBody reads the response body, honoring MaxBodySize and the
// Content-Encoding the portal chose (gzip, deflate or br).
func (f *HTTPFetcher) decodeBody(resp *http.Response) ([]byte, error) {
	var raw io.Reader = resp.Body
	if f.maxBody > 0 {
		raw = io.LimitReader(raw, f.maxBody)
	}

	var r io.Reader
	switch enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
		r = raw
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(raw)
		if err != nil {
			return nil, &types.NetworkError{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode, Err: fmt.Errorf("gzip: %w", err)}
		}
		defer gz.Close()
		r = gz
	case "deflate":
		fl := flate.NewReader(raw)
		defer fl.Close()
		r = fl
	case "br":
		r = brotli.NewReader(raw)
	default:
		// Unknown codings are passed through and left to the parser.
		r = raw
	}
	return io.ReadAll(r)
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func (f *HTTPFetcher) Type() string { return "http" }

// transient reports whether a transport error is worth another attempt.
// A per-call timeout is; caller cancellation is not.
func transient(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retryAfter reads a Retry-After value given in seconds or as an HTTP
// date, clamped to [1s, maxRetryAfter].
func retryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return defaultRetryAfter
	}
	var d time.Duration
	if secs, err := strconv.Atoi(header); err == nil {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(header); err == nil {
		d = t.Sub(now)
	} else {
		return defaultRetryAfter
	}
	return min(max(d, time.Second), maxRetryAfter)
}
