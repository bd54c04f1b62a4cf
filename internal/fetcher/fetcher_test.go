package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestHTTPFetcher(t *testing.T) *HTTPFetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Engine.RequestTimeout = 5 * time.Second
	f, err := NewHTTPFetcher(cfg, NewUserAgentPicker("round_robin", []string{"ua-test"}, nil), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func mustRequest(t *testing.T, rawURL string) *types.Request {
	t.Helper()
	req, err := types.NewRequest(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestHTTPFetcherSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "ua-test" {
			t.Errorf("unexpected user agent %q", got)
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><h1>Banjir Jakarta</h1></body></html>"))
	}))
	defer srv.Close()

	f := newTestHTTPFetcher(t)
	resp, err := f.Fetch(context.Background(), mustRequest(t, srv.URL))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	doc, err := resp.Document()
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Find("h1").Text(); got != "Banjir Jakarta" {
		t.Errorf("unexpected body %q", got)
	}
}

func TestHTTPFetcherDecodesBrotliAndGzip(t *testing.T) {
	const page = "<p>konten terkompresi</p>"

	var br, gz bytes.Buffer
	bw := brotli.NewWriter(&br)
	bw.Write([]byte(page))
	bw.Close()
	gw := gzip.NewWriter(&gz)
	gw.Write([]byte(page))
	gw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/br":
			w.Header().Set("Content-Encoding", "br")
			w.Write(br.Bytes())
		case "/gzip":
			w.Header().Set("Content-Encoding", "gzip")
			w.Write(gz.Bytes())
		}
	}))
	defer srv.Close()

	f := newTestHTTPFetcher(t)
	for _, path := range []string{"/br", "/gzip"} {
		resp, err := f.Fetch(context.Background(), mustRequest(t, srv.URL+path))
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		if string(resp.Body) != page {
			t.Errorf("%s: expected decoded body, got %q", path, resp.Body)
		}
	}
}

func TestHTTPFetcherStatusClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/busy":
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		case "/down":
			w.WriteHeader(http.StatusBadGateway)
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := newTestHTTPFetcher(t)
	tests := []struct {
		path       string
		retryable  bool
		retryAfter time.Duration
	}{
		{"/busy", true, 7 * time.Second},
		{"/down", true, 0},
		{"/gone", false, 0},
	}

	for _, tt := range tests {
		_, err := f.Fetch(context.Background(), mustRequest(t, srv.URL+tt.path))
		var ne *types.NetworkError
		if !errors.As(err, &ne) {
			t.Fatalf("%s: expected NetworkError, got %v", tt.path, err)
		}
		if ne.Retryable != tt.retryable {
			t.Errorf("%s: expected retryable=%v", tt.path, tt.retryable)
		}
		if ne.RetryAfter != tt.retryAfter {
			t.Errorf("%s: expected retry after %s, got %s", tt.path, tt.retryAfter, ne.RetryAfter)
		}
	}
}

// scriptedFetcher fails its first n calls with err, then succeeds.
type scriptedFetcher struct {
	failures int
	err      error
	calls    atomic.Int32
}

func (s *scriptedFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	n := int(s.calls.Add(1))
	if s.failures < 0 || n <= s.failures {
		return nil, s.err
	}
	return types.NewStaticResponse(req.URLString(), "<p>ok</p>"), nil
}

func (s *scriptedFetcher) Close() error { return nil }
func (s *scriptedFetcher) Type() string { return "scripted" }

// recordSleeps captures requested delays without waiting.
func recordSleeps(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestRetrierExhaustsAttempts(t *testing.T) {
	src := &scriptedFetcher{failures: -1, err: &types.NetworkError{URL: "x", StatusCode: 503, Err: errors.New("unavailable"), Retryable: true}}
	var delays []time.Duration

	r := NewRetrier(src, testLogger,
		WithAttempts(3),
		WithBackoff(JitterBackoff(500*time.Millisecond, 2*time.Second, rand.New(rand.NewSource(42)))),
		WithSleep(recordSleeps(&delays)),
	)

	_, err := r.Fetch(context.Background(), mustRequest(t, "https://example.com/search?page=1"))
	var ne *types.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if ne.Retryable {
		t.Error("exhausted error must not be retryable")
	}
	if ne.Attempts != 3 || ne.StatusCode != 503 {
		t.Errorf("unexpected error fields: %+v", ne)
	}
	if got := src.calls.Load(); got != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", got)
	}
	if len(delays) != 2 {
		t.Fatalf("expected 2 sleeps between 3 attempts, got %d", len(delays))
	}
	for i := 1; i < len(delays); i++ {
		if delays[i] < delays[i-1] {
			t.Errorf("backoff decreased: %v", delays)
		}
	}
}

func TestRetrierBackoffNeverDecreases(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		src := &scriptedFetcher{failures: -1, err: &types.NetworkError{Err: errors.New("reset"), Retryable: true}}
		var delays []time.Duration
		r := NewRetrier(src, testLogger,
			WithAttempts(6),
			WithBackoff(JitterBackoff(500*time.Millisecond, 2*time.Second, rand.New(rand.NewSource(seed)))),
			WithSleep(recordSleeps(&delays)),
		)
		r.Fetch(context.Background(), mustRequest(t, "https://example.com/"))
		for i := 1; i < len(delays); i++ {
			if delays[i] < delays[i-1] {
				t.Fatalf("seed %d: delays decreased %v", seed, delays)
			}
		}
	}
}

func TestRetrierStopsOnNonRetryable(t *testing.T) {
	src := &scriptedFetcher{failures: -1, err: &types.NetworkError{StatusCode: 404, Err: errors.New("not found")}}
	var delays []time.Duration
	r := NewRetrier(src, testLogger, WithSleep(recordSleeps(&delays)))

	_, err := r.Fetch(context.Background(), mustRequest(t, "https://example.com/missing"))
	if err == nil {
		t.Fatal("expected error")
	}
	if src.calls.Load() != 1 || len(delays) != 0 {
		t.Errorf("non-retryable error should not be retried (calls=%d)", src.calls.Load())
	}
}

func TestRetrierRecovers(t *testing.T) {
	src := &scriptedFetcher{failures: 2, err: &types.NetworkError{Err: errors.New("timeout"), Retryable: true}}
	var delays []time.Duration
	var hooks int
	r := NewRetrier(src, testLogger,
		WithSleep(recordSleeps(&delays)),
		WithAttemptHook(func(*types.Request, int, error) { hooks++ }),
	)

	resp, err := r.Fetch(context.Background(), mustRequest(t, "https://example.com/flaky"))
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if resp == nil || src.calls.Load() != 3 || hooks != 3 {
		t.Errorf("unexpected attempts: calls=%d hooks=%d", src.calls.Load(), hooks)
	}
}

func TestRetrierHonoursRetryAfter(t *testing.T) {
	src := &scriptedFetcher{failures: 1, err: &types.NetworkError{StatusCode: 429, Err: errors.New("slow down"), Retryable: true, RetryAfter: 9 * time.Second}}
	var delays []time.Duration
	r := NewRetrier(src, testLogger,
		WithBackoff(ExponentialBackoff(time.Second, 4*time.Second)),
		WithSleep(recordSleeps(&delays)),
	)
	if _, err := r.Fetch(context.Background(), mustRequest(t, "https://example.com/")); err != nil {
		t.Fatal(err)
	}
	if len(delays) != 1 || delays[0] != 9*time.Second {
		t.Errorf("expected Retry-After delay, got %v", delays)
	}
}

func TestRetrierCancelled(t *testing.T) {
	src := &scriptedFetcher{failures: -1, err: &types.NetworkError{Err: errors.New("reset"), Retryable: true}}
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetrier(src, testLogger, WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := r.Fetch(ctx, mustRequest(t, "https://example.com/"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if src.calls.Load() != 1 {
		t.Errorf("no attempt should start after cancellation, got %d calls", src.calls.Load())
	}
}

func TestRetrierPerAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	slow := Func(func(ctx context.Context, req *types.Request) (*types.Response, error) {
		calls.Add(1)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	r := NewRetrier(slow, testLogger,
		WithAttempts(2),
		WithTimeout(10*time.Millisecond),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
	)

	_, err := r.Fetch(context.Background(), mustRequest(t, "https://example.com/"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("timed out attempts should be retried, got %d calls", calls.Load())
	}
}

func TestBackoffSchedules(t *testing.T) {
	jitter := JitterBackoff(500*time.Millisecond, 2*time.Second, rand.New(rand.NewSource(1)))
	for attempt := 1; attempt <= 4; attempt++ {
		d := jitter(attempt)
		lo := 500 * time.Millisecond * time.Duration(attempt)
		hi := 2 * time.Second * time.Duration(attempt)
		if d < lo || d > hi {
			t.Errorf("attempt %d: %s outside [%s, %s]", attempt, d, lo, hi)
		}
	}

	exp := ExponentialBackoff(time.Second, 5*time.Second)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := exp(i + 1); got != w {
			t.Errorf("attempt %d: expected %s, got %s", i+1, w, got)
		}
	}
}

func TestUserAgentPickers(t *testing.T) {
	rr := NewUserAgentPicker("round_robin", []string{"a", "b", "c"}, nil)
	var got []string
	for range 4 {
		got = append(got, rr.UserAgent())
	}
	if got[0] != "a" || got[1] != "b" || got[2] != "c" || got[3] != "a" {
		t.Errorf("unexpected rotation %v", got)
	}

	r1 := NewUserAgentPicker("random", []string{"a", "b", "c"}, rand.New(rand.NewSource(7)))
	r2 := NewUserAgentPicker("random", []string{"a", "b", "c"}, rand.New(rand.NewSource(7)))
	for range 10 {
		if r1.UserAgent() != r2.UserAgent() {
			t.Fatal("same seed should give the same sequence")
		}
	}
}

func TestTimedReportsTag(t *testing.T) {
	var tags []string
	inner := Func(func(ctx context.Context, req *types.Request) (*types.Response, error) {
		return &types.Response{StatusCode: 200, Request: req}, nil
	})
	f := NewTimed(inner, func(tag string, d time.Duration) {
		if d < 0 {
			t.Errorf("negative duration %s", d)
		}
		tags = append(tags, tag)
	})

	req := mustRequest(t, "https://example.com/read/1")
	req.Tag = types.TagArticle
	if _, err := f.Fetch(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0] != types.TagArticle {
		t.Errorf("observed tags = %v", tags)
	}
	if f.Type() != "func" {
		t.Errorf("type = %s", f.Type())
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", defaultRetryAfter},
		{"30", 30 * time.Second},
		{"0", time.Second},
		{"900", maxRetryAfter},
		{now.Add(45 * time.Second).Format(http.TimeFormat), 45 * time.Second},
		{now.Add(-time.Hour).Format(http.TimeFormat), time.Second},
		{"soon", defaultRetryAfter},
	}
	for _, tt := range tests {
		if got := retryAfter(tt.header, now); got != tt.want {
			t.Errorf("retryAfter(%q) = %s, want %s", tt.header, got, tt.want)
		}
	}
}

// stallingFetcher blocks until its context expires for the first n calls
// and reports that as a non-retryable NetworkError, the way a fetcher that
// only looks at ctx.Err() would.
type stallingFetcher struct {
	stalls int
	calls  atomic.Int32
}

func (s *stallingFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if int(s.calls.Add(1)) <= s.stalls {
		<-ctx.Done()
		return nil, &types.NetworkError{URL: req.URLString(), Err: ctx.Err(), Retryable: ctx.Err() == nil}
	}
	return types.NewStaticResponse(req.URLString(), "<p>rendered</p>"), nil
}

func (s *stallingFetcher) Close() error { return nil }
func (s *stallingFetcher) Type() string { return "stalling" }

func TestRetrierRetriesAttemptTimeout(t *testing.T) {
	src := &stallingFetcher{stalls: 2}
	var delays []time.Duration
	r := NewRetrier(src, testLogger,
		WithAttempts(3),
		WithTimeout(20*time.Millisecond),
		WithSleep(recordSleeps(&delays)),
	)

	resp, err := r.Fetch(context.Background(), mustRequest(t, "https://www.jawapos.com/search?q=banjir"))
	if err != nil {
		t.Fatalf("timed out attempts should be retried, got %v", err)
	}
	if resp == nil || src.calls.Load() != 3 || len(delays) != 2 {
		t.Errorf("calls=%d sleeps=%d, want 3 and 2", src.calls.Load(), len(delays))
	}
}

func TestRetrierAttemptTimeoutStillExhausts(t *testing.T) {
	src := &stallingFetcher{stalls: 100}
	var delays []time.Duration
	r := NewRetrier(src, testLogger,
		WithAttempts(3),
		WithTimeout(10*time.Millisecond),
		WithSleep(recordSleeps(&delays)),
	)

	_, err := r.Fetch(context.Background(), mustRequest(t, "https://www.kompas.com/search?q=banjir"))
	var ne *types.NetworkError
	if !errors.As(err, &ne) || ne.Attempts != 3 || ne.Retryable {
		t.Fatalf("want exhausted NetworkError after 3 attempts, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("final error should carry the deadline, got %v", err)
	}
}
