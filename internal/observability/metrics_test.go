package observability

import (
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.PageFetched("detik")
	m.FetchAttempt("listing", errors.New("boom"), true)
	m.CandidateSkipped("detik", "duplicate")
	m.Classified("sentiment", "Positive")
	m.WorkerStarted()
	m.WorkerDone()
	if m.Registry() != nil {
		t.Error("nil metrics should have no registry")
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(slog.New(slog.NewTextHandler(io.Discard, nil)))

	m.PageFetched("detik")
	m.PageFetched("detik")
	m.FetchAttempt("article", nil, false)
	m.FetchAttempt("article", errors.New("reset"), true)
	m.Classified("sentiment", "Negative")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`newsgoat_listing_pages_fetched_total{source="detik"} 2`,
		`newsgoat_fetch_attempts_total{kind="article"} 2`,
		`newsgoat_fetch_failures_total{kind="article",retryable="true"} 1`,
		`newsgoat_classifications_total{classifier="sentiment",label="Negative"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
