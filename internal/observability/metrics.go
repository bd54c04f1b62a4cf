package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsgoat"

// Metrics tracks operational metrics for crawl runs. Every method is safe
// to call on a nil *Metrics, so components take it as optional.
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched       *prometheus.CounterVec
	FetchAttempts      *prometheus.CounterVec
	FetchFailures      *prometheus.CounterVec
	CandidatesAccepted *prometheus.CounterVec
	CandidatesSkipped  *prometheus.CounterVec
	ArticlesResolved   prometheus.Counter
	ArticlesFailed     prometheus.Counter
	ArticlesDropped    *prometheus.CounterVec
	RecordsWritten     *prometheus.CounterVec
	Classifications    *prometheus.CounterVec
	RunStops           *prometheus.CounterVec
	ActiveWorkers      prometheus.Gauge
	FetchDuration      *prometheus.HistogramVec

	logger *slog.Logger
}

// NewMetrics registers every collector on a private registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		logger:   logger.With("component", "metrics"),
	}

	m.PagesFetched = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listing_pages_fetched_total",
		Help:      "Listing pages fetched and parsed",
	}, []string{"source"})

	m.FetchAttempts = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_attempts_total",
		Help:      "Network attempts, including retries",
	}, []string{"kind"})

	m.FetchFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_failures_total",
		Help:      "Failed network attempts",
	}, []string{"kind", "retryable"})

	m.CandidatesAccepted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_accepted_total",
		Help:      "Listing candidates emitted downstream",
	}, []string{"source"})

	m.CandidatesSkipped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_skipped_total",
		Help:      "Listing candidates filtered out",
	}, []string{"source", "reason"})

	m.ArticlesResolved = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "articles_resolved_total",
		Help:      "Article pages fetched and parsed",
	})

	m.ArticlesFailed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "articles_failed_total",
		Help:      "Article pages that could not be fetched or parsed",
	})

	m.ArticlesDropped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "articles_dropped_total",
		Help:      "Resolved articles removed before persistence",
	}, []string{"reason"})

	m.RecordsWritten = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_written_total",
		Help:      "Records appended to a result sink",
	}, []string{"sink"})

	m.Classifications = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "classifications_total",
		Help:      "Articles scored per classifier and label",
	}, []string{"classifier", "label"})

	m.RunStops = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "run_stops_total",
		Help:      "Crawl runs ended, by stop reason",
	}, []string{"source", "reason"})

	m.ActiveWorkers = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "content_workers_active",
		Help:      "Article fetches currently in flight",
	})

	m.FetchDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Duration of successful fetches",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"kind"})

	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) PageFetched(source string) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(source).Inc()
}

func (m *Metrics) FetchAttempt(kind string, err error, retryable bool) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(kind).Inc()
	if err != nil {
		m.FetchFailures.WithLabelValues(kind, fmt.Sprint(retryable)).Inc()
	}
}

func (m *Metrics) ObserveFetch(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) CandidateAccepted(source string) {
	if m == nil {
		return
	}
	m.CandidatesAccepted.WithLabelValues(source).Inc()
}

func (m *Metrics) CandidateSkipped(source, reason string) {
	if m == nil {
		return
	}
	m.CandidatesSkipped.WithLabelValues(source, reason).Inc()
}

func (m *Metrics) ArticleResolved() {
	if m == nil {
		return
	}
	m.ArticlesResolved.Inc()
}

func (m *Metrics) ArticleFailed() {
	if m == nil {
		return
	}
	m.ArticlesFailed.Inc()
}

func (m *Metrics) ArticleDropped(reason string) {
	if m == nil {
		return
	}
	m.ArticlesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordWritten(sink string) {
	if m == nil {
		return
	}
	m.RecordsWritten.WithLabelValues(sink).Inc()
}

func (m *Metrics) Classified(classifier, label string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(classifier, label).Inc()
}

func (m *Metrics) RunStopped(source, reason string) {
	if m == nil {
		return
	}
	m.RunStops.WithLabelValues(source, reason).Inc()
}

// WorkerStarted and WorkerDone bracket one in-flight article fetch.
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.ActiveWorkers.Inc()
}

func (m *Metrics) WorkerDone() {
	if m == nil {
		return
	}
	m.ActiveWorkers.Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves metrics on port until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return nil
}
