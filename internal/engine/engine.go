package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/IshaanNene/newsgoat/internal/classify"
	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/fetcher"
	"github.com/IshaanNene/newsgoat/internal/observability"
	"github.com/IshaanNene/newsgoat/internal/parser"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// State represents the crawler's lifecycle state.
type State int32

const (
	StateIdle    State = 0
	StateRunning State = 1
	StateStopped State = 2
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats tracks crawl statistics.
type Stats struct {
	PagesFetched       atomic.Int64
	CandidatesSeen     atomic.Int64
	CandidatesAccepted atomic.Int64
	ArticlesResolved   atomic.Int64
	ArticlesFailed     atomic.Int64
	ArticlesDropped    atomic.Int64
	RecordsWritten     atomic.Int64
	StartTime          time.Time
	EndTime            time.Time
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	end := s.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return map[string]any{
		"pages_fetched":       s.PagesFetched.Load(),
		"candidates_seen":     s.CandidatesSeen.Load(),
		"candidates_accepted": s.CandidatesAccepted.Load(),
		"articles_resolved":   s.ArticlesResolved.Load(),
		"articles_failed":     s.ArticlesFailed.Load(),
		"articles_dropped":    s.ArticlesDropped.Load(),
		"records_written":     s.RecordsWritten.Load(),
		"elapsed":             end.Sub(s.StartTime).Round(time.Millisecond).String(),
	}
}

// Pipeline is the article cleanup chain. Returning nil drops the article.
type Pipeline interface {
	Process(a *types.Article) (*types.Article, error)
}

// ResultSink persists the records of a run.
type ResultSink interface {
	Append(rec types.Record) error
	Flush() (string, error)
	Close() error
	Name() string
}

// RunResult is everything a run produced, including partial output when
// the run ended early.
type RunResult struct {
	Reason StopReason
	Err    error
	Walk   WalkResult

	// Candidates is the accepted listing sequence; Articles and Records
	// are what survived resolution, window filtering and the pipeline,
	// in candidate order.
	Candidates []types.CandidateItem
	Articles   []*types.Article
	Records    []types.Record
	Failures   []ContentFailure

	Reports   []*classify.Report
	Output    string
	Histogram *DateHistogram
	Stats     map[string]any
}

// Crawler runs one query against one source: walk the listing, resolve
// articles, clean, classify and persist them. A Crawler is single-use.
type Crawler struct {
	cfg      *config.Config
	source   config.SourceConfig
	logger   *slog.Logger
	fetchers map[string]fetcher.Fetcher
	parser   parser.PageParser
	pipeline Pipeline
	sink     ResultSink
	classify *classify.Pipeline
	metrics  *observability.Metrics
	sleep    fetcher.SleepFunc
	rng      *rand.Rand

	state atomic.Int32
	stats *Stats
	mu    sync.RWMutex
}

// New creates a Crawler for src.
func New(cfg *config.Config, src config.SourceConfig, logger *slog.Logger) *Crawler {
	return &Crawler{
		cfg:      cfg,
		source:   src,
		logger:   logger.With("component", "crawler", "source", src.Name),
		fetchers: make(map[string]fetcher.Fetcher),
		stats:    &Stats{},
	}
}

// SetFetcher registers a fetcher for a given type. The crawler closes
// every registered fetcher when Run returns.
func (c *Crawler) SetFetcher(fetcherType string, f fetcher.Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchers[fetcherType] = f
}

// SetParser sets the page parser.
func (c *Crawler) SetParser(p parser.PageParser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parser = p
}

// SetPipeline sets the article cleanup chain.
func (c *Crawler) SetPipeline(p Pipeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipeline = p
}

// SetSink sets the result sink. The crawler flushes and closes it.
func (c *Crawler) SetSink(s ResultSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = s
}

// SetClassification enables the classification stage.
func (c *Crawler) SetClassification(p *classify.Pipeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classify = p
}

// SetMetrics sets the metrics recorder.
func (c *Crawler) SetMetrics(m *observability.Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// SetPageClock overrides the sleep function and randomness used for the
// delay between listing pages.
func (c *Crawler) SetPageClock(sleep fetcher.SleepFunc, rng *rand.Rand) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleep = sleep
	c.rng = rng
}

// Stats returns the current crawl statistics.
func (c *Crawler) Stats() *Stats {
	return c.stats
}

// GetState returns the current crawler state.
func (c *Crawler) GetState() State {
	return State(c.state.Load())
}

// Run executes the query. The returned result is never nil once the query
// is valid; a non-nil error means a stage failed and the result holds
// whatever was produced before. Every fetcher and the sink are released on
// all return paths.
func (c *Crawler) Run(ctx context.Context, q types.SearchQuery) (*RunResult, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, fmt.Errorf("%w: crawler is %s", types.ErrRunUsed, State(c.state.Load()))
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	defer c.state.Store(int32(StateStopped))
	defer c.release()

	if err := q.Validate(); err != nil {
		return nil, err
	}
	if c.parser == nil {
		return nil, errors.New("no page parser configured")
	}
	listing, err := c.fetcher(c.source.ListingFetcher)
	if err != nil {
		return nil, err
	}

	c.stats.StartTime = time.Now()
	c.logger.Info("crawl starting",
		"keyword", q.Keyword,
		"window", q.Window.String(),
		"max_pages", q.MaxPages,
		"max_results", q.MaxResults,
		"fetch_content", c.cfg.Engine.FetchContent,
		"parallel", q.Parallel,
	)

	// Walk.
	walker := NewListingWalker(c.source, listing, c.parser, q, WalkerOptions{
		Dedup:        NewDeduplicator(NewNormalizer(c.cfg.Engine.Normalize), 256),
		PageDelayMin: c.cfg.Engine.PageDelayMin,
		PageDelayMax: c.cfg.Engine.PageDelayMax,
		Sleep:        c.sleep,
		Rand:         c.rng,
		Metrics:      c.metrics,
	}, c.logger)

	res := &RunResult{}
	for cand := range walker.Walk(ctx) {
		res.Candidates = append(res.Candidates, cand)
	}
	res.Walk = walker.Result()
	res.Reason, res.Err = res.Walk.Reason, res.Walk.Err
	c.stats.PagesFetched.Store(int64(res.Walk.Pages))
	c.stats.CandidatesSeen.Store(int64(res.Walk.Attempted))
	c.stats.CandidatesAccepted.Store(int64(res.Walk.Accepted))

	// Resolve.
	articles, err := c.resolve(ctx, q, res, walker.Policy())
	if err != nil {
		return c.finish(res), err
	}
	if ctx.Err() != nil && res.Reason != ReasonCancelled {
		res.Reason, res.Err = ReasonCancelled, ctx.Err()
	}

	// Clean.
	articles = c.clean(articles)

	// Classify.
	if c.classify != nil && c.cfg.Engine.Classify && len(articles) > 0 {
		res.Reports = c.classify.Run(ctx, articles)
	}
	res.Articles = articles

	// Persist.
	for _, a := range articles {
		rec := types.RecordFromArticle(a)
		if !c.cfg.Engine.FetchContent {
			rec.Content = ""
		}
		res.Records = append(res.Records, rec)
	}
	res.Histogram = NewDateHistogram(res.Records)
	if err := c.persist(res); err != nil {
		return c.finish(res), err
	}
	return c.finish(res), nil
}

// resolve turns candidates into articles in candidate order. Candidates
// are fetched when content is wanted or when the listing gave no date;
// the rest are built from the listing alone, as are dated candidates whose
// fetch never started because the run was cancelled. Articles whose
// resolved date falls outside the window, or is still unknown, are
// dropped.
func (c *Crawler) resolve(ctx context.Context, q types.SearchQuery, res *RunResult, policy DateWindowPolicy) ([]*types.Article, error) {
	byIndex := make([]*types.Article, len(res.Candidates))
	var jobs []Job
	for i, cand := range res.Candidates {
		if c.cfg.Engine.FetchContent || !cand.HasDate() {
			jobs = append(jobs, Job{Index: i, Candidate: cand})
			continue
		}
		byIndex[i] = types.NewArticle(cand, i, nil)
	}

	if len(jobs) > 0 {
		af, err := c.fetcher(c.source.ArticleFetcher)
		if err != nil {
			return nil, err
		}
		var limiter *rate.Limiter
		if c.cfg.Fetcher.RatePerSecond > 0 {
			limiter = rate.NewLimiter(rate.Limit(c.cfg.Fetcher.RatePerSecond), max(1, c.cfg.Fetcher.Burst))
		}
		content := NewContentFetcher(c.source, af, c.parser, ContentOptions{
			Parallel: q.Parallel,
			Workers:  c.cfg.Engine.ContentWorkers,
			Limiter:  limiter,
			Metrics:  c.metrics,
		}, c.logger)

		cr := content.Resolve(ctx, jobs)
		for _, a := range cr.Articles {
			byIndex[a.Index] = a
		}
		// A cancelled run keeps what the listing already told us about
		// candidates whose pages were never requested.
		kept := 0
		for _, job := range cr.Skipped {
			if job.Candidate.HasDate() {
				byIndex[job.Index] = types.NewArticle(job.Candidate, job.Index, nil)
				kept++
			}
		}
		if kept > 0 {
			c.logger.Info("kept listing data for unfetched articles", "count", kept, "not_started", cr.NotStarted)
		}
		res.Failures = cr.Failures
		c.stats.ArticlesResolved.Add(int64(len(cr.Articles)))
		c.stats.ArticlesFailed.Add(int64(len(cr.Failures)))
	}

	var out []*types.Article
	for _, a := range byIndex {
		if a == nil {
			continue
		}
		if !policy.Admits(a.PublishedAt) {
			reason := "out_of_window"
			if a.PublishedAt.IsZero() {
				reason = "undated"
			}
			c.stats.ArticlesDropped.Add(1)
			c.metrics.ArticleDropped(reason)
			c.logger.Debug("article dropped", "url", a.URL, "reason", reason, "published_at", a.PublishedAt)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (c *Crawler) clean(articles []*types.Article) []*types.Article {
	if c.pipeline == nil {
		return articles
	}
	out := articles[:0]
	for _, a := range articles {
		processed, err := c.pipeline.Process(a)
		if err != nil {
			c.stats.ArticlesDropped.Add(1)
			c.metrics.ArticleDropped("pipeline_error")
			c.logger.Warn("pipeline dropped article", "url", a.URL, "error", err)
			continue
		}
		if processed == nil {
			c.stats.ArticlesDropped.Add(1)
			c.metrics.ArticleDropped("filtered")
			continue
		}
		out = append(out, processed)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (c *Crawler) persist(res *RunResult) error {
	if c.sink == nil {
		return nil
	}
	for _, rec := range res.Records {
		if err := c.sink.Append(rec); err != nil {
			return fmt.Errorf("append to %s: %w", c.sink.Name(), err)
		}
		c.stats.RecordsWritten.Add(1)
		c.metrics.RecordWritten(c.sink.Name())
	}
	out, err := c.sink.Flush()
	if err != nil {
		return fmt.Errorf("flush %s: %w", c.sink.Name(), err)
	}
	res.Output = out
	return nil
}

func (c *Crawler) finish(res *RunResult) *RunResult {
	c.stats.EndTime = time.Now()
	res.Stats = c.stats.Snapshot()
	c.metrics.RunStopped(c.source.Name, res.Reason.String())
	c.logger.Info("crawl finished",
		"reason", res.Reason.String(),
		"records", len(res.Records),
		"output", res.Output,
		"stats", res.Stats,
	)
	return res
}

func (c *Crawler) fetcher(kind string) (fetcher.Fetcher, error) {
	if kind == "" {
		kind = "http"
	}
	f, ok := c.fetchers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrNoFetcher, kind)
	}
	return f, nil
}

// release closes the sink and every fetcher. Fetchers registered under
// several types are closed once.
func (c *Crawler) release() {
	if c.sink != nil {
		if err := c.sink.Close(); err != nil {
			c.logger.Error("sink close error", "sink", c.sink.Name(), "error", err)
		}
	}
	closed := make(map[fetcher.Fetcher]bool, len(c.fetchers))
	for kind, f := range c.fetchers {
		if closed[f] {
			continue
		}
		closed[f] = true
		if err := f.Close(); err != nil {
			c.logger.Error("fetcher close error", "type", kind, "error", err)
		}
	}
}
