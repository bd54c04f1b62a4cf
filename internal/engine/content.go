package engine

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/fetcher"
	"github.com/IshaanNene/newsgoat/internal/observability"
	"github.com/IshaanNene/newsgoat/internal/parser"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// DefaultContentWorkers is the pool size used when none is configured.
const DefaultContentWorkers = 10

// Job is one candidate to resolve, tagged with its position in the
// accepted sequence.
type Job struct {
	Index     int
	Candidate types.CandidateItem
}

// Jobs tags candidates with their positions.
func Jobs(candidates []types.CandidateItem) []Job {
	jobs := make([]Job, len(candidates))
	for i, c := range candidates {
		jobs[i] = Job{Index: i, Candidate: c}
	}
	return jobs
}

// ContentFailure records a candidate that could not be resolved.
type ContentFailure struct {
	Job Job
	Err error
}

// ContentResult holds the articles in job order and the failures.
// Skipped lists, in job order, the jobs abandoned because the context was
// cancelled; NotStarted is their count.
type ContentResult struct {
	Articles   []*types.Article
	Failures   []ContentFailure
	Skipped    []Job
	NotStarted int
}

// ContentOptions tunes a ContentFetcher. Zero values are usable.
type ContentOptions struct {
	// Parallel selects the bounded worker pool; otherwise jobs run one by one.
	Parallel bool
	Workers  int

	// Limiter paces article requests across all workers.
	Limiter *rate.Limiter

	Metrics *observability.Metrics
}

// ContentFetcher resolves candidates to articles by fetching and parsing
// their pages.
//
// Cancelling the context stops new jobs from starting. Jobs already in
// flight finish on a detached context so no article is cut off half way.
type ContentFetcher struct {
	fetcher  fetcher.Fetcher
	parser   parser.PageParser
	parallel bool
	workers  int
	limiter  *rate.Limiter
	metrics  *observability.Metrics
	logger   *slog.Logger

	resolved atomic.Int64
	failed   atomic.Int64
}

// NewContentFetcher creates a ContentFetcher for one source.
func NewContentFetcher(src config.SourceConfig, f fetcher.Fetcher, p parser.PageParser, opts ContentOptions, logger *slog.Logger) *ContentFetcher {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultContentWorkers
	}
	return &ContentFetcher{
		fetcher:  f,
		parser:   p,
		parallel: opts.Parallel,
		workers:  workers,
		limiter:  opts.Limiter,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "content_fetcher", "source", src.Name),
	}
}

// Resolve fetches every job's article page. A failed job is reported in
// Failures and never aborts the others. Resolve returns once every started
// job has finished.
func (cf *ContentFetcher) Resolve(ctx context.Context, jobs []Job) ContentResult {
	articles := make([]*types.Article, len(jobs))
	errs := make([]error, len(jobs))
	started := make([]bool, len(jobs))

	mode := "sequential"
	if cf.parallel {
		mode = "parallel"
	}
	cf.logger.Info("resolving articles", "count", len(jobs), "mode", mode, "workers", cf.workers)

	if cf.parallel {
		cf.resolveParallel(ctx, jobs, articles, errs, started)
	} else {
		cf.resolveSequential(ctx, jobs, articles, errs, started)
	}

	var res ContentResult
	for i, job := range jobs {
		switch {
		case !started[i]:
			res.Skipped = append(res.Skipped, job)
			res.NotStarted++
		case errs[i] != nil:
			res.Failures = append(res.Failures, ContentFailure{Job: job, Err: errs[i]})
		case articles[i] != nil:
			res.Articles = append(res.Articles, articles[i])
		}
	}

	cf.logger.Info("articles resolved",
		"resolved", len(res.Articles),
		"failed", len(res.Failures),
		"not_started", res.NotStarted,
	)
	return res
}

// Stats returns the running totals across every Resolve call.
func (cf *ContentFetcher) Stats() (resolved, failed int64) {
	return cf.resolved.Load(), cf.failed.Load()
}

func (cf *ContentFetcher) resolveSequential(ctx context.Context, jobs []Job, articles []*types.Article, errs []error, started []bool) {
	drain := context.WithoutCancel(ctx)
	for i, job := range jobs {
		if !cf.admit(ctx) {
			return
		}
		started[i] = true
		articles[i], errs[i] = cf.resolveOne(drain, job)
	}
}

func (cf *ContentFetcher) resolveParallel(ctx context.Context, jobs []Job, articles []*types.Article, errs []error, started []bool) {
	drain := context.WithoutCancel(ctx)

	// Failures stay per job, so the group never cancels siblings.
	var g errgroup.Group
	g.SetLimit(cf.workers)

	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if !cf.admit(ctx) {
				return nil
			}
			started[i] = true
			articles[i], errs[i] = cf.resolveOne(drain, job)
			return nil
		})
	}
	_ = g.Wait()
}

// admit waits for the rate limiter and reports whether a job may start.
func (cf *ContentFetcher) admit(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if cf.limiter != nil {
		if err := cf.limiter.Wait(ctx); err != nil {
			return false
		}
	}
	return true
}

func (cf *ContentFetcher) resolveOne(ctx context.Context, job Job) (*types.Article, error) {
	cf.metrics.WorkerStarted()
	defer cf.metrics.WorkerDone()

	c := job.Candidate
	article, err := cf.fetchArticle(ctx, job)
	if err != nil {
		cf.failed.Add(1)
		cf.metrics.ArticleFailed()
		cf.logger.Warn("article skipped", "url", c.URL, "index", job.Index, "error", err)
		return nil, err
	}
	cf.resolved.Add(1)
	cf.metrics.ArticleResolved()
	return article, nil
}

func (cf *ContentFetcher) fetchArticle(ctx context.Context, job Job) (*types.Article, error) {
	req, err := types.NewRequest(job.Candidate.URL)
	if err != nil {
		return nil, err
	}
	req.Tag = types.TagArticle
	req.Page = job.Candidate.Page

	resp, err := cf.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	fields, err := cf.parser.ParseArticle(resp)
	if err != nil {
		return nil, err
	}
	return types.NewArticle(job.Candidate, job.Index, fields), nil
}
