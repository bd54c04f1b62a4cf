package engine

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/fetcher"
	"github.com/IshaanNene/newsgoat/internal/observability"
	"github.com/IshaanNene/newsgoat/internal/parser"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// StopReason says why a listing walk ended. It is a value, not an error.
type StopReason string

const (
	ReasonNone           StopReason = ""
	ReasonFetchExhausted StopReason = "fetch_exhausted"
	ReasonEmptyPage      StopReason = "empty_page"
	ReasonWindowExceeded StopReason = "window_exceeded"
	ReasonPageLimit      StopReason = "page_limit"
	ReasonResultLimit    StopReason = "result_limit"
	ReasonNoProgress     StopReason = "no_progress"
	ReasonCancelled      StopReason = "cancelled"
)

func (r StopReason) String() string {
	if r == ReasonNone {
		return "none"
	}
	return string(r)
}

// Skip reasons reported to metrics.
const (
	skipOutOfWindow = "out_of_window"
	skipKeyword     = "keyword"
	skipDuplicate   = "duplicate"
)

// WalkResult summarizes a finished walk.
type WalkResult struct {
	Reason StopReason

	// Pages counts listing pages fetched successfully.
	Pages int

	// Attempted counts candidates examined, Accepted those emitted.
	Attempted int
	Accepted  int

	// Err is the error behind FetchExhausted, EmptyPage (when the parser
	// failed) or Cancelled.
	Err error
}

// WalkerOptions tunes a ListingWalker. Zero values are usable.
type WalkerOptions struct {
	// Dedup is shared with the caller when it needs the seen set later.
	Dedup *Deduplicator

	PageDelayMin time.Duration
	PageDelayMax time.Duration

	Sleep   fetcher.SleepFunc
	Rand    *rand.Rand
	Metrics *observability.Metrics
}

// ListingWalker pages through a source's search listing and emits the
// candidates that pass the date window, the keyword filter and the
// deduplicator. Pages are strictly sequential: page N+1 is requested only
// after every candidate on page N has been filtered.
type ListingWalker struct {
	source  config.SourceConfig
	fetcher fetcher.Fetcher
	parser  parser.PageParser
	policy  DateWindowPolicy
	query   types.SearchQuery
	dedup   *Deduplicator

	delayMin time.Duration
	delayMax time.Duration
	sleep    fetcher.SleepFunc
	rng      *rand.Rand
	metrics  *observability.Metrics
	logger   *slog.Logger

	used   atomic.Bool
	listed map[string]struct{}
	result WalkResult
}

// NewListingWalker creates a walker for one query against one source.
func NewListingWalker(src config.SourceConfig, f fetcher.Fetcher, p parser.PageParser, q types.SearchQuery, opts WalkerOptions, logger *slog.Logger) *ListingWalker {
	w := &ListingWalker{
		source:   src,
		fetcher:  f,
		parser:   p,
		policy:   DateWindowPolicy{Window: q.Window, Descending: src.Descending},
		query:    q,
		dedup:    opts.Dedup,
		delayMin: opts.PageDelayMin,
		delayMax: max(opts.PageDelayMax, opts.PageDelayMin),
		sleep:    opts.Sleep,
		rng:      opts.Rand,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "listing_walker", "source", src.Name),
		listed:   make(map[string]struct{}),
	}
	if w.dedup == nil {
		w.dedup = NewDeduplicator(nil, 256)
	}
	if w.sleep == nil {
		w.sleep = fetcher.SleepContext
	}
	if w.rng == nil {
		w.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return w
}

// Walk returns the accepted candidates as a lazy sequence. The sequence can
// be consumed once; later iterations yield nothing. Breaking out of the loop
// ends the walk with ReasonCancelled.
func (w *ListingWalker) Walk(ctx context.Context) iter.Seq[types.CandidateItem] {
	return func(yield func(types.CandidateItem) bool) {
		if !w.used.CompareAndSwap(false, true) {
			return
		}
		w.run(ctx, yield)
	}
}

// Result is valid once the sequence returned by Walk has been drained.
func (w *ListingWalker) Result() WalkResult {
	return w.result
}

// Policy returns the date policy the walker filters with.
func (w *ListingWalker) Policy() DateWindowPolicy {
	return w.policy
}

func (w *ListingWalker) run(ctx context.Context, yield func(types.CandidateItem) bool) {
	w.logger.Info("listing walk starting",
		"keyword", w.query.Keyword,
		"window", w.query.Window.String(),
		"max_pages", w.query.MaxPages,
		"max_results", w.query.MaxResults,
		"descending", w.policy.Descending,
	)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			w.stop(ReasonCancelled, err)
			return
		}

		resp, err := w.fetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				w.stop(ReasonCancelled, ctx.Err())
			} else {
				w.stop(ReasonFetchExhausted, err)
			}
			return
		}
		w.result.Pages++
		w.metrics.PageFetched(w.source.Name)

		items, err := w.parser.ParseListing(resp)
		if err != nil {
			w.stop(ReasonEmptyPage, err)
			return
		}
		if len(items) == 0 {
			w.stop(ReasonEmptyPage, nil)
			return
		}

		reason, done := w.filter(page, items, yield)
		if done {
			w.stop(reason, nil)
			return
		}

		if w.query.MaxPages > 0 && page >= w.query.MaxPages {
			w.stop(ReasonPageLimit, nil)
			return
		}
		if err := w.pause(ctx); err != nil {
			w.stop(ReasonCancelled, err)
			return
		}
	}
}

// filter applies the date policy, the keyword filter and the deduplicator
// to one page in listing order.
func (w *ListingWalker) filter(page int, items []types.CandidateItem, yield func(types.CandidateItem) bool) (StopReason, bool) {
	fresh := 0
	for _, c := range items {
		w.result.Attempted++

		key := w.dedup.normalize(c.URL)
		if _, ok := w.listed[key]; !ok {
			w.listed[key] = struct{}{}
			fresh++
		}

		switch w.policy.Decide(c.PublishedAt) {
		case Terminate:
			w.logger.Debug("candidate older than window", "page", page, "url", c.URL, "published_at", c.PublishedAt)
			return ReasonWindowExceeded, true
		case Skip:
			w.metrics.CandidateSkipped(w.source.Name, skipOutOfWindow)
			continue
		}

		if w.source.TitleMustContainKeyword && !containsFold(c.Title, w.query.Keyword) {
			w.metrics.CandidateSkipped(w.source.Name, skipKeyword)
			continue
		}
		if !w.dedup.IsNew(c.URL) {
			w.metrics.CandidateSkipped(w.source.Name, skipDuplicate)
			continue
		}

		w.result.Accepted++
		w.metrics.CandidateAccepted(w.source.Name)
		if !yield(c) {
			return ReasonCancelled, true
		}
		if w.query.MaxResults > 0 && w.result.Accepted >= w.query.MaxResults {
			return ReasonResultLimit, true
		}
	}

	// A page made entirely of links already listed means the source is
	// repeating itself past its last real page.
	if fresh == 0 {
		return ReasonNoProgress, true
	}
	return ReasonNone, false
}

func (w *ListingWalker) fetchPage(ctx context.Context, page int) (*types.Response, error) {
	req, err := types.NewRequest(w.source.ListingURL(w.query.Keyword, page))
	if err != nil {
		return nil, err
	}
	req.Tag = types.TagListing
	req.Page = page
	req.WaitSelector = w.source.WaitSelector

	w.logger.Debug("fetching listing page", "page", page, "url", req.URLString())
	return w.fetcher.Fetch(ctx, req)
}

// pause sleeps a random delay in [delayMin, delayMax] between pages.
func (w *ListingWalker) pause(ctx context.Context) error {
	if w.delayMax <= 0 {
		return nil
	}
	d := w.delayMin
	if span := w.delayMax - w.delayMin; span > 0 {
		d += time.Duration(w.rng.Int63n(int64(span) + 1))
	}
	return w.sleep(ctx, d)
}

func (w *ListingWalker) stop(reason StopReason, err error) {
	w.result.Reason = reason
	w.result.Err = err

	attrs := []any{
		"reason", reason.String(),
		"pages", w.result.Pages,
		"attempted", w.result.Attempted,
		"accepted", w.result.Accepted,
	}
	switch {
	case err == nil:
		w.logger.Info("listing walk stopped", attrs...)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		w.logger.Info("listing walk stopped", append(attrs, "error", err)...)
	default:
		w.logger.Warn("listing walk stopped", append(attrs, "error", err)...)
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}
