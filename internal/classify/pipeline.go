package classify

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/newsgoat/internal/observability"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// Report aggregates one classifier's results over a run.
type Report struct {
	Classifier string

	// Total counts classified articles; Failed those excluded.
	Total  int
	Failed int

	Counts map[string]int
	// Titles lists the classified titles per label, in article order.
	Titles map[string][]string
}

func newReport(name string) *Report {
	return &Report{
		Classifier: name,
		Counts:     make(map[string]int),
		Titles:     make(map[string][]string),
	}
}

func (r *Report) add(label, title string) {
	r.Total++
	r.Counts[label]++
	r.Titles[label] = append(r.Titles[label], title)
}

// Percentages returns each label's share of Total. The values sum to 100
// up to float rounding when Total > 0.
func (r *Report) Percentages() map[string]float64 {
	out := make(map[string]float64, len(r.Counts))
	if r.Total == 0 {
		return out
	}
	for label, n := range r.Counts {
		out[label] = float64(n) * 100 / float64(r.Total)
	}
	return out
}

// Labels returns the labels seen, most frequent first.
func (r *Report) Labels() []string {
	labels := make([]string, 0, len(r.Counts))
	for l := range r.Counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if r.Counts[labels[i]] != r.Counts[labels[j]] {
			return r.Counts[labels[i]] > r.Counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

// Options tunes a Pipeline.
type Options struct {
	// Field is "title" (default) or "body".
	Field   string
	Workers int
	Metrics *observability.Metrics
}

// Pipeline runs every classifier over every article. Articles are scored
// in parallel and independently; only the reports are shared.
type Pipeline struct {
	classifiers []Classifier
	field       string
	workers     int
	metrics     *observability.Metrics
	logger      *slog.Logger
}

func NewPipeline(classifiers []Classifier, opts Options, logger *slog.Logger) *Pipeline {
	field := strings.ToLower(opts.Field)
	if field == "" {
		field = "title"
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Pipeline{
		classifiers: classifiers,
		field:       field,
		workers:     workers,
		metrics:     opts.Metrics,
		logger:      logger.With("component", "classification"),
	}
}

// Run scores the articles and attaches each result to its article. An
// article a classifier cannot score is left out of that classifier's
// counts; the article itself is kept. Report titles follow article order.
func (p *Pipeline) Run(ctx context.Context, articles []*types.Article) []*Report {
	// outcomes[i][j] is classifier j's result for article i. Each article
	// is scored by one goroutine, so its row needs no lock.
	type outcome struct {
		res types.ClassificationResult
		err error
	}
	outcomes := make([][]outcome, len(articles))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, a := range articles {
		g.Go(func() error {
			row := make([]outcome, len(p.classifiers))
			text := p.text(a)
			for j, c := range p.classifiers {
				res, err := p.classify(ctx, c, text)
				row[j] = outcome{res, err}
				if err != nil {
					p.logger.Warn("classification skipped", "classifier", c.Name(), "url", a.URL, "error", err)
					continue
				}
				a.Classify(c.Name(), res)
				p.metrics.Classified(c.Name(), res.Label)
			}
			outcomes[i] = row
			return nil
		})
	}
	_ = g.Wait()

	reports := make([]*Report, len(p.classifiers))
	for j, c := range p.classifiers {
		reports[j] = newReport(c.Name())
	}
	for i, row := range outcomes {
		for j, o := range row {
			if o.err != nil {
				reports[j].Failed++
				continue
			}
			reports[j].add(o.res.Label, articles[i].Title)
		}
	}

	for _, r := range reports {
		p.logger.Info("classification finished", "classifier", r.Classifier, "classified", r.Total, "failed", r.Failed)
	}
	return reports
}

func (p *Pipeline) classify(ctx context.Context, c Classifier, text string) (types.ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return types.ClassificationResult{}, classifyErr(c.Name(), err)
	}
	if strings.TrimSpace(text) == "" {
		return types.ClassificationResult{}, classifyErr(c.Name(), types.ErrEmptyText)
	}
	return c.Classify(ctx, text)
}

func (p *Pipeline) text(a *types.Article) string {
	if p.field == "body" {
		return a.Body
	}
	return a.Title
}
