package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// Middleware is one cleanup stage. Process returns the article to pass on,
// nil to drop it, or an error to reject it.
type Middleware interface {
	Name() string
	Process(a *types.Article) (*types.Article, error)
}

// Pipeline runs an article through its stages in order. It holds no
// per-article state, so one Pipeline serves concurrent callers once
// built.
type Pipeline struct {
	stages []Middleware
	logger *slog.Logger
}

func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{logger: logger.With("component", "pipeline")}
}

// ForSource builds the cleanup chain for one source's articles: required
// fields, markup removal, portal boilerplate, whitespace, the optional
// title keyword check, category casing and the summary.
func ForSource(src config.SourceConfig, keyword string, summaryLength int, logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&RequiredFieldsMiddleware{}, NewHTMLSanitizeMiddleware())
	p.Use(&BoilerplateMiddleware{Strings: src.Boilerplate, CutMarkers: src.BodyCutMarkers})
	p.Use(&TrimMiddleware{})
	if src.TitleMustContainKeyword {
		p.Use(&KeywordMiddleware{Keyword: keyword, TitleOnly: true})
	}
	p.Use(&CategoryCaseMiddleware{})
	if summaryLength > 0 {
		p.Use(&SummaryMiddleware{Length: summaryLength})
	}
	p.logger.Debug("pipeline built", "source", src.Name, "stages", p.Names())
	return p
}

// Use appends stages to the chain.
func (p *Pipeline) Use(stages ...Middleware) {
	p.stages = append(p.stages, stages...)
}

// Process runs a through every stage. A stage error is wrapped in a
// PipelineError naming the stage; a nil article from any stage stops the
// chain and is returned as (nil, nil).
func (p *Pipeline) Process(a *types.Article) (*types.Article, error) {
	url := a.URL
	for _, stage := range p.stages {
		next, err := stage.Process(a)
		switch {
		case err != nil:
			return nil, &types.PipelineError{Stage: stage.Name(), URL: url, Err: err}
		case next == nil:
			p.logger.Debug("article dropped", "stage", stage.Name(), "url", url)
			return nil, nil
		}
		a = next
	}
	return a, nil
}

// Names lists the stages in chain order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.stages))
	for _, stage := range p.stages {
		names = append(names, stage.Name())
	}
	return names
}
