package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/newsgoat/internal/classify"
	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/engine"
	"github.com/IshaanNene/newsgoat/internal/fetcher"
	"github.com/IshaanNene/newsgoat/internal/observability"
	"github.com/IshaanNene/newsgoat/internal/parser"
	"github.com/IshaanNene/newsgoat/internal/pipeline"
	"github.com/IshaanNene/newsgoat/internal/storage"
	"github.com/IshaanNene/newsgoat/internal/types"
)

var (
	keyword    string
	fromDate   string
	toDate     string
	lastCount  int
	lastUnit   string
	maxPages   int
	maxResults int
	fullText   bool
	classifyOn bool
	showTitles bool
	outputType string
	outputDir  string
	workers    int
	sequential bool
)

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [source]",
		Short: "Search a news source for a keyword within a date window",
		Long: `Walk a source's search listing for a keyword and keep the articles
published inside the date window. Use "newsgoat sources" to list sources.

Examples:
  newsgoat crawl detik -k "harga beras" --from 2024-01-01 --to 2024-01-31
  newsgoat crawl cnbcindonesia -k banjir --last 2 --unit week --full --classify`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawl,
	}

	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "search keyword (required)")
	cmd.Flags().StringVar(&fromDate, "from", "", "window start, YYYY-MM-DD")
	cmd.Flags().StringVar(&toDate, "to", "", "window end, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&lastCount, "last", 0, "relative window length, in --unit")
	cmd.Flags().StringVar(&lastUnit, "unit", "day", "relative window unit: day, week, month, year")
	cmd.Flags().IntVarP(&maxPages, "max-pages", "m", -1, "maximum listing pages (0 = unlimited, -1 = use config)")
	cmd.Flags().IntVar(&maxResults, "max-results", -1, "stop after this many accepted articles (0 = unlimited, -1 = use config)")
	cmd.Flags().BoolVar(&fullText, "full", false, "fetch every article page for its body text")
	cmd.Flags().BoolVar(&classifyOn, "classify", false, "classify the collected articles")
	cmd.Flags().BoolVar(&showTitles, "titles", false, "list the classified titles under each label")
	cmd.Flags().StringVarP(&outputType, "format", "f", "", "output format: csv, json, jsonl, mongodb (comma-separated for several)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	cmd.Flags().IntVarP(&workers, "workers", "n", 0, "article worker pool size")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "fetch article pages one at a time")
	_ = cmd.MarkFlagRequired("keyword")

	return cmd
}

// runCrawl executes the crawl command.
func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	src, err := cfg.Source(args[0])
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(cfg.SourceNames(), ", "))
	}
	if err := config.ValidateSource(src); err != nil {
		return fmt.Errorf("source %s: %w", src.Name, err)
	}

	loc := cfg.Engine.Location()
	window, err := config.ResolveWindow(config.WindowFlags{
		From: fromDate,
		To:   toDate,
		Last: lastCount,
		Unit: lastUnit,
	}, time.Now(), loc)
	if err != nil {
		return err
	}
	q := types.SearchQuery{
		Keyword:    keyword,
		Window:     window,
		MaxPages:   cfg.Engine.MaxPages,
		MaxResults: cfg.Engine.MaxResults,
		Parallel:   cfg.Engine.ParallelContent,
	}
	if err := q.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(logger)
		if err := metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	crawler, err := buildCrawler(cfg, src, q, loc, metrics, logger)
	if err != nil {
		return err
	}

	fmt.Printf("📰 %s: %q %s\n", src.Name, q.Keyword, q.Window)
	start := time.Now()
	res, runErr := crawler.Run(ctx, q)
	if res == nil {
		return runErr
	}
	printSummary(res, time.Since(start))
	if runErr != nil {
		return runErr
	}
	if res.Err != nil && res.Reason == engine.ReasonFetchExhausted && len(res.Records) == 0 {
		return fmt.Errorf("no results: %w", res.Err)
	}
	return nil
}

// buildCrawler wires fetchers, parser, pipeline, classifiers and sinks for
// one source.
func buildCrawler(cfg *config.Config, src config.SourceConfig, q types.SearchQuery, loc *time.Location, metrics *observability.Metrics, logger *slog.Logger) (*engine.Crawler, error) {
	crawler := engine.New(cfg, src, logger)
	crawler.SetMetrics(metrics)

	p, err := parser.New(src, loc, logger)
	if err != nil {
		return nil, fmt.Errorf("create parser: %w", err)
	}
	crawler.SetParser(p)
	crawler.SetPipeline(pipeline.ForSource(src, q.Keyword, cfg.Engine.SummaryLength, logger))

	if cfg.Engine.Classify {
		classifiers, err := classify.FromConfig(cfg.Classifier, logger)
		if err != nil {
			return nil, fmt.Errorf("create classifiers: %w", err)
		}
		crawler.SetClassification(classify.NewPipeline(classifiers, classify.Options{
			Field:   cfg.Classifier.Field,
			Workers: cfg.Classifier.Workers,
			Metrics: metrics,
		}, logger))
	}

	agents := fetcher.NewUserAgentPicker(cfg.Engine.UserAgentMode, cfg.Engine.UserAgents, nil)
	retryOpts := append(fetcher.RetryOptionsFromConfig(cfg.Engine),
		fetcher.WithAttemptHook(func(req *types.Request, attempt int, err error) {
			var ne *types.NetworkError
			metrics.FetchAttempt(req.Tag, err, errors.As(err, &ne) && ne.Retryable)
		}),
	)
	wrap := func(f fetcher.Fetcher) fetcher.Fetcher {
		return fetcher.NewRetrier(fetcher.NewTimed(f, metrics.ObserveFetch), logger, retryOpts...)
	}

	var opened []fetcher.Fetcher
	release := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	httpFetcher, err := fetcher.NewHTTPFetcher(cfg, agents, logger)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	opened = append(opened, httpFetcher)
	crawler.SetFetcher("http", wrap(httpFetcher))

	if src.UsesBrowser() {
		browserFetcher, err := fetcher.NewBrowserFetcher(cfg, agents, logger)
		if err != nil {
			release()
			return nil, fmt.Errorf("create browser fetcher: %w", err)
		}
		opened = append(opened, browserFetcher)
		crawler.SetFetcher("browser", wrap(browserFetcher))
	}

	sink, err := storage.New(cfg.Storage, storage.Prefix(src.Name, q.Keyword), time.Now(), logger)
	if err != nil {
		release()
		return nil, fmt.Errorf("create storage: %w", err)
	}
	crawler.SetSink(sink)

	// The crawler owns the fetchers and the sink from here on.
	return crawler, nil
}

func printSummary(res *engine.RunResult, elapsed time.Duration) {
	fmt.Printf("\n✅ Crawl finished in %s (%s)\n", elapsed.Round(time.Millisecond), res.Reason)
	fmt.Printf("   Pages:      %d listing pages\n", res.Walk.Pages)
	fmt.Printf("   Candidates: %d examined, %d accepted\n", res.Walk.Attempted, res.Walk.Accepted)
	fmt.Printf("   Articles:   %d kept, %d failed\n", len(res.Records), len(res.Failures))
	if res.Output != "" {
		fmt.Printf("   Output:     %s\n", res.Output)
	}
	if res.Err != nil {
		fmt.Printf("   Stopped by: %v\n", res.Err)
	}

	if h := res.Histogram; h != nil && len(h.Monthly) > 0 {
		fmt.Printf("\n   Per month:\n")
		for _, m := range h.Months() {
			fmt.Printf("     %s  %d\n", m, h.Monthly[m])
		}
		if h.Undated > 0 {
			fmt.Printf("     undated  %d\n", h.Undated)
		}
	}

	writeReports(os.Stdout, res.Reports, showTitles)

	if len(res.Records) == 0 {
		fmt.Println("\n💡 No articles matched. Try a wider window or another keyword.")
	}
}

// writeReports prints each classifier's label distribution, most frequent
// label first, optionally followed by the titles that got each label.
func writeReports(w io.Writer, reports []*classify.Report, withTitles bool) {
	for _, r := range reports {
		if r.Total == 0 {
			continue
		}
		pct := r.Percentages()
		fmt.Fprintf(w, "\n   %s (%d classified, %d failed):\n", r.Classifier, r.Total, r.Failed)
		for _, label := range r.Labels() {
			fmt.Fprintf(w, "     %-12s %4d  %5.1f%%\n", label, r.Counts[label], pct[label])
			if !withTitles {
				continue
			}
			for _, title := range r.Titles[label] {
				fmt.Fprintf(w, "       - %s\n", title)
			}
		}
	}
}

// applyCLIOverrides applies command-line flag values to the config. Only
// flags the user set override the file.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) {
	if maxPages >= 0 {
		cfg.Engine.MaxPages = maxPages
	}
	if maxResults >= 0 {
		cfg.Engine.MaxResults = maxResults
	}
	if cmd.Flags().Changed("full") {
		cfg.Engine.FetchContent = fullText
	}
	if cmd.Flags().Changed("classify") {
		cfg.Engine.Classify = classifyOn
	}
	if outputType != "" {
		cfg.Storage.Type = strings.ToLower(outputType)
	}
	if outputDir != "" {
		cfg.Storage.OutputDir = outputDir
	}
	if workers > 0 {
		cfg.Engine.ContentWorkers = workers
	}
	if sequential {
		cfg.Engine.ParallelContent = false
	}
}
