package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/newsgoat/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsgoat",
		Short: "NewsGoat: keyword news crawler for Indonesian portals",
		Long: `NewsGoat searches Indonesian news portals for a keyword, walks the
result listing newest first and keeps the articles published inside a
date window.

Features:
  • Per-portal source profiles (CSS or XPath selectors)
  • Date-window early stop on newest-first listings
  • Optional full article text with a bounded worker pool
  • Headless browser fetching for script-rendered listings
  • Sentiment, headline framing and LLM classification
  • CSV, JSON, JSONL and MongoDB output
  • Prometheus metrics endpoint`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("NewsGoat %s\n", config.Version)
		},
	}
}

// sourcesCmd lists the configured source profiles.
func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured news sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			for _, name := range cfg.SourceNames() {
				src, _ := cfg.Source(name)
				order := "unordered"
				if src.Descending {
					order = "newest first"
				}
				fmt.Printf("%-16s listing=%-8s article=%-8s %-13s %s\n",
					name, src.ListingFetcher, src.ArticleFetcher, order, src.SearchURL)
			}
			return nil
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Engine:\n")
			fmt.Printf("  Max Pages:         %d\n", cfg.Engine.MaxPages)
			fmt.Printf("  Max Results:       %d\n", cfg.Engine.MaxResults)
			fmt.Printf("  Content Workers:   %d (parallel: %v)\n", cfg.Engine.ContentWorkers, cfg.Engine.ParallelContent)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Engine.RequestTimeout)
			fmt.Printf("  Max Attempts:      %d (%s backoff %s..%s)\n",
				cfg.Engine.MaxAttempts, cfg.Engine.BackoffStrategy, cfg.Engine.BackoffMin, cfg.Engine.BackoffMax)
			fmt.Printf("  Page Delay:        %s..%s\n", cfg.Engine.PageDelayMin, cfg.Engine.PageDelayMax)
			fmt.Printf("  User Agents:       %d configured (%s)\n", len(cfg.Engine.UserAgents), cfg.Engine.UserAgentMode)
			fmt.Printf("  Fetch Content:     %v\n", cfg.Engine.FetchContent)
			fmt.Printf("  Classify:          %v\n", cfg.Engine.Classify)
			fmt.Printf("  Timezone:          %s\n", cfg.Engine.Timezone)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Rate:              %.2f/s (burst %d)\n", cfg.Fetcher.RatePerSecond, cfg.Fetcher.Burst)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Headless:          %v (stealth: %v)\n", cfg.Browser.Headless, cfg.Browser.Stealth)
			fmt.Printf("  Pool Size:         %d\n", cfg.Browser.PoolSize)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:              %s\n", cfg.Storage.Type)
			fmt.Printf("  Output Dir:        %s\n", cfg.Storage.OutputDir)
			fmt.Printf("  Columns:           %s\n", strings.Join(cfg.Storage.Columns, ", "))
			fmt.Printf("\nClassifier:\n")
			fmt.Printf("  Backends:          %s\n", strings.Join(cfg.Classifier.Backends, ", "))
			fmt.Printf("  Field:             %s\n", cfg.Classifier.Field)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			fmt.Printf("\nSources:             %s\n", strings.Join(cfg.SourceNames(), ", "))
			return nil
		},
	}
}

// setupLogger creates a structured logger from the logging config. The
// --verbose flag forces debug level.
func setupLogger(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil && cfg.Level != "" {
		return nil, nil, fmt.Errorf("logging level: %w", err)
	}
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	closer := func() error { return nil }
	switch cfg.Output {
	case "", "stderr":
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closer, nil
}
