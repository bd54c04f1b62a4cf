package config

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// Validate checks the configuration for invalid values. It runs once,
// before a crawl starts.
func Validate(cfg *Config) error {
	e := cfg.Engine
	if e.MaxPages < 0 {
		return fmt.Errorf("engine.max_pages must be >= 0, got %d", e.MaxPages)
	}
	if e.MaxResults < 0 {
		return fmt.Errorf("engine.max_results must be >= 0, got %d", e.MaxResults)
	}
	if e.ContentWorkers < 1 || e.ContentWorkers > 100 {
		return fmt.Errorf("engine.content_workers must be 1-100, got %d", e.ContentWorkers)
	}
	if e.RequestTimeout <= 0 {
		return fmt.Errorf("engine.request_timeout must be > 0")
	}
	if e.MaxAttempts < 1 {
		return fmt.Errorf("engine.max_attempts must be >= 1, got %d", e.MaxAttempts)
	}
	if e.BackoffStrategy != "jitter" && e.BackoffStrategy != "exponential" {
		return fmt.Errorf("engine.backoff_strategy must be 'jitter' or 'exponential', got %q", e.BackoffStrategy)
	}
	if e.BackoffMin < 0 || e.BackoffMax < e.BackoffMin {
		return fmt.Errorf("engine.backoff_min/backoff_max must satisfy 0 <= min <= max")
	}
	if e.PageDelayMin < 0 || e.PageDelayMax < e.PageDelayMin {
		return fmt.Errorf("engine.page_delay_min/page_delay_max must satisfy 0 <= min <= max")
	}
	if e.UserAgentMode != "random" && e.UserAgentMode != "round_robin" {
		return fmt.Errorf("engine.user_agent_mode must be 'random' or 'round_robin', got %q", e.UserAgentMode)
	}
	if e.SummaryLength < 0 {
		return fmt.Errorf("engine.summary_length must be >= 0")
	}

	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.RatePerSecond < 0 {
		return fmt.Errorf("fetcher.rate_per_second must be >= 0")
	}
	if cfg.Fetcher.RatePerSecond > 0 && cfg.Fetcher.Burst < 1 {
		return fmt.Errorf("fetcher.burst must be >= 1 when rate limiting is enabled")
	}

	if cfg.Browser.PoolSize < 1 {
		return fmt.Errorf("browser.pool_size must be >= 1, got %d", cfg.Browser.PoolSize)
	}

	validStorageTypes := map[string]bool{
		"json": true, "jsonl": true, "csv": true, "mongodb": true,
	}
	kinds := cfg.Storage.Types()
	if len(kinds) == 0 {
		return fmt.Errorf("storage.type is required (valid: csv, json, jsonl, mongodb)")
	}
	for _, t := range kinds {
		if !validStorageTypes[t] {
			return fmt.Errorf("storage.type %q is not supported (valid: csv, json, jsonl, mongodb)", t)
		}
	}
	validColumns := map[string]bool{
		"title": true, "date": true, "link": true, "category": true, "summary": true, "content": true,
		"sentiment": true, "label": true, "llm": true,
	}
	for _, col := range cfg.Storage.Columns {
		if !validColumns[col] {
			return fmt.Errorf("storage.columns: unknown column %q", col)
		}
	}
	if slices.Contains(kinds, "mongodb") && (cfg.Storage.Mongo.URI == "" || cfg.Storage.Mongo.Database == "") {
		return fmt.Errorf("storage.mongo.uri and storage.mongo.database are required for mongodb")
	}

	validBackends := map[string]bool{"sentiment": true, "label": true, "llm": true}
	for _, b := range cfg.Classifier.Backends {
		if !validBackends[b] {
			return fmt.Errorf("classifier.backends: unknown backend %q (valid: sentiment, label, llm)", b)
		}
	}
	if cfg.Classifier.Field != "title" && cfg.Classifier.Field != "body" {
		return fmt.Errorf("classifier.field must be 'title' or 'body', got %q", cfg.Classifier.Field)
	}
	if cfg.Classifier.Workers < 1 {
		return fmt.Errorf("classifier.workers must be >= 1, got %d", cfg.Classifier.Workers)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	for name, src := range cfg.Sources {
		if err := ValidateSource(src); err != nil {
			return fmt.Errorf("sources.%s: %w", name, err)
		}
	}

	return nil
}

// ValidateSource checks a single source profile.
func ValidateSource(src SourceConfig) error {
	if !strings.Contains(src.SearchURL, "{keyword}") {
		return fmt.Errorf("search_url must contain {keyword}")
	}
	if !strings.Contains(src.SearchURL, "{page}") && !strings.Contains(src.SearchURL, "{offset}") {
		return fmt.Errorf("search_url must contain {page} or {offset}")
	}
	if err := ValidateURL(src.ListingURL("keyword", 1)); err != nil {
		return fmt.Errorf("search_url: %w", err)
	}
	if strings.Contains(src.SearchURL, "{offset}") && src.OffsetStep < 1 {
		return fmt.Errorf("offset_step must be >= 1 when search_url uses {offset}")
	}
	for _, f := range []string{src.ListingFetcher, src.ArticleFetcher} {
		if f != "http" && f != "browser" {
			return fmt.Errorf("fetcher must be 'http' or 'browser', got %q", f)
		}
	}
	if src.Syntax != "css" && src.Syntax != "xpath" {
		return fmt.Errorf("syntax must be 'css' or 'xpath', got %q", src.Syntax)
	}
	if src.Listing.Item == "" {
		return fmt.Errorf("listing.item selector is required")
	}
	if src.Listing.DatePattern != "" {
		if _, err := regexp.Compile(src.Listing.DatePattern); err != nil {
			return fmt.Errorf("listing.date_pattern: %w", err)
		}
	}
	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
