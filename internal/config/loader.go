package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment on top of the
// defaults. Priority (highest to lowest): CLI flags > env vars > config
// file > defaults. CLI flags are applied by the caller.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	for key, val := range defaultKeys(cfg) {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix("NEWSGOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("newsgoat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".newsgoat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Profiles from the file are keyed case-insensitively.
	for name, src := range cfg.Sources {
		if lower := strings.ToLower(name); lower != name {
			delete(cfg.Sources, name)
			cfg.Sources[lower] = src
		}
	}

	return cfg, nil
}

// defaultKeys flattens the defaults into viper keys. Every key has to be
// registered for AutomaticEnv to see NEWSGOAT_* overrides on unmarshal.
func defaultKeys(cfg *Config) map[string]any {
	return map[string]any{
		"engine.max_pages":                cfg.Engine.MaxPages,
		"engine.max_results":              cfg.Engine.MaxResults,
		"engine.content_workers":          cfg.Engine.ContentWorkers,
		"engine.parallel_content":         cfg.Engine.ParallelContent,
		"engine.request_timeout":          cfg.Engine.RequestTimeout,
		"engine.max_attempts":             cfg.Engine.MaxAttempts,
		"engine.backoff_strategy":         cfg.Engine.BackoffStrategy,
		"engine.backoff_min":              cfg.Engine.BackoffMin,
		"engine.backoff_max":              cfg.Engine.BackoffMax,
		"engine.page_delay_min":           cfg.Engine.PageDelayMin,
		"engine.page_delay_max":           cfg.Engine.PageDelayMax,
		"engine.user_agents":              cfg.Engine.UserAgents,
		"engine.user_agent_mode":          cfg.Engine.UserAgentMode,
		"engine.fetch_content":            cfg.Engine.FetchContent,
		"engine.classify":                 cfg.Engine.Classify,
		"engine.summary_length":           cfg.Engine.SummaryLength,
		"engine.timezone":                 cfg.Engine.Timezone,
		"engine.normalize.trailing_slash": cfg.Engine.Normalize.TrailingSlash,
		"engine.normalize.strip_query":    cfg.Engine.Normalize.StripQuery,
		"engine.normalize.strip_fragment": cfg.Engine.Normalize.StripFragment,
		"engine.normalize.lowercase_host": cfg.Engine.Normalize.LowercaseHost,
		"engine.normalize.canonical":      cfg.Engine.Normalize.Canonical,

		"fetcher.follow_redirects":  cfg.Fetcher.FollowRedirects,
		"fetcher.max_redirects":     cfg.Fetcher.MaxRedirects,
		"fetcher.max_body_size":     cfg.Fetcher.MaxBodySize,
		"fetcher.tls_insecure":      cfg.Fetcher.TLSInsecure,
		"fetcher.idle_conn_timeout": cfg.Fetcher.IdleConnTimeout,
		"fetcher.max_idle_conns":    cfg.Fetcher.MaxIdleConns,
		"fetcher.accept_language":   cfg.Fetcher.AcceptLanguage,
		"fetcher.rate_per_second":   cfg.Fetcher.RatePerSecond,
		"fetcher.burst":             cfg.Fetcher.Burst,

		"browser.headless":    cfg.Browser.Headless,
		"browser.stealth":     cfg.Browser.Stealth,
		"browser.window_size": cfg.Browser.WindowSize,
		"browser.pool_size":   cfg.Browser.PoolSize,
		"browser.wait_stable": cfg.Browser.WaitStable,
		"browser.bin_path":    cfg.Browser.BinPath,

		"storage.type":             cfg.Storage.Type,
		"storage.output_dir":       cfg.Storage.OutputDir,
		"storage.columns":          cfg.Storage.Columns,
		"storage.mongo.uri":        cfg.Storage.Mongo.URI,
		"storage.mongo.database":   cfg.Storage.Mongo.Database,
		"storage.mongo.collection": cfg.Storage.Mongo.Collection,
		"storage.mongo.timeout":    cfg.Storage.Mongo.Timeout,

		"classifier.backends":     cfg.Classifier.Backends,
		"classifier.field":        cfg.Classifier.Field,
		"classifier.workers":      cfg.Classifier.Workers,
		"classifier.llm.provider": cfg.Classifier.LLM.Provider,
		"classifier.llm.endpoint": cfg.Classifier.LLM.Endpoint,
		"classifier.llm.model":    cfg.Classifier.LLM.Model,
		"classifier.llm.api_key":  cfg.Classifier.LLM.APIKey,
		"classifier.llm.timeout":  cfg.Classifier.LLM.Timeout,

		"logging.level":  cfg.Logging.Level,
		"logging.format": cfg.Logging.Format,
		"logging.output": cfg.Logging.Output,

		"metrics.enabled": cfg.Metrics.Enabled,
		"metrics.port":    cfg.Metrics.Port,
		"metrics.path":    cfg.Metrics.Path,
	}
}
