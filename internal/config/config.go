package config

import (
	"strings"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for newsgoat.
type Config struct {
	Engine     EngineConfig            `mapstructure:"engine"     yaml:"engine"`
	Fetcher    FetcherConfig           `mapstructure:"fetcher"    yaml:"fetcher"`
	Browser    BrowserConfig           `mapstructure:"browser"    yaml:"browser"`
	Storage    StorageConfig           `mapstructure:"storage"    yaml:"storage"`
	Classifier ClassifierConfig        `mapstructure:"classifier" yaml:"classifier"`
	Logging    LoggingConfig           `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig           `mapstructure:"metrics"    yaml:"metrics"`
	Sources    map[string]SourceConfig `mapstructure:"sources"    yaml:"sources"`
}

// EngineConfig controls the crawl run.
type EngineConfig struct {
	MaxPages        int             `mapstructure:"max_pages"        yaml:"max_pages"`
	MaxResults      int             `mapstructure:"max_results"      yaml:"max_results"`
	ContentWorkers  int             `mapstructure:"content_workers"  yaml:"content_workers"`
	ParallelContent bool            `mapstructure:"parallel_content" yaml:"parallel_content"`
	RequestTimeout  time.Duration   `mapstructure:"request_timeout"  yaml:"request_timeout"`
	MaxAttempts     int             `mapstructure:"max_attempts"     yaml:"max_attempts"`
	BackoffStrategy string          `mapstructure:"backoff_strategy" yaml:"backoff_strategy"` // jitter, exponential
	BackoffMin      time.Duration   `mapstructure:"backoff_min"      yaml:"backoff_min"`
	BackoffMax      time.Duration   `mapstructure:"backoff_max"      yaml:"backoff_max"`
	PageDelayMin    time.Duration   `mapstructure:"page_delay_min"   yaml:"page_delay_min"`
	PageDelayMax    time.Duration   `mapstructure:"page_delay_max"   yaml:"page_delay_max"`
	UserAgents      []string        `mapstructure:"user_agents"      yaml:"user_agents"`
	UserAgentMode   string          `mapstructure:"user_agent_mode"  yaml:"user_agent_mode"` // random, round_robin
	FetchContent    bool            `mapstructure:"fetch_content"    yaml:"fetch_content"`
	Classify        bool            `mapstructure:"classify"         yaml:"classify"`
	SummaryLength   int             `mapstructure:"summary_length"   yaml:"summary_length"`
	Timezone        string          `mapstructure:"timezone"         yaml:"timezone"`
	Normalize       NormalizeConfig `mapstructure:"normalize"        yaml:"normalize"`
}

// NormalizeConfig selects URL normalization for deduplication. All false
// means links are compared as exact strings.
type NormalizeConfig struct {
	TrailingSlash bool `mapstructure:"trailing_slash" yaml:"trailing_slash"`
	StripQuery    bool `mapstructure:"strip_query"    yaml:"strip_query"`
	StripFragment bool `mapstructure:"strip_fragment" yaml:"strip_fragment"`
	LowercaseHost bool `mapstructure:"lowercase_host" yaml:"lowercase_host"`

	// Canonical implies LowercaseHost, StripFragment and TrailingSlash,
	// and also removes default ports and sorts query parameters. With
	// StripQuery set the query is dropped instead of sorted.
	Canonical bool `mapstructure:"canonical" yaml:"canonical"`
}

// FetcherConfig controls the HTTP fetcher.
type FetcherConfig struct {
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	AcceptLanguage  string        `mapstructure:"accept_language"   yaml:"accept_language"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"   yaml:"rate_per_second"` // 0 disables limiting
	Burst           int           `mapstructure:"burst"             yaml:"burst"`
}

// BrowserConfig controls the headless browser session used by
// script-rendered sources.
type BrowserConfig struct {
	Headless   bool          `mapstructure:"headless"    yaml:"headless"`
	Stealth    bool          `mapstructure:"stealth"     yaml:"stealth"`
	WindowSize string        `mapstructure:"window_size" yaml:"window_size"`
	PoolSize   int           `mapstructure:"pool_size"   yaml:"pool_size"`
	WaitStable time.Duration `mapstructure:"wait_stable" yaml:"wait_stable"`
	BinPath    string        `mapstructure:"bin_path"    yaml:"bin_path"`
}

// StorageConfig controls result output.
type StorageConfig struct {
	Type      string      `mapstructure:"type"       yaml:"type"` // csv, json, jsonl, mongodb; comma-separated for several
	OutputDir string      `mapstructure:"output_dir" yaml:"output_dir"`
	Columns   []string    `mapstructure:"columns"    yaml:"columns"`
	Mongo     MongoConfig `mapstructure:"mongo"      yaml:"mongo"`
}

// MongoConfig configures the MongoDB sink.
type MongoConfig struct {
	URI        string        `mapstructure:"uri"        yaml:"uri"`
	Database   string        `mapstructure:"database"   yaml:"database"`
	Collection string        `mapstructure:"collection" yaml:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"    yaml:"timeout"`
}

// ClassifierConfig controls the optional classification stage.
type ClassifierConfig struct {
	Backends []string  `mapstructure:"backends" yaml:"backends"` // sentiment, label, llm
	Field    string    `mapstructure:"field"    yaml:"field"`    // title, body
	Workers  int       `mapstructure:"workers"  yaml:"workers"`
	LLM      LLMConfig `mapstructure:"llm"      yaml:"llm"`
}

// LLMConfig configures the LLM-backed classifier.
type LLMConfig struct {
	Provider string        `mapstructure:"provider" yaml:"provider"` // ollama, openai, custom
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model    string        `mapstructure:"model"    yaml:"model"`
	APIKey   string        `mapstructure:"api_key"  yaml:"api_key"`
	Labels   []string      `mapstructure:"labels"   yaml:"labels"`
	Timeout  time.Duration `mapstructure:"timeout"  yaml:"timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxPages:        0,
			MaxResults:      0,
			ContentWorkers:  10,
			ParallelContent: true,
			RequestTimeout:  30 * time.Second,
			MaxAttempts:     3,
			BackoffStrategy: "jitter",
			BackoffMin:      500 * time.Millisecond,
			BackoffMax:      2 * time.Second,
			PageDelayMin:    500 * time.Millisecond,
			PageDelayMax:    2 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
			},
			UserAgentMode: "random",
			FetchContent:  false,
			SummaryLength: 200,
			Timezone:      "Asia/Jakarta",
		},
		Fetcher: FetcherConfig{
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
			AcceptLanguage:  "id-ID,id;q=0.9,en-US;q=0.8,en;q=0.7",
			Burst:           1,
		},
		Browser: BrowserConfig{
			Headless:   true,
			Stealth:    true,
			WindowSize: "1200x600",
			PoolSize:   2,
			WaitStable: 3 * time.Second,
		},
		Storage: StorageConfig{
			Type:      "csv",
			OutputDir: "./output",
			Columns:   []string{"title", "date", "link"},
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "newsgoat",
				Collection: "articles",
				Timeout:    10 * time.Second,
			},
		},
		Classifier: ClassifierConfig{
			Backends: []string{"sentiment", "label"},
			Field:    "title",
			Workers:  4,
			LLM: LLMConfig{
				Provider: "ollama",
				Endpoint: "http://localhost:11434",
				Model:    "llama3.2",
				Timeout:  60 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		Sources: BuiltinSources(),
	}
}

// Types splits Type into its sink kinds.
func (s StorageConfig) Types() []string {
	var out []string
	for _, t := range strings.Split(s.Type, ",") {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Location returns the configured timezone, falling back to WIB (UTC+7)
// when the zone database is unavailable.
func (e EngineConfig) Location() *time.Location {
	if e.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.FixedZone("WIB", 7*60*60)
	}
	return loc
}
