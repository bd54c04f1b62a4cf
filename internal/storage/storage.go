package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// Sink is a result destination for one crawl run.
type Sink interface {
	// Append buffers or writes one record.
	Append(rec types.Record) error

	// Flush makes every appended record durable and returns where they went.
	Flush() (string, error)

	// Close releases resources. It does not flush.
	Close() error

	// Name returns the sink backend identifier.
	Name() string
}

// DefaultColumns is the tabular column order when none is configured.
var DefaultColumns = []string{"title", "date", "link"}

// DateLayout formats record dates in tabular output.
const DateLayout = time.DateTime

var (
	runNamesMu sync.Mutex
	runNames   = make(map[string]int)
)

// RunName returns prefix_YYYYMMDD_HHMMSS. Repeated calls within the same
// second in this process get a _2, _3, ... suffix.
func RunName(prefix string, now time.Time) string {
	base := prefix + "_" + now.Format("20060102_150405")

	runNamesMu.Lock()
	defer runNamesMu.Unlock()
	runNames[base]++
	if n := runNames[base]; n > 1 {
		return fmt.Sprintf("%s_%d", base, n)
	}
	return base
}

// Prefix builds a filesystem-safe run prefix from a source and keyword.
func Prefix(source, keyword string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return '-'
		}
	}, strings.TrimSpace(keyword))
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return source
	}
	return source + "_" + slug
}

// New builds the sinks named by cfg.Type. Several types yield a MultiSink.
func New(cfg config.StorageConfig, prefix string, now time.Time, logger *slog.Logger) (Sink, error) {
	kinds := cfg.Types()
	if len(kinds) == 0 {
		return nil, &types.StorageError{Backend: "none", Err: fmt.Errorf("no storage type configured")}
	}

	name := RunName(prefix, now)
	columns := cfg.Columns
	if len(columns) == 0 {
		columns = DefaultColumns
	}

	var sinks []Sink
	for _, kind := range kinds {
		s, err := newSink(kind, cfg, name, columns, logger)
		if err != nil {
			for _, opened := range sinks {
				_ = opened.Close()
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiSink(sinks, logger), nil
}

func newSink(kind string, cfg config.StorageConfig, name string, columns []string, logger *slog.Logger) (Sink, error) {
	path := func(ext string) string { return filepath.Join(cfg.OutputDir, name+"."+ext) }
	switch kind {
	case "csv":
		return NewCSVSink(path("csv"), columns, logger)
	case "json":
		return NewJSONSink(path("json"), logger)
	case "jsonl":
		return NewJSONLSink(path("jsonl"), logger)
	case "mongodb":
		return NewMongoSink(cfg.Mongo, logger)
	default:
		return nil, &types.StorageError{Backend: kind, Err: fmt.Errorf("unsupported storage type")}
	}
}
