package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/newsgoat/internal/types"
)

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

// --- JSON Sink ---

// JSONSink writes records as one JSON array. Records are buffered and
// the file is rewritten on every Flush.
type JSONSink struct {
	path    string
	records []types.Record
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewJSONSink creates a new JSON file sink.
func NewJSONSink(outputPath string, logger *slog.Logger) (*JSONSink, error) {
	if err := ensureDir(outputPath); err != nil {
		return nil, &types.StorageError{Backend: "json", Err: err}
	}
	return &JSONSink{
		path:    outputPath,
		records: make([]types.Record, 0),
		logger:  logger.With("component", "json_sink"),
	}, nil
}

func (s *JSONSink) Name() string { return "json" }

func (s *JSONSink) Append(rec types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *JSONSink) Flush() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return "", &types.StorageError{Backend: "json", Err: fmt.Errorf("create output file: %w", err)}
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.records); err != nil {
		return "", &types.StorageError{Backend: "json", Err: fmt.Errorf("encode JSON: %w", err)}
	}

	s.logger.Info("JSON written", "path", s.path, "records", len(s.records))
	return s.path, nil
}

func (s *JSONSink) Close() error { return nil }

// --- JSONL Sink ---

// JSONLSink streams records as newline-delimited JSON.
type JSONLSink struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLSink creates the output file immediately.
func NewJSONLSink(outputPath string, logger *slog.Logger) (*JSONLSink, error) {
	if err := ensureDir(outputPath); err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Err: err}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("create output file: %w", err)}
	}

	return &JSONLSink{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "jsonl_sink"),
	}, nil
}

func (s *JSONLSink) Name() string { return "jsonl" }

func (s *JSONLSink) Append(rec types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(rec); err != nil {
		return &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("encode JSONL: %w", err)}
	}
	s.count++
	return nil
}

func (s *JSONLSink) Flush() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		return "", &types.StorageError{Backend: "jsonl", Err: err}
	}
	s.logger.Info("JSONL written", "path", s.path, "records", s.count)
	return s.path, nil
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// --- CSV Sink ---

// CSVSink writes records as rows with a fixed column order. Columns other
// than the record fields name a classifier whose label fills the cell.
type CSVSink struct {
	path    string
	columns []string
	records []types.Record
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewCSVSink creates a new CSV file sink.
func NewCSVSink(outputPath string, columns []string, logger *slog.Logger) (*CSVSink, error) {
	if err := ensureDir(outputPath); err != nil {
		return nil, &types.StorageError{Backend: "csv", Err: err}
	}
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	return &CSVSink{
		path:    outputPath,
		columns: append([]string(nil), columns...),
		logger:  logger.With("component", "csv_sink"),
	}, nil
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Append(rec types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *CSVSink) Flush() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return "", &types.StorageError{Backend: "csv", Err: fmt.Errorf("create output file: %w", err)}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(s.columns); err != nil {
		return "", &types.StorageError{Backend: "csv", Err: fmt.Errorf("write CSV header: %w", err)}
	}
	row := make([]string, len(s.columns))
	for _, rec := range s.records {
		for i, col := range s.columns {
			row[i] = cell(rec, col)
		}
		if err := w.Write(row); err != nil {
			return "", &types.StorageError{Backend: "csv", Err: fmt.Errorf("write CSV row: %w", err)}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", &types.StorageError{Backend: "csv", Err: err}
	}

	s.logger.Info("CSV written", "path", s.path, "records", len(s.records))
	return s.path, nil
}

func (s *CSVSink) Close() error { return nil }

func cell(rec types.Record, column string) string {
	switch column {
	case "title":
		return rec.Title
	case "date":
		if rec.Date.IsZero() {
			return ""
		}
		return rec.Date.Format(DateLayout)
	case "link":
		return rec.Link
	case "category":
		return rec.Category
	case "summary":
		return rec.Summary
	case "content":
		return rec.Content
	default:
		return rec.Classifications[column].Label
	}
}
