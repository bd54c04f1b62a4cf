package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func sampleRecords() []types.Record {
	wib := time.FixedZone("WIB", 7*3600)
	return []types.Record{
		{
			Title:    "Harga beras naik",
			Date:     time.Date(2024, 2, 12, 10, 15, 0, 0, wib),
			Link:     "https://example.com/1",
			Category: "Ekonomi",
			Summary:  "Harga beras...",
			Classifications: map[string]types.ClassificationResult{
				"sentiment": {Label: "Negative", Confidence: 0.6},
			},
		},
		{
			Title: "Banjir, warga \"mengungsi\"",
			Link:  "https://example.com/2",
		},
	}
}

func TestRunNameUniqueWithinSecond(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 5, 0, time.UTC)
	a := RunName("detik_banjir", now)
	b := RunName("detik_banjir", now)
	c := RunName("detik_banjir", now.Add(time.Second))

	if a != "detik_banjir_20240301_093005" {
		t.Errorf("first name = %q", a)
	}
	if b != "detik_banjir_20240301_093005_2" {
		t.Errorf("second name = %q", b)
	}
	if c != "detik_banjir_20240301_093006" {
		t.Errorf("next second = %q", c)
	}
}

func TestPrefix(t *testing.T) {
	if got := Prefix("cnbc", "Harga BBM / Solar"); got != "cnbc_harga-bbm---solar" {
		t.Errorf("Prefix = %q", got)
	}
	if got := Prefix("cnbc", "  "); got != "cnbc" {
		t.Errorf("empty keyword prefix = %q", got)
	}
}

func TestCSVSinkColumnOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "run.csv")
	s, err := NewCSVSink(path, []string{"title", "date", "link", "category", "sentiment"}, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range sampleRecords() {
		if err := s.Append(r); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Flush()
	if err != nil || got != path {
		t.Fatalf("Flush = %q, %v", got, err)
	}
	defer s.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	want := [][]string{
		{"title", "date", "link", "category", "sentiment"},
		{"Harga beras naik", "2024-02-12 10:15:00", "https://example.com/1", "Ekonomi", "Negative"},
		{"Banjir, warga \"mengungsi\"", "", "https://example.com/2", "", ""},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(rows), len(want))
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %q, want %q", i, rows[i], want[i])
		}
	}
}

func TestJSONSinkWritesArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	s, err := NewJSONSink(path, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range sampleRecords() {
		_ = s.Append(r)
	}
	if _, err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("not a JSON array: %v", err)
	}
	if len(out) != 2 || out[0]["title"] != "Harga beras naik" || out[1]["link"] != "https://example.com/2" {
		t.Errorf("unexpected JSON: %s", data)
	}
	if _, ok := out[1]["category"]; ok {
		t.Error("empty category should be omitted")
	}
}

func TestJSONLSinkStreams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")
	s, err := NewJSONLSink(path, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range sampleRecords() {
		_ = s.Append(r)
	}
	if _, err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	f, _ := os.Open(path)
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec types.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}

func TestNewMultiSink(t *testing.T) {
	dir := t.TempDir()
	cfg := config.StorageConfig{Type: "csv, json", OutputDir: dir}
	s, err := New(cfg, "sindonews_pemilu", time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Name() != "multi" {
		t.Fatalf("sink = %s, want multi", s.Name())
	}
	_ = s.Append(sampleRecords()[0])

	paths, err := s.Flush()
	if err != nil {
		t.Fatal(err)
	}
	for _, ext := range []string{".csv", ".json"} {
		p := filepath.Join(dir, "sindonews_pemilu_20240506_070809"+ext)
		if !strings.Contains(paths, p) {
			t.Errorf("flush paths %q missing %s", paths, p)
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s not written: %v", p, err)
		}
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(config.StorageConfig{Type: "xlsx", OutputDir: t.TempDir()}, "x", time.Now(), testLogger)
	var se *types.StorageError
	if !errors.As(err, &se) || se.Backend != "xlsx" {
		t.Errorf("want StorageError for xlsx, got %v", err)
	}
}

func TestMongoSinkInvalidURI(t *testing.T) {
	_, err := NewMongoSink(config.MongoConfig{URI: "not-a-mongo-uri", Database: "news", Timeout: time.Second}, testLogger)
	var se *types.StorageError
	if !errors.As(err, &se) || se.Backend != "mongodb" {
		t.Errorf("want mongodb StorageError, got %v", err)
	}
}
