package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newArticle(title, body string) *types.Article {
	return &types.Article{Title: title, URL: "https://example.com/a", Body: body}
}

func TestPipelineBasic(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})

	result, err := p.Process(newArticle("  Hello World  ", " body "))
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}
	if result.Title != "Hello World" {
		t.Errorf("expected trimmed title, got %q", result.Title)
	}
	if result.Body != "body" {
		t.Errorf("expected trimmed body, got %q", result.Body)
	}
}

type failingMiddleware struct{}

func (failingMiddleware) Name() string { return "explode" }
func (failingMiddleware) Process(*types.Article) (*types.Article, error) {
	return nil, errors.New("boom")
}

func TestPipelineErrorNamesStage(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})
	p.Use(failingMiddleware{})

	_, err := p.Process(newArticle("x", "y"))
	var pe *types.PipelineError
	if !errors.As(err, &pe) || pe.Stage != "explode" || pe.URL != "https://example.com/a" {
		t.Fatalf("want PipelineError at stage explode, got %v", err)
	}
}

func TestRequiredFieldsMiddleware(t *testing.T) {
	m := &RequiredFieldsMiddleware{}

	if result, _ := m.Process(newArticle("Hello", "")); result == nil {
		t.Error("article with title should pass")
	}
	if result, _ := m.Process(newArticle("   ", "no title")); result != nil {
		t.Error("article without title should be dropped (nil)")
	}
}

func TestHTMLSanitizeMiddleware(t *testing.T) {
	m := NewHTMLSanitizeMiddleware()
	a := newArticle("<b>Banjir</b> &amp; longsor", "<p>Paragraf  satu</p>\n\n<p>Paragraf <i>dua</i></p>")

	result, err := m.Process(a)
	if err != nil {
		t.Fatal(err)
	}
	if result.Title != "Banjir & longsor" {
		t.Errorf("title = %q", result.Title)
	}
	if result.Body != "Paragraf satu\nParagraf dua" {
		t.Errorf("body = %q", result.Body)
	}
}

func TestBoilerplateMiddleware(t *testing.T) {
	m := &BoilerplateMiddleware{
		Strings:    []string{"TEMPO.CO, Jakarta - ", "ADVERTISEMENT"},
		CutMarkers: []string{"Pilihan editor:"},
	}
	a := newArticle("t", "TEMPO.CO, Jakarta - Isi berita.ADVERTISEMENT Lanjutan.\nPilihan editor: Berita lain")

	result, _ := m.Process(a)
	if got := strings.TrimSpace(result.Body); got != "Isi berita. Lanjutan." {
		t.Errorf("body = %q", got)
	}
}

func TestKeywordMiddleware(t *testing.T) {
	titleOnly := &KeywordMiddleware{Keyword: "Pemilu", TitleOnly: true}
	anywhere := &KeywordMiddleware{Keyword: "pemilu"}

	inTitle := newArticle("Jadwal PEMILU diumumkan", "")
	inBody := newArticle("Jadwal diumumkan", "KPU membahas pemilu")

	if r, _ := titleOnly.Process(inTitle); r == nil {
		t.Error("keyword in title should pass")
	}
	if r, _ := titleOnly.Process(inBody); r != nil {
		t.Error("title-only filter should drop body-only match")
	}
	if r, _ := anywhere.Process(newArticle("Jadwal diumumkan", "KPU membahas pemilu")); r == nil {
		t.Error("body match should pass when not title-only")
	}
}

func TestCategoryCaseMiddleware(t *testing.T) {
	m := &CategoryCaseMiddleware{}
	for _, in := range []string{"EKONOMI BISNIS", "ekonomi bisnis", "Ekonomi Bisnis"} {
		a := newArticle("t", "")
		a.Category = in
		r, _ := m.Process(a)
		if r.Category != "Ekonomi Bisnis" {
			t.Errorf("%q -> %q", in, r.Category)
		}
	}
}

func TestSummaryMiddleware(t *testing.T) {
	m := &SummaryMiddleware{Length: 20}
	r, _ := m.Process(newArticle("t", "Harga beras naik tajam\ndi pasar tradisional hari ini"))
	if r.Summary != "Harga beras naik..." {
		t.Errorf("summary = %q", r.Summary)
	}

	short, _ := m.Process(newArticle("t", "Singkat saja"))
	if short.Summary != "Singkat saja" {
		t.Errorf("short summary = %q", short.Summary)
	}
}

func TestForSource(t *testing.T) {
	src := config.BuiltinSources()["tempo"]
	src.TitleMustContainKeyword = true
	p := ForSource(src, "banjir", 50, testLogger)

	want := []string{"required_fields", "html_sanitize", "boilerplate", "trim", "keyword", "category_case", "summary"}
	if got := p.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("chain = %v, want %v", got, want)
	}

	a := newArticle("Banjir di Jakarta", "<p>TEMPO.CO, Jakarta - Air naik.</p>\n<p>Pilihan editor: lain</p>")
	a.Category = "METRO"
	out, err := p.Process(a)
	if err != nil || out == nil {
		t.Fatalf("article should survive: %v", err)
	}
	if out.Body != "Air naik." || out.Category != "Metro" || out.Summary != "Air naik." {
		t.Errorf("unexpected article: %+v", out)
	}

	dropped, err := p.Process(newArticle("Harga cabai", "x"))
	if err != nil || dropped != nil {
		t.Errorf("keyword miss should drop, got %+v, %v", dropped, err)
	}
}

func BenchmarkPipeline(b *testing.B) {
	p := ForSource(config.BuiltinSources()["tempo"], "banjir", 200, testLogger)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a := newArticle("  Banjir <b>Jakarta</b>  ", "  <p>TEMPO.CO, Jakarta - Content</p>  ")
		p.Process(a)
	}
}
