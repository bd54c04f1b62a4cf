package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestTokens(t *testing.T) {
	got := Tokens("Harga BBM naik 10% di Jakarta, warga résah!")
	want := []string{"harga", "bbm", "naik", "jakarta", "warga", "resah"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Tokens = %v, want %v", got, want)
	}
	if Preprocess("123 !!! yang") != "" {
		t.Error("digits, punctuation and stopwords should all be removed")
	}
}

func TestLexiconSentiment(t *testing.T) {
	s := NewLexiconSentiment()
	tests := []struct {
		text string
		want string
	}{
		{"Ekonomi Indonesia tumbuh kuat, investor optimis", Positive},
		{"Kasus korupsi pejabat bikin warga kecewa", Negative},
		{"Presiden menghadiri rapat di Jakarta", Neutral},
		{"Pemerintah tidak gagal", Positive},
	}
	for _, tt := range tests {
		res, err := s.Classify(context.Background(), tt.text)
		if err != nil {
			t.Fatalf("Classify(%q): %v", tt.text, err)
		}
		if res.Label != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.text, res.Label, tt.want)
		}
		if res.Confidence < 0 || res.Confidence > 1 {
			t.Errorf("Classify(%q) confidence %v outside [0,1]", tt.text, res.Confidence)
		}
	}
}

func TestLexiconCompoundBounds(t *testing.T) {
	s := NewLexiconSentiment()
	c := s.Compound([]string{"korupsi", "korupsi", "korupsi", "tewas", "bencana"})
	if c >= -0.9 || c < -1 {
		t.Errorf("compound = %v, want strongly negative within [-1, 0)", c)
	}
	if s.Compound([]string{"rapat"}) != 0 {
		t.Error("unknown words should score 0")
	}
}

func TestLexiconEmptyText(t *testing.T) {
	_, err := NewLexiconSentiment().Classify(context.Background(), "  123 ... ")
	if !errors.Is(err, types.ErrEmptyText) {
		t.Fatalf("want ErrEmptyText, got %v", err)
	}
	var ce *types.ClassificationError
	if !errors.As(err, &ce) || ce.Classifier != "sentiment" {
		t.Errorf("want ClassificationError from sentiment, got %v", err)
	}
}

func TestKeywordLabeler(t *testing.T) {
	k := NewKeywordLabeler()
	tests := []struct {
		text string
		want string
	}{
		{"Video viral warga heboh", Sensasional},
		{"Rapat anggaran dibahas DPR", Informatif},
		{"Atlet juara bikin bangga", Glorifikasi},
		{"Proyek terbesar sepanjang masa", Hiperbola},
		{"Keluarga korban menangis histeris", Emosional},
	}
	for _, tt := range tests {
		res, err := k.Classify(context.Background(), tt.text)
		if err != nil {
			t.Fatalf("Classify(%q): %v", tt.text, err)
		}
		if res.Label != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.text, res.Label, tt.want)
		}
	}
	if n := len(k.Labels()); n != 6 {
		t.Errorf("labels = %d, want 6", n)
	}
}

func TestKeywordLabelerWordBoundaries(t *testing.T) {
	k := NewKeywordLabeler()
	for _, text := range []string{
		"Wali kota Jayapura resmikan pasar",
		"Gilang terpilih ketua karang taruna",
		"Serangga hama rusak sawah",
	} {
		res, err := k.Classify(context.Background(), text)
		if err != nil {
			t.Fatal(err)
		}
		if res.Label != Informatif {
			t.Errorf("Classify(%q) = %s, want %s", text, res.Label, Informatif)
		}
	}

	res, _ := k.Classify(context.Background(), "Warga marahnya memuncak")
	if res.Label != Emosional {
		t.Errorf("suffixed keyword: got %s, want %s", res.Label, Emosional)
	}
	tests := []struct {
		tok, kw string
		want    bool
	}{
		{"gila", "gila", true},
		{"gilanya", "gila", true},
		{"tantangan", "tantang", true},
		{"kecamlah", "kecam", true},
		{"gilang", "gila", false},
		{"jayapura", "jaya", false},
		{"serangga", "serang", false},
	}
	for _, tt := range tests {
		if got := matchesWord(tt.tok, tt.kw); got != tt.want {
			t.Errorf("matchesWord(%q, %q) = %v, want %v", tt.tok, tt.kw, got, tt.want)
		}
	}
}

func TestLLMClassifierOllama(t *testing.T) {
	answers := []string{"Negative", "I would say this is positive.", "banana"}
	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if !strings.Contains(fmt.Sprint(body["prompt"]), "Positive, Negative, Neutral") {
			t.Errorf("prompt does not list labels: %v", body["prompt"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": answers[call]})
		call++
	}))
	defer srv.Close()

	c, err := NewLLMClassifier(config.LLMConfig{
		Provider: "ollama",
		Endpoint: srv.URL,
		Model:    "llama3",
		Labels:   []string{Positive, Negative, Neutral},
	}, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.Classify(context.Background(), "Harga beras turun")
	if err != nil || res.Label != Negative || res.Confidence != 1 {
		t.Errorf("exact answer: got %+v, %v", res, err)
	}
	res, err = c.Classify(context.Background(), "Harga beras turun")
	if err != nil || res.Label != Positive || res.Confidence != 0.5 {
		t.Errorf("embedded answer: got %+v, %v", res, err)
	}
	if _, err = c.Classify(context.Background(), "Harga beras turun"); err == nil {
		t.Error("unknown answer should be a ClassificationError")
	}
}

func TestFromConfig(t *testing.T) {
	cs, err := FromConfig(config.ClassifierConfig{Backends: []string{"sentiment", "label"}}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 2 || cs[0].Name() != "sentiment" || cs[1].Name() != "label" {
		t.Errorf("unexpected backends: %v", cs)
	}
	if _, err := FromConfig(config.ClassifierConfig{Backends: []string{"bert"}}, testLogger()); err == nil {
		t.Error("unknown backend should fail")
	}
}

// fixedClassifier answers from a title->label table.
type fixedClassifier struct {
	labels map[string]string
}

func (f fixedClassifier) Name() string     { return "fixed" }
func (f fixedClassifier) Labels() []string { return []string{Positive, Negative, Neutral} }
func (f fixedClassifier) Classify(_ context.Context, text string) (types.ClassificationResult, error) {
	label, ok := f.labels[text]
	if !ok {
		return types.ClassificationResult{}, errors.New("unreadable")
	}
	return types.ClassificationResult{Label: label, Confidence: 0.9}, nil
}

func TestPipelineAggregation(t *testing.T) {
	table := map[string]string{}
	var articles []*types.Article
	add := func(label string, n int) {
		for i := range n {
			title := fmt.Sprintf("%s-%d", label, i)
			table[title] = label
			articles = append(articles, &types.Article{Title: title, URL: "https://example.com/" + title})
		}
	}
	add(Positive, 3)
	add(Negative, 2)
	add(Neutral, 5)
	empty := &types.Article{Title: "   ", URL: "https://example.com/empty"}
	broken := &types.Article{Title: "garbled", URL: "https://example.com/garbled"}
	articles = append(articles, empty, broken)

	p := NewPipeline([]Classifier{fixedClassifier{labels: table}}, Options{Workers: 3}, testLogger())
	reports := p.Run(context.Background(), articles)
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	r := reports[0]

	if r.Total != 10 || r.Failed != 2 {
		t.Errorf("total/failed = %d/%d, want 10/2", r.Total, r.Failed)
	}
	want := map[string]int{Positive: 3, Negative: 2, Neutral: 5}
	for label, n := range want {
		if r.Counts[label] != n {
			t.Errorf("count[%s] = %d, want %d", label, r.Counts[label], n)
		}
		if len(r.Titles[label]) != n {
			t.Errorf("titles[%s] = %d, want %d", label, len(r.Titles[label]), n)
		}
	}

	if got := strings.Join(r.Titles[Positive], ","); got != "Positive-0,Positive-1,Positive-2" {
		t.Errorf("positive titles = %s, want article order", got)
	}

	sum := 0.0
	for _, v := range r.Percentages() {
		sum += v
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Errorf("percentages sum to %v, want 100", sum)
	}
	if pct := r.Percentages()[Neutral]; math.Abs(pct-50) > 1e-9 {
		t.Errorf("neutral = %v%%, want 50%%", pct)
	}
	if got := r.Labels(); got[0] != Neutral || got[1] != Positive || got[2] != Negative {
		t.Errorf("labels order = %v", got)
	}

	for _, a := range articles[:10] {
		if a.Classifications["fixed"].Label != table[a.Title] {
			t.Errorf("%s classified as %+v", a.Title, a.Classifications["fixed"])
		}
	}
	if _, ok := empty.Classifications["fixed"]; ok {
		t.Error("empty title should not be classified")
	}
}

func TestPipelineBodyField(t *testing.T) {
	a := &types.Article{Title: "judul", Body: "Ekonomi tumbuh, warga senang"}
	p := NewPipeline([]Classifier{NewLexiconSentiment()}, Options{Field: "body"}, testLogger())
	r := p.Run(context.Background(), []*types.Article{a})[0]
	if r.Counts[Positive] != 1 {
		t.Errorf("body should be classified Positive, got %v", r.Counts)
	}
}

func TestReportPercentagesEmpty(t *testing.T) {
	if got := newReport("x").Percentages(); len(got) != 0 {
		t.Errorf("empty report percentages = %v", got)
	}
}

func TestLLMClientChatCompletions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Neutral"}}]}`)
	}))
	defer srv.Close()

	c, err := NewLLMClient(config.LLMConfig{Provider: "OpenAI", Endpoint: srv.URL + "/v1/", Model: "gpt", APIKey: "sk-test"})
	if err != nil {
		t.Fatal(err)
	}
	answer, err := c.Generate(context.Background(), "hi")
	if err != nil || answer != "Neutral" {
		t.Errorf("Generate = %q, %v", answer, err)
	}
}

func TestLLMClientConfigErrors(t *testing.T) {
	if _, err := NewLLMClient(config.LLMConfig{Provider: "custom"}); err == nil {
		t.Error("custom provider without endpoint should fail")
	}
	if _, err := NewLLMClient(config.LLMConfig{Provider: "bard"}); err == nil {
		t.Error("unknown provider should fail")
	}
}
