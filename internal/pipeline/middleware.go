package pipeline

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/IshaanNene/newsgoat/internal/types"
)

// RequiredFieldsMiddleware drops articles without a title or link.
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(a *types.Article) (*types.Article, error) {
	if strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.URL) == "" {
		return nil, nil
	}
	return a, nil
}

// TrimMiddleware trims whitespace from the text fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(a *types.Article) (*types.Article, error) {
	a.Title = strings.TrimSpace(a.Title)
	a.Body = strings.TrimSpace(a.Body)
	a.Category = strings.TrimSpace(a.Category)
	a.Summary = strings.TrimSpace(a.Summary)
	return a, nil
}

// HTMLSanitizeMiddleware strips HTML tags and decodes entities. Body line
// breaks between paragraphs are kept.
type HTMLSanitizeMiddleware struct {
	stripRe *regexp.Regexp
}

func NewHTMLSanitizeMiddleware() *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(a *types.Article) (*types.Article, error) {
	a.Title = m.clean(a.Title)
	a.Category = m.clean(a.Category)

	if a.Body != "" {
		lines := strings.Split(a.Body, "\n")
		kept := lines[:0]
		for _, l := range lines {
			if c := m.clean(l); c != "" {
				kept = append(kept, c)
			}
		}
		a.Body = strings.Join(kept, "\n")
	}
	return a, nil
}

func (m *HTMLSanitizeMiddleware) clean(s string) string {
	if s == "" {
		return s
	}
	cleaned := m.stripRe.ReplaceAllString(s, "")
	cleaned = html.UnescapeString(cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}

// BoilerplateMiddleware removes publisher chrome from the body: fixed
// strings anywhere, and everything from the first cut marker on.
type BoilerplateMiddleware struct {
	Strings    []string
	CutMarkers []string
}

func (m *BoilerplateMiddleware) Name() string { return "boilerplate" }

func (m *BoilerplateMiddleware) Process(a *types.Article) (*types.Article, error) {
	body := a.Body
	for _, marker := range m.CutMarkers {
		if marker == "" {
			continue
		}
		if i := strings.Index(body, marker); i >= 0 {
			body = body[:i]
		}
	}
	for _, s := range m.Strings {
		if s != "" {
			body = strings.ReplaceAll(body, s, "")
		}
	}
	a.Body = body
	return a, nil
}

// KeywordMiddleware drops articles that do not mention the keyword,
// case-insensitively, in the title (TitleOnly) or in title or body.
type KeywordMiddleware struct {
	Keyword   string
	TitleOnly bool
}

func (m *KeywordMiddleware) Name() string { return "keyword" }

func (m *KeywordMiddleware) Process(a *types.Article) (*types.Article, error) {
	kw := strings.ToLower(strings.TrimSpace(m.Keyword))
	if kw == "" {
		return a, nil
	}
	if strings.Contains(strings.ToLower(a.Title), kw) {
		return a, nil
	}
	if !m.TitleOnly && strings.Contains(strings.ToLower(a.Body), kw) {
		return a, nil
	}
	return nil, nil
}

// CategoryCaseMiddleware title-cases category labels, so "EKONOMI",
// "ekonomi" and "Ekonomi" land in one bucket.
type CategoryCaseMiddleware struct{}

func (m *CategoryCaseMiddleware) Name() string { return "category_case" }

func (m *CategoryCaseMiddleware) Process(a *types.Article) (*types.Article, error) {
	if a.Category != "" {
		a.Category = cases.Title(language.Indonesian).String(strings.ToLower(a.Category))
	}
	return a, nil
}

// SummaryMiddleware fills Summary with the body's opening, cut at a word
// boundary to at most Length runes.
type SummaryMiddleware struct {
	Length int
}

func (m *SummaryMiddleware) Name() string { return "summary" }

func (m *SummaryMiddleware) Process(a *types.Article) (*types.Article, error) {
	if a.Summary != "" || a.Body == "" || m.Length <= 0 {
		return a, nil
	}
	a.Summary = truncateWords(strings.Join(strings.Fields(a.Body), " "), m.Length)
	return a, nil
}

func truncateWords(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:n])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
