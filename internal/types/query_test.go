package types

import (
	"errors"
	"testing"
	"time"
)

func TestRelativeWindow(t *testing.T) {
	end := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		unit  DurationUnit
		count int
		start time.Time
	}{
		{UnitDay, 3, time.Date(2024, 3, 28, 12, 0, 0, 0, time.UTC)},
		{UnitWeek, 2, time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC)},
		{UnitMonth, 1, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{UnitYear, 1, time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		w, err := RelativeWindow(tt.unit, tt.count, end)
		if err != nil {
			t.Fatalf("%s x%d: %v", tt.unit, tt.count, err)
		}
		if !w.Start.Equal(tt.start) {
			t.Errorf("%s x%d: expected start %s, got %s", tt.unit, tt.count, tt.start, w.Start)
		}
		if !w.End.Equal(end) {
			t.Errorf("%s x%d: end moved to %s", tt.unit, tt.count, w.End)
		}
	}

	if _, err := RelativeWindow(UnitDay, 0, end); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow for zero count, got %v", err)
	}
}

func TestParseDurationUnit(t *testing.T) {
	for _, in := range []string{"day", "Days", " WEEK ", "months", "year"} {
		if _, err := ParseDurationUnit(in); err != nil {
			t.Errorf("%q: unexpected error %v", in, err)
		}
	}
	if _, err := ParseDurationUnit("fortnight"); err == nil {
		t.Error("expected error for unknown unit")
	}
}

func TestDateWindowContainsBounds(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	w, err := NewDateWindow(start, end)
	if err != nil {
		t.Fatal(err)
	}
	if !w.Contains(start) || !w.Contains(end) {
		t.Error("bounds should be inclusive")
	}
	if w.Contains(start.Add(-time.Second)) || w.Contains(end.Add(time.Second)) {
		t.Error("values outside the window should not be contained")
	}
	if _, err := NewDateWindow(end, start); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow for inverted window, got %v", err)
	}
}

func TestSearchQueryValidate(t *testing.T) {
	w, _ := NewDateWindow(time.Now().AddDate(0, 0, -7), time.Now())
	if err := (SearchQuery{Keyword: "  ", Window: w}).Validate(); !errors.Is(err, ErrEmptyKeyword) {
		t.Errorf("expected ErrEmptyKeyword, got %v", err)
	}
	if err := (SearchQuery{Keyword: "banjir", Window: w, MaxPages: -1}).Validate(); err == nil {
		t.Error("expected error for negative max pages")
	}
	if err := (SearchQuery{Keyword: "banjir", Window: w}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDateParseErrorIsParseError(t *testing.T) {
	err := error(&DateParseError{Value: "kemarin", Err: errors.New("no layout")})
	if !errors.Is(err, ErrParse) {
		t.Error("DateParseError should match ErrParse")
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		t.Error("DateParseError is not a *ParseError value")
	}
}

func TestNewArticlePrefersPageFields(t *testing.T) {
	listed := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	paged := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
	c := CandidateItem{Title: "listing title", URL: "https://example.com/a", PublishedAt: &listed, Category: "News"}

	a := NewArticle(c, 4, &ArticleFields{Title: "page title", PublishedAt: &paged, Body: "body", Category: "Ignored"})
	if a.Title != "page title" || !a.PublishedAt.Equal(paged) || a.Body != "body" {
		t.Errorf("unexpected article %+v", a)
	}
	if a.Category != "News" {
		t.Errorf("listing category should win, got %q", a.Category)
	}
	if a.Index != 4 || a.Candidate.URL != c.URL {
		t.Error("article should stay paired with its candidate")
	}
}
