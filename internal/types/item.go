package types

import (
	"time"
)

// CandidateItem is one entry of a search-result listing.
type CandidateItem struct {
	Title string
	URL   string

	// PublishedAt is nil when the listing does not expose a date.
	PublishedAt *time.Time

	// Category is the listing's section label, if any.
	Category string

	// Page is the listing page the candidate was found on.
	Page int
}

// HasDate returns true if the listing exposed a publication date.
func (c CandidateItem) HasDate() bool {
	return c.PublishedAt != nil
}

// ArticleFields is what a parser extracts from an article page.
type ArticleFields struct {
	Title       string
	PublishedAt *time.Time
	Body        string
	Category    string
}

// ClassificationResult is a categorical label with a confidence in [0, 1].
type ClassificationResult struct {
	Label      string  `json:"label"      bson:"label"`
	Confidence float64 `json:"confidence" bson:"confidence"`
}

// Article is a candidate resolved against its article page.
type Article struct {
	Candidate CandidateItem

	// Index is the candidate's position in the accepted sequence.
	Index int

	Title       string
	URL         string
	PublishedAt time.Time
	Body        string
	Category    string
	Summary     string

	// Classifications is keyed by classifier name.
	Classifications map[string]ClassificationResult
}

// NewArticle merges article-page fields over the listing candidate.
// Listing values win only when the page leaves a field empty.
func NewArticle(c CandidateItem, index int, f *ArticleFields) *Article {
	a := &Article{
		Candidate: c,
		Index:     index,
		Title:     c.Title,
		URL:       c.URL,
		Category:  c.Category,
	}
	if c.PublishedAt != nil {
		a.PublishedAt = *c.PublishedAt
	}
	if f == nil {
		return a
	}
	if f.Title != "" {
		a.Title = f.Title
	}
	if f.PublishedAt != nil {
		a.PublishedAt = *f.PublishedAt
	}
	if f.Category != "" && a.Category == "" {
		a.Category = f.Category
	}
	a.Body = f.Body
	return a
}

// Classify attaches a result under the classifier name.
func (a *Article) Classify(name string, r ClassificationResult) {
	if a.Classifications == nil {
		a.Classifications = make(map[string]ClassificationResult)
	}
	a.Classifications[name] = r
}

// Record is the flat shape handed to a result sink.
type Record struct {
	Title           string                          `json:"title"                     bson:"title"`
	Date            time.Time                       `json:"date"                      bson:"date"`
	Link            string                          `json:"link"                      bson:"link"`
	Category        string                          `json:"category,omitempty"        bson:"category,omitempty"`
	Summary         string                          `json:"summary,omitempty"         bson:"summary,omitempty"`
	Content         string                          `json:"content,omitempty"         bson:"content,omitempty"`
	Classifications map[string]ClassificationResult `json:"classifications,omitempty" bson:"classifications,omitempty"`
}

// RecordFromArticle flattens a resolved article.
func RecordFromArticle(a *Article) Record {
	return Record{
		Title:           a.Title,
		Date:            a.PublishedAt,
		Link:            a.URL,
		Category:        a.Category,
		Summary:         a.Summary,
		Content:         a.Body,
		Classifications: a.Classifications,
	}
}
