package parser

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ArticleMeta is what a page declares about itself in meta tags, JSON-LD
// or microdata, independent of its visible layout.
type ArticleMeta struct {
	Title       string
	Published   string
	Section     string
	Description string
}

// ExtractArticleMeta reads OpenGraph/article meta tags, JSON-LD and
// microdata. Meta tags win over JSON-LD, which wins over microdata.
func ExtractArticleMeta(doc *goquery.Document) ArticleMeta {
	var m ArticleMeta

	m.Published = metaContent(doc,
		`meta[property="article:published_time"]`,
		`meta[name="article:published_time"]`,
		`meta[name="publishdate"]`,
		`meta[name="pubdate"]`,
		`meta[name="content_PublishedDate"]`,
	)
	m.Title = metaContent(doc, `meta[property="og:title"]`, `meta[name="twitter:title"]`)
	m.Section = metaContent(doc, `meta[property="article:section"]`)
	m.Description = metaContent(doc, `meta[property="og:description"]`, `meta[name="description"]`)

	for _, obj := range jsonLDObjects(doc) {
		if m.Published == "" {
			m.Published = stringField(obj, "datePublished")
		}
		if m.Title == "" {
			m.Title = stringField(obj, "headline")
		}
		if m.Section == "" {
			m.Section = stringField(obj, "articleSection")
		}
		if m.Description == "" {
			m.Description = stringField(obj, "description")
		}
	}

	if m.Published == "" {
		sel := doc.Find(`[itemprop="datePublished"]`).First()
		if v, ok := sel.Attr("content"); ok {
			m.Published = v
		} else if v, ok := sel.Attr("datetime"); ok {
			m.Published = v
		}
	}

	if m.Title == "" {
		m.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return m
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, s := range selectors {
		if v, ok := doc.Find(s).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// jsonLDObjects returns every object in <script type="application/ld+json">,
// flattening top-level arrays and @graph.
func jsonLDObjects(doc *goquery.Document) []map[string]any {
	var out []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return
		}
		out = appendJSONLD(out, v)
	})
	return out
}

func appendJSONLD(out []map[string]any, v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			out = appendJSONLD(out, e)
		}
	case map[string]any:
		out = append(out, t)
		if g, ok := t["@graph"]; ok {
			out = appendJSONLD(out, g)
		}
	}
	return out
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
