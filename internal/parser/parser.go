package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// PageParser turns raw listing and article payloads into structured
// values. Missing structure is reported as *types.ParseError so callers
// can skip the page or item.
type PageParser interface {
	ParseListing(resp *types.Response) ([]types.CandidateItem, error)
	ParseArticle(resp *types.Response) (*types.ArticleFields, error)
}

var (
	errMissing  = errors.New("selector matched nothing")
	errExcluded = errors.New("link excluded")
)

// SourceParser is a PageParser driven by a source profile's selectors.
type SourceParser struct {
	src         config.SourceConfig
	dialect     dialect
	dates       *DateParser
	loc         *time.Location
	datePattern *regexp.Regexp
	logger      *slog.Logger
}

// New selects the CSS or XPath variant from the profile's syntax.
func New(src config.SourceConfig, loc *time.Location, logger *slog.Logger) (*SourceParser, error) {
	switch src.Syntax {
	case "", "css":
		return NewCSSParser(src, loc, logger)
	case "xpath":
		return NewXPathParser(src, loc, logger)
	default:
		return nil, fmt.Errorf("unsupported selector syntax %q", src.Syntax)
	}
}

// NewCSSParser builds a goquery-backed parser.
func NewCSSParser(src config.SourceConfig, loc *time.Location, logger *slog.Logger) (*SourceParser, error) {
	return newSourceParser(src, cssDialect{}, loc, logger)
}

// NewXPathParser builds an htmlquery-backed parser.
func NewXPathParser(src config.SourceConfig, loc *time.Location, logger *slog.Logger) (*SourceParser, error) {
	return newSourceParser(src, xpathDialect{}, loc, logger)
}

func newSourceParser(src config.SourceConfig, d dialect, loc *time.Location, logger *slog.Logger) (*SourceParser, error) {
	if loc == nil {
		loc = time.UTC
	}
	p := &SourceParser{
		src:     src,
		dialect: d,
		dates:   NewDateParser(src.DateLayouts, loc),
		loc:     loc,
		logger:  logger.With("component", d.name()+"_parser", "source", src.Name),
	}
	if src.Listing.DatePattern != "" {
		re, err := regexp.Compile(src.Listing.DatePattern)
		if err != nil {
			return nil, fmt.Errorf("compile date pattern: %w", err)
		}
		p.datePattern = re
	}
	return p, nil
}

// ParseListing returns the page's candidates in listing order. A page
// whose item selector matches nothing yields no candidates and no error.
func (p *SourceParser) ParseListing(resp *types.Response) ([]types.CandidateItem, error) {
	root, err := p.dialect.root(resp)
	if err != nil {
		return nil, &types.ParseError{URL: resp.URL(), Field: "document", Err: err}
	}
	items, err := root.all(p.src.Listing.Item)
	if err != nil {
		return nil, &types.ParseError{URL: resp.URL(), Field: "listing.item", Err: err}
	}

	base, _ := url.Parse(resp.URL())
	page := 0
	if resp.Request != nil {
		page = resp.Request.Page
	}
	out := make([]types.CandidateItem, 0, len(items))
	var lastErr error
	for i, item := range items {
		c, err := p.candidate(item, base)
		if errors.Is(err, errExcluded) {
			continue
		}
		if err != nil {
			lastErr = err
			p.logger.Debug("skipping listing entry", "url", resp.URL(), "index", i, "error", err)
			continue
		}
		c.Page = page
		out = append(out, c)
	}

	if len(out) == 0 && lastErr != nil {
		return nil, &types.ParseError{URL: resp.URL(), Field: "listing", Err: lastErr}
	}
	return out, nil
}

func (p *SourceParser) candidate(item node, base *url.URL) (types.CandidateItem, error) {
	sel := p.src.Listing
	var c types.CandidateItem

	titleNode, err := first(item, sel.Title)
	if err != nil {
		return c, err
	}
	if titleNode != nil {
		c.Title = cleanText(titleNode.text())
	}
	if c.Title == "" {
		return c, &types.ParseError{Field: "title", Err: errMissing}
	}

	link, err := p.link(item, base)
	if err != nil {
		return c, err
	}
	for _, prefix := range p.src.ExcludeLinkPrefixes {
		if strings.HasPrefix(link, prefix) {
			return c, errExcluded
		}
	}
	c.URL = link

	if sel.Date != "" || p.datePattern != nil {
		t, err := p.listingDate(item)
		if err != nil {
			return c, err
		}
		c.PublishedAt = t
	}
	if c.PublishedAt == nil && p.src.DateFromURL {
		if t, ok := DateFromURL(link, p.loc); ok {
			c.PublishedAt = &t
		}
	}

	if sel.Category != "" {
		if n, _ := first(item, sel.Category); n != nil {
			c.Category = cleanText(n.text())
		}
	}
	return c, nil
}

func (p *SourceParser) link(item node, base *url.URL) (string, error) {
	n, err := first(item, p.src.Listing.Link)
	if err != nil {
		return "", err
	}
	attr := p.src.Listing.LinkAttr
	if attr == "" {
		attr = "href"
	}
	var href string
	if n != nil {
		href, _ = n.attr(attr)
	}
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return "", &types.ParseError{Field: "link", Err: errMissing}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", &types.ParseError{Field: "link", Err: err}
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", &types.ParseError{Field: "link", Err: fmt.Errorf("unsupported scheme %q", ref.Scheme)}
	}
	return ref.String(), nil
}

// listingDate returns nil when the listing carries no date for this item,
// leaving the decision to the article page. A present but malformed date
// is a DateParseError.
func (p *SourceParser) listingDate(item node) (*time.Time, error) {
	sel := p.src.Listing
	n, err := first(item, sel.Date)
	if err != nil || n == nil {
		return nil, err
	}

	raw := n.text()
	if sel.DateAttr != "" {
		raw, _ = n.attr(sel.DateAttr)
	}
	if p.datePattern != nil {
		raw = p.datePattern.FindString(raw)
	}
	raw = cleanText(raw)
	if raw == "" {
		return nil, nil
	}

	t, err := p.dates.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseArticle extracts the article fields. The publication date falls
// back to structured metadata and then to the URL path.
func (p *SourceParser) ParseArticle(resp *types.Response) (*types.ArticleFields, error) {
	root, err := p.dialect.root(resp)
	if err != nil {
		return nil, &types.ParseError{URL: resp.URL(), Field: "document", Err: err}
	}
	sel := p.src.Article
	fields := &types.ArticleFields{}

	var meta ArticleMeta
	if doc, err := resp.Document(); err == nil {
		meta = ExtractArticleMeta(doc)
	}

	if sel.Title != "" {
		if n, _ := first(root, sel.Title); n != nil {
			fields.Title = cleanText(n.text())
		}
	}
	if fields.Title == "" {
		fields.Title = meta.Title
	}

	if sel.Body != "" {
		nodes, err := root.all(sel.Body)
		if err != nil {
			return nil, &types.ParseError{URL: resp.URL(), Field: "body", Err: err}
		}
		var paras []string
		for _, n := range nodes {
			if t := cleanText(n.text()); t != "" {
				paras = append(paras, t)
			}
		}
		if len(paras) == 0 {
			return nil, &types.ParseError{URL: resp.URL(), Field: "body", Err: errMissing}
		}
		fields.Body = strings.Join(paras, "\n")
	}

	var dateErr error
	if sel.Date != "" {
		if n, _ := first(root, sel.Date); n != nil {
			raw := n.text()
			if sel.DateAttr != "" {
				raw, _ = n.attr(sel.DateAttr)
			}
			if t, err := p.dates.Parse(cleanText(raw)); err == nil {
				fields.PublishedAt = &t
			} else {
				dateErr = err
			}
		}
	}
	if fields.PublishedAt == nil && meta.Published != "" {
		if t, err := p.dates.Parse(meta.Published); err == nil {
			fields.PublishedAt = &t
		}
	}
	if fields.PublishedAt == nil && p.src.DateFromURL {
		if t, ok := DateFromURL(resp.URL(), p.loc); ok {
			fields.PublishedAt = &t
		}
	}
	if fields.PublishedAt == nil && dateErr != nil {
		return nil, &types.ParseError{URL: resp.URL(), Field: "date", Err: dateErr}
	}

	if sel.Category != "" {
		if n, _ := first(root, sel.Category); n != nil {
			fields.Category = cleanText(n.text())
		}
	}
	if fields.Category == "" {
		fields.Category = meta.Section
	}

	return fields, nil
}

// cleanText collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
