package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/IshaanNene/newsgoat/internal/types"
)

// SourceConfig is a per-portal profile: where its search listing lives and
// how its listing and article pages are laid out.
type SourceConfig struct {
	Name string `mapstructure:"name" yaml:"name"`

	// SearchURL is a template with {keyword}, {page} and {offset}
	// placeholders.
	SearchURL  string `mapstructure:"search_url"  yaml:"search_url"`
	OffsetStep int    `mapstructure:"offset_step" yaml:"offset_step"`

	// ListingFetcher and ArticleFetcher are "http" or "browser".
	ListingFetcher string `mapstructure:"listing_fetcher" yaml:"listing_fetcher"`
	ArticleFetcher string `mapstructure:"article_fetcher" yaml:"article_fetcher"`
	WaitSelector   string `mapstructure:"wait_selector"   yaml:"wait_selector"`

	// Syntax is "css" or "xpath" and applies to every selector below.
	Syntax  string           `mapstructure:"syntax"  yaml:"syntax"`
	Listing ListingSelectors `mapstructure:"listing" yaml:"listing"`
	Article ArticleSelectors `mapstructure:"article" yaml:"article"`

	DateLayouts []string `mapstructure:"date_layouts" yaml:"date_layouts"`

	// Descending states that listings are ordered newest first. Only then
	// may an item older than the window end the crawl.
	Descending bool `mapstructure:"descending" yaml:"descending"`

	TitleMustContainKeyword bool     `mapstructure:"title_must_contain_keyword" yaml:"title_must_contain_keyword"`
	DateFromURL             bool     `mapstructure:"date_from_url"              yaml:"date_from_url"`
	ExcludeLinkPrefixes     []string `mapstructure:"exclude_link_prefixes"      yaml:"exclude_link_prefixes"`
	Boilerplate             []string `mapstructure:"boilerplate"                yaml:"boilerplate"`
	BodyCutMarkers          []string `mapstructure:"body_cut_markers"           yaml:"body_cut_markers"`
}

// ListingSelectors locate candidates on a search-result page. Title and
// Link are relative to Item; empty means the item node itself.
type ListingSelectors struct {
	Item        string `mapstructure:"item"         yaml:"item"`
	Title       string `mapstructure:"title"        yaml:"title"`
	Link        string `mapstructure:"link"         yaml:"link"`
	LinkAttr    string `mapstructure:"link_attr"    yaml:"link_attr"`
	Date        string `mapstructure:"date"         yaml:"date"`
	DateAttr    string `mapstructure:"date_attr"    yaml:"date_attr"`
	DatePattern string `mapstructure:"date_pattern" yaml:"date_pattern"`
	Category    string `mapstructure:"category"     yaml:"category"`
}

// ArticleSelectors locate fields on an article page.
type ArticleSelectors struct {
	Title    string `mapstructure:"title"     yaml:"title"`
	Date     string `mapstructure:"date"      yaml:"date"`
	DateAttr string `mapstructure:"date_attr" yaml:"date_attr"`
	Body     string `mapstructure:"body"      yaml:"body"`
	Category string `mapstructure:"category"  yaml:"category"`
}

// ListingURL renders the search URL for a 1-based page number. The offset
// placeholder is left empty on the first page.
func (s SourceConfig) ListingURL(keyword string, page int) string {
	offset := ""
	if n := s.OffsetStep * (page - 1); n > 0 {
		offset = strconv.Itoa(n)
	}
	r := strings.NewReplacer(
		"{keyword}", url.QueryEscape(keyword),
		"{page}", strconv.Itoa(page),
		"{offset}", offset,
	)
	return r.Replace(s.SearchURL)
}

// UsesBrowser reports whether any page of this source needs the browser.
func (s SourceConfig) UsesBrowser() bool {
	return s.ListingFetcher == "browser" || s.ArticleFetcher == "browser"
}

// Source looks up a profile by name.
func (c *Config) Source(name string) (SourceConfig, error) {
	src, ok := c.Sources[strings.ToLower(name)]
	if !ok {
		return SourceConfig{}, fmt.Errorf("%w: %q", types.ErrUnknownSource, name)
	}
	if src.Name == "" {
		src.Name = strings.ToLower(name)
	}
	return src, nil
}

// SourceNames returns the configured profile names, sorted.
func (c *Config) SourceNames() []string {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuiltinSources returns the profiles shipped with newsgoat.
func BuiltinSources() map[string]SourceConfig {
	return map[string]SourceConfig{
		"detik": {
			Name:           "detik",
			SearchURL:      "https://www.detik.com/search/searchnews?query={keyword}&sortby=time&page={page}",
			ListingFetcher: "http",
			ArticleFetcher: "http",
			Syntax:         "css",
			Listing: ListingSelectors{
				Item:  "div.list-berita article",
				Title: "h2",
				Link:  "a",
				Date:  "span.date",
			},
			Article: ArticleSelectors{
				Title: "h1.detail__title",
				Date:  "div.detail__date",
				Body:  "div.detail__body-text p",
			},
			Descending:              true,
			TitleMustContainKeyword: true,
			Boilerplate:             []string{"ADVERTISEMENT", "SCROLL TO CONTINUE WITH CONTENT"},
		},
		"cnbcindonesia": {
			Name:           "cnbcindonesia",
			SearchURL:      "https://www.cnbcindonesia.com/search?query={keyword}&p={page}&kanal=&tipe=artikel&date=",
			ListingFetcher: "http",
			ArticleFetcher: "http",
			Syntax:         "css",
			Listing: ListingSelectors{
				Item:     "ul.gtm_indeks_feed article",
				Title:    "h2",
				Link:     "a",
				Date:     "span.date",
				Category: "span.label",
			},
			Article: ArticleSelectors{
				Title: "div.lm_content h1",
				Date:  "div.lm_content div.date",
				Body:  "div.detail_text p",
			},
			Descending:              true,
			TitleMustContainKeyword: true,
		},
		"sindonews": {
			Name:           "sindonews",
			SearchURL:      "https://search.sindonews.com/go?type=artikel&q={keyword}&t={offset}",
			OffsetStep:     20,
			ListingFetcher: "http",
			ArticleFetcher: "http",
			Syntax:         "css",
			Listing: ListingSelectors{
				Item:     "div.news-content",
				Title:    "div.news-title a",
				Link:     "div.news-title a",
				Date:     "div.news-date",
				Category: "div.newsc",
			},
			Article: ArticleSelectors{
				Title: "h1",
				Body:  "div.read__content",
			},
		},
		"tempo": {
			Name:           "tempo",
			SearchURL:      "https://www.tempo.co/search?q={keyword}&page={page}",
			ListingFetcher: "http",
			ArticleFetcher: "http",
			Syntax:         "css",
			Listing: ListingSelectors{
				Item:  "div.card-box",
				Title: "h2.title",
				Link:  "h2.title a",
			},
			Article: ArticleSelectors{
				Title:    "h1.title",
				Date:     `meta[property="article:published_time"]`,
				DateAttr: "content",
				Body:     `div[itemprop="articleBody"] p`,
			},
			Boilerplate:    []string{"TEMPO.CO, Jakarta - "},
			BodyCutMarkers: []string{"Pilihan editor:"},
		},
		"jawapos": {
			Name:           "jawapos",
			SearchURL:      "https://www.jawapos.com/search?q={keyword}&sort=latest&page={page}",
			ListingFetcher: "browser",
			ArticleFetcher: "http",
			WaitSelector:   ".latest__item",
			Syntax:         "css",
			Listing: ListingSelectors{
				Item:        ".latest__item",
				Title:       "h2.latest__title > a",
				Link:        "h2.latest__title > a",
				DatePattern: `\p{L}+, \d{1,2} \p{L}+ \d{4} \| \d{1,2}:\d{2} WIB`,
			},
			Article: ArticleSelectors{
				Title: "h1.read__title",
				Body:  "div.read__content p",
			},
			Descending: true,
		},
		"kompas": {
			Name:           "kompas",
			SearchURL:      "https://search.kompas.com/search/?q={keyword}#gsc.tab=0&gsc.q={keyword}&gsc.page={page}",
			ListingFetcher: "browser",
			ArticleFetcher: "http",
			WaitSelector:   ".gsc-results",
			Syntax:         "css",
			Listing: ListingSelectors{
				Item: "a.gs-title",
			},
			Article: ArticleSelectors{
				Title: "h1.read__title",
				Date:  "div.read__time",
				Body:  "div.read__content p",
			},
			DateFromURL:         true,
			ExcludeLinkPrefixes: []string{"https://www.kompas.com/tag/"},
		},
		"tribunnews": {
			Name:           "tribunnews",
			SearchURL:      "https://www.tribunnews.com/search?q={keyword}&siteurl=www.tribunnews.com#gsc.tab=0&gsc.q={keyword}&gsc.page={page}",
			ListingFetcher: "browser",
			ArticleFetcher: "http",
			WaitSelector:   ".gsc-results",
			Syntax:         "xpath",
			Listing: ListingSelectors{
				Item: `//a[contains(concat(" ", normalize-space(@class), " "), " gs-title ")]`,
			},
			Article: ArticleSelectors{
				Title: `//h1[@id="arttitle"]`,
				Date:  `//time`,
				Body:  `//div[contains(@class, "txt-article")]//p`,
			},
			DateFromURL: true,
		},
	}
}
