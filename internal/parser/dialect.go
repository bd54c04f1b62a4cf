package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/newsgoat/internal/types"
)

// node is a selection in either selector syntax. An empty selector always
// refers to the node itself.
type node interface {
	all(selector string) ([]node, error)
	text() string
	attr(name string) (string, bool)
}

type dialect interface {
	name() string
	root(resp *types.Response) (node, error)
}

func first(n node, selector string) (node, error) {
	if selector == "" {
		return n, nil
	}
	nodes, err := n.all(selector)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// --- CSS via goquery ---

type cssDialect struct{}

func (cssDialect) name() string { return "css" }

func (cssDialect) root(resp *types.Response) (node, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, err
	}
	return cssNode{doc.Selection}, nil
}

type cssNode struct{ sel *goquery.Selection }

// all never fails: goquery treats a malformed selector as matching nothing.
func (n cssNode) all(selector string) ([]node, error) {
	if selector == "" {
		return []node{n}, nil
	}
	var out []node
	n.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, cssNode{s})
	})
	return out, nil
}

func (n cssNode) text() string { return n.sel.Text() }

func (n cssNode) attr(name string) (string, bool) { return n.sel.Attr(name) }

// --- XPath via htmlquery ---

type xpathDialect struct{}

func (xpathDialect) name() string { return "xpath" }

func (xpathDialect) root(resp *types.Response) (node, error) {
	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, err
	}
	return xpathNode{doc}, nil
}

type xpathNode struct{ n *html.Node }

func (x xpathNode) all(expr string) ([]node, error) {
	if expr == "" {
		return []node{x}, nil
	}
	found, err := htmlquery.QueryAll(x.n, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	out := make([]node, 0, len(found))
	for _, f := range found {
		out = append(out, xpathNode{f})
	}
	return out, nil
}

func (x xpathNode) text() string { return htmlquery.InnerText(x.n) }

func (x xpathNode) attr(name string) (string, bool) {
	for _, a := range x.n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}
