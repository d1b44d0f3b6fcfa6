// Package extract turns raw HTML into a title and a bounded plain-text body.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type Mode string

const (
	// ModeStrip removes boilerplate subtrees and keeps every other text node.
	ModeStrip Mode = "strip"
	// ModeReadability picks the main article and falls back to ModeStrip.
	ModeReadability Mode = "readability"
)

const (
	DefaultMaxChars = 5000
	NoTitle         = "No title"
	ellipsis        = "..."
)

// Page is extracted content, already collapsed and truncated.
type Page struct {
	Title   string
	Content string
}

var skipped = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Nav:    true,
	atom.Footer: true,
	atom.Aside:  true,
}

// Extract applies mode to raw. maxChars <= 0 selects DefaultMaxChars.
func Extract(mode Mode, raw []byte, pageURL string, maxChars int) (Page, error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	var (
		p   Page
		err error
	)
	switch mode {
	case ModeReadability:
		p, err = Readability(raw, pageURL)
		if err != nil || p.Content == "" {
			p, err = Strip(raw)
		}
	case ModeStrip, "":
		p, err = Strip(raw)
	default:
		return Page{}, fmt.Errorf("extract: unknown mode %q", mode)
	}
	if err != nil {
		return Page{}, err
	}
	p.Content = Truncate(p.Content, maxChars)
	return p, nil
}

// Strip parses raw, drops script, style, nav, footer and aside elements and
// joins the remaining text with single spaces.
func Strip(raw []byte) (Page, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return Page{}, fmt.Errorf("extract: parse html: %w", err)
	}

	title := ""
	foundTitle := false
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipped[n.DataAtom] {
				return
			}
			if n.DataAtom == atom.Title && !foundTitle {
				foundTitle = true
				title = Collapse(textOf(n))
			}
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if !foundTitle {
		title = NoTitle
	}
	return Page{Title: title, Content: Collapse(strings.Join(parts, " "))}, nil
}

// Readability extracts the main article with go-readability.
func Readability(raw []byte, pageURL string) (Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(raw), u)
	if err != nil {
		return Page{}, err
	}
	title := Collapse(article.Title)
	if title == "" {
		title = NoTitle
	}
	return Page{Title: title, Content: Collapse(article.TextContent)}, nil
}

// Collapse replaces every whitespace run with a single space and trims the
// ends.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate keeps the first max runes of s and appends "..." when anything was
// cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + ellipsis
		}
		n++
	}
	return s
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
