// Package duckduckgo queries the keyless DuckDuckGo HTML endpoint and parses
// the result list.
package duckduckgo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchflow/tools/web_search/models"
	"golang.org/x/net/html"
)

const defaultEndpoint = "https://html.duckduckgo.com/html/"

type Search struct {
	Endpoint  string
	UserAgent string
	client    *http.Client
}

func New(timeout time.Duration) *Search {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Search{
		Endpoint:  defaultEndpoint,
		UserAgent: "Mozilla/5.0 (compatible; ResearchFlow/1.0)",
		client:    &http.Client{Timeout: timeout},
	}
}

func (s *Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	if strings.TrimSpace(q) == "" {
		return nil, errors.New("duckduckgo: empty query")
	}
	form := url.Values{"q": {q}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, fmt.Errorf("duckduckgo %d: %s", resp.StatusCode, string(body))
	}
	results, err := ParseResults(resp.Body)
	if err != nil {
		return nil, err
	}
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// ParseResults extracts organic results from a DuckDuckGo HTML page. Ads and
// anchors without a usable link are dropped.
func ParseResults(r io.Reader) ([]models.Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: parse html: %w", err)
	}

	var out []models.Result
	var current *models.Result
	flush := func() {
		if current != nil && current.URL != "" {
			out = append(out, *current)
		}
		current = nil
	}

	var walk func(n *html.Node, inAd bool)
	walk = func(n *html.Node, inAd bool) {
		if n.Type == html.ElementNode {
			if hasClass(n, "result--ad") {
				inAd = true
			}
			switch {
			case n.Data == "a" && hasClass(n, "result__a") && !inAd:
				flush()
				current = &models.Result{
					URL:   resolveLink(attr(n, "href")),
					Title: strings.TrimSpace(textOf(n)),
				}
				return
			case hasClass(n, "result__snippet") && !inAd:
				if current != nil {
					current.Snippet = strings.TrimSpace(textOf(n))
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inAd)
		}
	}
	walk(doc, false)
	flush()
	return out, nil
}

// resolveLink unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=...).
func resolveLink(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
