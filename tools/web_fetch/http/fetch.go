// Package http scrapes pages with a plain net/http client.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchflow/tools/web_fetch/extract"
	"github.com/mohammad-safakhou/researchflow/tools/web_fetch/models"
	"golang.org/x/net/html/charset"
)

const maxBodyBytes = 10 << 20

type Fetch struct {
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
	Mode      extract.Mode
	Client    *http.Client
}

func New(timeout time.Duration, maxChars int, userAgent string, mode extract.Mode) *Fetch {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// The default client already follows up to 10 redirects.
	return &Fetch{
		Timeout:   timeout,
		MaxChars:  maxChars,
		UserAgent: userAgent,
		Mode:      mode,
		Client:    &http.Client{Timeout: timeout},
	}
}

// Exec never returns an error; failures are reported in the result.
func (f *Fetch) Exec(ctx context.Context, url string) models.Result {
	if strings.TrimSpace(url) == "" {
		return models.Failed(url, "invalid url")
	}
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Failed(url, err.Error())
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return models.Failed(url, Classify(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Failed(url, fmt.Sprintf("HTTP %d: %s for url %s", resp.StatusCode, resp.Status, url))
	}

	// Decode to UTF-8 using the declared or sniffed charset.
	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return models.Failed(url, Classify(err))
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return models.Failed(url, Classify(err))
	}
	page, err := extract.Extract(f.Mode, raw, url, f.MaxChars)
	if err != nil {
		return models.Failed(url, err.Error())
	}
	return models.Result{URL: url, Title: page.Title, Content: page.Content, Success: true}
}

// Classify renders a transport error with the prefix callers match on.
func Classify(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "Timeout: " + err.Error()
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if (errors.As(err, &opErr) && opErr.Op == "dial") || errors.As(err, &dnsErr) {
		return "Connection error: " + err.Error()
	}
	return err.Error()
}
