package chromedp

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mohammad-safakhou/researchflow/tools/web_fetch/extract"
	"github.com/mohammad-safakhou/researchflow/tools/web_fetch/models"
)

// Fetch renders pages in headless Chrome before extraction. It needs a Chrome
// binary on PATH.
type Fetch struct {
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
	Mode      extract.Mode
}

func (f Fetch) Exec(ctx context.Context, url string) models.Result {
	if strings.TrimSpace(url) == "" {
		return models.Failed(url, "invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	html, err := f.render(ctx, url)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return models.Failed(url, "Timeout: "+err.Error())
		}
		return models.Failed(url, "Connection error: "+err.Error())
	}

	page, err := extract.Extract(f.Mode, []byte(html), url, f.MaxChars)
	if err != nil {
		return models.Failed(url, err.Error())
	}
	return models.Result{URL: url, Title: page.Title, Content: page.Content, Success: true}
}

func (f Fetch) render(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(f.UserAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
