package web_fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/researchflow/config"
	"github.com/mohammad-safakhou/researchflow/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchflow/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/researchflow/tools/web_fetch/extract"
	httpfetch "github.com/mohammad-safakhou/researchflow/tools/web_fetch/http"
	"github.com/mohammad-safakhou/researchflow/tools/web_fetch/models"
	"go.uber.org/zap"
)

const (
	DefaultTimeout  = 10 * time.Second
	MaxCharsDefault = extract.DefaultMaxChars
)

// WebFetcher scrapes a single URL. Failures are reported through
// Result.Success and Result.Error, never as a Go error.
type WebFetcher interface {
	Exec(ctx context.Context, url string) models.Result
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

// NewWebFetcher builds the fetcher selected by cfg and wraps it with logging
// and scrape metrics.
func NewWebFetcher(cfg config.ScraperConfig, logger *zap.Logger, tele *telemetry.Telemetry) (WebFetcher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}
	mode := extract.Mode(cfg.Extractor)

	var inner WebFetcher
	switch FetcherType(cfg.Fetcher) {
	case HTTPFetcherType, "":
		inner = httpfetch.New(timeout, maxChars, cfg.UserAgent, mode)
	case ChromedpFetcherType:
		inner = chromedp.Fetch{Timeout: timeout, MaxChars: maxChars, UserAgent: cfg.UserAgent, Mode: mode}
	default:
		return nil, fmt.Errorf("unsupported fetcher type %q", cfg.Fetcher)
	}
	return Instrument(inner, logger, tele), nil
}

// Instrument decorates f with per-URL logging and scrape counters.
func Instrument(f WebFetcher, logger *zap.Logger, tele *telemetry.Telemetry) WebFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumented{inner: f, logger: logger, tele: tele}
}

type instrumented struct {
	inner  WebFetcher
	logger *zap.Logger
	tele   *telemetry.Telemetry
}

func (i *instrumented) Exec(ctx context.Context, url string) models.Result {
	log := i.logger.With(zap.String("url", url))
	log.Info("scraping url")
	res := i.inner.Exec(ctx, url)
	i.tele.RecordScrape(res.Success)
	if !res.Success {
		log.Error("scrape failed", zap.String("error", res.Error))
		return res
	}
	log.Info("scraped url", zap.Int("chars", len(res.Content)))
	return res
}
