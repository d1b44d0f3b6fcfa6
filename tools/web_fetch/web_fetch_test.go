package web_fetch

import (
	"context"
	"testing"

	"github.com/mohammad-safakhou/researchflow/config"
	"github.com/mohammad-safakhou/researchflow/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchflow/tools/web_fetch/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubFetcher struct{ res models.Result }

func (s stubFetcher) Exec(ctx context.Context, url string) models.Result { return s.res }

func TestNewWebFetcherSelectsByConfig(t *testing.T) {
	_, err := NewWebFetcher(config.ScraperConfig{Fetcher: "http", Extractor: "strip"}, nil, nil)
	require.NoError(t, err)
	_, err = NewWebFetcher(config.ScraperConfig{Fetcher: "chromedp", Extractor: "readability"}, nil, nil)
	require.NoError(t, err)
	_, err = NewWebFetcher(config.ScraperConfig{Fetcher: "curl"}, nil, nil)
	require.Error(t, err)
}

func TestInstrumentPassesResultThrough(t *testing.T) {
	tele, err := telemetry.NewTelemetry(prometheus.NewRegistry())
	require.NoError(t, err)

	ok := models.Result{URL: "https://a", Title: "A", Content: "body", Success: true}
	f := Instrument(stubFetcher{res: ok}, zap.NewNop(), tele)
	assert.Equal(t, ok, f.Exec(context.Background(), "https://a"))

	bad := models.Failed("https://b", "HTTP 500: boom")
	f = Instrument(stubFetcher{res: bad}, nil, nil)
	assert.Equal(t, bad, f.Exec(context.Background(), "https://b"))
}
