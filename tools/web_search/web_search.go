package web_search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchflow/config"
	"github.com/mohammad-safakhou/researchflow/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchflow/tools/web_search/brave"
	"github.com/mohammad-safakhou/researchflow/tools/web_search/duckduckgo"
	"github.com/mohammad-safakhou/researchflow/tools/web_search/models"
	"github.com/mohammad-safakhou/researchflow/tools/web_search/serper"
	"github.com/mohammad-safakhou/researchflow/tools/web_search/tavily"
	"go.uber.org/zap"
)

// WebSearcher returns up to k results for q.
type WebSearcher interface {
	Discover(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	TavilyProvider     Provider = "tavily"
	DuckDuckGoProvider Provider = "duckduckgo"
	SerperProvider     Provider = "serper"
	BraveProvider      Provider = "brave"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrUnconfigured is returned for providers that need a credential
	// which was not supplied.
	ErrUnconfigured = errors.New("provider not configured")
)

// NewWebSearcher builds a single provider. Keyed providers without a key
// return ErrUnconfigured.
func NewWebSearcher(provider Provider, apiKey string, timeout time.Duration) (WebSearcher, error) {
	keyed := func() error {
		if strings.TrimSpace(apiKey) == "" {
			return fmt.Errorf("%s: %w", provider, ErrUnconfigured)
		}
		return nil
	}
	switch provider {
	case TavilyProvider:
		if err := keyed(); err != nil {
			return nil, err
		}
		return tavily.New(apiKey, timeout), nil
	case SerperProvider:
		if err := keyed(); err != nil {
			return nil, err
		}
		return serper.New(apiKey, timeout), nil
	case BraveProvider:
		if err := keyed(); err != nil {
			return nil, err
		}
		return brave.New(apiKey, timeout), nil
	case DuckDuckGoProvider:
		return duckduckgo.New(timeout), nil
	default:
		return nil, fmt.Errorf("%s: %w", provider, ErrUnsupportedProvider)
	}
}

type namedSearcher struct {
	name     Provider
	searcher WebSearcher
}

// Chain tries its providers in order until one yields results. Provider
// errors are logged and never surface: exhaustion yields an empty slice.
type Chain struct {
	providers []namedSearcher
	logger    *zap.Logger
	tele      *telemetry.Telemetry
}

// NewChain builds the ordered provider list from configuration. Providers
// that lack a credential are left out; unknown names are an error.
func NewChain(cfg config.WebSearchConfig, logger *zap.Logger, tele *telemetry.Telemetry) (*Chain, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Chain{logger: logger, tele: tele}
	for _, name := range cfg.Providers {
		p := Provider(name)
		s, err := NewWebSearcher(p, keyFor(cfg, p), cfg.Timeout)
		if errors.Is(err, ErrUnconfigured) {
			logger.Warn("search provider credential not set, skipping", zap.String("provider", name))
			continue
		}
		if err != nil {
			return nil, err
		}
		c.providers = append(c.providers, namedSearcher{name: p, searcher: s})
	}
	return c, nil
}

// Add appends a provider to the end of the chain.
func (c *Chain) Add(name Provider, s WebSearcher) *Chain {
	c.providers = append(c.providers, namedSearcher{name: name, searcher: s})
	return c
}

// Providers lists the active provider names in order.
func (c *Chain) Providers() []Provider {
	out := make([]Provider, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, p.name)
	}
	return out
}

// Discover implements WebSearcher. The returned error is always nil.
func (c *Chain) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	for _, p := range c.providers {
		log := c.logger.With(zap.String("provider", string(p.name)), zap.String("query", q))
		log.Info("searching")

		results, err := p.searcher.Discover(ctx, q, k)
		if err != nil {
			log.Error("search provider failed, falling back", zap.Error(err))
			c.tele.RecordSearch(string(p.name), telemetry.OutcomeFailure)
			continue
		}
		if len(results) == 0 {
			log.Warn("search provider returned no results, falling back")
			c.tele.RecordSearch(string(p.name), telemetry.OutcomeEmpty)
			continue
		}
		if len(results) > k && k > 0 {
			results = results[:k]
		}
		for i := range results {
			results[i].Source = string(p.name)
		}
		log.Info("search results found", zap.Int("count", len(results)))
		c.tele.RecordSearch(string(p.name), telemetry.OutcomeSuccess)
		return results, nil
	}
	c.logger.Warn("all search providers exhausted", zap.String("query", q))
	return []models.Result{}, nil
}

func keyFor(cfg config.WebSearchConfig, p Provider) string {
	switch p {
	case TavilyProvider:
		return cfg.TavilyAPIKey
	case BraveProvider:
		return cfg.BraveAPIKey
	case SerperProvider:
		return cfg.SerperAPIKey
	}
	return ""
}
