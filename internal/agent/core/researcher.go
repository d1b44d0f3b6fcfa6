package core

import (
	"context"

	"github.com/mohammad-safakhou/researchflow/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchflow/internal/store"
	"github.com/mohammad-safakhou/researchflow/models"
	"github.com/mohammad-safakhou/researchflow/tools/web_fetch"
	fetchmodels "github.com/mohammad-safakhou/researchflow/tools/web_fetch/models"
	"github.com/mohammad-safakhou/researchflow/tools/web_search"
	searchmodels "github.com/mohammad-safakhou/researchflow/tools/web_search/models"
	"go.uber.org/zap"
)

// Researcher searches the web for the topic and scrapes the top results.
type Researcher struct {
	base
	search  web_search.WebSearcher
	fetcher web_fetch.WebFetcher
}

func NewResearcher(st store.Store, search web_search.WebSearcher, fetcher web_fetch.WebFetcher, logger *zap.Logger, tele *telemetry.Telemetry) *Researcher {
	return &Researcher{
		base:    newBase("researcher", StepResearcherFailed, st, logger, tele),
		search:  search,
		fetcher: fetcher,
	}
}

func (r *Researcher) Run(ctx context.Context, st *AgentState) {
	r.traced(ctx, st, func(ctx context.Context) error { return r.run(ctx, st) })
}

func (r *Researcher) run(ctx context.Context, st *AgentState) error {
	log := r.logger.With(zap.String("session_id", st.SessionID), zap.String("topic", st.Topic))
	log.Info("researcher started")

	sess, err := r.loadSession(ctx, st.SessionID)
	if err != nil {
		return err
	}
	if err := r.mark(ctx, sess, models.StatusResearcherRunning, 10, r.name); err != nil {
		return err
	}

	results, err := r.search.Discover(ctx, st.Topic, SearchResultCap)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		// An empty search is a valid outcome; the writer works from no content.
		log.Warn("no search results found")
		st.SearchResults = []searchmodels.Result{}
		st.ScrapedContent = []fetchmodels.Result{}
		st.CurrentStep = StepResearcherComplete
		return nil
	}
	log.Info("search results found", zap.Int("count", len(results)))

	n := len(results)
	if n > ScrapeLimit {
		n = ScrapeLimit
	}
	scraped := make([]fetchmodels.Result, 0, n)
	for _, res := range results[:n] {
		if page := r.fetcher.Exec(ctx, res.URL); page.Success {
			scraped = append(scraped, page)
		}
	}
	log.Info("scraping finished", zap.Int("succeeded", len(scraped)), zap.Int("attempted", n))

	if err := r.mark(ctx, sess, models.StatusResearcherComplete, 33, r.name); err != nil {
		return err
	}

	st.SearchResults = results
	st.ScrapedContent = scraped
	st.CurrentStep = StepResearcherComplete
	st.Error = nil
	log.Info("researcher completed")
	return nil
}
