package brave

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchflow/internal/httpclient"
	"github.com/mohammad-safakhou/researchflow/tools/web_search/models"
)

const defaultEndpoint = "https://api.search.brave.com/res/v1/web/search"

type Search struct {
	ApiKey   string
	Endpoint string
	client   *httpclient.Client
}

func New(apiKey string, timeout time.Duration) *Search {
	return &Search{ApiKey: apiKey, Endpoint: defaultEndpoint, client: httpclient.New(timeout, 0, 0)}
}

// Discover returns up to k results for q. Brave caps count at 20.
func (s *Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	// https://api.search.brave.com/app/documentation/web-search
	if strings.TrimSpace(q) == "" {
		return nil, errors.New("brave: empty query")
	}
	switch {
	case k < 1:
		k = 10
	case k > 20:
		k = 20
	}
	endpoint := fmt.Sprintf("%s?q=%s&count=%d", s.Endpoint, url.QueryEscape(q), k)
	headers := map[string]string{"X-Subscription-Token": s.ApiKey}

	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := s.client.DoJSON(ctx, http.MethodGet, endpoint, headers, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Result, 0, len(raw.Web.Results))
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, models.Result{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}
