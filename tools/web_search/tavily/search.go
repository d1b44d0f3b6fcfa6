package tavily

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchflow/internal/httpclient"
	"github.com/mohammad-safakhou/researchflow/tools/web_search/models"
)

const defaultEndpoint = "https://api.tavily.com/search"

type Search struct {
	ApiKey   string
	Endpoint string
	client   *httpclient.Client
}

func New(apiKey string, timeout time.Duration) *Search {
	return &Search{ApiKey: apiKey, Endpoint: defaultEndpoint, client: httpclient.New(timeout, 0, 0)}
}

func (s *Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	// https://docs.tavily.com/documentation/api-reference/endpoint/search
	if strings.TrimSpace(q) == "" {
		return nil, errors.New("tavily: empty query")
	}
	payload := map[string]any{
		"api_key":     s.ApiKey,
		"query":       q,
		"max_results": k,
	}
	headers := map[string]string{"Authorization": "Bearer " + s.ApiKey}

	var raw struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := s.client.DoJSON(ctx, http.MethodPost, s.Endpoint, headers, payload, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Result, 0, len(raw.Results))
	for _, r := range raw.Results {
		out = append(out, models.Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return out, nil
}
