package serper

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchflow/internal/httpclient"
	"github.com/mohammad-safakhou/researchflow/tools/web_search/models"
)

const defaultEndpoint = "https://google.serper.dev/search"

type Search struct {
	ApiKey   string
	Endpoint string
	client   *httpclient.Client
}

func New(apiKey string, timeout time.Duration) *Search {
	return &Search{ApiKey: apiKey, Endpoint: defaultEndpoint, client: httpclient.New(timeout, 0, 0)}
}

func (s *Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	// https://serper.dev/ docs
	if strings.TrimSpace(q) == "" {
		return nil, errors.New("serper: empty query")
	}
	payload := map[string]any{"q": q, "num": k}
	headers := map[string]string{"X-API-KEY": s.ApiKey}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := s.client.DoJSON(ctx, http.MethodPost, s.Endpoint, headers, payload, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Result, 0, len(raw.Organic))
	for i, r := range raw.Organic {
		if k > 0 && i >= k {
			break
		}
		out = append(out, models.Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}
