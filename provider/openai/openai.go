package openai_provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchflow/internal/httpclient"
	"github.com/mohammad-safakhou/researchflow/provider"
	"go.uber.org/zap"
)

// client talks to any OpenAI-compatible chat completions endpoint (Groq by
// default).
type client struct {
	apiKey          string
	baseURL         string
	completionModel string
	temperature     float64
	maxTokens       int
	http            *httpclient.Client
	logger          *zap.Logger
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Options configures a client.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// NewOpenAIClient creates a new completion client
func NewOpenAIClient(opts Options, logger *zap.Logger) provider.Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &client{
		apiKey:          opts.APIKey,
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		completionModel: opts.Model,
		temperature:     opts.Temperature,
		maxTokens:       opts.MaxTokens,
		http:            httpclient.New(opts.Timeout, opts.MaxRetries, 0),
		logger:          logger,
	}
}

// Complete sends prompt as a single user message and returns the first
// choice. Every failure comes back as *provider.LLMError.
func (c *client) Complete(ctx context.Context, prompt string, model string) (string, error) {
	if model == "" {
		model = c.completionModel
	}
	c.logger.Info("calling llm", zap.String("model", model), zap.Int("prompt_chars", len(prompt)))

	out, err := c.sendRequest(ctx, model, []Message{{Role: "user", Content: prompt}})
	if err != nil {
		wrapped := provider.NewLLMError(err)
		c.logger.Error(wrapped.Message, zap.String("model", model))
		return "", wrapped
	}
	c.logger.Info("llm response received", zap.Int("chars", len(out)))
	return out, nil
}

func (c *client) sendRequest(ctx context.Context, model string, messages []Message) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", errors.New("api key not configured")
	}
	body := request{
		Model:       model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var resp response
	if err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/chat/completions", headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	content := resp.Choices[0].Message.Content
	if content == nil {
		return "", fmt.Errorf("empty message content in response")
	}
	return *content, nil
}
