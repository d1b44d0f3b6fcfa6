package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/researchflow/config"
	core "github.com/mohammad-safakhou/researchflow/internal/agent/core"
	"github.com/mohammad-safakhou/researchflow/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchflow/internal/store"
	openai_provider "github.com/mohammad-safakhou/researchflow/provider/openai"
	"github.com/mohammad-safakhou/researchflow/tools/web_fetch"
	"github.com/mohammad-safakhou/researchflow/tools/web_search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Store    store.Store
	Launcher Launcher
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewEcho builds the router with the unified error handler, CORS and all
// routes.
func NewEcho(cfg config.ServerConfig, deps Deps) *echo.Echo {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpLogger := logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			httpLogger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	// Every error leaves as {"detail": "..."}.
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		if code >= http.StatusInternalServerError {
			httpLogger.Error("request failed", zap.Int("status", code), zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err))
		}
		if c.Response().Committed {
			return
		}
		if req.Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]string{"detail": msg})
	}
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     origins,
			AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete, http.MethodOptions},
			// AllowHeaders unset: echo mirrors the preflight's requested headers.
			AllowCredentials: true,
		}))
	}

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Welcome to ResearchFlow API"})
	})
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if deps.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	rh := &ResearchHandler{Store: deps.Store, Launcher: deps.Launcher, Logger: httpLogger}
	rh.Register(api)
	reports := &ReportsHandler{Store: deps.Store, Logger: httpLogger}
	reports.Register(api)
	return e
}

// Run wires the store, tools, LLM and pipeline from cfg and serves HTTP until
// ctx is cancelled. In-flight runs are drained within the shutdown timeout.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	st, err := store.Open(ctx, cfg.Storage, logger.Named("store"))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close(context.Background()) }()

	var (
		tele     *telemetry.Telemetry
		gatherer prometheus.Gatherer
	)
	if cfg.Telemetry.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if tele, err = telemetry.NewTelemetry(reg); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		gatherer = reg
	}

	search, err := web_search.NewChain(cfg.Sources.WebSearch, logger.Named("search"), tele)
	if err != nil {
		return fmt.Errorf("search providers: %w", err)
	}
	if len(search.Providers()) == 0 {
		logger.Warn("no search provider configured, every run will have empty research")
	}
	fetcher, err := web_fetch.NewWebFetcher(cfg.Scraper, logger.Named("scraper"), tele)
	if err != nil {
		return fmt.Errorf("scraper: %w", err)
	}
	llm := openai_provider.NewOpenAIClient(openai_provider.Options{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
	}, logger.Named("llm"))

	pipeline := core.NewPipeline(cfg, st, search, fetcher, llm, logger, tele)
	runner := NewRunner(pipeline, st, logger)

	e := NewEcho(cfg.Server, Deps{Store: st, Launcher: runner, Gatherer: gatherer, Logger: logger})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("address", cfg.Server.Address))
		if err := e.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	logger.Info("shutting down")
	if err := e.Shutdown(sctx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := runner.Wait(sctx); err != nil {
		logger.Warn("in-flight research runs did not finish before shutdown", zap.Error(err))
	}
	return nil
}
