package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/researchflow/internal/store"
	"go.uber.org/zap"
)

type ReportsHandler struct {
	Store  store.Store
	Logger *zap.Logger
}

type sourceResponse struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type reportResponse struct {
	ReportID  string           `json:"report_id"`
	SessionID string           `json:"session_id"`
	Topic     string           `json:"topic"`
	Content   string           `json:"content"`
	Sources   []sourceResponse `json:"sources"`
	WordCount int              `json:"word_count"`
	CreatedAt time.Time        `json:"created_at"`
}

func (h *ReportsHandler) Register(g *echo.Group) {
	g.GET("/report/:report_id", h.get)
}

func (h *ReportsHandler) get(c echo.Context) error {
	id := c.Param("report_id")
	r, err := h.Store.GetReport(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Report not found: "+id)
	}
	if err != nil {
		h.Logger.Error("fetch report failed", zap.String("report_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch report: "+err.Error())
	}

	sources := make([]sourceResponse, 0, len(r.Sources))
	for _, s := range r.Sources {
		sources = append(sources, sourceResponse{URL: s.URL, Title: s.Title, Snippet: s.Snippet})
	}
	return c.JSON(http.StatusOK, reportResponse{
		ReportID:  r.ReportID,
		SessionID: r.SessionID,
		Topic:     r.Topic,
		Content:   r.Content,
		Sources:   sources,
		WordCount: r.WordCount,
		CreatedAt: r.CreatedAt,
	})
}
