package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/researchflow/internal/store"
	"github.com/mohammad-safakhou/researchflow/models"
	"go.uber.org/zap"
)

// Launcher starts a background run for a freshly created session.
type Launcher interface {
	Launch(sessionID, topic, depth string)
}

type ResearchHandler struct {
	Store    store.Store
	Launcher Launcher
	Logger   *zap.Logger
}

type researchRequest struct {
	Topic string `json:"topic"`
	Depth string `json:"depth"`
}

type researchResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type statusResponse struct {
	SessionID    string  `json:"session_id"`
	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	CurrentAgent *string `json:"current_agent"`
	ReportID     *string `json:"report_id"`
	ErrorMessage *string `json:"error_message"`
}

func (h *ResearchHandler) Register(g *echo.Group) {
	g.POST("/research", h.create)
	g.GET("/status/:session_id", h.status)
}

func (h *ResearchHandler) create(c echo.Context) error {
	var req researchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	topic := req.Topic
	if strings.TrimSpace(topic) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}
	depth := req.Depth
	if depth == "" {
		depth = models.DefaultDepth
	}

	sess := models.Session{
		SessionID: uuid.NewString(),
		Topic:     topic,
		Depth:     depth,
		Status:    models.StatusPending,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}
	log := h.Logger.With(zap.String("session_id", sess.SessionID), zap.String("topic", topic))
	if err := h.Store.CreateSession(c.Request().Context(), sess); err != nil {
		log.Error("create session failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create research session: "+err.Error())
	}
	log.Info("research session created")

	h.Launcher.Launch(sess.SessionID, sess.Topic, sess.Depth)

	return c.JSON(http.StatusOK, researchResponse{
		SessionID: sess.SessionID,
		Status:    models.StatusPending,
		Message:   "Research workflow started successfully",
	})
}

func (h *ResearchHandler) status(c echo.Context) error {
	id := c.Param("session_id")
	sess, err := h.Store.GetSession(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Research session not found: "+id)
	}
	if err != nil {
		h.Logger.Error("fetch session status failed", zap.String("session_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch session status: "+err.Error())
	}
	return c.JSON(http.StatusOK, statusResponse{
		SessionID:    sess.SessionID,
		Status:       sess.Status,
		Progress:     sess.Progress,
		CurrentAgent: sess.CurrentAgent,
		ReportID:     sess.ReportID,
		ErrorMessage: sess.ErrorMessage,
	})
}
