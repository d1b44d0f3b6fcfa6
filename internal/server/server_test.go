package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/researchflow/config"
	core "github.com/mohammad-safakhou/researchflow/internal/agent/core"
	"github.com/mohammad-safakhou/researchflow/internal/store"
	"github.com/mohammad-safakhou/researchflow/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingLauncher struct {
	mu    sync.Mutex
	calls [][3]string
}

func (l *recordingLauncher) Launch(sessionID, topic, depth string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, [3]string{sessionID, topic, depth})
}

// failingStore rejects every call with a fixed error.
type failingStore struct{ store.Store }

var errBackend = errors.New("backend down")

func (failingStore) CreateSession(context.Context, models.Session) error { return errBackend }
func (failingStore) GetSession(context.Context, string) (models.Session, error) {
	return models.Session{}, errBackend
}
func (failingStore) GetReport(context.Context, string) (models.Report, error) {
	return models.Report{}, errBackend
}

func newTestEcho(t *testing.T, st store.Store, l Launcher, origin string) *echo.Echo {
	t.Helper()
	return NewEcho(config.ServerConfig{FrontendURL: origin}, Deps{
		Store:    st,
		Launcher: l,
		Gatherer: prometheus.NewRegistry(),
		Logger:   zap.NewNop(),
	})
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRootAndHealth(t *testing.T) {
	e := newTestEcho(t, store.NewMemory(), &recordingLauncher{}, "")

	rec := do(e, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to ResearchFlow API", decode(t, rec)["message"])

	rec = do(e, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(e, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateResearch(t *testing.T) {
	st := store.NewMemory()
	l := &recordingLauncher{}
	e := newTestEcho(t, st, l, "")

	rec := do(e, http.MethodPost, "/api/research", `{"topic":"quantum error correction"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "Research workflow started successfully", body["message"])
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)

	sess, err := st.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, sess.Status)
	assert.Equal(t, 0, sess.Progress)
	assert.Equal(t, models.DefaultDepth, sess.Depth)
	assert.Nil(t, sess.ReportID)

	require.Len(t, l.calls, 1)
	assert.Equal(t, [3]string{id, "quantum error correction", "medium"}, l.calls[0])
}

func TestCreateResearchValidation(t *testing.T) {
	l := &recordingLauncher{}
	e := newTestEcho(t, store.NewMemory(), l, "")

	cases := map[string]string{
		"empty topic":      `{"topic":""}`,
		"whitespace topic": `{"topic":"   "}`,
		"missing topic":    `{"depth":"deep"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/api/research", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "topic is required", decode(t, rec)["detail"])
		})
	}

	rec := do(e, http.MethodPost, "/api/research", `{"topic":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, l.calls)
}

func TestCreateResearchStoreFailure(t *testing.T) {
	l := &recordingLauncher{}
	e := newTestEcho(t, failingStore{}, l, "")

	rec := do(e, http.MethodPost, "/api/research", `{"topic":"x"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to create research session: backend down", decode(t, rec)["detail"])
	assert.Empty(t, l.calls, "no run starts without a session")
}

func TestStatus(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, models.Session{
		SessionID:    "s-1",
		Topic:        "t",
		Status:       models.StatusWriterRunning,
		Progress:     40,
		CurrentAgent: models.StrPtr("writer"),
	}))
	e := newTestEcho(t, st, &recordingLauncher{}, "")

	rec := do(e, http.MethodGet, "/api/status/s-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "writer_running", body["status"])
	assert.EqualValues(t, 40, body["progress"])
	assert.Equal(t, "writer", body["current_agent"])
	assert.Nil(t, body["report_id"])
	assert.Nil(t, body["error_message"])
}

func TestStatusUnknownSession(t *testing.T) {
	e := newTestEcho(t, store.NewMemory(), &recordingLauncher{}, "")

	rec := do(e, http.MethodGet, "/api/status/nonexistent-id", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Research session not found: nonexistent-id", decode(t, rec)["detail"])

	e = newTestEcho(t, failingStore{}, &recordingLauncher{}, "")
	rec = do(e, http.MethodGet, "/api/status/s-1", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch session status: backend down", decode(t, rec)["detail"])
}

func TestGetReport(t *testing.T) {
	st := store.NewMemory()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, st.InsertReport(context.Background(), models.Report{
		ReportID:  "r-1",
		SessionID: "s-1",
		Topic:     "t",
		Content:   "# Report",
		Sources: []models.Source{
			{URL: "https://a.example", Title: "A", Snippet: "sa", Provider: "tavily"},
		},
		WordCount: 2,
		CreatedAt: created,
	}))
	e := newTestEcho(t, st, &recordingLauncher{}, "")

	first := do(e, http.MethodGet, "/api/report/r-1", "")
	require.Equal(t, http.StatusOK, first.Code)
	body := decode(t, first)
	assert.Equal(t, "# Report", body["content"])
	assert.EqualValues(t, 2, body["word_count"])
	assert.Equal(t, "2026-01-02T03:04:05Z", body["created_at"])
	sources, ok := body["sources"].([]any)
	require.True(t, ok)
	require.Len(t, sources, 1)
	assert.Equal(t, map[string]any{"url": "https://a.example", "title": "A", "snippet": "sa"}, sources[0])

	second := do(e, http.MethodGet, "/api/report/r-1", "")
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestGetReportErrors(t *testing.T) {
	e := newTestEcho(t, store.NewMemory(), &recordingLauncher{}, "")
	rec := do(e, http.MethodGet, "/api/report/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Report not found: missing", decode(t, rec)["detail"])

	e = newTestEcho(t, failingStore{}, &recordingLauncher{}, "")
	rec = do(e, http.MethodGet, "/api/report/r-1", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch report: backend down", decode(t, rec)["detail"])
}

func TestCORS(t *testing.T) {
	e := newTestEcho(t, store.NewMemory(), &recordingLauncher{}, "http://localhost:3000")

	req := httptest.NewRequest(http.MethodOptions, "/api/research", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	req.Header.Set(echo.HeaderAccessControlRequestHeaders, "Content-Type")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))
	assert.Equal(t, "Content-Type", rec.Header().Get(echo.HeaderAccessControlAllowHeaders))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderOrigin, "http://evil.example")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

type executorFunc func(ctx context.Context, sessionID, topic, depth string) *core.AgentState

func (f executorFunc) Run(ctx context.Context, sessionID, topic, depth string) *core.AgentState {
	return f(ctx, sessionID, topic, depth)
}

func TestRunnerWaitsForRuns(t *testing.T) {
	release := make(chan struct{})
	var got []string
	var mu sync.Mutex
	r := NewRunner(executorFunc(func(_ context.Context, id, topic, depth string) *core.AgentState {
		<-release
		mu.Lock()
		got = append(got, id)
		mu.Unlock()
		return core.NewAgentState(id, topic, depth)
	}), store.NewMemory(), zap.NewNop())

	r.Launch("s-1", "t", "medium")
	r.Launch("s-2", "t", "medium")

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.Wait(short), context.DeadlineExceeded)

	close(release)
	require.NoError(t, r.Wait(context.Background()))
	assert.ElementsMatch(t, []string{"s-1", "s-2"}, got)
}

func TestRunnerRecoversPanic(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, models.Session{SessionID: "s-1", Topic: "t", Status: models.StatusPending}))

	r := NewRunner(executorFunc(func(context.Context, string, string, string) *core.AgentState {
		panic("boom")
	}), st, zap.NewNop())
	r.Launch("s-1", "t", "medium")
	require.NoError(t, r.Wait(ctx))

	sess, err := st.GetSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, sess.Status)
	require.NotNil(t, sess.ErrorMessage)
	assert.Equal(t, "Pipeline crashed: boom", *sess.ErrorMessage)
}

func TestCreateLaunchesRunThroughRunner(t *testing.T) {
	st := store.NewMemory()
	done := make(chan string, 1)
	r := NewRunner(executorFunc(func(_ context.Context, id, topic, depth string) *core.AgentState {
		done <- topic
		return core.NewAgentState(id, topic, depth)
	}), st, zap.NewNop())
	e := newTestEcho(t, st, r, "")

	rec := do(e, http.MethodPost, "/api/research", `{"topic":"  padded topic ","depth":"deep"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, r.Wait(context.Background()))
	assert.Equal(t, "  padded topic ", <-done)
}
