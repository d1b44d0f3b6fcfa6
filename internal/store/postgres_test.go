package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/mohammad-safakhou/researchflow/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &Postgres{DB: db}, mock
}

func TestPostgresCreateSession(t *testing.T) {
	st, mock := newMockPostgres(t)
	s := models.Session{
		SessionID: "s-1",
		Topic:     "quantum computing",
		Depth:     models.DefaultDepth,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO research_sessions`)).
		WithArgs("s-1", "quantum computing", "medium", "pending", 0, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, st.CreateSession(context.Background(), s))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveSessionUpserts(t *testing.T) {
	st, mock := newMockPostgres(t)
	s := models.Session{
		SessionID:    "s-1",
		Topic:        "t",
		Depth:        "medium",
		Status:       models.StatusComplete,
		Progress:     100,
		CurrentAgent: models.StrPtr("editor"),
		ReportID:     models.StrPtr("r-1"),
	}

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (session_id) DO UPDATE SET`)).
		WithArgs("s-1", "t", "medium", "complete", 100, "editor", "r-1", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, st.SaveSession(context.Background(), s))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSession(t *testing.T) {
	st, mock := newMockPostgres(t)
	now := time.Now().UTC()

	query := regexp.QuoteMeta(`FROM research_sessions WHERE session_id = $1`)
	mock.ExpectQuery(query).WithArgs("s-1").WillReturnRows(
		sqlmock.NewRows([]string{"session_id", "topic", "depth", "status", "progress", "current_agent", "report_id", "error_message", "created_at"}).
			AddRow("s-1", "t", "medium", "failed", 40, "writer", nil, "Writer node failed: boom", now))

	got, err := st.GetSession(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, 40, got.Progress)
	require.NotNil(t, got.CurrentAgent)
	assert.Equal(t, "writer", *got.CurrentAgent)
	assert.Nil(t, got.ReportID)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "Writer node failed: boom", *got.ErrorMessage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSessionNotFound(t *testing.T) {
	st, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM research_sessions`)).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := st.GetSession(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresGetSessionDriverError(t *testing.T) {
	st, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM research_sessions`)).WithArgs("s-1").WillReturnError(errors.New("conn reset"))

	_, err := st.GetSession(context.Background(), "s-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestPostgresInsertReportStoresSourcesAsJSON(t *testing.T) {
	st, mock := newMockPostgres(t)
	r := models.Report{
		ReportID:  "r-1",
		SessionID: "s-1",
		Topic:     "t",
		Content:   "# Report",
		Sources:   []models.Source{{URL: "https://a", Title: "A", Snippet: "sa"}},
		WordCount: 2,
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO reports`)).
		WithArgs("r-1", "s-1", "t", "# Report", []byte(`[{"url":"https://a","title":"A","snippet":"sa"}]`), 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, st.InsertReport(context.Background(), r))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetReport(t *testing.T) {
	st, mock := newMockPostgres(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM reports WHERE report_id = $1`)).WithArgs("r-1").WillReturnRows(
		sqlmock.NewRows([]string{"report_id", "session_id", "topic", "content", "sources", "word_count", "created_at"}).
			AddRow("r-1", "s-1", "t", "body", []byte(`[{"url":"https://a","title":"A","snippet":"sa"},{"url":"https://b","title":"B","snippet":""}]`), 612, now))

	got, err := st.GetReport(context.Background(), "r-1")
	require.NoError(t, err)
	require.Len(t, got.Sources, 2)
	assert.Equal(t, "https://b", got.Sources[1].URL)
	assert.Equal(t, 612, got.WordCount)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM reports`)).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	_, err = st.GetReport(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}
