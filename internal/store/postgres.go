package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/mohammad-safakhou/researchflow/models"
)

// Postgres stores sessions and reports in the tables created by the
// migrations directory.
type Postgres struct {
	DB *sql.DB
}

// NewPostgres opens and pings dsn.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{DB: db}, nil
}

func (p *Postgres) Close(ctx context.Context) error { return p.DB.Close() }

func (p *Postgres) CreateSession(ctx context.Context, s models.Session) error {
	_, err := p.DB.ExecContext(ctx, `
INSERT INTO research_sessions (session_id, topic, depth, status, progress, current_agent, report_id, error_message, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		s.SessionID, s.Topic, s.Depth, s.Status, s.Progress,
		nullString(s.CurrentAgent), nullString(s.ReportID), nullString(s.ErrorMessage), s.CreatedAt)
	if err != nil {
		return fmt.Errorf("create session %s: %w", s.SessionID, err)
	}
	return nil
}

func (p *Postgres) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	var (
		s                          models.Session
		agent, reportID, errorText sql.NullString
	)
	err := p.DB.QueryRowContext(ctx, `
SELECT session_id, topic, depth, status, progress, current_agent, report_id, error_message, created_at
FROM research_sessions WHERE session_id = $1`, sessionID).
		Scan(&s.SessionID, &s.Topic, &s.Depth, &s.Status, &s.Progress, &agent, &reportID, &errorText, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	s.CurrentAgent = stringPtr(agent)
	s.ReportID = stringPtr(reportID)
	s.ErrorMessage = stringPtr(errorText)
	return s, nil
}

// SaveSession upserts s; the row with the same session_id is overwritten.
func (p *Postgres) SaveSession(ctx context.Context, s models.Session) error {
	_, err := p.DB.ExecContext(ctx, `
INSERT INTO research_sessions (session_id, topic, depth, status, progress, current_agent, report_id, error_message, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (session_id) DO UPDATE SET
  status = EXCLUDED.status,
  progress = EXCLUDED.progress,
  current_agent = EXCLUDED.current_agent,
  report_id = EXCLUDED.report_id,
  error_message = EXCLUDED.error_message`,
		s.SessionID, s.Topic, s.Depth, s.Status, s.Progress,
		nullString(s.CurrentAgent), nullString(s.ReportID), nullString(s.ErrorMessage), s.CreatedAt)
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.SessionID, err)
	}
	return nil
}

func (p *Postgres) InsertReport(ctx context.Context, r models.Report) error {
	sources, err := json.Marshal(nonNilSources(r.Sources))
	if err != nil {
		return err
	}
	_, err = p.DB.ExecContext(ctx, `
INSERT INTO reports (report_id, session_id, topic, content, sources, word_count, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		r.ReportID, r.SessionID, r.Topic, r.Content, sources, r.WordCount, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", r.ReportID, err)
	}
	return nil
}

func (p *Postgres) GetReport(ctx context.Context, reportID string) (models.Report, error) {
	var (
		r       models.Report
		sources []byte
	)
	err := p.DB.QueryRowContext(ctx, `
SELECT report_id, session_id, topic, content, sources, word_count, created_at
FROM reports WHERE report_id = $1`, reportID).
		Scan(&r.ReportID, &r.SessionID, &r.Topic, &r.Content, &sources, &r.WordCount, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Report{}, ErrNotFound
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("get report %s: %w", reportID, err)
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &r.Sources); err != nil {
			return models.Report{}, fmt.Errorf("decode report sources: %w", err)
		}
	}
	r.Sources = nonNilSources(r.Sources)
	return r, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return models.StrPtr(ns.String)
}

func nonNilSources(s []models.Source) []models.Source {
	if s == nil {
		return []models.Source{}
	}
	return s
}
