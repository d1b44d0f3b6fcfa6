package store

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/researchflow/models"
	"github.com/patrickmn/go-cache"
)

// Memory is a process-local store for development and tests. Nothing
// expires and nothing survives a restart.
type Memory struct {
	sessions *cache.Cache
	reports  *cache.Cache
}

func NewMemory() *Memory {
	return &Memory{
		sessions: cache.New(cache.NoExpiration, 0),
		reports:  cache.New(cache.NoExpiration, 0),
	}
}

func (m *Memory) Close(ctx context.Context) error { return nil }

func (m *Memory) CreateSession(ctx context.Context, s models.Session) error {
	if err := m.sessions.Add(s.SessionID, s, cache.NoExpiration); err != nil {
		return fmt.Errorf("create session %s: %w", s.SessionID, err)
	}
	return nil
}

func (m *Memory) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	v, ok := m.sessions.Get(sessionID)
	if !ok {
		return models.Session{}, ErrNotFound
	}
	return v.(models.Session), nil
}

func (m *Memory) SaveSession(ctx context.Context, s models.Session) error {
	m.sessions.Set(s.SessionID, s, cache.NoExpiration)
	return nil
}

func (m *Memory) InsertReport(ctx context.Context, r models.Report) error {
	r.Sources = append([]models.Source{}, r.Sources...)
	if err := m.reports.Add(r.ReportID, r, cache.NoExpiration); err != nil {
		return fmt.Errorf("insert report %s: %w", r.ReportID, err)
	}
	return nil
}

func (m *Memory) GetReport(ctx context.Context, reportID string) (models.Report, error) {
	v, ok := m.reports.Get(reportID)
	if !ok {
		return models.Report{}, ErrNotFound
	}
	r := v.(models.Report)
	r.Sources = append([]models.Source{}, r.Sources...)
	return r, nil
}
