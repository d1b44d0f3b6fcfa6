// Package store persists research sessions and reports. Three backends share
// the Store interface: MongoDB, Postgres and an in-process cache.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/researchflow/config"
	"github.com/mohammad-safakhou/researchflow/models"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a session or report id is unknown.
var ErrNotFound = errors.New("not found")

// Store is the persistence boundary of the pipeline and the HTTP API.
//
// SaveSession overwrites the stored session with the same id (last writer
// wins). Reports are insert-only.
type Store interface {
	CreateSession(ctx context.Context, s models.Session) error
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	SaveSession(ctx context.Context, s models.Session) error
	InsertReport(ctx context.Context, r models.Report) error
	GetReport(ctx context.Context, reportID string) (models.Report, error)
	Close(ctx context.Context) error
}

// Open connects the backend selected by cfg.Driver and, when enabled, puts
// the Redis report cache in front of it.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case config.DriverMongo:
		st, err = NewMongo(ctx, cfg.Mongo)
	case config.DriverPostgres:
		st, err = NewPostgres(ctx, cfg.Postgres.DSN())
	case config.DriverMemory:
		st = NewMemory()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	logger.Info("store opened", zap.String("driver", cfg.Driver))

	if !cfg.Redis.Enabled {
		return st, nil
	}
	cached, err := NewReportCache(ctx, st, cfg.Redis, logger)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}
	return cached, nil
}
