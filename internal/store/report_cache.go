package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/researchflow/config"
	"github.com/mohammad-safakhou/researchflow/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const reportKeyPrefix = "researchflow:report:"

// ReportCache puts Redis in front of a Store for report reads. Reports are
// immutable, so entries are never invalidated, only expired. Redis failures
// are logged and the backend answers instead.
type ReportCache struct {
	Store
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
	closer func() error
}

// NewReportCache dials Redis and wraps backend.
func NewReportCache(ctx context.Context, backend Store, cfg config.RedisConfig, logger *zap.Logger) (*ReportCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed (%s): %w", cfg.Addr(), err)
	}
	c := WrapReportCache(backend, rdb, cfg.TTL, logger)
	c.closer = rdb.Close
	return c, nil
}

// WrapReportCache builds a cache over an existing client. The caller keeps
// ownership of client.
func WrapReportCache(backend Store, client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *ReportCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportCache{Store: backend, client: client, ttl: ttl, logger: logger}
}

func (c *ReportCache) GetReport(ctx context.Context, reportID string) (models.Report, error) {
	key := reportKeyPrefix + reportID
	log := c.logger.With(zap.String("report_id", reportID))

	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var r models.Report
		if err := json.Unmarshal(val, &r); err == nil {
			return r, nil
		}
		log.Warn("discarding undecodable cached report")
	case !errors.Is(err, redis.Nil):
		log.Warn("report cache read failed", zap.Error(err))
	}

	r, err := c.Store.GetReport(ctx, reportID)
	if err != nil {
		return models.Report{}, err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return r, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warn("report cache write failed", zap.Error(err))
	}
	return r, nil
}

func (c *ReportCache) Close(ctx context.Context) error {
	err := c.Store.Close(ctx)
	if c.closer != nil {
		if cerr := c.closer(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
