package commands

import (
	"context"
	"fmt"
	"net/url"

	"github.com/wonny/tscore/backend/internal/audit"
	"github.com/wonny/tscore/backend/internal/metrics"
	"github.com/wonny/tscore/backend/internal/s0_data"
	"github.com/wonny/tscore/backend/internal/s0_data/quality"
	"github.com/wonny/tscore/backend/pkg/config"
	"github.com/wonny/tscore/backend/pkg/database"
	"github.com/wonny/tscore/backend/pkg/logger"
	"github.com/wonny/tscore/backend/pkg/redis"
)

// cachePrefix namespaces every Redis key this service writes
const cachePrefix = "tscore"

// runtime holds the process-wide dependencies of one command
type runtime struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB // nil without DATABASE_URL
	redis    *redis.Client
	recorder *metrics.Recorder // nil unless METRICS_ENABLED
}

// loadConfig reads the environment and applies global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if scoringConfig != "" {
		cfg.Scoring.ConfigPath = scoringConfig
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// openRuntime connects what the environment configures.
// requireDB fails fast when DATABASE_URL is missing.
func openRuntime(ctx context.Context, requireDB bool) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, log: logger.New(cfg)}

	if cfg.HasDatabase() {
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		rt.db = db
	} else if requireDB {
		return nil, database.ErrNoDatabaseURL
	}

	rc, err := redis.New(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	rt.redis = rc

	if cfg.MetricsEnabled {
		rt.recorder = metrics.New()
	}

	return rt, nil
}

// Close releases connections
func (rt *runtime) Close() {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.db != nil {
		rt.db.Close()
	}
}

// scoreRepo returns the score repository, or nil without a database
func (rt *runtime) scoreRepo() *audit.Repository {
	if rt.db == nil {
		return nil
	}
	return audit.NewRepository(rt.db.Pool)
}

// observationRepo returns the observation repository, or nil without a database
func (rt *runtime) observationRepo() *s0_data.Repository {
	if rt.db == nil {
		return nil
	}
	return s0_data.NewRepository(rt.db.Pool)
}

// qualityRepo returns the quality snapshot repository, or nil without a database
func (rt *runtime) qualityRepo() *quality.Repository {
	if rt.db == nil {
		return nil
	}
	return quality.NewRepository(rt.db.Pool)
}

// categoryStore fronts the score repository with the Redis cache
func (rt *runtime) categoryStore() *audit.CategoryStore {
	return audit.NewCategoryStore(rt.scoreRepo(), redis.NewCache(rt.redis, cachePrefix), rt.log)
}

// maskPassword hides the password of a database URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
