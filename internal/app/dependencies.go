// Package app opens the shared infrastructure and builds the domain services
// used by both the API and the worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/pcquote-api/internal/config"
	"github.com/noah-isme/pcquote-api/internal/db"
	"github.com/noah-isme/pcquote-api/internal/obs"
)

// Dependencies holds connections shared across modules.
type Dependencies struct {
	DB         *pgxpool.Pool
	Store      *db.Store
	Redis      *redis.Client
	TaskRedis  asynq.RedisConnOpt
	TaskClient *asynq.Client
}

// Options tweaks what Open instruments.
type Options struct {
	ApplicationName string
	RedisMetrics    bool
	// MeterProvider receives the redis pool metrics; nil uses the global one.
	MeterProvider metric.MeterProvider
	// MetricsNamespace enables db_query_duration_seconds when set.
	MetricsNamespace string
}

// Open connects to Postgres and Redis, pinging both, and prepares an asynq
// client on the same Redis. Migrations run first when DB_AUTO_MIGRATE is set.
func Open(ctx context.Context, cfg *config.Config, opts Options, logger zerolog.Logger) (*Dependencies, error) {
	if cfg.DBAutoMigrate {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("migrations_applied")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	queryTracer := &obs.QueryTracer{}
	if opts.MetricsNamespace != "" {
		queryTracer = obs.NewQueryTracer(opts.MetricsNamespace, nil)
	}
	poolConfig.ConnConfig.Tracer = queryTracer
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if opts.ApplicationName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = opts.ApplicationName
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if opts.RedisMetrics {
		var metricOpts []redisotel.MetricsOption
		if opts.MeterProvider != nil {
			metricOpts = append(metricOpts, redisotel.WithMeterProvider(opts.MeterProvider))
		}
		if err := redisotel.InstrumentMetrics(rdb, metricOpts...); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	taskRedis, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("parse task redis url: %w", err)
	}

	return &Dependencies{
		DB:         pool,
		Store:      db.NewStore(pool),
		Redis:      rdb,
		TaskRedis:  taskRedis,
		TaskClient: asynq.NewClient(taskRedis),
	}, nil
}

// Close releases every connection, returning the first error.
func (d *Dependencies) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.TaskClient != nil {
		errs = append(errs, d.TaskClient.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if d.DB != nil {
		d.DB.Close()
	}
	return errors.Join(errs...)
}
