// Package app assembles the service from configuration. Both commands share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"midgard-history/internal/cache"
	"midgard-history/internal/config"
	"midgard-history/internal/midgard"
	"midgard-history/internal/normalization"
	"midgard-history/internal/service"
	"midgard-history/internal/storage/memory"
	"midgard-history/internal/storage/migrations"
	pgstore "midgard-history/internal/storage/postgres"
)

// App holds the long-lived resources of a running process.
// Pool is nil with the memory driver, Redis and Cache when caching is disabled.
type App struct {
	Pool    *pgstore.Pool
	Redis   *redis.Client
	Cache   *cache.RedisCache
	Service *service.Service
}

// Build connects to the databases and wires the service.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	a := &App{}
	stores, err := a.openStores(connCtx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	var queryCache service.QueryCache
	if cfg.Redis.Enabled() {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.Cache = cache.NewRedisCache(a.Redis, cfg.Redis.TTL, logger.With("component", "cache"))
		if err := a.Cache.Ping(connCtx); err != nil {
			logger.Warn("redis unreachable, reads will fall through to storage", "addr", cfg.Redis.Addr, "error", err)
		}
		queryCache = a.Cache
	} else {
		logger.Info("query cache disabled")
	}

	client := midgard.NewClient(cfg.Midgard.BaseURL,
		midgard.WithTimeout(cfg.Midgard.Timeout),
		midgard.WithInterval(cfg.Midgard.Interval),
		midgard.WithCount(cfg.Midgard.Count),
		midgard.WithMaxRetries(cfg.Midgard.MaxRetries),
		midgard.WithRateLimit(cfg.Midgard.RequestsPerSecond, 1),
		midgard.WithLogger(logger.With("component", "midgard")),
	)

	normalizer := normalization.New(normalization.Options{
		Granularity: cfg.Midgard.Granularity(),
		Logger:      logger.With("component", "normalizer"),
	})

	svc, err := service.New(service.Options{
		Fetcher:    client,
		Normalizer: normalizer,
		Stores:     stores,
		Cache:      queryCache,
		Pools:      cfg.Midgard.Pools,
		Logger:     logger.With("component", "service"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Service = svc
	return a, nil
}

func (a *App) openStores(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (service.Stores, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("using in-memory storage, data is lost on exit")
		depths, swaps := memory.NewDepthStore(), memory.NewSwapStore()
		return service.Stores{
			Depth:    depths,
			Swaps:    swaps,
			Earnings: memory.NewEarningsStore(),
			RunePool: memory.NewRunePoolStore(),
			Activity: memory.NewPoolActivityStore(depths, swaps),
		}, nil
	}

	if cfg.Migrate {
		if err := migrations.RunPostgresMigrations(cfg.DSN); err != nil {
			return service.Stores{}, fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := pgstore.NewPool(ctx, cfg.DSN, cfg.MaxConns)
	if err != nil {
		return service.Stores{}, err
	}
	a.Pool = pool

	return service.Stores{
		Depth:    pgstore.NewDepthStore(pool),
		Swaps:    pgstore.NewSwapStore(pool),
		Earnings: pgstore.NewEarningsStore(pool),
		RunePool: pgstore.NewRunePoolStore(pool),
		Activity: pgstore.NewPoolActivityStore(pool),
	}, nil
}

// Close releases the database connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
