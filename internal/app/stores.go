// Package app wires configuration to concrete adapters for the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/user/pagestate-service/internal/adapter/postgres"
	redis_adapter "github.com/user/pagestate-service/internal/adapter/redis"
	"github.com/user/pagestate-service/internal/adapter/sqlite"
	"github.com/user/pagestate-service/internal/delivery/http/handler"
	"github.com/user/pagestate-service/internal/repository"
	"github.com/user/pagestate-service/internal/usecase"
	"github.com/user/pagestate-service/pkg/config"
	"github.com/user/pagestate-service/pkg/metrics"
	"go.uber.org/zap"
)

// Stores holds the repositories selected by BLOCK_STORE and EVENT_STORE and
// the connections behind them.
type Stores struct {
	Blocks   repository.HostnameBlockRepository
	Accounts repository.AccountBlockRepository
	Events   repository.EventLogRepository
	Checks   map[string]handler.HealthCheck

	closers []func()
}

// OpenStores connects only the backends the configuration selects.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	s := &Stores{Checks: map[string]handler.HealthCheck{}}
	needs := map[string]bool{cfg.BlockStore: true, cfg.EventStore: true}

	var (
		pool *pgxpool.Pool
		lite *sqlite.Store
		rdb  *redis.Client
	)
	if needs["postgres"] {
		var err error
		pool, err = pgxpool.New(ctx, cfg.PostgresURL())
		if err != nil {
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("unable to reach database: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			s.Close()
			return nil, err
		}
		s.Checks["postgres"] = pool.Ping
		logger.Info("PostgreSQL connection pool established")
	}
	if needs["sqlite"] {
		var err error
		lite, err = sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = lite.Close() })
		logger.Info("SQLite store opened", zap.String("path", cfg.SQLitePath))
	}
	if needs["redis"] {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s.closers = append(s.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("unable to connect to redis: %w", err)
		}
		s.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("Redis connection established")
	}

	switch cfg.BlockStore {
	case "postgres":
		s.Blocks = postgres.NewHostnameBlockRepo(pool)
	case "redis":
		s.Blocks = redis_adapter.NewHostnameBlockRepo(rdb)
	case "sqlite":
		s.Blocks = lite
	}
	switch cfg.EventStore {
	case "postgres":
		s.Accounts = postgres.NewAccountBlockRepo(pool)
		s.Events = postgres.NewEventLogRepo(pool)
	case "sqlite":
		s.Accounts = lite
		s.Events = lite
	}
	return s, nil
}

// BanProtection builds the coordinator for this worker over the stores.
func (s *Stores) BanProtection(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *usecase.BanProtectionCoordinator {
	return usecase.NewBanProtectionCoordinator(s.Blocks, s.Accounts, s.Events, usecase.BanProtectionConfig{
		Hostname:   cfg.WorkerHostname,
		MinMinutes: cfg.BlockMinMinutes,
		MaxMinutes: cfg.BlockMaxMinutes,
	}, logger, m)
}

// Close releases connections in reverse order of opening.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
