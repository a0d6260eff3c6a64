package commands

import (
	"context"
	"fmt"

	"github.com/wonny/rsboard/internal/api/handlers"
	"github.com/wonny/rsboard/internal/docstore"
	"github.com/wonny/rsboard/internal/docstore/memstore"
	"github.com/wonny/rsboard/internal/docstore/pgstore"
	"github.com/wonny/rsboard/internal/docstore/redisstore"
	"github.com/wonny/rsboard/pkg/config"
	"github.com/wonny/rsboard/pkg/database"
	"github.com/wonny/rsboard/pkg/logger"
	"github.com/wonny/rsboard/pkg/redis"
)

// backend is the opened document store plus the connections behind it
type backend struct {
	Store docstore.Store
	Redis *redis.Client
	DB    *database.DB
}

// openBackend connects the configured store. Redis is opened whenever it is
// enabled, since the news collector caches and rate-limits through it.
func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backend, error) {
	b := &backend{}

	rc, err := redis.New(cfg)
	if err != nil {
		if cfg.Store.Backend == config.StoreRedis {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rc, _ = redis.New(&config.Config{})
	}
	b.Redis = rc

	switch cfg.Store.Backend {
	case config.StoreRedis:
		store, err := redisstore.New(rc, cfg.Store.Prefix, log)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		b.Store = store

	case config.StorePostgres:
		db, err := database.New(cfg)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		b.DB = db

		store := pgstore.New(db.Pool, log)
		if err := store.EnsureSchema(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("prepare document schema: %w", err)
		}
		b.Store = store

	case config.StoreMemory:
		b.Store = memstore.New()

	default:
		b.Close()
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	log.WithFields(map[string]interface{}{
		"backend": cfg.Store.Backend,
		"redis":   rc.Enabled(),
	}).Info("Document store opened")

	return b, nil
}

// addHealthChecks registers a check for every open connection
func (b *backend) addHealthChecks(h *handlers.HealthHandler) {
	if b.Redis.Enabled() {
		h.AddCheck("redis", func(ctx context.Context) error {
			return b.Redis.Redis().Ping(ctx).Err()
		})
	}
	if b.DB != nil {
		h.AddCheck("database", func(ctx context.Context) error {
			status, err := b.DB.HealthCheck(ctx)
			if err != nil {
				return err
			}
			if !status.Healthy {
				return fmt.Errorf("database unhealthy: %s", status.Error)
			}
			return nil
		})
	}
}

// Close releases the store first, then the connections it uses
func (b *backend) Close() {
	if b.Store != nil {
		b.Store.Close()
	}
	if b.DB != nil {
		b.DB.Close()
	}
	if b.Redis != nil {
		b.Redis.Close()
	}
}
