package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/relaybot/core/health"
	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/relay/kv"
)

// stores is the pair of namespaces the relay core runs on, plus what the
// app needs to probe and release them.
type stores struct {
	suspensions kv.Store
	daily       kv.Store
	check       health.Check
	close       func() error
}

// openStores builds the configured backend. db is required for postgres.
func openStores(ctx context.Context, cfg StorageConfig, db *sqlx.DB) (*stores, error) {
	var (
		st  *stores
		err error
	)
	switch cfg.Backend {
	case BackendMemory:
		st = &stores{suspensions: kv.NewMemory(), daily: kv.NewMemory()}
	case BackendFile:
		st, err = openFileStores(cfg.Dir)
	case BackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("bot: postgres backend without a database connection")
		}
		st = &stores{
			suspensions: kv.NewPostgres(db, kv.NamespaceSuspensions),
			daily:       kv.NewPostgres(db, kv.NamespaceDaily),
			check:       db.PingContext,
		}
	case BackendRedis:
		st, err = openRedisStores(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("bot: unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "store", "store.opened", slog.String("backend", cfg.Backend))
	return st, nil
}

func openFileStores(dir string) (*stores, error) {
	susp, err := kv.OpenFile(dir, kv.NamespaceSuspensions)
	if err != nil {
		return nil, fmt.Errorf("bot: open suspensions file: %w", err)
	}
	daily, err := kv.OpenFile(dir, kv.NamespaceDaily)
	if err != nil {
		return nil, fmt.Errorf("bot: open daily file: %w", err)
	}
	return &stores{suspensions: susp, daily: daily}, nil
}

func openRedisStores(ctx context.Context, cfg RedisConfig) (*stores, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("bot: redis ping %s: %w", cfg.Addr, err)
	}
	return &stores{
		suspensions: kv.NewRedis(client, cfg.Prefix, kv.NamespaceSuspensions),
		daily:       kv.NewRedis(client, cfg.Prefix, kv.NamespaceDaily),
		check:       func(ctx context.Context) error { return client.Ping(ctx).Err() },
		close:       client.Close,
	}, nil
}
