package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/relaybot/core/logger"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultPoolSize       = 4
	pingInterval          = 2 * time.Second
)

// Connect opens the Postgres pool and waits until the server answers a
// ping, which covers a database container that is still starting. It gives
// up after cfg.ConnectTimeoutSeconds or when ctx ends.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	timeout := defaultConnectTimeout
	if cfg.ConnectTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.ConnectTimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := []slog.Attr{
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}

	start := time.Now()
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	attempts, err := waitReady(ctx, db, pingInterval)
	if err != nil {
		_ = db.Close()
		logger.Error(ctx, "db", "db.connect", append(target,
			slog.String("status", "fail"),
			slog.Int("attempts", attempts),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	size := cfg.MaxConnections
	if size <= 0 {
		size = defaultPoolSize
	}
	db.SetMaxOpenConns(size)
	db.SetMaxIdleConns(size)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logger.Info(ctx, "db", "db.connect", append(target,
		slog.String("status", "ok"),
		slog.Int("attempts", attempts),
		slog.Int("pool_open", size),
		slog.Duration("duration", logger.Took(start)),
	)...)
	return db, nil
}

// waitReady pings db every interval until it answers or ctx ends. It
// returns the number of pings sent.
func waitReady(ctx context.Context, db *sqlx.DB, interval time.Duration) (int, error) {
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			return attempt, nil
		}
		logger.Debug(ctx, "db", "db.ping",
			slog.String("status", "retry"),
			slog.Int("attempts", attempt),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, fmt.Errorf("database not ready: %w", err)
		case <-timer.C:
		}
	}
}
