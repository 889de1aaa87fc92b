package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/relaybot/core/logger"
)

const (
	pgGet = `SELECT value FROM relay_kv WHERE namespace = $1 AND key = $2`

	pgSet = `INSERT INTO relay_kv (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	pgDelete = `DELETE FROM relay_kv WHERE namespace = $1 AND key = $2`

	pgSwap = `UPDATE relay_kv SET value = $4, updated_at = now()
WHERE namespace = $1 AND key = $2 AND value = $3`

	pgDeleteIf = `DELETE FROM relay_kv WHERE namespace = $1 AND key = $2 AND value = $3`

	// The conditional upsert only touches the row when the stored value is
	// not a date or is an earlier one, so RowsAffected reports the outcome.
	pgAdvance = `INSERT INTO relay_kv (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
WHERE relay_kv.value !~ '^[0-9]{4}-[0-9]{2}-[0-9]{2}$'
   OR relay_kv.value COLLATE "C" < EXCLUDED.value COLLATE "C"`
)

// Postgres stores a namespace as rows of the relay_kv table created by the
// 000001 migration.
type Postgres struct {
	db        *sqlx.DB
	namespace string
}

// NewPostgres binds a namespace to an open connection pool.
func NewPostgres(db *sqlx.DB, namespace string) *Postgres {
	return &Postgres{db: db, namespace: namespace}
}

// Get returns the value stored for key.
func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.db.GetContext(ctx, &value, pgGet, p.namespace, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, p.fail(ctx, "get", key, err)
	}
	return value, true, nil
}

// Set upserts the value for key.
func (p *Postgres) Set(ctx context.Context, key, value string) error {
	if _, err := p.db.ExecContext(ctx, pgSet, p.namespace, key, value); err != nil {
		return p.fail(ctx, "set", key, err)
	}
	return nil
}

// Delete removes key.
func (p *Postgres) Delete(ctx context.Context, key string) (bool, error) {
	res, err := p.db.ExecContext(ctx, pgDelete, p.namespace, key)
	if err != nil {
		return false, p.fail(ctx, "delete", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, p.fail(ctx, "delete", key, err)
	}
	return n > 0, nil
}

// CompareAndSwap updates the row only while it still holds old.
func (p *Postgres) CompareAndSwap(ctx context.Context, key, old, value string) (bool, error) {
	return p.execAffected(ctx, "cas", key, pgSwap, p.namespace, key, old, value)
}

// CompareAndDelete deletes the row only while it still holds old.
func (p *Postgres) CompareAndDelete(ctx context.Context, key, old string) (bool, error) {
	return p.execAffected(ctx, "cad", key, pgDeleteIf, p.namespace, key, old)
}

func (p *Postgres) execAffected(ctx context.Context, op, key, query string, args ...any) (bool, error) {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, p.fail(ctx, op, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, p.fail(ctx, op, key, err)
	}
	return n > 0, nil
}

// AdvanceDate implements DateAdvancer with a single conditional upsert.
func (p *Postgres) AdvanceDate(ctx context.Context, key, date string) (bool, error) {
	start := time.Now()
	res, err := p.db.ExecContext(ctx, pgAdvance, p.namespace, key, date)
	if err != nil {
		return false, p.fail(ctx, "advance", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, p.fail(ctx, "advance", key, err)
	}
	logger.Debug(ctx, "store", "pg.advance",
		slog.String("status", "ok"),
		slog.String("namespace", p.namespace),
		slog.String("key", key),
		slog.Bool("advanced", n > 0),
		slog.Duration("duration", logger.Took(start)),
	)
	return n > 0, nil
}

func (p *Postgres) fail(ctx context.Context, op, key string, err error) error {
	logger.Error(ctx, "store", "pg."+op,
		slog.String("status", "fail"),
		slog.String("namespace", p.namespace),
		slog.String("key", key),
		slog.String("err", err.Error()),
	)
	return fmt.Errorf("kv: postgres %s %s/%s: %w", op, p.namespace, key, err)
}
