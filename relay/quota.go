package relay

import (
	"context"
	"log/slog"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/relay/kv"
)

// DailyQuotaTracker allows one accepted submission per key per calendar day.
type DailyQuotaTracker struct {
	store kv.Store
	locks keyMutex
}

// NewDailyQuotaTracker wraps a backing store holding YYYY-MM-DD dates.
func NewDailyQuotaTracker(store kv.Store) *DailyQuotaTracker {
	return &DailyQuotaTracker{store: store}
}

// TryConsume records date as the last send day for key when the stored day
// is absent, corrupt or strictly earlier, and reports whether it did. A
// stored day equal to or later than date leaves the store untouched.
func (q *DailyQuotaTracker) TryConsume(ctx context.Context, key int64, date Date) (bool, error) {
	k := formatKey(key)
	unlock := q.locks.Lock(k)
	defer unlock()

	if adv, ok := q.store.(kv.DateAdvancer); ok {
		advanced, err := adv.AdvanceDate(ctx, k, date.String())
		if err != nil || advanced {
			return advanced, err
		}
		return q.healRefused(ctx, key, k, date)
	}

	raw, ok, err := q.store.Get(ctx, k)
	if err != nil {
		return false, err
	}
	if ok {
		last, perr := ParseDate(raw)
		if perr == nil && !last.Before(date) {
			return false, nil
		}
		if perr != nil {
			logger.Warn(ctx, "relay", "quota.corrupt",
				slog.Int64("user_id", key),
				slog.String("err", perr.Error()),
			)
		}
	}
	if err := q.store.Set(ctx, k, date.String()); err != nil {
		return false, err
	}
	return true, nil
}

// healRefused handles a server-side refusal. The backend only checks the
// shape of the stored value, so a well-formed but impossible date such as
// "2024-99-99" is swapped for date here. The swap fails if another instance
// wrote in between, and then the send is refused.
func (q *DailyQuotaTracker) healRefused(ctx context.Context, key int64, k string, date Date) (bool, error) {
	raw, ok, err := q.store.Get(ctx, k)
	if err != nil || !ok {
		return false, err
	}
	_, perr := ParseDate(raw)
	if perr == nil {
		return false, nil
	}
	logger.Warn(ctx, "relay", "quota.corrupt",
		slog.Int64("user_id", key),
		slog.String("err", perr.Error()),
	)
	return q.store.CompareAndSwap(ctx, k, raw, date.String())
}

// LastSend returns the stored last send day for key.
func (q *DailyQuotaTracker) LastSend(ctx context.Context, key int64) (Date, bool, error) {
	raw, ok, err := q.store.Get(ctx, formatKey(key))
	if err != nil || !ok {
		return Date{}, false, err
	}
	d, err := ParseDate(raw)
	if err != nil {
		return Date{}, false, nil
	}
	return d, true, nil
}
