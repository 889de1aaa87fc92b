package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/relay/kv"
)

// expiryLayouts lists accepted encodings of a stored expiry. The second form
// is a naive ISO-8601 timestamp, read as UTC.
var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func parseExpiry(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: expiry %q", ErrCorruptRecord, raw)
}

func formatKey(key int64) string { return strconv.FormatInt(key, 10) }

// ExpiringFlagStore maps keys to expiry instants. A flag is active while
// now < expiry; expired entries are removed by the read that notices them.
type ExpiringFlagStore struct {
	store kv.Store
	locks keyMutex
}

// NewExpiringFlagStore wraps a backing store holding RFC 3339 expiries.
func NewExpiringFlagStore(store kv.Store) *ExpiringFlagStore {
	return &ExpiringFlagStore{store: store}
}

// IsActive reports whether key carries an unexpired flag at now.
func (s *ExpiringFlagStore) IsActive(ctx context.Context, key int64, now time.Time) (bool, error) {
	_, active, err := s.Expiry(ctx, key, now)
	return active, err
}

// Expiry returns the expiry of an active flag. Expired entries are deleted
// and reported inactive; corrupt ones are reported inactive and left for the
// next Activate to overwrite. The delete only removes the value that was
// read, so a fresh Activate from another instance sharing the backend
// survives the cleanup.
func (s *ExpiringFlagStore) Expiry(ctx context.Context, key int64, now time.Time) (time.Time, bool, error) {
	k := formatKey(key)
	unlock := s.locks.Lock(k)
	defer unlock()

	raw, ok, err := s.store.Get(ctx, k)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ok {
		return time.Time{}, false, nil
	}
	expiry, err := parseExpiry(raw)
	if err != nil {
		logger.Warn(ctx, "relay", "flag.corrupt",
			slog.Int64("user_id", key),
			slog.String("err", err.Error()),
		)
		return time.Time{}, false, nil
	}
	if !now.Before(expiry) {
		removed, err := s.store.CompareAndDelete(ctx, k, raw)
		if err != nil {
			return time.Time{}, false, err
		}
		logger.Debug(ctx, "relay", "flag.expired",
			slog.Int64("user_id", key),
			slog.Time("expires_at", expiry),
			slog.Bool("removed", removed),
		)
		if !removed {
			// Rewritten since the read; report what is stored now.
			return s.current(ctx, k, now)
		}
		return time.Time{}, false, nil
	}
	return expiry, true, nil
}

// current re-reads key after a lost cleanup race without cleaning again.
func (s *ExpiringFlagStore) current(ctx context.Context, k string, now time.Time) (time.Time, bool, error) {
	raw, ok, err := s.store.Get(ctx, k)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	expiry, err := parseExpiry(raw)
	if err != nil || !now.Before(expiry) {
		return time.Time{}, false, nil
	}
	return expiry, true, nil
}

// Activate sets the flag to expire at now+d, replacing any previous expiry.
func (s *ExpiringFlagStore) Activate(ctx context.Context, key int64, now time.Time, d time.Duration) (time.Time, error) {
	k := formatKey(key)
	unlock := s.locks.Lock(k)
	defer unlock()

	expiry := now.Add(d).UTC()
	if err := s.store.Set(ctx, k, expiry.Format(time.RFC3339Nano)); err != nil {
		return time.Time{}, err
	}
	return expiry, nil
}

// Deactivate removes the flag for key. It reports whether an active flag
// was lifted; absent, expired or corrupt entries yield false.
func (s *ExpiringFlagStore) Deactivate(ctx context.Context, key int64, now time.Time) (bool, error) {
	k := formatKey(key)
	unlock := s.locks.Lock(k)
	defer unlock()

	raw, ok, err := s.store.Get(ctx, k)
	if err != nil || !ok {
		return false, err
	}
	if _, err := s.store.Delete(ctx, k); err != nil {
		return false, err
	}
	expiry, perr := parseExpiry(raw)
	return perr == nil && now.Before(expiry), nil
}
