package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/relaybot/relay/kv"
)

// plainStore hides any DateAdvancer so the locked read-modify-write path runs.
type plainStore struct{ kv.Store }

func quotaBackends(t *testing.T) map[string]kv.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]kv.Store{
		"memory":       kv.NewMemory(),
		"memory-plain": plainStore{kv.NewMemory()},
		"redis":        kv.NewRedis(client, "test", kv.NamespaceDaily),
	}
}

func TestQuotaSameDayThenNextDay(t *testing.T) {
	d := NewDate(2024, 1, 1)
	for name, store := range quotaBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			q := NewDailyQuotaTracker(store)

			ok, err := q.TryConsume(ctx, 1001, d)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = q.TryConsume(ctx, 1001, d)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = q.TryConsume(ctx, 1001, d.AddDays(1))
			require.NoError(t, err)
			assert.True(t, ok)

			last, found, err := q.LastSend(ctx, 1001)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "2024-01-02", last.String())
		})
	}
}

func TestQuotaClockSkewNeverGrantsSecondSend(t *testing.T) {
	for name, store := range quotaBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			q := NewDailyQuotaTracker(store)

			ok, err := q.TryConsume(ctx, 5, NewDate(2024, 3, 10))
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = q.TryConsume(ctx, 5, NewDate(2024, 3, 9))
			require.NoError(t, err)
			assert.False(t, ok)

			last, _, err := q.LastSend(ctx, 5)
			require.NoError(t, err)
			assert.Equal(t, "2024-03-10", last.String(), "no mutation on rejection")
		})
	}
}

func TestQuotaImpossibleDateIsHealedOnEveryBackend(t *testing.T) {
	for name, store := range quotaBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, bad := range []string{"2024-99-99", "9999-02-30"} {
				require.NoError(t, store.Set(ctx, "1", bad))
				q := NewDailyQuotaTracker(store)

				ok, err := q.TryConsume(ctx, 1, NewDate(2024, 6, 1))
				require.NoError(t, err)
				assert.True(t, ok, "%q counts as no record", bad)

				raw, _, err := store.Get(ctx, "1")
				require.NoError(t, err)
				assert.Equal(t, "2024-06-01", raw)

				ok, err = q.TryConsume(ctx, 1, NewDate(2024, 6, 1))
				require.NoError(t, err)
				assert.False(t, ok, "healed record enforces the quota")
			}
		})
	}
}

func TestQuotaCorruptRecordHealed(t *testing.T) {
	ctx := context.Background()
	store := plainStore{kv.NewMemory()}
	require.NoError(t, store.Set(ctx, "3", "yesterday"))
	q := NewDailyQuotaTracker(store)

	_, found, err := q.LastSend(ctx, 3)
	require.NoError(t, err)
	assert.False(t, found)

	ok, err := q.TryConsume(ctx, 3, NewDate(2024, 1, 1))
	require.NoError(t, err)
	assert.True(t, ok)

	raw, _, _ := store.Get(ctx, "3")
	assert.Equal(t, "2024-01-01", raw)
}

func TestQuotaConcurrentSameKeyGrantsOnce(t *testing.T) {
	for name, store := range quotaBackends(t) {
		t.Run(name, func(t *testing.T) {
			q := NewDailyQuotaTracker(store)
			var granted atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := q.TryConsume(context.Background(), 2024, NewDate(2024, 6, 1))
					if err == nil && ok {
						granted.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.EqualValues(t, 1, granted.Load())
		})
	}
}

func TestQuotaDisjointKeys(t *testing.T) {
	ctx := context.Background()
	q := NewDailyQuotaTracker(kv.NewMemory())
	d := NewDate(2024, 1, 1)

	for _, id := range []int64{1, 2, 3} {
		ok, err := q.TryConsume(ctx, id, d)
		require.NoError(t, err)
		assert.True(t, ok, "user %d", id)
	}
}
