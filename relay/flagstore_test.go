package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/relaybot/relay/kv"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const week = 7 * 24 * time.Hour

func TestFlagStoreActivateThenActive(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	flags := NewExpiringFlagStore(store)

	active, err := flags.IsActive(ctx, 1001, epoch)
	require.NoError(t, err)
	assert.False(t, active)

	until, err := flags.Activate(ctx, 1001, epoch, week)
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(week), until)

	active, err = flags.IsActive(ctx, 1001, epoch)
	require.NoError(t, err)
	assert.True(t, active)

	raw, ok, err := store.Get(ctx, "1001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-01-08T00:00:00Z", raw)
}

func TestFlagStoreExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	flags := NewExpiringFlagStore(store)

	_, err := flags.Activate(ctx, 1001, epoch, week)
	require.NoError(t, err)

	end := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	active, err := flags.IsActive(ctx, 1001, end.Add(-time.Nanosecond))
	require.NoError(t, err)
	assert.True(t, active, "still active just before expiry")

	active, err = flags.IsActive(ctx, 1001, end)
	require.NoError(t, err)
	assert.False(t, active, "inactive at the expiry instant")

	_, ok, err := store.Get(ctx, "1001")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry removed on read")

	until, err := flags.Activate(ctx, 1001, end, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, end.Add(time.Hour), until, "fresh entry, not an extension")
}

func TestFlagStoreActivateResetsCountdown(t *testing.T) {
	ctx := context.Background()
	flags := NewExpiringFlagStore(kv.NewMemory())

	_, err := flags.Activate(ctx, 5, epoch, week)
	require.NoError(t, err)
	until, err := flags.Activate(ctx, 5, epoch.Add(time.Hour), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(2*time.Hour), until)

	active, err := flags.IsActive(ctx, 5, epoch.Add(3*time.Hour))
	require.NoError(t, err)
	assert.False(t, active, "last write wins, durations do not add up")
}

func TestFlagStoreDeactivate(t *testing.T) {
	ctx := context.Background()
	flags := NewExpiringFlagStore(kv.NewMemory())

	lifted, err := flags.Deactivate(ctx, 9, epoch)
	require.NoError(t, err)
	assert.False(t, lifted, "absent key is a no-op")

	_, err = flags.Activate(ctx, 9, epoch, week)
	require.NoError(t, err)
	lifted, err = flags.Deactivate(ctx, 9, epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, lifted)

	active, err := flags.IsActive(ctx, 9, epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, active)

	_, err = flags.Activate(ctx, 9, epoch, time.Minute)
	require.NoError(t, err)
	lifted, err = flags.Deactivate(ctx, 9, epoch.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, lifted, "expired flag was not active")
}

func TestFlagStoreCorruptRecord(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, "42", "next tuesday"))
	flags := NewExpiringFlagStore(store)

	active, err := flags.IsActive(ctx, 42, epoch)
	require.NoError(t, err)
	assert.False(t, active)

	raw, ok, _ := store.Get(ctx, "42")
	assert.True(t, ok, "corrupt entry left for the next write")
	assert.Equal(t, "next tuesday", raw)

	_, err = flags.Activate(ctx, 42, epoch, week)
	require.NoError(t, err)
	active, err = flags.IsActive(ctx, 42, epoch)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestParseExpiryLayouts(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
		err  bool
	}{
		{raw: "2024-01-08T00:00:00Z", want: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)},
		{raw: "2024-01-08T03:00:00+03:00", want: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)},
		{raw: "2024-01-08T12:30:00.123456", want: time.Date(2024, 1, 8, 12, 30, 0, 123456000, time.UTC)},
		{raw: "2024-01-08", err: true},
		{raw: "", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseExpiry(tt.raw)
			if tt.err {
				assert.ErrorIs(t, err, ErrCorruptRecord)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

type failingStore struct {
	kv.Store
	err error
}

func (f failingStore) Get(context.Context, string) (string, bool, error) { return "", false, f.err }

func TestFlagStorePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	flags := NewExpiringFlagStore(failingStore{Store: kv.NewMemory(), err: boom})

	_, err := flags.IsActive(context.Background(), 1, epoch)
	assert.ErrorIs(t, err, boom)
}

// interposingStore runs between once after the first Get, standing in for
// another bot instance writing to the shared backend at that moment.
type interposingStore struct {
	kv.Store
	between func()
}

func (s *interposingStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.Store.Get(ctx, key)
	if s.between != nil {
		run := s.between
		s.between = nil
		run()
	}
	return v, ok, err
}

func TestFlagStoreExpiryCleanupKeepsConcurrentActivate(t *testing.T) {
	ctx := context.Background()
	shared := kv.NewMemory()
	other := NewExpiringFlagStore(shared)
	_, err := other.Activate(ctx, 5, epoch, time.Hour)
	require.NoError(t, err)

	later := epoch.Add(2 * time.Hour)
	store := &interposingStore{Store: shared}
	store.between = func() {
		_, err := other.Activate(ctx, 5, later, week)
		require.NoError(t, err)
	}
	flags := NewExpiringFlagStore(store)

	until, active, err := flags.Expiry(ctx, 5, later)
	require.NoError(t, err)
	assert.True(t, active, "fresh suspension is reported")
	assert.True(t, later.Add(week).Equal(until), "got %s", until)

	active, err = other.IsActive(ctx, 5, later)
	require.NoError(t, err)
	assert.True(t, active, "fresh suspension survives the expiry cleanup")
}

func TestFlagStoreConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	flags := NewExpiringFlagStore(kv.NewMemory())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = flags.Activate(ctx, 77, epoch, time.Duration(i+1)*time.Hour)
			_, _ = flags.IsActive(ctx, 77, epoch)
		}(i)
	}
	wg.Wait()

	active, err := flags.IsActive(ctx, 77, epoch)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Zero(t, flags.locks.size())
}
