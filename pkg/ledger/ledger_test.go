package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/relayline/governor/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CommitSpend(t *testing.T) {
	s := ledger.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CommitSpend(ctx, "USD", 400, 1000))
	require.NoError(t, s.CommitSpend(ctx, "USD", 500, 1000))
	assert.Equal(t, int64(900), s.DailySpent("USD"))

	// Third commit would cross the limit.
	err := s.CommitSpend(ctx, "USD", 200, 1000)
	assert.ErrorIs(t, err, ledger.ErrLimitExceeded)
	assert.Equal(t, int64(900), s.DailySpent("USD"))

	// Other currencies are independent keys.
	require.NoError(t, s.CommitSpend(ctx, "EUR", 200, 1000))
	assert.Equal(t, int64(200), s.DailySpent("EUR"))
}

// The central correctness property: concurrent committers must never drive
// the daily total past the limit, even when each observed a passing balance.
func TestMemoryStore_ConcurrentSpendNeverExceedsLimit(t *testing.T) {
	s := ledger.NewMemoryStore()
	ctx := context.Background()

	const limit = 1000
	const workers = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// 50 workers x 100 each: only 10 can land.
			_ = s.CommitSpend(ctx, "USD", 100, limit)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, s.DailySpent("USD"), int64(limit))
	assert.Equal(t, int64(limit), s.DailySpent("USD"))
}

func TestMemoryStore_CommitInteraction(t *testing.T) {
	s := ledger.NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CommitInteraction(ctx, "farcaster", 3, 0))
	}
	assert.Equal(t, 3, s.HourCount("farcaster"))

	err := s.CommitInteraction(ctx, "farcaster", 3, 0)
	assert.ErrorIs(t, err, ledger.ErrLimitExceeded)

	// Other platforms bucket separately.
	require.NoError(t, s.CommitInteraction(ctx, "lens", 3, 0))
}

func TestMemoryStore_Cooldown(t *testing.T) {
	now := time.Now()
	s := ledger.NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.CommitInteraction(ctx, "farcaster", 10, time.Minute))

	// Second post inside the cooldown window.
	err := s.CommitInteraction(ctx, "farcaster", 10, time.Minute)
	assert.ErrorIs(t, err, ledger.ErrCooldown)

	// After the cooldown elapses the post is admitted again.
	now = now.Add(61 * time.Second)
	require.NoError(t, s.CommitInteraction(ctx, "farcaster", 10, time.Minute))
}

func TestMemoryStore_ResetDaily(t *testing.T) {
	s := ledger.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CommitSpend(ctx, "USD", 900, 1000))
	s.ResetDaily()
	assert.Zero(t, s.DailySpent("USD"))

	// Full headroom is back after the reset.
	require.NoError(t, s.CommitSpend(ctx, "USD", 1000, 1000))
}

func TestMemoryStore_PruneHourly(t *testing.T) {
	now := time.Now()
	s := ledger.NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.CommitInteraction(ctx, "farcaster", 0, 0))
	assert.Equal(t, 1, s.HourCount("farcaster"))

	// A bucket from 25 hours ago is pruned; the current one survives.
	s.PruneHourly(now.Add(25 * time.Hour))
	assert.Equal(t, 1, s.HourCount("farcaster"))
	s.PruneHourly(now.Add(26 * time.Hour))

	now = now.Add(26 * time.Hour)
	assert.Zero(t, s.HourCount("farcaster"))
}
