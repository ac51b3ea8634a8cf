// Package ledger holds the only mutable shared counters in the system: daily
// spend per currency and hourly interaction counts per platform. The
// check-then-commit sequence is serialized per store; two concurrent
// decisions must never both pass a limit that only one of them satisfies.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Sentinel errors returned by commits.
var (
	// ErrLimitExceeded means the atomic re-check found the limit would be
	// breached by this commit.
	ErrLimitExceeded = errors.New("ledger: limit exceeded")

	// ErrCooldown means the platform's post cooldown has not elapsed.
	ErrCooldown = errors.New("ledger: cooldown between posts not elapsed")
)

// Store is the spend/interaction counter boundary. Reads are advisory (the
// policy evaluator uses them for early, human-readable denials); commits
// re-check the limit and increment inside the same critical section.
type Store interface {
	// DailySpent returns the committed spend for the currency today, in cents.
	DailySpent(currency string) int64

	// HourCount returns the committed interactions for the platform in the
	// current hour bucket.
	HourCount(platform string) int

	// CommitSpend atomically re-checks dailyLimit (0 = uncapped) and adds
	// amount to the currency's daily total. Returns ErrLimitExceeded when
	// the addition would breach the limit.
	CommitSpend(ctx context.Context, currency string, amount, dailyLimit int64) error

	// CommitInteraction atomically re-checks maxPerHour (0 = uncapped) and
	// the cooldown, then increments the platform's hour bucket.
	CommitInteraction(ctx context.Context, platform string, maxPerHour int, cooldown time.Duration) error

	// ResetDaily zeroes all daily spend totals. Runs on the daily boundary.
	ResetDaily()

	// PruneHourly drops hour buckets older than 24h.
	PruneHourly(now time.Time)
}

type bucketKey struct {
	platform string
	hour     int64 // unix hour
}

// MemoryStore is the default single-process store. One mutex serializes every
// check-then-commit; maintenance takes the same lock, so a reset never
// interleaves with an in-flight commit.
type MemoryStore struct {
	mu       sync.Mutex
	daily    map[string]int64
	hourly   map[bucketKey]int
	limiters map[string]*rate.Limiter
	clock    func() time.Time
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		daily:    make(map[string]int64),
		hourly:   make(map[bucketKey]int),
		limiters: make(map[string]*rate.Limiter),
		clock:    time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

func (s *MemoryStore) bucket(platform string) bucketKey {
	return bucketKey{platform: platform, hour: s.clock().Unix() / 3600}
}

// DailySpent implements Store.
func (s *MemoryStore) DailySpent(currency string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.daily[currency]
}

// HourCount implements Store.
func (s *MemoryStore) HourCount(platform string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hourly[s.bucket(platform)]
}

// CommitSpend implements Store.
func (s *MemoryStore) CommitSpend(_ context.Context, currency string, amount, dailyLimit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dailyLimit > 0 && s.daily[currency]+amount > dailyLimit {
		return ErrLimitExceeded
	}
	s.daily[currency] += amount
	return nil
}

// CommitInteraction implements Store.
func (s *MemoryStore) CommitInteraction(_ context.Context, platform string, maxPerHour int, cooldown time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.bucket(platform)
	if maxPerHour > 0 && s.hourly[key] >= maxPerHour {
		return ErrLimitExceeded
	}

	if cooldown > 0 {
		lim, ok := s.limiters[platform]
		if !ok {
			lim = rate.NewLimiter(rate.Every(cooldown), 1)
			s.limiters[platform] = lim
		} else if lim.Limit() != rate.Every(cooldown) {
			lim.SetLimit(rate.Every(cooldown))
		}
		if !lim.AllowN(s.clock(), 1) {
			return ErrCooldown
		}
	}

	s.hourly[key]++
	return nil
}

// ResetDaily implements Store.
func (s *MemoryStore) ResetDaily() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily = make(map[string]int64)
}

// PruneHourly implements Store.
func (s *MemoryStore) PruneHourly(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-24*time.Hour).Unix() / 3600
	for key := range s.hourly {
		if key.hour < cutoff {
			delete(s.hourly, key)
		}
	}
}
