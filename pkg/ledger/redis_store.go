package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkIncrScript performs the limit check and the increment in one
// server-side step, so concurrent committers from multiple processes cannot
// both observe the pre-increment total and overshoot the limit.
// KEYS[1] = counter key
// ARGV[1] = limit (0 = uncapped)
// ARGV[2] = amount to add
// ARGV[3] = key TTL in seconds
var checkIncrScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local amount = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local current = tonumber(redis.call("GET", key) or "0")
if limit > 0 and current + amount > limit then
    return {0, current}
end

current = redis.call("INCRBY", key, amount)
redis.call("EXPIRE", key, ttl)
return {1, current}
`)

// RedisStore backs the ledger with Redis so several governor processes can
// share one set of counters. Daily and hourly keys carry TTLs; ResetDaily and
// PruneHourly are no-ops because expiry does the housekeeping.
type RedisStore struct {
	client *redis.Client
	clock  func() time.Time
}

// NewRedisStore creates a store over an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (s *RedisStore) WithClock(clock func() time.Time) *RedisStore {
	s.clock = clock
	return s
}

func (s *RedisStore) spendKey(currency string) string {
	return fmt.Sprintf("ledger:spend:%s:%s", currency, s.clock().UTC().Format("2006-01-02"))
}

func (s *RedisStore) hourKey(platform string) string {
	return fmt.Sprintf("ledger:inter:%s:%d", platform, s.clock().Unix()/3600)
}

// DailySpent implements Store. Read failures report zero spend; the commit
// path is the enforcement point and fails closed on its own.
func (s *RedisStore) DailySpent(currency string) int64 {
	v, err := s.client.Get(context.Background(), s.spendKey(currency)).Int64()
	if err != nil {
		return 0
	}
	return v
}

// HourCount implements Store.
func (s *RedisStore) HourCount(platform string) int {
	v, err := s.client.Get(context.Background(), s.hourKey(platform)).Int()
	if err != nil {
		return 0
	}
	return v
}

// CommitSpend implements Store.
func (s *RedisStore) CommitSpend(ctx context.Context, currency string, amount, dailyLimit int64) error {
	res, err := checkIncrScript.Run(ctx, s.client, []string{s.spendKey(currency)},
		dailyLimit, amount, int64(48*time.Hour/time.Second)).Result()
	if err != nil {
		return fmt.Errorf("redis commit spend: %w", err)
	}
	return decodeCheckIncr(res)
}

// CommitInteraction implements Store. The cooldown is approximated by the
// hourly bucket on this backend; single-process deployments that need strict
// cooldowns use the memory store.
func (s *RedisStore) CommitInteraction(ctx context.Context, platform string, maxPerHour int, _ time.Duration) error {
	res, err := checkIncrScript.Run(ctx, s.client, []string{s.hourKey(platform)},
		maxPerHour, 1, int64(25*time.Hour/time.Second)).Result()
	if err != nil {
		return fmt.Errorf("redis commit interaction: %w", err)
	}
	return decodeCheckIncr(res)
}

// ResetDaily implements Store. Key TTLs expire daily counters on their own.
func (s *RedisStore) ResetDaily() {}

// PruneHourly implements Store. Key TTLs expire hour buckets on their own.
func (s *RedisStore) PruneHourly(time.Time) {}

func decodeCheckIncr(res any) error {
	results, ok := res.([]interface{})
	if !ok || len(results) != 2 {
		return fmt.Errorf("invalid response from lua script")
	}
	allowed, _ := results[0].(int64)
	if allowed != 1 {
		return ErrLimitExceeded
	}
	return nil
}
