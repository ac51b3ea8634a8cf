package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore backs the ledger with PostgreSQL for multi-process
// deployments. The limit re-check and the increment happen in a single
// conditional upsert, so the database serializes concurrent commits per row.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

// NewPostgresStore creates a store over an existing connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (s *PostgresStore) WithClock(clock func() time.Time) *PostgresStore {
	s.clock = clock
	return s
}

// Migrate creates the ledger tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS daily_spend (
		currency TEXT NOT NULL,
		day DATE NOT NULL,
		spent BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (currency, day)
	);
	CREATE TABLE IF NOT EXISTS hourly_interactions (
		platform TEXT NOT NULL,
		hour_bucket BIGINT NOT NULL,
		count INT NOT NULL DEFAULT 0,
		PRIMARY KEY (platform, hour_bucket)
	);`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ledger migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) day() string {
	return s.clock().UTC().Format("2006-01-02")
}

func (s *PostgresStore) hour() int64 {
	return s.clock().Unix() / 3600
}

// DailySpent implements Store. Read failures report zero; enforcement happens
// at commit time.
func (s *PostgresStore) DailySpent(currency string) int64 {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT spent FROM daily_spend WHERE currency = $1 AND day = $2",
		currency, s.day())
	var spent int64
	if err := row.Scan(&spent); err != nil {
		return 0
	}
	return spent
}

// HourCount implements Store.
func (s *PostgresStore) HourCount(platform string) int {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT count FROM hourly_interactions WHERE platform = $1 AND hour_bucket = $2",
		platform, s.hour())
	var count int
	if err := row.Scan(&count); err != nil {
		return 0
	}
	return count
}

// CommitSpend implements Store. The conditional upsert only applies when the
// new total stays within the limit; an empty result means the limit held.
func (s *PostgresStore) CommitSpend(ctx context.Context, currency string, amount, dailyLimit int64) error {
	if dailyLimit > 0 && amount > dailyLimit {
		return ErrLimitExceeded
	}

	query := `
		INSERT INTO daily_spend (currency, day, spent)
		VALUES ($1, $2, $3)
		ON CONFLICT (currency, day) DO UPDATE SET
			spent = daily_spend.spent + EXCLUDED.spent
			WHERE $4 <= 0 OR daily_spend.spent + EXCLUDED.spent <= $4
		RETURNING spent
	`
	var spent int64
	err := s.db.QueryRowContext(ctx, query, currency, s.day(), amount, dailyLimit).Scan(&spent)
	if err == sql.ErrNoRows {
		return ErrLimitExceeded
	}
	if err != nil {
		return fmt.Errorf("postgres commit spend: %w", err)
	}
	return nil
}

// CommitInteraction implements Store. Cooldowns are enforced by the hourly
// bucket on this backend, as with Redis.
func (s *PostgresStore) CommitInteraction(ctx context.Context, platform string, maxPerHour int, _ time.Duration) error {
	query := `
		INSERT INTO hourly_interactions (platform, hour_bucket, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (platform, hour_bucket) DO UPDATE SET
			count = hourly_interactions.count + 1
			WHERE $3 <= 0 OR hourly_interactions.count + 1 <= $3
		RETURNING count
	`
	var count int
	err := s.db.QueryRowContext(ctx, query, platform, s.hour(), maxPerHour).Scan(&count)
	if err == sql.ErrNoRows {
		return ErrLimitExceeded
	}
	if err != nil {
		return fmt.Errorf("postgres commit interaction: %w", err)
	}
	return nil
}

// ResetDaily implements Store: today's totals are zeroed in place so a
// scheduled boundary reset behaves the same as on the memory backend.
func (s *PostgresStore) ResetDaily() {
	_, _ = s.db.ExecContext(context.Background(),
		"UPDATE daily_spend SET spent = 0 WHERE day = $1", s.day())
}

// PruneHourly implements Store.
func (s *PostgresStore) PruneHourly(now time.Time) {
	cutoff := now.Add(-24*time.Hour).Unix() / 3600
	_, _ = s.db.ExecContext(context.Background(),
		"DELETE FROM hourly_interactions WHERE hour_bucket < $1", cutoff)
}
