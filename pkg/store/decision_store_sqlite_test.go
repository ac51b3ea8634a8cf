package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayline/governor/pkg/contracts"
	"github.com/relayline/governor/pkg/store"
)

func openTestStore(t *testing.T) *store.SQLiteDecisionStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := store.NewSQLiteDecisionStore(db)
	require.NoError(t, err)
	return s
}

func sampleRecord(id string, approved bool, recordedAt time.Time) *contracts.DecisionRecord {
	return &contracts.DecisionRecord{
		Decision: contracts.Decision{
			ID:          id,
			Type:        contracts.DecisionContentCreation,
			Description: "publish weekly changelog post",
			Context: contracts.DecisionContext{
				Platform:   "blog",
				Urgency:    contracts.UrgencyLow,
				Reversible: true,
			},
			RiskLevel:     contracts.RiskLow,
			EstimatedCost: 250,
			Confidence:    0.9,
			Timestamp:     recordedAt.Add(-time.Second),
		},
		Result: contracts.ValidationResult{
			Approved:        approved,
			Reason:          "",
			ApprovalTimeout: 5 * time.Minute,
		},
		Level:      contracts.LevelSemiAutonomous,
		RecordedAt: recordedAt,
	}
}

func TestSQLiteDecisionStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	rec := sampleRecord("dec-1", true, now)
	rec.Result.Reason = ""
	require.NoError(t, s.Store(ctx, rec))

	got, err := s.Get(ctx, "dec-1")
	require.NoError(t, err)

	assert.Equal(t, rec.Decision.ID, got.Decision.ID)
	assert.Equal(t, rec.Decision.Type, got.Decision.Type)
	assert.Equal(t, rec.Decision.Context.Platform, got.Decision.Context.Platform)
	assert.True(t, got.Decision.Context.Reversible)
	assert.Equal(t, rec.Decision.EstimatedCost, got.Decision.EstimatedCost)
	assert.Equal(t, rec.Result.Approved, got.Result.Approved)
	assert.Equal(t, 5*time.Minute, got.Result.ApprovalTimeout)
	assert.Equal(t, contracts.LevelSemiAutonomous, got.Level)
	assert.True(t, got.RecordedAt.Equal(now))
}

func TestSQLiteDecisionStore_GetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrDecisionNotFound)
}

func TestSQLiteDecisionStore_ListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := sampleRecord(fmt.Sprintf("dec-%d", i), true, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Store(ctx, rec))
	}

	records, err := s.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "dec-4", records[0].Decision.ID)
	assert.Equal(t, "dec-3", records[1].Decision.ID)
	assert.Equal(t, "dec-2", records[2].Decision.ID)
}

func TestSQLiteDecisionStore_CountSince(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Store(ctx, sampleRecord("old", true, base.Add(-48*time.Hour))))
	require.NoError(t, s.Store(ctx, sampleRecord("new-approved", true, base)))
	require.NoError(t, s.Store(ctx, sampleRecord("new-denied", false, base.Add(time.Minute))))

	total, approved, err := s.CountSince(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, approved)
}
