// Package store provides durable persistence for decision records,
// backing the in-memory history with a queryable log.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relayline/governor/pkg/contracts"

	_ "modernc.org/sqlite"
)

// DecisionStore persists decision records with their validation outcome.
type DecisionStore interface {
	Store(ctx context.Context, r *contracts.DecisionRecord) error
	Get(ctx context.Context, decisionID string) (*contracts.DecisionRecord, error)
	List(ctx context.Context, limit int) ([]*contracts.DecisionRecord, error)
	CountSince(ctx context.Context, since time.Time) (total, approved int, err error)
}

// ErrDecisionNotFound is returned when no record matches the decision ID.
var ErrDecisionNotFound = fmt.Errorf("decision record not found")

type SQLiteDecisionStore struct {
	db *sql.DB
}

func NewSQLiteDecisionStore(db *sql.DB) (*SQLiteDecisionStore, error) {
	s := &SQLiteDecisionStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDecisionStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS decision_records (
        decision_id TEXT PRIMARY KEY,
        decision_type TEXT NOT NULL,
        description TEXT,
        context JSON,
        risk_level TEXT,
        estimated_cost INTEGER NOT NULL DEFAULT 0,
        estimated_revenue INTEGER NOT NULL DEFAULT 0,
        confidence REAL,
        decided_at DATETIME,
        approved INTEGER NOT NULL,
        reason TEXT,
        escalation_required INTEGER NOT NULL DEFAULT 0,
        approval_timeout_secs INTEGER NOT NULL DEFAULT 0,
        autonomy_level TEXT,
        recorded_at DATETIME
    );
    CREATE INDEX IF NOT EXISTS idx_decision_records_recorded_at ON decision_records (recorded_at);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteDecisionStore) Store(ctx context.Context, r *contracts.DecisionRecord) error {
	query := `INSERT INTO decision_records (
		decision_id, decision_type, description, context, risk_level, estimated_cost, estimated_revenue, confidence, decided_at, approved, reason, escalation_required, approval_timeout_secs, autonomy_level, recorded_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	ctxJSON, _ := json.Marshal(r.Decision.Context)
	decidedAt := r.Decision.Timestamp.UTC().Format(time.RFC3339Nano)
	recordedAt := r.RecordedAt.UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx, query,
		r.Decision.ID, string(r.Decision.Type), r.Decision.Description, string(ctxJSON), string(r.Decision.RiskLevel),
		r.Decision.EstimatedCost, r.Decision.EstimatedRevenue, r.Decision.Confidence, decidedAt,
		boolToInt(r.Result.Approved), r.Result.Reason, boolToInt(r.Result.EscalationRequired),
		int64(r.Result.ApprovalTimeout/time.Second), string(r.Level), recordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision record: %w", err)
	}
	return nil
}

func (s *SQLiteDecisionStore) Get(ctx context.Context, decisionID string) (*contracts.DecisionRecord, error) {
	query := selectColumns + ` FROM decision_records WHERE decision_id = ?`
	row := s.db.QueryRowContext(ctx, query, decisionID)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrDecisionNotFound
	}
	return r, err
}

func (s *SQLiteDecisionStore) List(ctx context.Context, limit int) ([]*contracts.DecisionRecord, error) {
	query := selectColumns + ` FROM decision_records ORDER BY recorded_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*contracts.DecisionRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// CountSince returns the total and approved record counts at or after the
// cutoff. Used to recompute approval rates on restart.
func (s *SQLiteDecisionStore) CountSince(ctx context.Context, since time.Time) (int, int, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(approved), 0) FROM decision_records WHERE recorded_at >= ?`
	var total, approved int
	err := s.db.QueryRowContext(ctx, query, since.UTC().Format(time.RFC3339Nano)).Scan(&total, &approved)
	if err != nil {
		return 0, 0, err
	}
	return total, approved, nil
}

const selectColumns = `SELECT decision_id, decision_type, description, context, risk_level, estimated_cost, estimated_revenue, confidence, decided_at, approved, reason, escalation_required, approval_timeout_secs, autonomy_level, recorded_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*contracts.DecisionRecord, error) {
	var (
		decisionID   string
		decisionType string
		description  sql.NullString
		ctxJSON      sql.NullString
		riskLevel    sql.NullString
		cost         int64
		revenue      int64
		confidence   sql.NullFloat64
		decidedAt    string
		approved     int
		reason       sql.NullString
		escalation   int
		timeoutSecs  int64
		level        sql.NullString
		recordedAt   string
	)
	err := row.Scan(&decisionID, &decisionType, &description, &ctxJSON, &riskLevel, &cost, &revenue,
		&confidence, &decidedAt, &approved, &reason, &escalation, &timeoutSecs, &level, &recordedAt)
	if err != nil {
		return nil, err
	}

	var dctx contracts.DecisionContext
	if ctxJSON.Valid && ctxJSON.String != "" {
		_ = json.Unmarshal([]byte(ctxJSON.String), &dctx)
	}

	return &contracts.DecisionRecord{
		Decision: contracts.Decision{
			ID:               decisionID,
			Type:             contracts.DecisionType(decisionType),
			Description:      description.String,
			Context:          dctx,
			RiskLevel:        contracts.RiskLevel(riskLevel.String),
			EstimatedCost:    cost,
			EstimatedRevenue: revenue,
			Confidence:       confidence.Float64,
			Timestamp:        parseTime(decidedAt),
		},
		Result: contracts.ValidationResult{
			Approved:           approved != 0,
			Reason:             reason.String,
			EscalationRequired: escalation != 0,
			ApprovalTimeout:    time.Duration(timeoutSecs) * time.Second,
		},
		Level:      contracts.AutonomyLevel(level.String),
		RecordedAt: parseTime(recordedAt),
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
