package contracts

import "time"

// ViolationSeverity grades a guardrail breach.
type ViolationSeverity string

// Violation severity constants.
const (
	SeverityWarning  ViolationSeverity = "warning"
	SeverityError    ViolationSeverity = "error"
	SeverityCritical ViolationSeverity = "critical"
)

// GuardrailViolation is one recorded breach of a hard policy rule. The log is
// append-only and bounded; the oldest entries are trimmed past the cap.
type GuardrailViolation struct {
	Type        string            `json:"type"`
	Severity    ViolationSeverity `json:"severity"`
	Description string            `json:"description"`
	Timestamp   time.Time         `json:"timestamp"`
	DecisionID  string            `json:"decision_id,omitempty"`
	ActionTaken string            `json:"action_taken"`
}
