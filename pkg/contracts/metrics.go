package contracts

import "time"

// AutonomyMetrics is the derived health view of the trust boundary.
// Recomputed on read from the underlying counters, never persisted on its own.
type AutonomyMetrics struct {
	DecisionsMade       int64         `json:"decisions_made"`
	ApprovalsRequested  int64         `json:"approvals_requested"`
	ApprovalRate        float64       `json:"approval_rate"` // [0,1]
	AverageResponseTime time.Duration `json:"average_response_time"`
	Violations          int64         `json:"violations"`
	Escalations         int64         `json:"escalations"`
	ErrorRate           float64       `json:"error_rate"`     // rolling share of denied decisions
	AutonomyScore       float64       `json:"autonomy_score"` // [0,100]
}
