package contracts

import (
	"time"
)

// DecisionType classifies the action an agent proposes to take.
type DecisionType string

// Decision type constants.
const (
	DecisionContentCreation         DecisionType = "CONTENT_CREATION"
	DecisionFinancialTransaction    DecisionType = "FINANCIAL_TRANSACTION"
	DecisionPlatformInteraction     DecisionType = "PLATFORM_INTERACTION"
	DecisionLearningAdaptation      DecisionType = "LEARNING_ADAPTATION"
	DecisionServiceOffering         DecisionType = "SERVICE_OFFERING"
	DecisionGovernanceParticipation DecisionType = "GOVERNANCE_PARTICIPATION"
	DecisionEmergencyAction         DecisionType = "EMERGENCY_ACTION"
)

// RiskLevel grades the assessed risk of a decision.
type RiskLevel string

// Risk level constants, ordered low to critical.
const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// riskRank orders risk levels for ceiling comparisons.
var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// Rank returns the ordinal position of the risk level (unknown levels rank
// as critical, fail-closed).
func (r RiskLevel) Rank() int {
	if rank, ok := riskRank[r]; ok {
		return rank
	}
	return riskRank[RiskCritical]
}

// Urgency describes how time-sensitive a decision is.
type Urgency string

// Urgency constants.
const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Impact describes the potential blast radius of a decision.
type Impact string

// Impact constants.
const (
	ImpactMinimal     Impact = "minimal"
	ImpactModerate    Impact = "moderate"
	ImpactSignificant Impact = "significant"
	ImpactMajor       Impact = "major"
)

// DecisionContext carries the situational facts supplied by the reasoning
// component alongside a decision. The governor does not compute any of these;
// it only judges them.
type DecisionContext struct {
	Platform        string  `json:"platform,omitempty"`
	Target          string  `json:"target,omitempty"`
	Amount          int64   `json:"amount,omitempty"` // minor units (cents)
	Currency        string  `json:"currency,omitempty"`
	Urgency         Urgency `json:"urgency"`
	PotentialImpact Impact  `json:"potential_impact"`
	Reversible      bool    `json:"reversible"`
	PrecedentExists bool    `json:"precedent_exists"`
}

// Decision is a proposed agent action awaiting authorization.
// Immutable once created; appended to history regardless of outcome.
type Decision struct {
	ID               string          `json:"id"`
	Type             DecisionType    `json:"type"`
	Description      string          `json:"description"`
	Context          DecisionContext `json:"context"`
	RiskLevel        RiskLevel       `json:"risk_level"`
	EstimatedCost    int64           `json:"estimated_cost"`    // minor units
	EstimatedRevenue int64           `json:"estimated_revenue"` // minor units
	Confidence       float64         `json:"confidence"`        // [0,1]
	Timestamp        time.Time       `json:"timestamp"`
}

// ValidationResult is the synchronous answer to a submitted decision.
// Denials are values, not errors.
type ValidationResult struct {
	Approved           bool          `json:"approved"`
	Reason             string        `json:"reason,omitempty"`
	EscalationRequired bool          `json:"escalation_required,omitempty"`
	ApprovalTimeout    time.Duration `json:"approval_timeout,omitempty"`
}

// DecisionRecord is the history entry for a submitted decision and its outcome.
type DecisionRecord struct {
	Decision   Decision         `json:"decision"`
	Result     ValidationResult `json:"result"`
	Level      AutonomyLevel    `json:"level"`
	RecordedAt time.Time        `json:"recorded_at"`
}
