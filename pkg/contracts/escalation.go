// Escalation triggers are the rules that force a non-default response to an
// otherwise clean decision: hold it for approval, notch autonomy down, pause
// the agent entirely, or just leave a mark in the incident log.
package contracts

// TriggerType identifies what class of signal a trigger watches.
type TriggerType string

// Trigger type constants.
const (
	TriggerSpendingThreshold  TriggerType = "SPENDING_THRESHOLD"
	TriggerContentFlag        TriggerType = "CONTENT_FLAG"
	TriggerReputationDrop     TriggerType = "REPUTATION_DROP"
	TriggerErrorRate          TriggerType = "ERROR_RATE"
	TriggerSuspiciousActivity TriggerType = "SUSPICIOUS_ACTIVITY"
	TriggerManual             TriggerType = "MANUAL"
)

// EscalationAction is what happens when a trigger matches.
type EscalationAction string

// Escalation action constants.
const (
	ActionPauseAgent      EscalationAction = "PAUSE_AGENT"
	ActionRequestApproval EscalationAction = "REQUEST_APPROVAL"
	ActionNotifyOwner     EscalationAction = "NOTIFY_OWNER"
	ActionReduceAutonomy  EscalationAction = "REDUCE_AUTONOMY"
	ActionLogIncident     EscalationAction = "LOG_INCIDENT"
)

// TriggerPriority orders triggers for reporting. Matching order is
// configuration order regardless of priority; ties are not disambiguated
// further.
type TriggerPriority string

// Trigger priority constants.
const (
	PriorityLow      TriggerPriority = "low"
	PriorityMedium   TriggerPriority = "medium"
	PriorityHigh     TriggerPriority = "high"
	PriorityCritical TriggerPriority = "critical"
)

// EscalationTrigger is one configured rule. Condition, when non-empty, is a
// CEL expression evaluated against the decision/metrics snapshot; when empty
// the built-in semantics for the trigger type apply against Threshold.
type EscalationTrigger struct {
	ID        string           `json:"id" yaml:"id"`
	Type      TriggerType      `json:"type" yaml:"type"`
	Condition string           `json:"condition,omitempty" yaml:"condition,omitempty"`
	Threshold float64          `json:"threshold" yaml:"threshold"`
	Action    EscalationAction `json:"action" yaml:"action"`
	Priority  TriggerPriority  `json:"priority" yaml:"priority"`
}
