package contracts

import "time"

// EventType identifies a domain event emitted by a state-mutating call.
type EventType string

// Event type constants.
const (
	EventApprovalRequested         EventType = "approval_requested"
	EventApprovalProcessed         EventType = "approval_processed"
	EventApprovalTimeout           EventType = "approval_timeout"
	EventEscalationTriggerAdded    EventType = "escalation_trigger_added"
	EventEscalationTriggerRemoved  EventType = "escalation_trigger_removed"
	EventAutonomyLevelChanged      EventType = "autonomy_level_changed"
	EventSpendingLimitsUpdated     EventType = "spending_limits_updated"
	EventInteractionRulesUpdated   EventType = "interaction_rules_updated"
	EventGuardrailViolation        EventType = "guardrail_violation"
	EventOwnerNotified             EventType = "owner_notified"
	EventEmergencyStopTriggered    EventType = "emergency_stop_triggered"
	EventDecisionApproved          EventType = "decision_approved"
)

// DomainEvent is one entry in the outbox returned from a state-mutating
// governor call. The caller owns delivery and ordering; the governor never
// dispatches events itself.
type DomainEvent struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewEvent builds a DomainEvent stamped with now.
func NewEvent(t EventType, now time.Time, payload map[string]any) DomainEvent {
	return DomainEvent{Type: t, Timestamp: now, Payload: payload}
}
