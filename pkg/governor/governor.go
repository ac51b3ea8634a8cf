// Package governor is the trust boundary between an agent's reasoning and
// its effects. Every proposed action passes through ValidateDecision: the
// policy evaluator's ordered checks, then the escalation triggers, then the
// atomic ledger commit. Denials are values, not errors; the only errors are
// caller mistakes (bad approval IDs) and infrastructure failures.
//
// State-mutating calls return a list of domain events instead of dispatching
// them. The caller owns delivery and ordering. The one exception is the
// asynchronous approval timeout, which is delivered through the registered
// event notifier because there is no call to return it from.
package governor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/relayline/governor/pkg/approval"
	"github.com/relayline/governor/pkg/audit"
	"github.com/relayline/governor/pkg/contracts"
	"github.com/relayline/governor/pkg/escalation"
	"github.com/relayline/governor/pkg/ledger"
	"github.com/relayline/governor/pkg/observability"
	"github.com/relayline/governor/pkg/policy"
	"github.com/relayline/governor/pkg/store"
)

// ErrReasonRequired is returned when an operator command omits its reason.
var ErrReasonRequired = errors.New("governor: reason is required")

// ErrTriggerNotFound is returned when removing an unknown escalation trigger.
var ErrTriggerNotFound = errors.New("governor: escalation trigger not found")

// Governor owns the autonomy configuration and serializes every decision
// against it. One instance per agent.
type Governor struct {
	mu      sync.Mutex
	agentID string
	cfg     contracts.AutonomyConfig
	paused  bool

	evaluator  *policy.Evaluator
	ledger     ledger.Store
	triggers   *escalation.Engine
	approvals  *approval.Workflow
	violations *audit.ViolationLog
	history    *audit.DecisionHistory

	auditLog audit.Logger
	records  store.DecisionStore
	obs      *observability.Provider
	notifier func(contracts.DomainEvent)
	logger   *slog.Logger
	clock    func() time.Time

	decisionsMade      int64
	deniedDecisions    int64
	approvalsRequested int64
	approvalsResolved  int64
	approvalsGranted   int64
	totalResponseTime  time.Duration
	escalations        int64
	internalErrors     int64
}

// New creates a Governor for one agent with the given starting configuration.
// The ledger store decides the persistence/atomicity strategy; everything
// else is in-process.
func New(agentID string, cfg contracts.AutonomyConfig, st ledger.Store) (*Governor, error) {
	engine, err := escalation.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("governor: init escalation engine: %w", err)
	}

	policy.ClampLimits(&cfg)

	g := &Governor{
		agentID:    agentID,
		cfg:        cfg,
		ledger:     st,
		triggers:   engine,
		approvals:  approval.NewWorkflow(),
		violations: audit.NewViolationLog(1000),
		history:    audit.NewDecisionHistory(1000),
		logger:     slog.Default().With("component", "governor", "agent_id", agentID),
		clock:      time.Now,
	}
	g.evaluator = policy.NewEvaluator(g.violations)
	g.approvals.SetTimeoutHandler(g.onApprovalTimeout)
	return g, nil
}

// WithClock overrides the clock for deterministic testing.
func (g *Governor) WithClock(clock func() time.Time) *Governor {
	g.clock = clock
	g.evaluator.WithClock(clock)
	g.approvals.WithClock(clock)
	return g
}

// SetAuditLogger injects the audit sink after initialization.
func (g *Governor) SetAuditLogger(l audit.Logger) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.auditLog = l
}

// SetDecisionStore injects durable decision-record persistence.
func (g *Governor) SetDecisionStore(s store.DecisionStore) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = s
}

// SetObservability injects the telemetry provider.
func (g *Governor) SetObservability(p *observability.Provider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.obs = p
}

// SetEventNotifier registers the callback for events that arise outside a
// state-mutating call, currently only approval timeouts.
func (g *Governor) SetEventNotifier(fn func(contracts.DomainEvent)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notifier = fn
}

// ValidateDecision gates one proposed action. The returned result is the
// synchronous verdict; the events are the outbox for this call. A panic
// anywhere in evaluation converts to a conservative deny with escalation:
// failing open is never acceptable here.
func (g *Governor) ValidateDecision(ctx context.Context, d *contracts.Decision) (result contracts.ValidationResult, events []contracts.DomainEvent, err error) {
	ctx, span := otel.Tracer("governor").Start(ctx, "governor.ValidateDecision")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			g.mu.Lock()
			g.internalErrors++
			g.mu.Unlock()
			id := "unknown"
			if d != nil {
				id = d.ID
			}
			g.logger.Error("panic during decision validation", "decision_id", id, "panic", r)
			result = contracts.ValidationResult{
				Approved:           false,
				Reason:             "internal error during validation",
				EscalationRequired: true,
			}
			events = nil
			err = nil
		}
	}()

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	g.decisionsMade++

	if g.paused {
		result = contracts.ValidationResult{
			Approved:           false,
			Reason:             "agent is paused",
			EscalationRequired: true,
		}
		g.finishDecision(ctx, d, result)
		return result, nil, nil
	}

	out := g.evaluator.Evaluate(d, &g.cfg, g.ledger)
	if !out.Allowed {
		result = contracts.ValidationResult{
			Approved:           false,
			Reason:             out.Reason,
			EscalationRequired: out.EscalationRequired,
		}
		g.finishDecision(ctx, d, result)
		return result, nil, nil
	}

	if trig := g.triggers.CheckTriggers(g.cfg.EscalationTriggers, d, g.metricsLocked()); trig != nil {
		result, events = g.executeEscalation(ctx, trig, d, now)
		g.finishDecision(ctx, d, result)
		return result, events, nil
	}

	if commitErr := g.commit(ctx, d); commitErr != nil {
		result = denialForCommit(commitErr)
		g.finishDecision(ctx, d, result)
		return result, nil, nil
	}

	result = contracts.ValidationResult{Approved: true}
	events = append(events, contracts.NewEvent(contracts.EventDecisionApproved, now, map[string]any{
		"decision_id": d.ID,
		"type":        string(d.Type),
	}))
	g.finishDecision(ctx, d, result)
	return result, events, nil
}

// commit applies the decision to the shared counters. The store re-checks
// the limit inside its own critical section, so a concurrent decision that
// raced past the evaluator's advisory read still cannot breach it.
func (g *Governor) commit(ctx context.Context, d *contracts.Decision) error {
	switch d.Type {
	case contracts.DecisionFinancialTransaction:
		currency := d.Context.Currency
		if currency == "" {
			currency = "USD"
		}
		daily := g.cfg.SpendingLimits.DailyLimit
		if override, ok := g.cfg.SpendingLimits.CurrencyLimits[currency]; ok {
			daily = override
		}
		return g.ledger.CommitSpend(ctx, currency, d.EstimatedCost, daily)
	case contracts.DecisionPlatformInteraction:
		return g.ledger.CommitInteraction(ctx, d.Context.Platform,
			g.cfg.InteractionRules.MaxPostsPerHour, g.cfg.InteractionRules.CooldownBetweenPosts)
	default:
		return nil
	}
}

func denialForCommit(err error) contracts.ValidationResult {
	switch {
	case errors.Is(err, ledger.ErrCooldown):
		return contracts.ValidationResult{Approved: false, Reason: "cooldown between posts not elapsed"}
	case errors.Is(err, ledger.ErrLimitExceeded):
		return contracts.ValidationResult{
			Approved:           false,
			Reason:             "limit reached by concurrent decision",
			EscalationRequired: true,
		}
	default:
		return contracts.ValidationResult{
			Approved:           false,
			Reason:             fmt.Sprintf("ledger commit failed: %v", err),
			EscalationRequired: true,
		}
	}
}

// executeEscalation runs exactly one action for the first matching trigger.
// The original decision is always denied in this call; any retry is the
// caller's responsibility. Lock held.
func (g *Governor) executeEscalation(ctx context.Context, trig *contracts.EscalationTrigger, d *contracts.Decision, now time.Time) (contracts.ValidationResult, []contracts.DomainEvent) {
	g.escalations++
	if g.obs != nil {
		g.obs.RecordEscalation(ctx, string(trig.Type), string(trig.Action))
	}
	g.logger.Warn("escalation trigger fired",
		"trigger_id", trig.ID, "trigger_type", trig.Type, "action", trig.Action, "decision_id", d.ID)

	result := contracts.ValidationResult{
		Approved:           false,
		Reason:             fmt.Sprintf("escalation trigger %s (%s) fired", trig.ID, trig.Type),
		EscalationRequired: true,
	}
	var events []contracts.DomainEvent

	switch trig.Action {
	case contracts.ActionPauseAgent:
		events = g.emergencyStopLocked(ctx, fmt.Sprintf("trigger %s fired", trig.ID), now)

	case contracts.ActionRequestApproval:
		req := g.requestApprovalLocked(ctx, d, now)
		result.ApprovalTimeout = g.cfg.ApprovalTimeout
		events = append(events, contracts.NewEvent(contracts.EventApprovalRequested, now, map[string]any{
			"request_id":  req.ID,
			"decision_id": d.ID,
			"timeout_at":  req.TimeoutAt,
		}))

	case contracts.ActionNotifyOwner:
		events = append(events, contracts.NewEvent(contracts.EventOwnerNotified, now, map[string]any{
			"decision_id": d.ID,
			"trigger_id":  trig.ID,
			"contacts":    g.cfg.EmergencyContacts,
		}))

	case contracts.ActionReduceAutonomy:
		events = g.setLevelLocked(ctx, g.cfg.Level.Below(),
			fmt.Sprintf("automatic downgrade: trigger %s", trig.ID), now)

	case contracts.ActionLogIncident:
		v := contracts.GuardrailViolation{
			Type:        string(trig.Type),
			Severity:    contracts.SeverityWarning,
			Description: fmt.Sprintf("trigger %s fired on decision %s", trig.ID, d.ID),
			Timestamp:   now,
			DecisionID:  d.ID,
			ActionTaken: "logged",
		}
		g.violations.RecordViolation(v)
		if g.obs != nil {
			g.obs.RecordViolation(ctx, v.Type)
		}
		events = append(events, contracts.NewEvent(contracts.EventGuardrailViolation, now, map[string]any{
			"decision_id": d.ID,
			"type":        v.Type,
			"severity":    string(v.Severity),
		}))
	}

	return result, events
}

// finishDecision records the verdict everywhere it needs to land: bounded
// history, durable store, audit sink, telemetry. Lock held.
func (g *Governor) finishDecision(ctx context.Context, d *contracts.Decision, result contracts.ValidationResult) {
	if !result.Approved {
		g.deniedDecisions++
	}

	record := contracts.DecisionRecord{
		Decision:   *d,
		Result:     result,
		Level:      g.cfg.Level,
		RecordedAt: g.clock(),
	}
	g.history.Append(record)

	if g.records != nil {
		if err := g.records.Store(ctx, &record); err != nil {
			g.logger.Error("failed to persist decision record", "decision_id", d.ID, "error", err)
		}
	}
	if g.auditLog != nil {
		_ = g.auditLog.Record(ctx, audit.EventDecision, "validate", d.ID, map[string]any{
			"type":     string(d.Type),
			"approved": result.Approved,
			"reason":   result.Reason,
			"level":    string(g.cfg.Level),
		})
	}
	if g.obs != nil {
		g.obs.RecordDecision(ctx, string(d.Type), result.Approved)
	}
}

// RequestApproval opens a ticket for a decision the caller wants a human to
// rule on. Typically follows a ValidationResult with escalation_required.
func (g *Governor) RequestApproval(ctx context.Context, d *contracts.Decision) (*contracts.ApprovalRequest, []contracts.DomainEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	req := g.requestApprovalLocked(ctx, d, now)
	events := []contracts.DomainEvent{
		contracts.NewEvent(contracts.EventApprovalRequested, now, map[string]any{
			"request_id":  req.ID,
			"decision_id": d.ID,
			"timeout_at":  req.TimeoutAt,
		}),
	}
	return req, events
}

func (g *Governor) requestApprovalLocked(ctx context.Context, d *contracts.Decision, now time.Time) *contracts.ApprovalRequest {
	req := g.approvals.Request(d, g.cfg.ApprovalTimeout)
	g.approvalsRequested++
	if g.obs != nil {
		g.obs.ApprovalPending(ctx, 1)
	}
	if g.auditLog != nil {
		_ = g.auditLog.Record(ctx, audit.EventApproval, "request", req.ID, map[string]any{
			"decision_id": d.ID,
			"timeout_at":  req.TimeoutAt,
		})
	}
	return req
}

// ProcessApprovalResponse resolves a pending ticket with the human verdict.
// An approved decision is committed to the ledger exactly as a self-approved
// one would have been; if the commit loses a limit race the approval stands
// but the commit error is returned.
func (g *Governor) ProcessApprovalResponse(ctx context.Context, requestID string, approved bool, approver, notes string) (*contracts.ApprovalRequest, []contracts.DomainEvent, error) {
	req, err := g.approvals.Respond(requestID, approved, approver, notes)
	if err != nil {
		return nil, nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	g.approvalsResolved++
	g.totalResponseTime += req.ResponseTime
	if approved {
		g.approvalsGranted++
	}

	if g.obs != nil {
		g.obs.ApprovalPending(ctx, -1)
		g.obs.RecordApprovalLatency(ctx, req.ResponseTime, string(req.Status))
	}
	if g.auditLog != nil {
		_ = g.auditLog.Record(ctx, audit.EventApproval, "respond", req.ID, map[string]any{
			"approved": approved,
			"approver": approver,
		})
	}

	events := []contracts.DomainEvent{
		contracts.NewEvent(contracts.EventApprovalProcessed, now, map[string]any{
			"request_id": req.ID,
			"status":     string(req.Status),
			"approver":   approver,
		}),
	}

	if approved {
		if commitErr := g.commit(ctx, req.Decision); commitErr != nil {
			g.logger.Error("ledger commit failed for approved decision",
				"request_id", req.ID, "decision_id", req.Decision.ID, "error", commitErr)
			return req, events, fmt.Errorf("governor: commit approved decision: %w", commitErr)
		}
		events = append(events, contracts.NewEvent(contracts.EventDecisionApproved, now, map[string]any{
			"decision_id": req.Decision.ID,
			"request_id":  req.ID,
		}))
	}
	return req, events, nil
}

// onApprovalTimeout is the asynchronous leg of the timer-vs-response race.
// The workflow already made the terminal transition; this only accounts for
// it and notifies.
func (g *Governor) onApprovalTimeout(req *contracts.ApprovalRequest) {
	g.mu.Lock()
	g.approvalsResolved++
	g.totalResponseTime += req.ResponseTime
	now := g.clock()
	notifier := g.notifier
	g.mu.Unlock()

	ctx := context.Background()
	g.logger.Warn("approval request timed out", "request_id", req.ID, "decision_id", req.Decision.ID)
	if g.obs != nil {
		g.obs.ApprovalPending(ctx, -1)
		g.obs.RecordApprovalLatency(ctx, req.ResponseTime, string(req.Status))
	}
	if g.auditLog != nil {
		_ = g.auditLog.Record(ctx, audit.EventApproval, "timeout", req.ID, map[string]any{
			"decision_id": req.Decision.ID,
		})
	}
	if notifier != nil {
		notifier(contracts.NewEvent(contracts.EventApprovalTimeout, now, map[string]any{
			"request_id":  req.ID,
			"decision_id": req.Decision.ID,
		}))
	}
}

// SweepApprovalTimeouts expires overdue requests on a schedule, for callers
// that prefer sweeping over per-request timers.
func (g *Governor) SweepApprovalTimeouts() []*contracts.ApprovalRequest {
	return g.approvals.SweepTimeouts(g.clock())
}

// SetAutonomyLevel sets the level directly. Operator action; reason is
// mandatory and lands in the audit trail. Limits are re-clamped to the new
// level's caps immediately.
func (g *Governor) SetAutonomyLevel(ctx context.Context, level contracts.AutonomyLevel, reason string) ([]contracts.DomainEvent, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setLevelLocked(ctx, level, reason, g.clock()), nil
}

// ReduceAutonomy steps the level one rung down. Already-Restricted is a no-op
// apart from the audit entry.
func (g *Governor) ReduceAutonomy(ctx context.Context, reason string) ([]contracts.DomainEvent, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setLevelLocked(ctx, g.cfg.Level.Below(), reason, g.clock()), nil
}

func (g *Governor) setLevelLocked(ctx context.Context, level contracts.AutonomyLevel, reason string, now time.Time) []contracts.DomainEvent {
	from := g.cfg.Level
	if level == from {
		if g.auditLog != nil {
			_ = g.auditLog.Record(ctx, audit.EventMutation, "set_autonomy_level", string(level), map[string]any{
				"from": string(from), "to": string(level), "reason": reason, "changed": false,
			})
		}
		return nil
	}

	g.cfg.Level = level
	policy.ClampLimits(&g.cfg)
	g.logger.Info("autonomy level changed", "from", from, "to", level, "reason", reason)
	if g.auditLog != nil {
		_ = g.auditLog.Record(ctx, audit.EventMutation, "set_autonomy_level", string(level), map[string]any{
			"from": string(from), "to": string(level), "reason": reason, "changed": true,
		})
	}
	return []contracts.DomainEvent{
		contracts.NewEvent(contracts.EventAutonomyLevelChanged, now, map[string]any{
			"from":   string(from),
			"to":     string(level),
			"reason": reason,
		}),
	}
}

// TriggerEmergencyStop drops to Restricted from any level, pauses the agent,
// and denies every pending approval with reason "emergency_stop". Idempotent
// apart from the audit entry.
func (g *Governor) TriggerEmergencyStop(ctx context.Context, reason string) ([]contracts.DomainEvent, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.emergencyStopLocked(ctx, reason, g.clock()), nil
}

func (g *Governor) emergencyStopLocked(ctx context.Context, reason string, now time.Time) []contracts.DomainEvent {
	events := g.setLevelLocked(ctx, contracts.LevelRestricted, reason, now)
	g.paused = true

	cancelled := g.approvals.CancelAll("emergency_stop")
	for _, req := range cancelled {
		g.approvalsResolved++
		g.totalResponseTime += req.ResponseTime
		if g.obs != nil {
			g.obs.ApprovalPending(ctx, -1)
		}
	}

	g.logger.Error("emergency stop triggered", "reason", reason, "cancelled_approvals", len(cancelled))
	if g.auditLog != nil {
		_ = g.auditLog.Record(ctx, audit.EventSystem, "emergency_stop", g.agentID, map[string]any{
			"reason":    reason,
			"cancelled": len(cancelled),
		})
	}
	events = append(events, contracts.NewEvent(contracts.EventEmergencyStopTriggered, now, map[string]any{
		"reason":              reason,
		"cancelled_approvals": len(cancelled),
	}))
	return events
}

// Resume lifts the pause set by an emergency stop. The level stays wherever
// the stop left it; raising autonomy is a separate explicit action.
func (g *Governor) Resume(ctx context.Context, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused = false
	g.logger.Info("agent resumed", "reason", reason)
	if g.auditLog != nil {
		_ = g.auditLog.Record(ctx, audit.EventSystem, "resume", g.agentID, map[string]any{"reason": reason})
	}
	return nil
}

// Paused reports whether the agent is under an emergency stop.
func (g *Governor) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// UpdateSpendingLimits applies a partial update; nil fields are unchanged.
// The result is clamped to the current level's caps.
func (g *Governor) UpdateSpendingLimits(ctx context.Context, patch contracts.SpendingLimitsPatch) []contracts.DomainEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	limits := &g.cfg.SpendingLimits
	if patch.DailyLimit != nil {
		limits.DailyLimit = *patch.DailyLimit
	}
	if patch.PerTransactionLimit != nil {
		limits.PerTransactionLimit = *patch.PerTransactionLimit
	}
	if patch.ApprovalRequiredAbove != nil {
		limits.ApprovalRequiredAbove = *patch.ApprovalRequiredAbove
	}
	if patch.PlatformLimits != nil {
		limits.PlatformLimits = patch.PlatformLimits
	}
	if patch.CurrencyLimits != nil {
		limits.CurrencyLimits = patch.CurrencyLimits
	}
	policy.ClampLimits(&g.cfg)

	now := g.clock()
	if g.auditLog != nil {
		_ = g.auditLog.Record(ctx, audit.EventMutation, "update_spending_limits", g.agentID, map[string]any{
			"daily_limit":           limits.DailyLimit,
			"per_transaction_limit": limits.PerTransactionLimit,
		})
	}
	return []contracts.DomainEvent{
		contracts.NewEvent(contracts.EventSpendingLimitsUpdated, now, map[string]any{
			"daily_limit":           limits.DailyLimit,
			"per_transaction_limit": limits.PerTransactionLimit,
		}),
	}
}

// UpdateInteractionRules applies a partial update; nil fields are unchanged.
func (g *Governor) UpdateInteractionRules(ctx context.Context, patch contracts.InteractionRulesPatch) []contracts.DomainEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	rules := &g.cfg.InteractionRules
	if patch.MaxPostsPerHour != nil {
		rules.MaxPostsPerHour = *patch.MaxPostsPerHour
	}
	if patch.MaxPostsPerDay != nil {
		rules.MaxPostsPerDay = *patch.MaxPostsPerDay
	}
	if patch.MaxRepliesPerThread != nil {
		rules.MaxRepliesPerThread = *patch.MaxRepliesPerThread
	}
	if patch.MaxDMConversations != nil {
		rules.MaxDMConversations = *patch.MaxDMConversations
	}
	if patch.CooldownBetweenPosts != nil {
		rules.CooldownBetweenPosts = *patch.CooldownBetweenPosts
	}
	if patch.ForbiddenContentTypes != nil {
		rules.ForbiddenContentTypes = patch.ForbiddenContentTypes
	}
	if patch.RequiredDisclaimers != nil {
		rules.RequiredDisclaimers = patch.RequiredDisclaimers
	}
	policy.ClampLimits(&g.cfg)

	now := g.clock()
	if g.auditLog != nil {
		_ = g.auditLog.Record(ctx, audit.EventMutation, "update_interaction_rules", g.agentID, map[string]any{
			"max_posts_per_hour": rules.MaxPostsPerHour,
		})
	}
	return []contracts.DomainEvent{
		contracts.NewEvent(contracts.EventInteractionRulesUpdated, now, map[string]any{
			"max_posts_per_hour": rules.MaxPostsPerHour,
		}),
	}
}

// AddEscalationTrigger appends a trigger to the active configuration. An
// empty ID gets a generated one. Matching order is configuration order.
func (g *Governor) AddEscalationTrigger(ctx context.Context, t contracts.EscalationTrigger) (contracts.EscalationTrigger, []contracts.DomainEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	g.cfg.EscalationTriggers = append(g.cfg.EscalationTriggers, t)

	now := g.clock()
	if g.auditLog != nil {
		_ = g.auditLog.Record(ctx, audit.EventEscalation, "add_trigger", t.ID, map[string]any{
			"type": string(t.Type), "action": string(t.Action), "threshold": t.Threshold,
		})
	}
	return t, []contracts.DomainEvent{
		contracts.NewEvent(contracts.EventEscalationTriggerAdded, now, map[string]any{
			"trigger_id": t.ID,
			"type":       string(t.Type),
		}),
	}
}

// RemoveEscalationTrigger removes a trigger by ID.
func (g *Governor) RemoveEscalationTrigger(ctx context.Context, id string) ([]contracts.DomainEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := -1
	for i, t := range g.cfg.EscalationTriggers {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTriggerNotFound, id)
	}
	g.cfg.EscalationTriggers = append(g.cfg.EscalationTriggers[:idx], g.cfg.EscalationTriggers[idx+1:]...)

	now := g.clock()
	if g.auditLog != nil {
		_ = g.auditLog.Record(ctx, audit.EventEscalation, "remove_trigger", id, nil)
	}
	return []contracts.DomainEvent{
		contracts.NewEvent(contracts.EventEscalationTriggerRemoved, now, map[string]any{
			"trigger_id": id,
		}),
	}, nil
}

// Metrics recomputes the derived health view from the live counters.
func (g *Governor) Metrics() contracts.AutonomyMetrics {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.metricsLocked()
}

func (g *Governor) metricsLocked() contracts.AutonomyMetrics {
	m := contracts.AutonomyMetrics{
		DecisionsMade:      g.decisionsMade,
		ApprovalsRequested: g.approvalsRequested,
		Violations:         int64(g.violations.Len()),
		Escalations:        g.escalations,
	}
	if g.approvalsResolved > 0 {
		m.ApprovalRate = float64(g.approvalsGranted) / float64(g.approvalsResolved)
		m.AverageResponseTime = g.totalResponseTime / time.Duration(g.approvalsResolved)
	}
	if g.decisionsMade > 0 {
		m.ErrorRate = float64(g.deniedDecisions+g.internalErrors) / float64(g.decisionsMade)
	}
	m.AutonomyScore = g.scoreLocked(m)
	return m
}

// scoreLocked derives the [0,100] trust score: a per-level base plus bonuses
// for a high approval rate, few violations, and zero escalations.
func (g *Governor) scoreLocked(m contracts.AutonomyMetrics) float64 {
	score := policy.CapsFor(g.cfg.Level).BaseScore
	if m.ApprovalRate > 0.8 {
		score += 10
	}
	if m.Violations < 5 {
		score += 10
	}
	if m.Escalations == 0 {
		score += 5
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Config returns a copy of the active configuration.
func (g *Governor) Config() contracts.AutonomyConfig {
	g.mu.Lock()
	defer g.mu.Unlock()

	cfg := g.cfg
	cfg.EscalationTriggers = append([]contracts.EscalationTrigger(nil), g.cfg.EscalationTriggers...)
	return cfg
}

// PendingApprovals returns all requests still awaiting a response.
func (g *Governor) PendingApprovals() []*contracts.ApprovalRequest {
	return g.approvals.Pending()
}

// GetApproval returns one request by ID.
func (g *Governor) GetApproval(requestID string) (*contracts.ApprovalRequest, error) {
	return g.approvals.Get(requestID)
}

// ViolationHistory returns the retained guardrail violations, oldest first.
func (g *Governor) ViolationHistory() []contracts.GuardrailViolation {
	return g.violations.All()
}

// DecisionHistory returns up to limit decision records, newest first.
func (g *Governor) DecisionHistory(limit int) []contracts.DecisionRecord {
	return g.history.Recent(limit)
}

// ResetDailyLedger zeroes the daily spend counters. Runs on the daily
// boundary, driven by the caller's scheduler.
func (g *Governor) ResetDailyLedger() {
	g.ledger.ResetDaily()
}

// PruneHourlyLedger drops interaction buckets older than 24h.
func (g *Governor) PruneHourlyLedger() {
	g.ledger.PruneHourly(g.clock())
}
