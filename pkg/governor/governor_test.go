package governor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayline/governor/pkg/approval"
	"github.com/relayline/governor/pkg/contracts"
	"github.com/relayline/governor/pkg/governor"
	"github.com/relayline/governor/pkg/ledger"
)

func newGovernor(t *testing.T, cfg contracts.AutonomyConfig) *governor.Governor {
	t.Helper()
	g, err := governor.New("agent-test", cfg, ledger.NewMemoryStore())
	require.NoError(t, err)
	return g
}

func autonomousConfig() contracts.AutonomyConfig {
	return contracts.AutonomyConfig{
		Level:           contracts.LevelAutonomous,
		ApprovalTimeout: time.Hour,
	}
}

func eventTypes(events []contracts.DomainEvent) []contracts.EventType {
	types := make([]contracts.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestValidateDecision_CleanDecisionApproved(t *testing.T) {
	g := newGovernor(t, contracts.AutonomyConfig{Level: contracts.LevelSemiAutonomous})

	result, events, err := g.ValidateDecision(context.Background(), &contracts.Decision{
		ID:          "dec-1",
		Type:        contracts.DecisionContentCreation,
		Description: "publish weekly changelog post",
		RiskLevel:   contracts.RiskLow,
	})
	require.NoError(t, err)

	assert.True(t, result.Approved)
	assert.Contains(t, eventTypes(events), contracts.EventDecisionApproved)

	history := g.DecisionHistory(0)
	require.Len(t, history, 1)
	assert.Equal(t, "dec-1", history[0].Decision.ID)
	assert.True(t, history[0].Result.Approved)
}

func TestValidateDecision_DailyLimitDenied(t *testing.T) {
	cfg := autonomousConfig()
	cfg.SpendingLimits.DailyLimit = 100
	g := newGovernor(t, cfg)

	result, _, err := g.ValidateDecision(context.Background(), &contracts.Decision{
		ID:            "dec-1",
		Type:          contracts.DecisionFinancialTransaction,
		EstimatedCost: 150,
		RiskLevel:     contracts.RiskLow,
	})
	require.NoError(t, err)

	assert.False(t, result.Approved)
	assert.True(t, result.EscalationRequired)
	assert.Contains(t, result.Reason, "daily limit")
}

func TestValidateDecision_RestrictedDeniesPlatformInteraction(t *testing.T) {
	g := newGovernor(t, contracts.AutonomyConfig{Level: contracts.LevelRestricted})

	result, _, err := g.ValidateDecision(context.Background(), &contracts.Decision{
		ID:        "dec-1",
		Type:      contracts.DecisionPlatformInteraction,
		Context:   contracts.DecisionContext{Platform: "forum"},
		RiskLevel: contracts.RiskLow,
	})
	require.NoError(t, err)

	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "not permitted")
}

func TestValidateDecision_ApprovedSpendCommitsToLedger(t *testing.T) {
	cfg := autonomousConfig()
	cfg.SpendingLimits.DailyLimit = 1000
	st := ledger.NewMemoryStore()
	g, err := governor.New("agent-test", cfg, st)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		result, _, err := g.ValidateDecision(context.Background(), &contracts.Decision{
			ID:            "dec",
			Type:          contracts.DecisionFinancialTransaction,
			EstimatedCost: 300,
			RiskLevel:     contracts.RiskLow,
		})
		require.NoError(t, err)
		require.True(t, result.Approved)
	}
	assert.Equal(t, int64(900), st.DailySpent("USD"))

	// The fourth would push the total to 1200; the atomic commit refuses.
	result, _, err := g.ValidateDecision(context.Background(), &contracts.Decision{
		ID:            "dec-4",
		Type:          contracts.DecisionFinancialTransaction,
		EstimatedCost: 300,
		RiskLevel:     contracts.RiskLow,
	})
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, int64(900), st.DailySpent("USD"))
}

func TestSpendingTriggerReducesAutonomy(t *testing.T) {
	cfg := autonomousConfig()
	cfg.EscalationTriggers = []contracts.EscalationTrigger{{
		ID:        "spend-50",
		Type:      contracts.TriggerSpendingThreshold,
		Threshold: 50,
		Action:    contracts.ActionReduceAutonomy,
		Priority:  contracts.PriorityHigh,
	}}
	g := newGovernor(t, cfg)

	result, events, err := g.ValidateDecision(context.Background(), &contracts.Decision{
		ID:            "dec-1",
		Type:          contracts.DecisionFinancialTransaction,
		EstimatedCost: 60,
		RiskLevel:     contracts.RiskLow,
	})
	require.NoError(t, err)

	assert.False(t, result.Approved)
	assert.True(t, result.EscalationRequired)
	assert.Equal(t, contracts.LevelSemiAutonomous, g.Config().Level)
	assert.Equal(t, int64(1), g.Metrics().Escalations)
	assert.Contains(t, eventTypes(events), contracts.EventAutonomyLevelChanged)
}

func TestRequestApprovalTrigger(t *testing.T) {
	cfg := autonomousConfig()
	cfg.ApprovalTimeout = time.Hour
	cfg.EscalationTriggers = []contracts.EscalationTrigger{{
		ID:        "hold-large",
		Type:      contracts.TriggerSpendingThreshold,
		Threshold: 500,
		Action:    contracts.ActionRequestApproval,
		Priority:  contracts.PriorityHigh,
	}}
	g := newGovernor(t, cfg)

	result, events, err := g.ValidateDecision(context.Background(), &contracts.Decision{
		ID:            "dec-1",
		Type:          contracts.DecisionFinancialTransaction,
		EstimatedCost: 900,
		RiskLevel:     contracts.RiskLow,
	})
	require.NoError(t, err)

	assert.False(t, result.Approved)
	assert.Equal(t, time.Hour, result.ApprovalTimeout)
	assert.Contains(t, eventTypes(events), contracts.EventApprovalRequested)
	assert.Len(t, g.PendingApprovals(), 1)
	assert.Equal(t, int64(1), g.Metrics().ApprovalsRequested)
}

func TestLadderOnlyDowngrade(t *testing.T) {
	g := newGovernor(t, autonomousConfig())
	ctx := context.Background()

	want := []contracts.AutonomyLevel{
		contracts.LevelSemiAutonomous,
		contracts.LevelSupervised,
		contracts.LevelRestricted,
		contracts.LevelRestricted, // no-op past the bottom
	}
	for i, expected := range want {
		events, err := g.ReduceAutonomy(ctx, "test downgrade")
		require.NoError(t, err)
		assert.Equal(t, expected, g.Config().Level, "step %d", i)
		if expected == contracts.LevelRestricted && i == len(want)-1 {
			assert.Empty(t, events, "downgrade past Restricted emits nothing")
		}
	}
}

func TestSetAutonomyLevel_RequiresReason(t *testing.T) {
	g := newGovernor(t, autonomousConfig())

	_, err := g.SetAutonomyLevel(context.Background(), contracts.LevelRestricted, "")
	assert.ErrorIs(t, err, governor.ErrReasonRequired)
}

func TestSetAutonomyLevel_ClampsLimits(t *testing.T) {
	cfg := autonomousConfig()
	cfg.SpendingLimits.DailyLimit = 999999
	cfg.InteractionRules.MaxPostsPerHour = 99
	g := newGovernor(t, cfg)

	_, err := g.SetAutonomyLevel(context.Background(), contracts.LevelRestricted, "containment")
	require.NoError(t, err)

	got := g.Config()
	assert.Equal(t, int64(1000), got.SpendingLimits.DailyLimit)
	assert.Equal(t, 2, got.InteractionRules.MaxPostsPerHour)
}

func TestEmergencyStop_CancelsPendingAndPauses(t *testing.T) {
	g := newGovernor(t, autonomousConfig())
	ctx := context.Background()

	req, _ := g.RequestApproval(ctx, &contracts.Decision{
		ID:   "dec-1",
		Type: contracts.DecisionFinancialTransaction,
	})

	events, err := g.TriggerEmergencyStop(ctx, "operator kill switch")
	require.NoError(t, err)

	assert.Equal(t, contracts.LevelRestricted, g.Config().Level)
	assert.True(t, g.Paused())
	assert.Contains(t, eventTypes(events), contracts.EventEmergencyStopTriggered)

	got, err := g.GetApproval(req.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.ApprovalDenied, got.Status)
	assert.Equal(t, "emergency_stop", got.Notes)

	// Everything is denied while paused.
	result, _, err := g.ValidateDecision(ctx, &contracts.Decision{
		ID:        "dec-2",
		Type:      contracts.DecisionLearningAdaptation,
		RiskLevel: contracts.RiskLow,
	})
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "paused")

	require.NoError(t, g.Resume(ctx, "incident resolved"))
	result, _, err = g.ValidateDecision(ctx, &contracts.Decision{
		ID:        "dec-3",
		Type:      contracts.DecisionLearningAdaptation,
		RiskLevel: contracts.RiskLow,
	})
	require.NoError(t, err)
	assert.True(t, result.Approved)
}

func TestEmergencyStop_IdempotentAtRestricted(t *testing.T) {
	g := newGovernor(t, contracts.AutonomyConfig{Level: contracts.LevelRestricted})
	ctx := context.Background()

	before := g.Config()
	events, err := g.TriggerEmergencyStop(ctx, "drill")
	require.NoError(t, err)

	assert.Equal(t, before.Level, g.Config().Level)
	// Only the stop event itself; no level change, nothing to cancel.
	assert.Equal(t, []contracts.EventType{contracts.EventEmergencyStopTriggered}, eventTypes(events))
}

func TestApprovalFlow_ApproveCommitsSpend(t *testing.T) {
	cfg := autonomousConfig()
	cfg.SpendingLimits.DailyLimit = 1000
	st := ledger.NewMemoryStore()
	g, err := governor.New("agent-test", cfg, st)
	require.NoError(t, err)
	ctx := context.Background()

	req, _ := g.RequestApproval(ctx, &contracts.Decision{
		ID:            "dec-1",
		Type:          contracts.DecisionFinancialTransaction,
		EstimatedCost: 400,
	})

	got, events, err := g.ProcessApprovalResponse(ctx, req.ID, true, "alice", "looks fine")
	require.NoError(t, err)

	assert.Equal(t, contracts.ApprovalApproved, got.Status)
	assert.Equal(t, "alice", got.Approver)
	assert.Equal(t, int64(400), st.DailySpent("USD"))
	assert.Contains(t, eventTypes(events), contracts.EventApprovalProcessed)
	assert.Contains(t, eventTypes(events), contracts.EventDecisionApproved)

	m := g.Metrics()
	assert.Equal(t, 1.0, m.ApprovalRate)

	// Terminal state is monotonic.
	_, _, err = g.ProcessApprovalResponse(ctx, req.ID, false, "bob", "")
	assert.ErrorIs(t, err, approval.ErrNotPending)
}

func TestApprovalFlow_UnknownRequest(t *testing.T) {
	g := newGovernor(t, autonomousConfig())

	_, _, err := g.ProcessApprovalResponse(context.Background(), "nope", true, "alice", "")
	assert.ErrorIs(t, err, approval.ErrNotFound)
}

func TestApprovalTimeout_NotifiesAndRejectsLateResponse(t *testing.T) {
	cfg := autonomousConfig()
	cfg.ApprovalTimeout = 50 * time.Millisecond
	g := newGovernor(t, cfg)
	ctx := context.Background()

	notified := make(chan contracts.DomainEvent, 1)
	g.SetEventNotifier(func(e contracts.DomainEvent) { notified <- e })

	req, _ := g.RequestApproval(ctx, &contracts.Decision{
		ID:   "dec-1",
		Type: contracts.DecisionFinancialTransaction,
	})

	select {
	case e := <-notified:
		assert.Equal(t, contracts.EventApprovalTimeout, e.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout event never delivered")
	}

	got, err := g.GetApproval(req.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.ApprovalTimeout, got.Status)

	_, _, err = g.ProcessApprovalResponse(ctx, req.ID, true, "alice", "too late")
	assert.ErrorIs(t, err, approval.ErrNotPending)
}

func TestScoreBounds(t *testing.T) {
	levels := []contracts.AutonomyLevel{
		contracts.LevelRestricted,
		contracts.LevelSupervised,
		contracts.LevelSemiAutonomous,
		contracts.LevelAutonomous,
	}
	for _, level := range levels {
		g := newGovernor(t, contracts.AutonomyConfig{Level: level})
		score := g.Metrics().AutonomyScore
		assert.GreaterOrEqual(t, score, 0.0, "level %s", level)
		assert.LessOrEqual(t, score, 100.0, "level %s", level)
	}

	// Autonomous with every bonus still clamps to 100.
	g := newGovernor(t, autonomousConfig())
	assert.Equal(t, 100.0, g.Metrics().AutonomyScore)
}

func TestEscalationTriggerAddRemove(t *testing.T) {
	g := newGovernor(t, autonomousConfig())
	ctx := context.Background()

	trig, events := g.AddEscalationTrigger(ctx, contracts.EscalationTrigger{
		Type:      contracts.TriggerErrorRate,
		Threshold: 0.5,
		Action:    contracts.ActionNotifyOwner,
	})
	require.NotEmpty(t, trig.ID)
	assert.Contains(t, eventTypes(events), contracts.EventEscalationTriggerAdded)
	assert.Len(t, g.Config().EscalationTriggers, 1)

	events, err := g.RemoveEscalationTrigger(ctx, trig.ID)
	require.NoError(t, err)
	assert.Contains(t, eventTypes(events), contracts.EventEscalationTriggerRemoved)
	assert.Empty(t, g.Config().EscalationTriggers)

	_, err = g.RemoveEscalationTrigger(ctx, "missing")
	assert.ErrorIs(t, err, governor.ErrTriggerNotFound)
}

func TestUpdateLimits_PartialPatchAndClamp(t *testing.T) {
	g := newGovernor(t, contracts.AutonomyConfig{
		Level: contracts.LevelRestricted,
		SpendingLimits: contracts.SpendingLimits{
			DailyLimit:          500,
			PerTransactionLimit: 200,
		},
	})
	ctx := context.Background()

	daily := int64(999999)
	events := g.UpdateSpendingLimits(ctx, contracts.SpendingLimitsPatch{DailyLimit: &daily})
	assert.Contains(t, eventTypes(events), contracts.EventSpendingLimitsUpdated)

	got := g.Config().SpendingLimits
	// Clamped to Restricted's cap; the untouched field survives.
	assert.Equal(t, int64(1000), got.DailyLimit)
	assert.Equal(t, int64(200), got.PerTransactionLimit)

	hourly := 99
	g.UpdateInteractionRules(ctx, contracts.InteractionRulesPatch{MaxPostsPerHour: &hourly})
	assert.Equal(t, 2, g.Config().InteractionRules.MaxPostsPerHour)
}

func TestContentViolationLandsInHistory(t *testing.T) {
	cfg := contracts.AutonomyConfig{
		Level: contracts.LevelSemiAutonomous,
		InteractionRules: contracts.InteractionRules{
			ForbiddenContentTypes: []string{"gambling"},
		},
	}
	g := newGovernor(t, cfg)

	result, _, err := g.ValidateDecision(context.Background(), &contracts.Decision{
		ID:          "dec-1",
		Type:        contracts.DecisionContentCreation,
		Description: "promote gambling affiliate",
		RiskLevel:   contracts.RiskLow,
	})
	require.NoError(t, err)

	assert.False(t, result.Approved)
	violations := g.ViolationHistory()
	require.Len(t, violations, 1)
	assert.Equal(t, "content_policy", violations[0].Type)
	assert.Equal(t, "dec-1", violations[0].DecisionID)
	assert.Equal(t, int64(1), g.Metrics().Violations)
}

func TestPauseAgentTriggerStopsEverything(t *testing.T) {
	cfg := autonomousConfig()
	cfg.EscalationTriggers = []contracts.EscalationTrigger{{
		ID:        "panic-button",
		Type:      contracts.TriggerSuspiciousActivity,
		Threshold: 0.5,
		Action:    contracts.ActionPauseAgent,
		Priority:  contracts.PriorityCritical,
	}}
	g := newGovernor(t, cfg)

	result, events, err := g.ValidateDecision(context.Background(), &contracts.Decision{
		ID:         "dec-1",
		Type:       contracts.DecisionFinancialTransaction,
		Confidence: 0.1, // suspicious: far below the threshold
		RiskLevel:  contracts.RiskLow,
	})
	require.NoError(t, err)

	assert.False(t, result.Approved)
	assert.True(t, g.Paused())
	assert.Equal(t, contracts.LevelRestricted, g.Config().Level)
	assert.Contains(t, eventTypes(events), contracts.EventEmergencyStopTriggered)
}
