// Package escalation evaluates configured escalation triggers against a
// decision/metrics snapshot. The first matching trigger in configuration
// order wins; ties are not further disambiguated. Trigger conditions may be
// CEL expressions; evaluation fails closed (an unevaluable condition fires).
package escalation

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/relayline/governor/pkg/contracts"
)

// Engine compiles and caches trigger conditions and applies the built-in
// per-type semantics when no condition is configured.
type Engine struct {
	env      *cel.Env
	prgCache map[string]cel.Program
	mu       sync.RWMutex
}

// NewEngine creates an engine with a CEL environment exposing the decision
// and metrics snapshots.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("decision", cel.DynType),
		cel.Variable("metrics", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		prgCache: make(map[string]cel.Program),
	}, nil
}

// CheckTriggers returns the first trigger that matches the snapshot, or nil
// when none fire.
func (e *Engine) CheckTriggers(triggers []contracts.EscalationTrigger, d *contracts.Decision, m contracts.AutonomyMetrics) *contracts.EscalationTrigger {
	if len(triggers) == 0 {
		return nil
	}

	input := snapshotInput(d, m)
	for i := range triggers {
		trigger := &triggers[i]
		if e.matches(trigger, d, m, input) {
			return trigger
		}
	}
	return nil
}

func (e *Engine) matches(t *contracts.EscalationTrigger, d *contracts.Decision, m contracts.AutonomyMetrics, input map[string]any) bool {
	if t.Condition != "" {
		fired, err := e.evaluateExpr(t.Condition, input)
		if err != nil {
			// Fail-closed: a condition we cannot evaluate counts as matched.
			return true
		}
		return fired
	}

	switch t.Type {
	case contracts.TriggerSpendingThreshold:
		return float64(d.EstimatedCost) > t.Threshold
	case contracts.TriggerErrorRate:
		return m.ErrorRate > t.Threshold
	case contracts.TriggerReputationDrop:
		// Autonomy score doubles as the reputation signal.
		return m.AutonomyScore < t.Threshold
	case contracts.TriggerContentFlag:
		return float64(m.Violations) > t.Threshold
	case contracts.TriggerSuspiciousActivity:
		return d.Confidence < t.Threshold
	case contracts.TriggerManual:
		return true
	default:
		return false
	}
}

func snapshotInput(d *contracts.Decision, m contracts.AutonomyMetrics) map[string]any {
	return map[string]any{
		"decision": map[string]any{
			"id":             d.ID,
			"type":           string(d.Type),
			"risk_level":     string(d.RiskLevel),
			"estimated_cost": d.EstimatedCost,
			"confidence":     d.Confidence,
			"platform":       d.Context.Platform,
			"currency":       d.Context.Currency,
			"reversible":     d.Context.Reversible,
			"urgency":        string(d.Context.Urgency),
		},
		"metrics": map[string]any{
			"decisions_made":      m.DecisionsMade,
			"approvals_requested": m.ApprovalsRequested,
			"approval_rate":       m.ApprovalRate,
			"violations":          m.Violations,
			"escalations":         m.Escalations,
			"error_rate":          m.ErrorRate,
			"autonomy_score":      m.AutonomyScore,
		},
	}
}

func (e *Engine) evaluateExpr(expr string, input map[string]any) (bool, error) {
	e.mu.RLock()
	prg, hit := e.prgCache[expr]
	e.mu.RUnlock()

	if !hit {
		e.mu.Lock()
		// Double check
		if prg, hit = e.prgCache[expr]; !hit {
			ast, issues := e.env.Compile(expr)
			if issues != nil && issues.Err() != nil {
				e.mu.Unlock()
				return false, fmt.Errorf("compile: %w", issues.Err())
			}
			p, err := e.env.Program(ast,
				cel.InterruptCheckFrequency(100),
				cel.CostLimit(10000), // Hard limit on computational complexity
			)
			if err != nil {
				e.mu.Unlock()
				return false, fmt.Errorf("program: %w", err)
			}
			e.prgCache[expr] = p
			prg = p
		}
		e.mu.Unlock()
	}

	out, _, err := prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("result not bool")
	}
	return val, nil
}
