// Package policy implements the stateless rules that gate a proposed decision
// against the active autonomy configuration: type permission, spending
// limits, interaction rate, content policy, and risk ceiling. Checks run in
// that fixed order and short-circuit on the first failure.
package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/relayline/governor/pkg/contracts"
)

// Outcome is the evaluator's verdict on a single decision.
type Outcome struct {
	Allowed            bool
	Reason             string
	EscalationRequired bool
}

func allow() Outcome {
	return Outcome{Allowed: true}
}

func deny(escalate bool, format string, args ...any) Outcome {
	return Outcome{Reason: fmt.Sprintf(format, args...), EscalationRequired: escalate}
}

// LedgerView is the read side of the spend/interaction counters. The final
// commit re-checks these limits atomically; the evaluator's reads exist to
// produce early, human-readable denials.
type LedgerView interface {
	DailySpent(currency string) int64
	HourCount(platform string) int
}

// ViolationRecorder receives guardrail violations found during evaluation.
type ViolationRecorder interface {
	RecordViolation(v contracts.GuardrailViolation)
}

// Evaluator runs the five ordered policy checks. It holds no mutable state;
// the violation recorder is the only side channel.
type Evaluator struct {
	violations ViolationRecorder
	clock      func() time.Time
}

// NewEvaluator creates an evaluator reporting violations to rec.
func NewEvaluator(rec ViolationRecorder) *Evaluator {
	return &Evaluator{violations: rec, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (e *Evaluator) WithClock(clock func() time.Time) *Evaluator {
	e.clock = clock
	return e
}

// Evaluate checks a decision against the config and the current ledger view.
func (e *Evaluator) Evaluate(d *contracts.Decision, cfg *contracts.AutonomyConfig, view LedgerView) Outcome {
	// 1. Type permission
	if !TypeAllowed(cfg.Level, d.Type) {
		return deny(true, "decision type %s not permitted at autonomy level %s", d.Type, cfg.Level)
	}

	// 2. Spending limits (financial decisions only)
	if d.Type == contracts.DecisionFinancialTransaction {
		if out := e.checkSpending(d, cfg, view); !out.Allowed {
			return out
		}
	}

	// 3. Interaction rate (platform interactions only)
	if d.Type == contracts.DecisionPlatformInteraction {
		if out := e.checkInteraction(d, cfg, view); !out.Allowed {
			return out
		}
	}

	// 4. Content policy (content creation only)
	if d.Type == contracts.DecisionContentCreation {
		if out := e.checkContent(d, cfg); !out.Allowed {
			return out
		}
	}

	// 5. Risk ceiling
	if !RiskAllowed(cfg.Level, d.RiskLevel) {
		return deny(true, "risk level %s exceeds ceiling %s for autonomy level %s",
			d.RiskLevel, CapsFor(cfg.Level).MaxRisk, cfg.Level)
	}

	return allow()
}

// checkSpending enforces the three independent hard limits in order:
// per-transaction, daily-per-currency, approval-required-above. Each produces
// its own reason; all spending denials escalate.
func (e *Evaluator) checkSpending(d *contracts.Decision, cfg *contracts.AutonomyConfig, view LedgerView) Outcome {
	limits := cfg.SpendingLimits
	cost := d.EstimatedCost
	currency := d.Context.Currency
	if currency == "" {
		currency = "USD"
	}

	if limits.PerTransactionLimit > 0 && cost > limits.PerTransactionLimit {
		return deny(true, "estimated cost %d exceeds per-transaction limit %d", cost, limits.PerTransactionLimit)
	}

	daily := limits.DailyLimit
	if override, ok := limits.CurrencyLimits[currency]; ok {
		daily = override
	}
	if daily > 0 {
		if spent := view.DailySpent(currency); spent+cost > daily {
			return deny(true, "daily spend %d + cost %d would exceed daily limit %d for %s", spent, cost, daily, currency)
		}
	}

	if limits.ApprovalRequiredAbove > 0 && cost > limits.ApprovalRequiredAbove {
		return deny(true, "estimated cost %d requires approval above %d", cost, limits.ApprovalRequiredAbove)
	}

	if platform := d.Context.Platform; platform != "" {
		if limit, ok := limits.PlatformLimits[platform]; ok && limit > 0 && cost > limit {
			return deny(true, "estimated cost %d exceeds platform limit %d for %s", cost, limit, platform)
		}
	}

	return allow()
}

// checkInteraction enforces the per-platform hourly cap. Rate-limit denials
// do not escalate: the bucket rolls over on its own.
func (e *Evaluator) checkInteraction(d *contracts.Decision, cfg *contracts.AutonomyConfig, view LedgerView) Outcome {
	max := cfg.InteractionRules.MaxPostsPerHour
	if max <= 0 {
		return allow()
	}
	platform := d.Context.Platform
	if count := view.HourCount(platform); count >= max {
		return deny(false, "hourly interaction limit %d reached for platform %s", max, platform)
	}
	return allow()
}

// checkContent matches the description against forbidden content types,
// case-insensitively. A match is a guardrail violation, not just a denial.
func (e *Evaluator) checkContent(d *contracts.Decision, cfg *contracts.AutonomyConfig) Outcome {
	desc := strings.ToLower(d.Description)
	for _, forbidden := range cfg.InteractionRules.ForbiddenContentTypes {
		if forbidden == "" {
			continue
		}
		if strings.Contains(desc, strings.ToLower(forbidden)) {
			if e.violations != nil {
				e.violations.RecordViolation(contracts.GuardrailViolation{
					Type:        "content_policy",
					Severity:    contracts.SeverityError,
					Description: fmt.Sprintf("content matches forbidden type %q", forbidden),
					Timestamp:   e.clock(),
					DecisionID:  d.ID,
					ActionTaken: "blocked",
				})
			}
			return deny(true, "content matches forbidden type %q", forbidden)
		}
	}
	return allow()
}
