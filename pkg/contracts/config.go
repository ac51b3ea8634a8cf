package contracts

import "time"

// AutonomyLevel is the agent's position on the trust ladder. Each level's
// permission set is a superset of the one below it, except that financial
// transactions open up only at SemiAutonomous and unrestricted risk only at
// Autonomous.
type AutonomyLevel string

// Autonomy level constants, ordered bottom to top.
const (
	LevelRestricted     AutonomyLevel = "RESTRICTED"
	LevelSupervised     AutonomyLevel = "SUPERVISED"
	LevelSemiAutonomous AutonomyLevel = "SEMI_AUTONOMOUS"
	LevelAutonomous     AutonomyLevel = "AUTONOMOUS"
)

var levelRank = map[AutonomyLevel]int{
	LevelRestricted:     0,
	LevelSupervised:     1,
	LevelSemiAutonomous: 2,
	LevelAutonomous:     3,
}

// Rank returns the ordinal ladder position (unknown levels rank as
// Restricted, fail-closed).
func (l AutonomyLevel) Rank() int {
	if rank, ok := levelRank[l]; ok {
		return rank
	}
	return levelRank[LevelRestricted]
}

// Below returns the level one rung down, or Restricted when already at the
// bottom.
func (l AutonomyLevel) Below() AutonomyLevel {
	switch l {
	case LevelAutonomous:
		return LevelSemiAutonomous
	case LevelSemiAutonomous:
		return LevelSupervised
	default:
		return LevelRestricted
	}
}

// SpendingLimits bounds financial decisions. All amounts are minor units
// (cents) in the ledger's base currency unless a per-currency override exists.
type SpendingLimits struct {
	DailyLimit            int64            `json:"daily_limit" yaml:"daily_limit"`
	PerTransactionLimit   int64            `json:"per_transaction_limit" yaml:"per_transaction_limit"`
	ApprovalRequiredAbove int64            `json:"approval_required_above" yaml:"approval_required_above"`
	PlatformLimits        map[string]int64 `json:"platform_limits,omitempty" yaml:"platform_limits,omitempty"`
	CurrencyLimits        map[string]int64 `json:"currency_limits,omitempty" yaml:"currency_limits,omitempty"`
}

// InteractionRules bounds platform interactions and content output.
type InteractionRules struct {
	MaxPostsPerHour       int           `json:"max_posts_per_hour" yaml:"max_posts_per_hour"`
	MaxPostsPerDay        int           `json:"max_posts_per_day" yaml:"max_posts_per_day"`
	MaxRepliesPerThread   int           `json:"max_replies_per_thread" yaml:"max_replies_per_thread"`
	MaxDMConversations    int           `json:"max_dm_conversations" yaml:"max_dm_conversations"`
	CooldownBetweenPosts  time.Duration `json:"cooldown_between_posts" yaml:"cooldown_between_posts"`
	ForbiddenContentTypes []string      `json:"forbidden_content_types,omitempty" yaml:"forbidden_content_types,omitempty"`
	RequiredDisclaimers   []string      `json:"required_disclaimers,omitempty" yaml:"required_disclaimers,omitempty"`
}

// AutonomyConfig is the single active trust-boundary configuration for an
// agent. It is mutated in place by operator commands and by automatic
// downgrades; it is never deleted.
type AutonomyConfig struct {
	Level              AutonomyLevel       `json:"level" yaml:"level"`
	SpendingLimits     SpendingLimits      `json:"spending_limits" yaml:"spending_limits"`
	InteractionRules   InteractionRules    `json:"interaction_rules" yaml:"interaction_rules"`
	EscalationTriggers []EscalationTrigger `json:"escalation_triggers,omitempty" yaml:"escalation_triggers,omitempty"`
	ApprovalTimeout    time.Duration       `json:"approval_timeout" yaml:"approval_timeout"`
	EmergencyContacts  []string            `json:"emergency_contacts,omitempty" yaml:"emergency_contacts,omitempty"`
}

// SpendingLimitsPatch is a partial update to SpendingLimits. Nil fields are
// left unchanged.
type SpendingLimitsPatch struct {
	DailyLimit            *int64           `json:"daily_limit,omitempty"`
	PerTransactionLimit   *int64           `json:"per_transaction_limit,omitempty"`
	ApprovalRequiredAbove *int64           `json:"approval_required_above,omitempty"`
	PlatformLimits        map[string]int64 `json:"platform_limits,omitempty"`
	CurrencyLimits        map[string]int64 `json:"currency_limits,omitempty"`
}

// InteractionRulesPatch is a partial update to InteractionRules.
type InteractionRulesPatch struct {
	MaxPostsPerHour       *int           `json:"max_posts_per_hour,omitempty"`
	MaxPostsPerDay        *int           `json:"max_posts_per_day,omitempty"`
	MaxRepliesPerThread   *int           `json:"max_replies_per_thread,omitempty"`
	MaxDMConversations    *int           `json:"max_dm_conversations,omitempty"`
	CooldownBetweenPosts  *time.Duration `json:"cooldown_between_posts,omitempty"`
	ForbiddenContentTypes []string       `json:"forbidden_content_types,omitempty"`
	RequiredDisclaimers   []string       `json:"required_disclaimers,omitempty"`
}
