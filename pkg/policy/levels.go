package policy

import (
	"github.com/relayline/governor/pkg/contracts"
)

// LevelCaps is the declarative table of maximum limits per autonomy level.
// Applied on every level transition; zero means uncapped.
type LevelCaps struct {
	MaxDailyLimit       int64 // cents
	MaxPerTransaction   int64 // cents
	MaxPostsPerHour     int
	MaxRisk             contracts.RiskLevel
	BaseScore           float64
	AllowedTypes        []contracts.DecisionType
}

var levelTable = map[contracts.AutonomyLevel]LevelCaps{
	contracts.LevelRestricted: {
		MaxDailyLimit:     1000, // $10
		MaxPerTransaction: 500,
		MaxPostsPerHour:   2,
		MaxRisk:           contracts.RiskLow,
		BaseScore:         25,
		AllowedTypes: []contracts.DecisionType{
			contracts.DecisionLearningAdaptation,
		},
	},
	contracts.LevelSupervised: {
		MaxDailyLimit:     5000, // $50
		MaxPerTransaction: 2500,
		MaxPostsPerHour:   5,
		MaxRisk:           contracts.RiskMedium,
		BaseScore:         50,
		AllowedTypes: []contracts.DecisionType{
			contracts.DecisionLearningAdaptation,
			contracts.DecisionPlatformInteraction,
		},
	},
	contracts.LevelSemiAutonomous: {
		MaxDailyLimit:     50000, // $500
		MaxPerTransaction: 10000,
		MaxPostsPerHour:   10,
		MaxRisk:           contracts.RiskHigh,
		BaseScore:         75,
		AllowedTypes: []contracts.DecisionType{
			contracts.DecisionContentCreation,
			contracts.DecisionPlatformInteraction,
			contracts.DecisionLearningAdaptation,
			contracts.DecisionServiceOffering,
			contracts.DecisionGovernanceParticipation,
			contracts.DecisionEmergencyAction,
		},
	},
	contracts.LevelAutonomous: {
		MaxRisk:   contracts.RiskCritical,
		BaseScore: 100,
		AllowedTypes: []contracts.DecisionType{
			contracts.DecisionContentCreation,
			contracts.DecisionFinancialTransaction,
			contracts.DecisionPlatformInteraction,
			contracts.DecisionLearningAdaptation,
			contracts.DecisionServiceOffering,
			contracts.DecisionGovernanceParticipation,
			contracts.DecisionEmergencyAction,
		},
	},
}

// CapsFor returns the cap table entry for a level. Unknown levels map to
// Restricted, fail-closed.
func CapsFor(level contracts.AutonomyLevel) LevelCaps {
	if caps, ok := levelTable[level]; ok {
		return caps
	}
	return levelTable[contracts.LevelRestricted]
}

// TypeAllowed reports whether the decision type is in the level's allow-set.
func TypeAllowed(level contracts.AutonomyLevel, t contracts.DecisionType) bool {
	for _, allowed := range CapsFor(level).AllowedTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// RiskAllowed reports whether the risk level is at or below the level's ceiling.
func RiskAllowed(level contracts.AutonomyLevel, r contracts.RiskLevel) bool {
	return r.Rank() <= CapsFor(level).MaxRisk.Rank()
}

// ClampLimits applies the level's caps to the config in place. Used on every
// level transition so limits never exceed what the new level tolerates.
func ClampLimits(cfg *contracts.AutonomyConfig) {
	caps := CapsFor(cfg.Level)
	if caps.MaxDailyLimit > 0 && cfg.SpendingLimits.DailyLimit > caps.MaxDailyLimit {
		cfg.SpendingLimits.DailyLimit = caps.MaxDailyLimit
	}
	if caps.MaxPerTransaction > 0 && cfg.SpendingLimits.PerTransactionLimit > caps.MaxPerTransaction {
		cfg.SpendingLimits.PerTransactionLimit = caps.MaxPerTransaction
	}
	if caps.MaxPostsPerHour > 0 && cfg.InteractionRules.MaxPostsPerHour > caps.MaxPostsPerHour {
		cfg.InteractionRules.MaxPostsPerHour = caps.MaxPostsPerHour
	}
}
