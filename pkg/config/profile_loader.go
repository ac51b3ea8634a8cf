package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relayline/governor/pkg/contracts"
)

// AutonomyProfile is a named, file-backed starting configuration for an
// agent. Operators pick a profile at startup; everything in it can still be
// changed at runtime. Durations are whole seconds in the file.
type AutonomyProfile struct {
	Name              string                        `yaml:"name" json:"name"`
	Description       string                        `yaml:"description,omitempty" json:"description,omitempty"`
	Level             string                        `yaml:"level" json:"level"`
	SpendingLimits    contracts.SpendingLimits      `yaml:"spending_limits" json:"spending_limits"`
	Interaction       ProfileInteraction            `yaml:"interaction_rules" json:"interaction_rules"`
	Triggers          []contracts.EscalationTrigger `yaml:"escalation_triggers,omitempty" json:"escalation_triggers,omitempty"`
	ApprovalTimeoutS  int                           `yaml:"approval_timeout_seconds" json:"approval_timeout_seconds"`
	EmergencyContacts []string                      `yaml:"emergency_contacts,omitempty" json:"emergency_contacts,omitempty"`
}

// ProfileInteraction mirrors contracts.InteractionRules with the cooldown
// expressed in seconds so profiles stay hand-editable.
type ProfileInteraction struct {
	MaxPostsPerHour       int      `yaml:"max_posts_per_hour" json:"max_posts_per_hour"`
	MaxPostsPerDay        int      `yaml:"max_posts_per_day" json:"max_posts_per_day"`
	MaxRepliesPerThread   int      `yaml:"max_replies_per_thread" json:"max_replies_per_thread"`
	MaxDMConversations    int      `yaml:"max_dm_conversations" json:"max_dm_conversations"`
	CooldownSeconds       int      `yaml:"cooldown_between_posts_seconds" json:"cooldown_between_posts_seconds"`
	ForbiddenContentTypes []string `yaml:"forbidden_content_types,omitempty" json:"forbidden_content_types,omitempty"`
	RequiredDisclaimers   []string `yaml:"required_disclaimers,omitempty" json:"required_disclaimers,omitempty"`
}

// Autonomy converts the profile into the runtime configuration.
func (p *AutonomyProfile) Autonomy() contracts.AutonomyConfig {
	level := contracts.AutonomyLevel(p.Level)
	if _, known := map[contracts.AutonomyLevel]bool{
		contracts.LevelRestricted:     true,
		contracts.LevelSupervised:     true,
		contracts.LevelSemiAutonomous: true,
		contracts.LevelAutonomous:     true,
	}[level]; !known {
		level = contracts.LevelRestricted
	}

	return contracts.AutonomyConfig{
		Level:          level,
		SpendingLimits: p.SpendingLimits,
		InteractionRules: contracts.InteractionRules{
			MaxPostsPerHour:       p.Interaction.MaxPostsPerHour,
			MaxPostsPerDay:        p.Interaction.MaxPostsPerDay,
			MaxRepliesPerThread:   p.Interaction.MaxRepliesPerThread,
			MaxDMConversations:    p.Interaction.MaxDMConversations,
			CooldownBetweenPosts:  time.Duration(p.Interaction.CooldownSeconds) * time.Second,
			ForbiddenContentTypes: p.Interaction.ForbiddenContentTypes,
			RequiredDisclaimers:   p.Interaction.RequiredDisclaimers,
		},
		EscalationTriggers: p.Triggers,
		ApprovalTimeout:    time.Duration(p.ApprovalTimeoutS) * time.Second,
		EmergencyContacts:  p.EmergencyContacts,
	}
}

// LoadProfile loads an autonomy profile YAML by name.
// It searches the profiles directory for profile_<name>.yaml.
func LoadProfile(profilesDir, name string) (*AutonomyProfile, error) {
	name = strings.ToLower(name)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", name))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", name, err)
	}

	var profile AutonomyProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", name, err)
	}

	if profile.Name == "" {
		profile.Name = name
	}

	return &profile, nil
}

// LoadAllProfiles loads all profile_*.yaml files from the profiles directory.
func LoadAllProfiles(profilesDir string) (map[string]*AutonomyProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*AutonomyProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var profile AutonomyProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		if profile.Name == "" {
			// Extract name from filename: profile_supervised.yaml -> supervised
			base := filepath.Base(path)
			profile.Name = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}

		profiles[profile.Name] = &profile
	}

	return profiles, nil
}
