package room

import (
	"fmt"
	"strings"
	"time"
)

// Rules holds the per-match constants shared by every room.
type Rules struct {
	// Tiers maps a difficulty name to its initial countdown in seconds.
	Tiers map[string]int `yaml:"tiers"`
	// DefaultTier is used for any difficulty not present in Tiers.
	DefaultTier    string        `yaml:"default_tier"`
	TotalQuestions int           `yaml:"total_questions"`
	CorrectReward  int           `yaml:"correct_reward"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
}

// DefaultRules returns the standard three-tier ruleset
func DefaultRules() Rules {
	return Rules{
		Tiers: map[string]int{
			"easy":   60,
			"medium": 45,
			"hard":   30,
		},
		DefaultTier:    "medium",
		TotalQuestions: 10,
		CorrectReward:  10,
		SettleDelay:    3 * time.Second,
	}
}

// CountdownFor returns the initial countdown for a difficulty, falling back to the
// default tier for unrecognized names.
func (r Rules) CountdownFor(difficulty string) int {
	if secs, ok := r.Tiers[difficulty]; ok {
		return secs
	}
	return r.Tiers[r.DefaultTier]
}

// Validate checks the ruleset invariants
func (r Rules) Validate() error {
	var errs []string
	if len(r.Tiers) == 0 {
		errs = append(errs, "at least one difficulty tier is required")
	}
	for name, secs := range r.Tiers {
		if secs < 1 {
			errs = append(errs, fmt.Sprintf("tier %q countdown must be >= 1, got %d", name, secs))
		}
	}
	if _, ok := r.Tiers[r.DefaultTier]; !ok {
		errs = append(errs, fmt.Sprintf("default tier %q is not a defined tier", r.DefaultTier))
	}
	if r.TotalQuestions < 1 {
		errs = append(errs, fmt.Sprintf("total_questions must be >= 1, got %d", r.TotalQuestions))
	}
	if r.CorrectReward < 0 {
		errs = append(errs, fmt.Sprintf("correct_reward must be >= 0, got %d", r.CorrectReward))
	}
	if r.SettleDelay < 0 {
		errs = append(errs, "settle_delay must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid rules: %s", strings.Join(errs, "; "))
	}
	return nil
}
