package targeting

import (
	"fmt"
	"strings"

	"github.com/magefree/mage-rules-go/internal/game/effects"
)

// TargetType represents the type of target a spell or ability can have.
type TargetType string

const (
	// TargetTypeCreature targets creatures
	TargetTypeCreature TargetType = "creature"
	// TargetTypePlayer targets players
	TargetTypePlayer TargetType = "player"
	// TargetTypeAny targets a creature, planeswalker or player
	TargetTypeAny TargetType = "any"
	// TargetTypeSpell targets spells on the stack
	TargetTypeSpell TargetType = "spell"
	// TargetTypePermanent targets permanents (creatures, artifacts, enchantments, etc.)
	TargetTypePermanent TargetType = "permanent"
	// TargetTypeCard targets cards in the zones named by the filter
	TargetTypeCard TargetType = "card"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	switch t {
	case TargetTypeCreature, TargetTypePlayer, TargetTypeAny, TargetTypeSpell, TargetTypePermanent, TargetTypeCard:
		return true
	}
	return false
}

// TargetRequirement defines what targets a spell or ability requires.
type TargetRequirement struct {
	Type TargetType `json:"type" yaml:"type"`
	// Filter narrows object targets further
	Filter *effects.Filter `json:"filter,omitempty" yaml:"filter,omitempty"`
	// Player narrows player targets relative to the controller
	Player effects.Relation `json:"player,omitempty" yaml:"player,omitempty"`
	// MinTargets and MaxTargets default to exactly one
	MinTargets  int    `json:"min,omitempty" yaml:"min,omitempty"`
	MaxTargets  int    `json:"max,omitempty" yaml:"max,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Bounds returns the minimum and maximum number of targets.
func (r TargetRequirement) Bounds() (int, int) {
	if r.MinTargets == 0 && r.MaxTargets == 0 {
		return 1, 1
	}
	if r.MaxTargets < r.MinTargets {
		return r.MinTargets, r.MinTargets
	}
	return r.MinTargets, r.MaxTargets
}

// Validate checks the requirement itself.
func (r TargetRequirement) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("unknown target type %q", r.Type)
	}
	if r.MinTargets < 0 || r.MaxTargets < 0 {
		return fmt.Errorf("target bounds must not be negative")
	}
	if r.Type == TargetTypeCard && (r.Filter == nil || len(r.Filter.Zones) == 0) {
		return fmt.Errorf("card targets need a filter with zones")
	}
	return nil
}

// String returns the description or a generated one.
func (r TargetRequirement) String() string {
	if r.Description != "" {
		return r.Description
	}
	return "target " + string(r.Type)
}

// TargetSelection represents a player's target selection for a spell or ability.
type TargetSelection struct {
	// Targets is a list of target IDs (can be object IDs or player IDs)
	Targets []string
	// Requirement is the requirement this selection satisfies
	Requirement TargetRequirement
}

// Validate checks the selection size and duplicates.
func (ts *TargetSelection) Validate() error {
	if ts == nil {
		return fmt.Errorf("target selection is nil")
	}
	minTargets, maxTargets := ts.Requirement.Bounds()
	count := len(ts.Targets)
	if count < minTargets {
		return fmt.Errorf("not enough targets: need at least %d, got %d", minTargets, count)
	}
	if count > maxTargets {
		return fmt.Errorf("too many targets: need at most %d, got %d", maxTargets, count)
	}
	seen := make(map[string]bool)
	for _, targetID := range ts.Targets {
		if seen[targetID] {
			return fmt.Errorf("duplicate target: %s", targetID)
		}
		seen[targetID] = true
	}
	return nil
}

// FormatTargets formats target IDs into a human-readable string for event data.
func FormatTargets(targets []string) string {
	if len(targets) == 0 {
		return ""
	}
	return strings.Join(targets, ",")
}

// ParseTargets parses target IDs from a formatted string.
func ParseTargets(formatted string) []string {
	if formatted == "" {
		return []string{}
	}
	return strings.Split(formatted, ",")
}
