package targeting

import (
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// PlayerInfo provides information about a player for target validation.
type PlayerInfo struct {
	ID   string
	Lost bool
}

// StackInfo provides information about a stack item for target validation.
type StackInfo struct {
	ID         string
	Controller string
	Kind       rules.StackItemKind
}

// TargetValidator validates that selected targets are legal against one
// projected view of the game.
type TargetValidator struct {
	view    *effects.View
	players []PlayerInfo
	stack   []StackInfo
}

// NewTargetValidator creates a new target validator. players should be in
// APNAP order so legal target lists are deterministic.
func NewTargetValidator(view *effects.View, players []PlayerInfo, stack []StackInfo) *TargetValidator {
	return &TargetValidator{view: view, players: players, stack: stack}
}

// LegalTargets lists every legal target for req, players first in APNAP
// order, then objects in id order.
func (tv *TargetValidator) LegalTargets(req TargetRequirement, ctx effects.FilterContext) []string {
	var legal []string
	if req.Type == TargetTypePlayer || req.Type == TargetTypeAny {
		for _, p := range tv.players {
			if tv.ValidateTarget(p.ID, req, ctx) == nil {
				legal = append(legal, p.ID)
			}
		}
	}
	if req.Type == TargetTypePlayer {
		return legal
	}
	for _, id := range tv.view.IDs() {
		if tv.ValidateTarget(id, req, ctx) == nil {
			legal = append(legal, id)
		}
	}
	return legal
}

// ValidateTarget checks if a single target ID is valid for the given requirement.
func (tv *TargetValidator) ValidateTarget(targetID string, req TargetRequirement, ctx effects.FilterContext) error {
	if player, isPlayer := tv.player(targetID); isPlayer {
		if req.Type != TargetTypePlayer && req.Type != TargetTypeAny {
			return rules.Illegal(rules.CodeInvalidTarget, "target %s is a player but requirement is %s", targetID, req.Type)
		}
		if player.Lost {
			return rules.Illegal(rules.CodeInvalidTarget, "target player %s has lost the game", targetID)
		}
		if !req.Player.Matches(targetID, ctx.Controller) {
			return rules.Illegal(rules.CodeInvalidTarget, "target player %s does not match %s", targetID, req)
		}
		return nil
	}

	obj, ok := tv.view.Get(targetID)
	if !ok {
		return rules.Illegal(rules.CodeInvalidTarget, "target %s not found", targetID)
	}

	switch req.Type {
	case TargetTypePlayer:
		return rules.Illegal(rules.CodeInvalidTarget, "target %s is an object but requirement is player", obj.Name)
	case TargetTypeCreature:
		if obj.Zone != rules.ZoneBattlefield || !obj.IsCreature() {
			return rules.Illegal(rules.CodeInvalidTarget, "target %s is not a creature", obj.Name)
		}
	case TargetTypeAny:
		if obj.Zone != rules.ZoneBattlefield || !(obj.IsCreature() || obj.HasType(effects.TypePlaneswalker)) {
			return rules.Illegal(rules.CodeInvalidTarget, "target %s cannot be dealt damage", obj.Name)
		}
	case TargetTypePermanent:
		if obj.Zone != rules.ZoneBattlefield {
			return rules.Illegal(rules.CodeInvalidTarget, "target %s is not a permanent", obj.Name)
		}
	case TargetTypeSpell:
		if obj.Zone != rules.ZoneStack || !tv.isSpell(targetID) {
			return rules.Illegal(rules.CodeInvalidTarget, "target %s is not a spell on the stack", obj.Name)
		}
		if targetID == ctx.SourceID {
			return rules.Illegal(rules.CodeInvalidTarget, "a spell cannot target itself")
		}
	}

	if req.Filter != nil {
		matches := req.Filter.MatchesIgnoringZone(obj, ctx)
		if req.Type == TargetTypeCard {
			matches = req.Filter.Matches(obj, ctx)
		}
		if !matches {
			return rules.Illegal(rules.CodeInvalidTarget, "target %s does not match %s", obj.Name, req)
		}
	} else if req.Type == TargetTypeCard {
		return rules.Illegal(rules.CodeInvalidTarget, "card target requirement has no zones")
	}

	if obj.Zone == rules.ZoneBattlefield || obj.Zone == rules.ZoneStack {
		if obj.HasKeyword("shroud") {
			return rules.Illegal(rules.CodeInvalidTarget, "%s has shroud", obj.Name)
		}
		if obj.HasKeyword("hexproof") && obj.Controller != ctx.Controller {
			return rules.Illegal(rules.CodeInvalidTarget, "%s has hexproof", obj.Name)
		}
	}
	return nil
}

// ValidateTargetSelection validates an entire target selection against its requirements.
func (tv *TargetValidator) ValidateTargetSelection(selection *TargetSelection, ctx effects.FilterContext) error {
	if err := selection.Validate(); err != nil {
		return rules.Illegal(rules.CodeInvalidTarget, "%v", err)
	}
	for _, targetID := range selection.Targets {
		if err := tv.ValidateTarget(targetID, selection.Requirement, ctx); err != nil {
			return err
		}
	}
	return nil
}

// StillLegal returns the subset of chosen targets that are legal now, used
// when a spell or ability resolves.
func (tv *TargetValidator) StillLegal(chosen []string, req TargetRequirement, ctx effects.FilterContext) []string {
	legal := make([]string, 0, len(chosen))
	for _, id := range chosen {
		if tv.ValidateTarget(id, req, ctx) == nil {
			legal = append(legal, id)
		}
	}
	return legal
}

func (tv *TargetValidator) player(id string) (PlayerInfo, bool) {
	for _, p := range tv.players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerInfo{}, false
}

func (tv *TargetValidator) isSpell(id string) bool {
	for _, item := range tv.stack {
		if item.ID == id {
			return item.Kind == rules.StackItemKindSpell
		}
	}
	return false
}
