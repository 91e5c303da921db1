package pipeline

import (
	"sort"

	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// DecisionKind identifies what a pending decision asks for.
type DecisionKind string

const (
	DecisionSelectCards      DecisionKind = "select_cards"
	DecisionChooseTargets    DecisionKind = "choose_targets"
	DecisionYesNo            DecisionKind = "yes_no"
	DecisionChooseOne        DecisionKind = "choose_one"
	DecisionOrder            DecisionKind = "order"
	DecisionDeclareAttackers DecisionKind = "declare_attackers"
	DecisionDeclareBlockers  DecisionKind = "declare_blockers"
	DecisionDiscard          DecisionKind = "discard"
)

// Slot is one independently answered part of a decision. Declarations use
// one slot per creature; Legal lists what that creature may attack or block.
type Slot struct {
	Name  string   `json:"name"`
	Min   int      `json:"min"`
	Max   int      `json:"max"`
	Legal []string `json:"legal"`
}

// Decision is a question put to one player. At most one is outstanding.
type Decision struct {
	ID      string       `json:"id"`
	Kind    DecisionKind `json:"kind"`
	Player  string       `json:"player"`
	Prompt  string       `json:"prompt,omitempty"`
	Min     int          `json:"min"`
	Max     int          `json:"max"`
	Options []string     `json:"options,omitempty"`
	Slots   []Slot       `json:"slots,omitempty"`
	Source  string       `json:"source,omitempty"`
}

// Response answers a decision. Which fields are read depends on its kind.
type Response struct {
	DecisionID string              `json:"decision_id"`
	Selected   []string            `json:"selected,omitempty"`
	Slots      map[string][]string `json:"slots,omitempty"`
	Yes        bool                `json:"yes,omitempty"`
	Choice     int                 `json:"choice,omitempty"`
}

// Validate checks a response against the decision. A rejected response
// leaves the decision outstanding.
func (d *Decision) Validate(r Response) error {
	if r.DecisionID != d.ID {
		return rules.Illegal(rules.CodeInvalidResponse, "response for %q does not answer decision %q", r.DecisionID, d.ID)
	}
	switch d.Kind {
	case DecisionYesNo:
		return nil
	case DecisionChooseOne:
		if r.Choice < 0 || r.Choice >= len(d.Options) {
			return rules.Illegal(rules.CodeInvalidResponse, "choice %d out of range 0..%d", r.Choice, len(d.Options)-1)
		}
		return nil
	case DecisionOrder:
		if len(r.Selected) != len(d.Options) {
			return rules.Illegal(rules.CodeInvalidResponse, "order must list all %d options", len(d.Options))
		}
		return pickFrom(r.Selected, d.Options)
	case DecisionDeclareAttackers, DecisionDeclareBlockers:
		return d.validateSlots(r)
	default:
		if len(r.Selected) < d.Min || len(r.Selected) > d.Max {
			return rules.Illegal(rules.CodeInvalidResponse, "select between %d and %d, got %d", d.Min, d.Max, len(r.Selected))
		}
		return pickFrom(r.Selected, d.Options)
	}
}

func (d *Decision) validateSlots(r Response) error {
	slots := make(map[string]Slot, len(d.Slots))
	for _, s := range d.Slots {
		slots[s.Name] = s
	}
	names := make([]string, 0, len(r.Slots))
	for name := range r.Slots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		slot, ok := slots[name]
		if !ok {
			return rules.Illegal(rules.CodeInvalidResponse, "%s cannot be declared", name)
		}
		chosen := r.Slots[name]
		if len(chosen) > slot.Max {
			return rules.Illegal(rules.CodeInvalidResponse, "%s takes at most %d", name, slot.Max)
		}
		if err := pickFrom(chosen, slot.Legal); err != nil {
			return err.(*rules.ActionError).WithMeta("slot", name)
		}
	}
	for _, s := range d.Slots {
		if len(r.Slots[s.Name]) < s.Min {
			return rules.Illegal(rules.CodeInvalidResponse, "%s needs at least %d", s.Name, s.Min)
		}
	}
	return nil
}

func pickFrom(chosen, legal []string) error {
	allowed := make(map[string]bool, len(legal))
	for _, id := range legal {
		allowed[id] = true
	}
	seen := make(map[string]bool, len(chosen))
	for _, id := range chosen {
		if !allowed[id] {
			return rules.Illegal(rules.CodeInvalidResponse, "%s is not a legal choice", id)
		}
		if seen[id] {
			return rules.Illegal(rules.CodeInvalidResponse, "%s chosen twice", id)
		}
		seen[id] = true
	}
	return nil
}

// Forced returns the only possible answer when the player has no real choice.
func (d *Decision) Forced() (Response, bool) {
	switch d.Kind {
	case DecisionSelectCards, DecisionChooseTargets, DecisionDiscard:
		if d.Max == 0 || len(d.Options) == 0 {
			return Response{DecisionID: d.ID}, true
		}
		if len(d.Options) <= d.Min {
			return Response{DecisionID: d.ID, Selected: append([]string(nil), d.Options...)}, true
		}
	case DecisionChooseOne:
		if len(d.Options) == 1 {
			return Response{DecisionID: d.ID}, true
		}
	case DecisionOrder:
		if len(d.Options) <= 1 {
			return Response{DecisionID: d.ID, Selected: append([]string(nil), d.Options...)}, true
		}
	case DecisionDeclareAttackers, DecisionDeclareBlockers:
		if len(d.Slots) == 0 {
			return Response{DecisionID: d.ID}, true
		}
	}
	return Response{}, false
}

// Clone returns a deep copy.
func (d *Decision) Clone() *Decision {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Options = append([]string(nil), d.Options...)
	if d.Slots != nil {
		cp.Slots = make([]Slot, len(d.Slots))
		for i, s := range d.Slots {
			s.Legal = append([]string(nil), s.Legal...)
			cp.Slots[i] = s
		}
	}
	return &cp
}
