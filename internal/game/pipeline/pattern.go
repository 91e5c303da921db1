package pipeline

import (
	"fmt"

	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// BindingMode says whose events a trigger listens to.
type BindingMode string

const (
	// BindSelf matches only events whose subject is the trigger's source.
	// Damage dealt to a player has no subject object, so there it matches
	// the damage source.
	BindSelf BindingMode = "self"
	// BindSource matches events caused by the trigger's source.
	BindSource BindingMode = "source"
	// BindAny matches events about any object passing the subject filter.
	BindAny BindingMode = "any"
)

// Bindings the engine defines before a program starts.
const (
	BindingSelf        = "self"
	BindingEventObject = "event_object"
	BindingEventSource = "event_source"
	BindingEventPlayer = "event_player"
	BindingEventAmount = "event_amount"
)

// EventBindings are defined for triggered and delayed programs.
var EventBindings = []string{BindingEventObject, BindingEventSource, BindingEventPlayer, BindingEventAmount}

// Pattern describes the events a triggered ability waits for.
type Pattern struct {
	Event   rules.EventType `json:"event" yaml:"event"`
	Binding BindingMode     `json:"binding,omitempty" yaml:"binding,omitempty"`
	From    *rules.ZoneKind `json:"from,omitempty" yaml:"from,omitempty"`
	To      *rules.ZoneKind `json:"to,omitempty" yaml:"to,omitempty"`
	// Subject is matched against last known information of the event target.
	Subject *effects.Filter `json:"subject,omitempty" yaml:"subject,omitempty"`
	// Player relates the event's player to the trigger's controller.
	Player effects.Relation `json:"player,omitempty" yaml:"player,omitempty"`
	Step   *rules.Step      `json:"step,omitempty" yaml:"step,omitempty"`
	// SourceZones are the zones the source must be in; battlefield when empty.
	SourceZones []rules.ZoneKind `json:"source_zones,omitempty" yaml:"source_zones,omitempty"`
	// Object names a binding (at registration of a delayed trigger) whose
	// objects are the only acceptable event subjects.
	Object    string     `json:"object,omitempty" yaml:"object,omitempty"`
	Condition *Condition `json:"if,omitempty" yaml:"if,omitempty"`
}

// Validate checks the pattern itself.
func (p *Pattern) Validate() error {
	if p.Event == "" {
		return fmt.Errorf("trigger pattern needs an event")
	}
	switch p.Binding {
	case "", BindSelf, BindSource, BindAny:
	default:
		return fmt.Errorf("unknown trigger binding %q", p.Binding)
	}
	switch p.Player {
	case effects.RelationAny, effects.RelationYou, effects.RelationOpponent:
	default:
		return fmt.Errorf("unknown player relation %q", p.Player)
	}
	if p.Condition != nil {
		defined := make(map[string]bool, len(EventBindings)+1)
		for _, name := range append([]string{BindingSelf}, EventBindings...) {
			defined[name] = true
		}
		return p.Condition.validate(defined)
	}
	return nil
}

// ActiveIn reports whether a source in zone can trigger.
func (p *Pattern) ActiveIn(zone rules.ZoneKind) bool {
	if len(p.SourceZones) == 0 {
		return zone == rules.ZoneBattlefield
	}
	for _, z := range p.SourceZones {
		if z == zone {
			return true
		}
	}
	return false
}

// DelayedSpec is a one-shot trigger registered by create_delayed_trigger.
// The program it runs is the create_delayed_trigger block addressed by Path
// inside the program of Origin.
type DelayedSpec struct {
	ID         string           `json:"id"`
	Pattern    Pattern          `json:"pattern"`
	Origin     rules.AbilityRef `json:"origin"`
	Path       []int            `json:"path"`
	Env        rules.Bindings   `json:"env,omitempty"`
	Subjects   []string         `json:"subjects,omitempty"`
	SourceID   string           `json:"source_id"`
	Controller string           `json:"controller"`
	Timestamp  int64            `json:"timestamp"`
}
