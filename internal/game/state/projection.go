package state

import (
	"sort"

	"github.com/magefree/mage-rules-go/internal/game/catalog"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// Cards resolves the card an object was made from.
type Cards interface {
	Get(name string) (*catalog.Card, bool)
}

// Base returns the printed characteristics of obj merged with its status.
// Objects outside the battlefield and the stack are controlled by their owner.
func Base(obj *Object, card *catalog.Card) effects.Characteristics {
	var c effects.Characteristics
	if card != nil {
		c = card.Characteristics()
	} else {
		c = effects.Characteristics{CardID: obj.Card, Name: obj.Card}
	}
	c.ID = obj.ID
	c.Owner = obj.Owner
	c.Controller = obj.Controller
	if obj.Zone.Kind != rules.ZoneBattlefield && obj.Zone.Kind != rules.ZoneStack {
		c.Controller = obj.Owner
	}
	c.Zone = obj.Zone.Kind
	c.Timestamp = obj.Timestamp
	c.Counters = obj.Status.Counters.Copy()
	c.Tapped = obj.Status.Tapped
	c.Damage = obj.Status.Damage
	c.Deathtouched = obj.Status.Deathtouched
	c.AttachedTo = obj.Status.AttachedTo
	c.Attacking = obj.Status.Attacking != ""
	c.Blocking = obj.Status.Blocking != ""
	c.SummoningSick = obj.Status.SummoningSick
	return c
}

// Input builds the projector input. Objects are listed in id order and
// players in playerOrder, which should be APNAP order.
func (s *Store) Input(cards Cards, playerOrder []string) effects.Input {
	ids := make([]string, 0, len(s.Objects))
	for id := range s.Objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	in := effects.Input{
		Objects:     make([]effects.ObjectInput, 0, len(ids)),
		Floating:    s.Effects.List(),
		PlayerOrder: append([]string(nil), playerOrder...),
	}
	for _, id := range ids {
		obj := s.Objects[id]
		card, _ := cards.Get(obj.Card)
		oi := effects.ObjectInput{Base: Base(obj, card)}
		if card != nil {
			oi.Statics = card.Statics
		}
		in.Objects = append(in.Objects, oi)
	}
	return in
}

// Project computes the current view of every object.
func (s *Store) Project(cards Cards, playerOrder []string) *effects.View {
	return effects.Project(s.Input(cards, playerOrder))
}
