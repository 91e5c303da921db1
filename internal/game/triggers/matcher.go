// Package triggers matches committed event batches against triggered
// abilities and delayed triggers, looking back at the state before the
// batch so that sources leaving in the same batch still see the events.
package triggers

import (
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/catalog"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	"github.com/magefree/mage-rules-go/internal/game/rules"
	"github.com/magefree/mage-rules-go/internal/game/state"
)

// Instance is a triggered ability waiting to be put on the stack.
type Instance struct {
	ID          string           `json:"id"`
	SourceID    string           `json:"source_id"`
	Controller  string           `json:"controller"`
	Ability     rules.AbilityRef `json:"ability"`
	Event       rules.Event      `json:"event"`
	Bindings    rules.Bindings   `json:"bindings"`
	Description string           `json:"description,omitempty"`
	// Delayed is set for delayed triggers; its Env seeds the bindings.
	Delayed *pipeline.DelayedSpec `json:"delayed,omitempty"`
}

// Key identifies the ability an instance came from. Two instances of the
// same ability never need to be ordered against each other.
func (in Instance) Key() string {
	if in.Ability.DelayedID != "" {
		return "delayed/" + in.Ability.DelayedID
	}
	return in.SourceID + "/" + string(in.Ability.Kind) + "/" + strconv.Itoa(in.Ability.Index)
}

// Snapshot is the store and its projection at one moment.
type Snapshot struct {
	Store *state.Store
	View  *effects.View
}

// Conditions evaluates trigger preconditions.
type Conditions interface {
	Holds(cond *pipeline.Condition, scope pipeline.Scope) bool
}

// Batch is one atomic group of mutations: the snapshot before, the
// snapshot after and the events in between.
type Batch struct {
	Before  Snapshot
	After   Snapshot
	Events  []rules.Event
	Delayed []pipeline.DelayedSpec
}

// Result lists the new instances and the delayed triggers that fired and
// must be unregistered.
type Result struct {
	Instances    []Instance
	FiredDelayed []string
}

// Matcher finds the triggered abilities a batch causes.
type Matcher struct {
	cards  state.Cards
	conds  Conditions
	newID  func() string
	logger *zap.Logger
}

// NewMatcher creates a matcher. newID supplies instance ids.
func NewMatcher(cards state.Cards, conds Conditions, newID func() string, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{cards: cards, conds: conds, newID: newID, logger: logger}
}

type candidate struct {
	id         string
	card       *catalog.Card
	controller string
	zone       rules.ZoneKind
}

// Match returns every trigger the batch causes, in event order; within an
// event, sources are taken in id order and abilities in declaration order.
func (m *Matcher) Match(b Batch) Result {
	var res Result
	fired := make(map[string]bool)
	cands := m.candidates(b)
	for _, evt := range b.Events {
		for _, c := range cands {
			for i := range c.card.Triggers {
				ta := &c.card.Triggers[i]
				if !ta.When.ActiveIn(c.zone) || !m.matches(&ta.When, c.id, c.controller, evt, b, nil) {
					continue
				}
				in := Instance{
					ID:          m.newID(),
					SourceID:    c.id,
					Controller:  c.controller,
					Ability:     rules.AbilityRef{Card: c.card.Name, Kind: rules.AbilityTriggered, Index: i},
					Event:       evt,
					Bindings:    EventBindings(evt),
					Description: ta.Text,
				}
				m.logger.Debug("trigger matched",
					zap.String("card", c.card.Name),
					zap.String("source", c.id),
					zap.String("event", string(evt.Type)))
				res.Instances = append(res.Instances, in)
			}
		}
		for i := range b.Delayed {
			spec := b.Delayed[i]
			if fired[spec.ID] || !m.matches(&spec.Pattern, spec.SourceID, spec.Controller, evt, b, spec.Subjects) {
				continue
			}
			fired[spec.ID] = true
			bindings := spec.Env.Clone()
			if bindings == nil {
				bindings = rules.Bindings{}
			}
			for name, v := range EventBindings(evt) {
				bindings[name] = v
			}
			res.Instances = append(res.Instances, Instance{
				ID:         m.newID(),
				SourceID:   spec.SourceID,
				Controller: spec.Controller,
				Ability: rules.AbilityRef{
					Card:      spec.Origin.Card,
					Kind:      rules.AbilityDelayed,
					Index:     spec.Origin.Index,
					DelayedID: spec.ID,
				},
				Event:       evt,
				Bindings:    bindings,
				Description: "delayed trigger of " + spec.Origin.Card,
				Delayed:     &spec,
			})
			res.FiredDelayed = append(res.FiredDelayed, spec.ID)
		}
	}
	return res
}

// candidates lists the objects whose triggered abilities see the batch: those
// in a zone their abilities work from before the batch, plus those that are
// in such a zone afterwards without having been a candidate before.
func (m *Matcher) candidates(b Batch) []candidate {
	var out []candidate
	seen := make(map[string]bool)
	moved := make(map[string]string)
	for _, e := range b.Events {
		if e.Type == rules.EventZoneChange && e.NewID != "" {
			moved[e.NewID] = e.TargetID
		}
	}
	collect := func(snap Snapshot, after bool) {
		if snap.Store == nil {
			return
		}
		ids := make([]string, 0, len(snap.Store.Objects))
		for id := range snap.Store.Objects {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			obj := snap.Store.Objects[id]
			card, ok := m.cards.Get(obj.Card)
			if !ok || len(card.Triggers) == 0 || seen[id] {
				continue
			}
			if after && seen[moved[id]] {
				continue
			}
			c, ok := snap.View.Get(id)
			if !ok || c.LostAbilities {
				continue
			}
			active := false
			for i := range card.Triggers {
				if card.Triggers[i].When.ActiveIn(c.Zone) {
					active = true
					break
				}
			}
			if !active {
				continue
			}
			seen[id] = true
			out = append(out, candidate{id: id, card: card, controller: c.Controller, zone: c.Zone})
		}
	}
	collect(b.Before, false)
	collect(b.After, true)
	return out
}

// matches applies a pattern to one event from the point of view of source.
func (m *Matcher) matches(p *pipeline.Pattern, source, controller string, evt rules.Event, b Batch, subjects []string) bool {
	if p.Event != evt.Type {
		return false
	}
	if evt.Type == rules.EventZoneChange {
		if p.From != nil && *p.From != evt.From {
			return false
		}
		if p.To != nil && *p.To != evt.To {
			return false
		}
	}
	if p.Step != nil && (evt.Type != rules.EventStepStarted || evt.Step != *p.Step) {
		return false
	}
	if p.Player != effects.RelationAny {
		player := evt.PlayerID
		if player == "" {
			player = evt.Controller
		}
		if !p.Player.Matches(player, controller) {
			return false
		}
	}
	if len(subjects) > 0 && !containsAny(subjects, evt.TargetID, evt.NewID) {
		return false
	}
	switch p.Binding {
	case pipeline.BindSelf:
		self := []string{evt.TargetID, evt.NewID}
		if evt.Type == rules.EventDamagedPlayer {
			self = []string{evt.SourceID}
		}
		if !containsAny(self, source) {
			return false
		}
	case pipeline.BindSource:
		if evt.SourceID != source {
			return false
		}
	}
	if p.Subject != nil {
		c := lastKnown(evt, b)
		if c == nil || !p.Subject.Matches(c, effects.FilterContext{SourceID: source, Controller: controller}) {
			return false
		}
	}
	if p.Condition != nil {
		scope := pipeline.Scope{SourceID: source, Controller: controller, Env: EventBindings(evt)}
		if m.conds == nil || !m.conds.Holds(p.Condition, scope) {
			return false
		}
	}
	return true
}

// lastKnown returns the characteristics the subject of evt had. An object
// entering the battlefield is seen as it is afterwards; everything else as
// it was before the batch.
func lastKnown(evt rules.Event, b Batch) *effects.Characteristics {
	if evt.Type == rules.EventZoneChange && evt.To == rules.ZoneBattlefield {
		if c, ok := b.After.View.Get(evt.NewID); ok {
			return c
		}
	}
	if c, ok := b.Before.View.Get(evt.TargetID); ok {
		return c
	}
	if c, ok := b.After.View.Get(evt.TargetID); ok {
		return c
	}
	if c, ok := b.After.View.Get(evt.NewID); ok {
		return c
	}
	return nil
}

func containsAny(list []string, values ...string) bool {
	for _, v := range values {
		if v == "" {
			continue
		}
		for _, item := range list {
			if item == v {
				return true
			}
		}
	}
	return false
}

// EventBindings returns the bindings a triggered program starts with.
// Values the event does not carry are left unbound.
func EventBindings(evt rules.Event) rules.Bindings {
	b := rules.Bindings{}
	object := evt.NewID
	if object == "" {
		object = evt.TargetID
	}
	if object != "" && evt.Type != rules.EventDamagedPlayer && evt.Type != rules.EventGainedLife && evt.Type != rules.EventLostLife {
		b.SetObjects(pipeline.BindingEventObject, []string{object})
	}
	if evt.SourceID != "" {
		b.SetObjects(pipeline.BindingEventSource, []string{evt.SourceID})
	}
	if evt.PlayerID != "" {
		b.SetPlayers(pipeline.BindingEventPlayer, []string{evt.PlayerID})
	}
	if evt.Amount != 0 {
		b.SetNumber(pipeline.BindingEventAmount, evt.Amount)
	}
	return b
}
