package triggers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-rules-go/internal/game/catalog"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	"github.com/magefree/mage-rules-go/internal/game/rules"
	"github.com/magefree/mage-rules-go/internal/game/state"
)

var players = []string{"alice", "bob"}

type staticConditions bool

func (c staticConditions) Holds(*pipeline.Condition, pipeline.Scope) bool { return bool(c) }

func newMatcher(t *testing.T, conds Conditions) (*Matcher, *catalog.Registry) {
	t.Helper()
	reg, err := catalog.Default()
	require.NoError(t, err)
	n := 0
	newID := func() string {
		n++
		return fmt.Sprintf("trigger-%d", n)
	}
	return NewMatcher(reg, conds, newID, zaptest.NewLogger(t)), reg
}

func snapshot(s *state.Store, reg *catalog.Registry) Snapshot {
	return Snapshot{Store: s, View: s.Project(reg, players)}
}

// move moves id on the after store and returns the event the engine would log.
func move(t *testing.T, s *state.Store, id string, to rules.ZoneKind) rules.Event {
	t.Helper()
	obj, ok := s.Get(id)
	require.True(t, ok)
	from := obj.Zone.Kind
	moved, err := s.Move(id, to, "", "")
	require.NoError(t, err)
	return rules.Event{
		Type:       rules.EventZoneChange,
		TargetID:   id,
		NewID:      moved.ID,
		Controller: obj.Controller,
		From:       from,
		To:         to,
	}
}

func TestLookBackSeesSimultaneousDeaths(t *testing.T) {
	m, reg := newMatcher(t, nil)
	s := state.New("g", players, 20)
	witness := s.Create("Grim Witness", "alice", rules.ZoneBattlefield, "")
	bears := s.Create("Grizzly Bears", "bob", rules.ZoneBattlefield, "")
	forest := s.Create("Forest", "bob", rules.ZoneBattlefield, "")
	before := snapshot(s.Clone(), reg)

	var events []rules.Event
	for _, id := range []string{witness.ID, bears.ID, forest.ID} {
		events = append(events, move(t, s, id, rules.ZoneGraveyard))
	}
	res := m.Match(Batch{Before: before, After: snapshot(s, reg), Events: events})

	// The witness sees itself and the bears die, but not the land.
	require.Len(t, res.Instances, 2)
	for i, in := range res.Instances {
		assert.Equal(t, witness.ID, in.SourceID)
		assert.Equal(t, "alice", in.Controller)
		assert.Equal(t, rules.AbilityTriggered, in.Ability.Kind)
		assert.Equal(t, []string{events[i].NewID}, in.Bindings.Objects(pipeline.BindingEventObject))
	}
	assert.Empty(t, res.FiredDelayed)
}

func TestEnterTheBattlefieldSelfTrigger(t *testing.T) {
	m, reg := newMatcher(t, nil)
	s := state.New("g", players, 20)
	spell := s.Create("Elvish Visionary", "alice", rules.ZoneStack, "")
	other := s.Create("Elvish Visionary", "alice", rules.ZoneBattlefield, "")
	before := snapshot(s.Clone(), reg)

	evt := move(t, s, spell.ID, rules.ZoneBattlefield)
	res := m.Match(Batch{Before: before, After: snapshot(s, reg), Events: []rules.Event{evt}})

	require.Len(t, res.Instances, 1, "only the entering visionary triggers")
	assert.Equal(t, evt.NewID, res.Instances[0].SourceID)
	assert.NotEqual(t, other.ID, res.Instances[0].SourceID)
}

func TestDamageTriggersOnTheDamageSource(t *testing.T) {
	m, reg := newMatcher(t, nil)
	s := state.New("g", players, 20)
	magpie := s.Create("Thieving Magpie", "alice", rules.ZoneBattlefield, "")
	hound := s.Create("Ravenous Hound", "alice", rules.ZoneBattlefield, "")
	bears := s.Create("Grizzly Bears", "bob", rules.ZoneBattlefield, "")
	snap := snapshot(s, reg)

	tests := []struct {
		name   string
		evt    rules.Event
		source string
	}{
		{"magpie hits an opponent",
			rules.Event{Type: rules.EventDamagedPlayer, TargetID: "bob", PlayerID: "bob", SourceID: magpie.ID, Amount: 1, Flag: true},
			magpie.ID},
		{"magpie hits its controller",
			rules.Event{Type: rules.EventDamagedPlayer, TargetID: "alice", PlayerID: "alice", SourceID: magpie.ID, Amount: 1}, ""},
		{"bears hit an opponent",
			rules.Event{Type: rules.EventDamagedPlayer, TargetID: "alice", PlayerID: "alice", SourceID: bears.ID, Amount: 2}, ""},
		{"hound hits a creature",
			rules.Event{Type: rules.EventDamagedPermanent, TargetID: bears.ID, PlayerID: "bob", SourceID: hound.ID, Amount: 2}, hound.ID},
		{"hound is hit",
			rules.Event{Type: rules.EventDamagedPermanent, TargetID: hound.ID, PlayerID: "alice", SourceID: bears.ID, Amount: 2}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Match(Batch{Before: snap, After: snap, Events: []rules.Event{tt.evt}})
			if tt.source == "" {
				assert.Empty(t, res.Instances)
				return
			}
			require.Len(t, res.Instances, 1)
			assert.Equal(t, tt.source, res.Instances[0].SourceID)
			assert.Equal(t, []string{tt.source}, res.Instances[0].Bindings.Objects(pipeline.BindingEventSource))
		})
	}
}

func TestLostAbilitiesDoNotTrigger(t *testing.T) {
	m, reg := newMatcher(t, nil)
	s := state.New("g", players, 20)
	witness := s.Create("Grim Witness", "alice", rules.ZoneBattlefield, "")
	bears := s.Create("Grizzly Bears", "bob", rules.ZoneBattlefield, "")
	s.Effects.Add(effects.NewFloatingEffect("frog", "", "bob", s.Tick(),
		effects.Selector{IDs: []string{witness.ID}},
		effects.Modification{Kind: effects.ModLoseAllAbilities}, effects.DurationEndOfTurn))
	before := snapshot(s.Clone(), reg)

	evt := move(t, s, bears.ID, rules.ZoneGraveyard)
	res := m.Match(Batch{Before: before, After: snapshot(s, reg), Events: []rules.Event{evt}})
	assert.Empty(t, res.Instances)
}

func TestDelayedTriggerFiresOnce(t *testing.T) {
	m, reg := newMatcher(t, nil)
	s := state.New("g", players, 20)
	ball := s.Create("Ball Lightning", "alice", rules.ZoneBattlefield, "")
	snap := snapshot(s, reg)

	end := rules.StepEnd
	env := rules.Bindings{}
	env.SetObjects(pipeline.BindingSelf, []string{ball.ID})
	spec := pipeline.DelayedSpec{
		ID:         "delayed-1",
		Pattern:    pipeline.Pattern{Event: rules.EventStepStarted, Step: &end},
		Origin:     rules.AbilityRef{Card: "Ball Lightning", Kind: rules.AbilityTriggered},
		Path:       []int{0},
		Env:        env,
		SourceID:   ball.ID,
		Controller: "alice",
	}

	res := m.Match(Batch{Before: snap, After: snap, Delayed: []pipeline.DelayedSpec{spec},
		Events: []rules.Event{{Type: rules.EventStepStarted, Step: rules.StepUpkeep}}})
	assert.Empty(t, res.Instances)

	res = m.Match(Batch{Before: snap, After: snap, Delayed: []pipeline.DelayedSpec{spec},
		Events: []rules.Event{
			{Type: rules.EventStepStarted, Step: rules.StepEnd},
			{Type: rules.EventStepStarted, Step: rules.StepEnd},
		}})
	require.Len(t, res.Instances, 1)
	in := res.Instances[0]
	assert.Equal(t, rules.AbilityDelayed, in.Ability.Kind)
	assert.Equal(t, "delayed-1", in.Ability.DelayedID)
	assert.Equal(t, []string{ball.ID}, in.Bindings.Objects(pipeline.BindingSelf))
	require.NotNil(t, in.Delayed)
	assert.Equal(t, []int{0}, in.Delayed.Path)
	assert.Equal(t, []string{"delayed-1"}, res.FiredDelayed)
}

func TestDelayedTriggerSubjectsAndConditions(t *testing.T) {
	_, reg := newMatcher(t, nil)
	s := state.New("g", players, 20)
	bears := s.Create("Grizzly Bears", "bob", rules.ZoneBattlefield, "")
	other := s.Create("Grizzly Bears", "bob", rules.ZoneBattlefield, "")
	before := snapshot(s.Clone(), reg)
	events := []rules.Event{
		move(t, s, other.ID, rules.ZoneGraveyard),
		move(t, s, bears.ID, rules.ZoneGraveyard),
	}
	after := snapshot(s, reg)
	gy := rules.ZoneGraveyard
	spec := pipeline.DelayedSpec{
		ID:         "d",
		Pattern:    pipeline.Pattern{Event: rules.EventZoneChange, To: &gy},
		Subjects:   []string{bears.ID},
		Controller: "alice",
	}

	tests := []struct {
		name  string
		conds Conditions
		cond  *pipeline.Condition
		want  int
	}{
		{"subject only", nil, nil, 1},
		{"condition holds", staticConditions(true), &pipeline.Condition{}, 1},
		{"condition fails", staticConditions(false), &pipeline.Condition{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newMatcher(t, tt.conds)
			sp := spec
			sp.Pattern.Condition = tt.cond
			res := m.Match(Batch{Before: before, After: after, Events: events, Delayed: []pipeline.DelayedSpec{sp}})
			require.Len(t, res.Instances, tt.want)
			if tt.want > 0 {
				assert.Equal(t, events[1], res.Instances[0].Event)
			}
		})
	}
}

func TestQueueGroupsByAPNAP(t *testing.T) {
	q := &Queue{}
	q.Add(
		Instance{ID: "b1", Controller: "bob", SourceID: "x"},
		Instance{ID: "a1", Controller: "alice", SourceID: "w"},
		Instance{ID: "a2", Controller: "alice", SourceID: "w"},
		Instance{ID: "a3", Controller: "alice", SourceID: "v"},
	)

	player, group := q.Next([]string{"alice", "bob"})
	assert.Equal(t, "alice", player)
	assert.Equal(t, []string{"a1", "a2", "a3"}, IDs(group))
	assert.True(t, NeedsOrder(group))
	assert.False(t, NeedsOrder(group[:2]), "two instances of one ability need no order")

	d := OrderDecision("dec", player, group)
	assert.Equal(t, pipeline.DecisionOrder, d.Kind)
	assert.Error(t, d.Validate(pipeline.Response{DecisionID: "dec", Selected: []string{"a1"}}))
	assert.NoError(t, d.Validate(pipeline.Response{DecisionID: "dec", Selected: []string{"a3", "a1", "a2"}}))

	cp := q.Clone()
	taken, err := q.Take([]string{"a3", "a1", "a2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a3", "a1", "a2"}, IDs(taken))
	assert.Len(t, cp.Pending, 4, "clones are independent")

	player, group = q.Next([]string{"alice", "bob"})
	assert.Equal(t, "bob", player)
	assert.False(t, NeedsOrder(group))

	_, err = q.Take([]string{"a1"})
	assert.Error(t, err)
	_, err = q.Take([]string{"b1"})
	require.NoError(t, err)
	assert.True(t, q.Empty())
	player, group = q.Next([]string{"alice", "bob"})
	assert.Empty(t, player)
	assert.Nil(t, group)
}

func TestEventBindings(t *testing.T) {
	b := EventBindings(rules.Event{Type: rules.EventDamagedPlayer, SourceID: "src", PlayerID: "bob", TargetID: "bob", Amount: 3})
	assert.Empty(t, b.Objects(pipeline.BindingEventObject))
	assert.Equal(t, []string{"src"}, b.Objects(pipeline.BindingEventSource))
	assert.Equal(t, []string{"bob"}, b.Players(pipeline.BindingEventPlayer))
	assert.Equal(t, 3, b.Number(pipeline.BindingEventAmount))

	b = EventBindings(rules.Event{Type: rules.EventZoneChange, TargetID: "old", NewID: "new"})
	assert.Equal(t, []string{"new"}, b.Objects(pipeline.BindingEventObject))
	_, ok := b.Get(pipeline.BindingEventAmount)
	assert.False(t, ok)
}
