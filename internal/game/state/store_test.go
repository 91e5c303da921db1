package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magefree/mage-rules-go/internal/game/catalog"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

func newStore() *Store {
	return New("game-1", []string{"alice", "bob"}, 20)
}

func TestMoveResetsIdentity(t *testing.T) {
	s := newStore()
	card := s.Create("Grizzly Bears", "alice", rules.ZoneHand, "")
	card.Status.Tapped = true

	onStack, err := s.Move(card.ID, rules.ZoneStack, "", "alice")
	require.NoError(t, err)
	permanent, err := s.Move(onStack.ID, rules.ZoneBattlefield, "", "alice")
	require.NoError(t, err)

	assert.NotEqual(t, card.ID, onStack.ID)
	assert.NotEqual(t, onStack.ID, permanent.ID)
	_, ok := s.Get(card.ID)
	assert.False(t, ok, "the old object is gone")
	assert.Equal(t, permanent.ID, s.Follow(card.ID))
	assert.False(t, permanent.Status.Tapped)
	assert.True(t, permanent.Status.SummoningSick)
	assert.Greater(t, permanent.Timestamp, card.Timestamp)
	assert.Equal(t, []string{permanent.ID}, s.Battlefield())
	assert.Empty(t, s.Zone("alice", rules.ZoneHand))
	assert.NoError(t, s.Check())

	_, err = s.Move(card.ID, rules.ZoneGraveyard, "", "")
	assert.ErrorIs(t, err, ErrUnknownObject)
}

func TestMoveRevertsControlToOwner(t *testing.T) {
	s := newStore()
	obj := s.Create("Grizzly Bears", "alice", rules.ZoneBattlefield, "")
	obj.Controller = "bob"

	dead, err := s.Move(obj.ID, rules.ZoneGraveyard, "", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", dead.Controller)
	assert.Equal(t, ZoneKey{Player: "alice", Kind: rules.ZoneGraveyard}, dead.Zone)
}

func TestLibraryOrderAndDraw(t *testing.T) {
	s := newStore()
	first := s.Create("Forest", "alice", rules.ZoneLibrary, "")
	second := s.Create("Island", "alice", rules.ZoneLibrary, "")
	bottom := s.Create("Swamp", "alice", rules.ZoneLibrary, "bottom")
	assert.Equal(t, []string{second.ID, first.ID, bottom.ID}, s.Zone("alice", rules.ZoneLibrary))

	drawn, ok, err := s.Draw("alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Island", drawn.Card)
	assert.Equal(t, []string{drawn.ID}, s.Zone("alice", rules.ZoneHand))

	_, ok, err = s.Draw("bob")
	require.NoError(t, err)
	assert.False(t, ok)
	bob, _ := s.Player("bob")
	assert.True(t, bob.DrewFromEmpty)

	_, _, err = s.Draw("carol")
	assert.Error(t, err)
}

func TestShuffleUsesSource(t *testing.T) {
	s := newStore()
	var ids []string
	for _, name := range []string{"A", "B", "C", "D"} {
		ids = append(ids, s.Create(name, "alice", rules.ZoneLibrary, "bottom").ID)
	}
	// Always swapping with index 0 rotates the library.
	s.Shuffle("alice", func(int) int { return 0 })
	assert.Equal(t, []string{ids[1], ids[2], ids[3], ids[0]}, s.Zone("alice", rules.ZoneLibrary))
}

func TestIDsAreDeterministic(t *testing.T) {
	a, b := newStore(), newStore()
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.NewID("object"), b.NewID("object"))
	}
	other := New("game-2", []string{"alice", "bob"}, 20)
	assert.NotEqual(t, a.NewID("object"), other.NewID("object"))
}

func TestCloneIsIndependent(t *testing.T) {
	s := newStore()
	obj := s.Create("Grizzly Bears", "alice", rules.ZoneBattlefield, "")
	require.NoError(t, s.AddCounters(obj.ID, "+1/+1", 1))
	s.Effects.Add(effects.FloatingEffect{ID: "e1", Selector: effects.Selector{IDs: []string{obj.ID}}})

	cp := s.Clone()
	require.NoError(t, cp.AddCounters(obj.ID, "+1/+1", 2))
	cp.Objects[obj.ID].Status.Tapped = true
	cp.Players[0].Life = 3
	cp.Players[0].Pool.Add("GREEN", 1)
	cp.Effects.Entries[0].Selector.IDs[0] = "changed"
	_, err := cp.Move(obj.ID, rules.ZoneGraveyard, "", "")
	require.NoError(t, err)

	orig, ok := s.Get(obj.ID)
	require.True(t, ok)
	assert.Equal(t, 1, orig.Status.Counters.Get("+1/+1"))
	assert.False(t, orig.Status.Tapped)
	assert.Equal(t, 20, s.Players[0].Life)
	assert.Equal(t, 0, s.Players[0].Pool.Total())
	assert.Equal(t, obj.ID, s.Effects.Entries[0].Selector.IDs[0])
	assert.Equal(t, []string{obj.ID}, s.Battlefield())
}

func TestStoreJSON(t *testing.T) {
	s := newStore()
	s.Create("Forest", "alice", rules.ZoneLibrary, "")
	s.Create("Grizzly Bears", "bob", rules.ZoneBattlefield, "")
	require.NoError(t, s.AddCounters("bob", "poison", 2))

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"alice/library"`)
	assert.Contains(t, string(data), `"battlefield"`)

	var back Store
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s.Zones, back.Zones)
	assert.NoError(t, back.Check())
	bob, _ := back.Player("bob")
	assert.Equal(t, 2, bob.Poison())
}

func TestCheckFindsStrayObjects(t *testing.T) {
	s := newStore()
	obj := s.Create("Forest", "alice", rules.ZoneHand, "")
	s.Zones[KeyFor("", rules.ZoneBattlefield)] = []string{obj.ID}
	assert.ErrorIs(t, s.Check(), rules.ErrInvariantViolation)
}

func TestProjectionUsesCatalog(t *testing.T) {
	reg, err := catalog.Default()
	require.NoError(t, err)

	s := newStore()
	captain := s.Create("Field Captain", "alice", rules.ZoneBattlefield, "")
	vanguard := s.Create("Elite Vanguard", "alice", rules.ZoneBattlefield, "")
	theirs := s.Create("Elite Vanguard", "bob", rules.ZoneBattlefield, "")
	inHand := s.Create("Elite Vanguard", "alice", rules.ZoneHand, "")
	s.Create("Barracks Quartermaster", "alice", rules.ZoneBattlefield, "")

	view := s.Project(reg, []string{"alice", "bob"})

	c, ok := view.Get(vanguard.ID)
	require.True(t, ok)
	assert.Equal(t, 3, c.Power)
	assert.Equal(t, 3, c.Toughness)

	c, _ = view.Get(captain.ID)
	assert.Equal(t, 2, c.Power, "the captain does not pump itself")

	c, _ = view.Get(theirs.ID)
	assert.Equal(t, 2, c.Power)
	assert.Equal(t, 1, c.Toughness)

	c, _ = view.Get(inHand.ID)
	assert.Equal(t, -1, c.CostDelta)
	assert.Equal(t, "alice", c.Controller)
}
