package watchers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magefree/mage-rules-go/internal/game/rules"
)

func dies(id, controller, types string) rules.Event {
	evt := rules.NewZoneChangeEvent(id, id+"'", controller, controller, rules.ZoneBattlefield, rules.ZoneGraveyard)
	evt.Metadata = map[string]string{rules.MetaTypes: types}
	return evt
}

func TestSpellsCastWatcher(t *testing.T) {
	w := NewSpellsCastWatcher()
	assert.False(t, w.ConditionMet())

	w.Watch(rules.NewEvent(rules.EventSpellCast, "spell1", "spell1", "alice"))
	w.Watch(rules.NewEvent(rules.EventSpellCast, "spell2", "spell2", "alice"))
	w.Watch(rules.NewEvent(rules.EventAbilityActivated, "ab", "ab", "alice"))

	assert.True(t, w.ConditionMet())
	assert.Equal(t, 2, w.Count("alice"))
	assert.Equal(t, []string{"spell1", "spell2"}, w.Spells("alice"))
	assert.Zero(t, w.Count("bob"))

	w.Reset()
	assert.False(t, w.ConditionMet())
	assert.Zero(t, w.Count("alice"))
}

func TestCreaturesDiedWatcher(t *testing.T) {
	w := NewCreaturesDiedWatcher()

	w.Watch(dies("bear", "alice", "creature"))
	w.Watch(dies("aura", "alice", "enchantment"))
	w.Watch(dies("golem", "bob", "artifact creature"))
	exiled := rules.NewZoneChangeEvent("elf", "elf'", "bob", "bob", rules.ZoneBattlefield, rules.ZoneExile)
	exiled.Metadata = map[string]string{rules.MetaTypes: "creature"}
	w.Watch(exiled)

	assert.Equal(t, 2, w.Total())
	assert.Equal(t, 1, w.ByController("alice"))
	assert.Equal(t, 1, w.ByController("bob"))

	cp := w.Copy().(*CreaturesDiedWatcher)
	w.Reset()
	assert.Zero(t, w.Total())
	assert.Equal(t, 2, cp.Total(), "copies are independent")
}

func TestCardsDrawnAndPermanentsEntered(t *testing.T) {
	drawn := NewCardsDrawnWatcher()
	evt := rules.NewEvent(rules.EventDrewCard, "c1", "", "alice")
	drawn.Watch(evt)
	drawn.Watch(evt)
	assert.Equal(t, 2, drawn.Count("alice"))

	entered := NewPermanentsEnteredWatcher()
	entered.Watch(rules.NewZoneChangeEvent("s1", "p1", "alice", "alice", rules.ZoneStack, rules.ZoneBattlefield))
	entered.Watch(rules.NewZoneChangeEvent("h1", "g1", "alice", "alice", rules.ZoneHand, rules.ZoneGraveyard))
	assert.Equal(t, []string{"p1"}, entered.Entered("alice"))
}

func TestStandardRegistry(t *testing.T) {
	reg := Standard()
	reg.NotifyWatchers(rules.NewEvent(rules.EventSpellCast, "spell1", "spell1", "bob"))
	reg.NotifyWatchers(dies("bear", "alice", "creature"))

	spells, ok := Lookup[*SpellsCastWatcher](reg, KeySpellsCast)
	require.True(t, ok)
	assert.Equal(t, 1, spells.Count("bob"))

	died, ok := Lookup[*CreaturesDiedWatcher](reg, KeyCreaturesDied)
	require.True(t, ok)
	assert.Equal(t, 1, died.Total())

	_, ok = Lookup[*CardsDrawnWatcher](reg, KeySpellsCast)
	assert.False(t, ok)

	cp := reg.Copy()
	reg.ResetWatchers()
	copied, _ := Lookup[*SpellsCastWatcher](cp, KeySpellsCast)
	assert.Equal(t, 1, copied.Count("bob"))
	assert.Zero(t, spells.Count("bob"))
}
