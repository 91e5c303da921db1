package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// combatHarness starts a game at alice's declare attackers step.
func combatHarness(t *testing.T, attackers, blockers []string) *harness {
	t.Helper()
	h := newHarness(t,
		Seat{Player: alice, Library: repeat("Plains", 5), Battlefield: attackers},
		Seat{Player: bob, Library: repeat("Forest", 5), Battlefield: blockers},
	)
	h.passUntil(1, rules.StepDeclareAttackers)
	return h
}

func (h *harness) attack(assign map[string]string) Result {
	h.t.Helper()
	d, ok := h.g.PendingDecision()
	require.True(h.t, ok, "no attack declaration pending")
	require.Equal(h.t, pipeline.DecisionDeclareAttackers, d.Kind)
	return h.apply(Action{Kind: ActionDeclareAttackers, Player: d.Player, Attackers: assign})
}

func (h *harness) block(assign map[string]string) Result {
	h.t.Helper()
	h.passUntil(1, rules.StepDeclareBlockers)
	d, ok := h.g.PendingDecision()
	require.True(h.t, ok, "no block declaration pending")
	require.Equal(h.t, pipeline.DecisionDeclareBlockers, d.Kind)
	return h.apply(Action{Kind: ActionDeclareBlockers, Player: d.Player, Blockers: assign})
}

func slotNamesOf(d *pipeline.Decision) []string {
	var out []string
	for _, s := range d.Slots {
		out = append(out, s.Name)
	}
	return out
}

func TestUnblockedAttackerHitsPlayer(t *testing.T) {
	h := combatHarness(t, []string{"Grizzly Bears"}, nil)
	bears := h.id(alice, rules.ZoneBattlefield, "Grizzly Bears")

	res := h.attack(map[string]string{bears: bob})
	assert.Contains(t, eventTypes(res.Events), rules.EventAttackerDeclared)
	obj, _ := h.g.Object(bears)
	assert.True(t, obj.Status.Tapped)
	assert.Equal(t, bob, obj.Status.Attacking)

	h.passUntil(1, rules.StepEndCombat)
	assert.Equal(t, 18, h.life(bob))
	obj, _ = h.g.Object(bears)
	assert.Empty(t, obj.Status.Attacking, "combat ends")
}

func TestNoAttackersSkipsCombat(t *testing.T) {
	h := combatHarness(t, []string{"Grizzly Bears"}, nil)
	h.attack(nil)
	h.pass()
	h.pass()
	assert.Equal(t, rules.StepEndCombat, h.step())
}

func TestAttackRestrictions(t *testing.T) {
	h := newHarness(t,
		Seat{Player: alice, Library: repeat("Plains", 5), Hand: []string{"Grizzly Bears"}, Battlefield: []string{"Wall of Stone", "Raging Goblin", "Forest", "Forest"}},
		Seat{Player: bob, Library: repeat("Forest", 5)},
	)
	h.passUntil(1, rules.StepMain1)
	h.tapFor(alice, "Forest", 2)
	h.cast(alice, "Grizzly Bears", nil)
	h.resolve()
	h.passUntil(1, rules.StepDeclareAttackers)

	d, ok := h.g.PendingDecision()
	require.True(t, ok)
	goblin := h.id(alice, rules.ZoneBattlefield, "Raging Goblin")
	wall := h.id(alice, rules.ZoneBattlefield, "Wall of Stone")
	bears := h.id(alice, rules.ZoneBattlefield, "Grizzly Bears")
	assert.Equal(t, []string{goblin}, slotNamesOf(d), "defender and summoning sickness keep the others home")

	h.reject(Action{Kind: ActionDeclareAttackers, Player: alice, Attackers: map[string]string{wall: bob}}, rules.CodeInvalidResponse)
	h.reject(Action{Kind: ActionDeclareAttackers, Player: alice, Attackers: map[string]string{bears: bob}}, rules.CodeInvalidResponse)
	h.reject(Action{Kind: ActionDeclareAttackers, Player: alice, Attackers: map[string]string{goblin: alice}}, rules.CodeInvalidResponse)
	h.reject(Action{Kind: ActionDeclareBlockers, Player: alice}, rules.CodeWrongStep)

	h.attack(map[string]string{goblin: bob})
	h.passUntil(1, rules.StepEndCombat)
	assert.Equal(t, 19, h.life(bob))
}

func TestFirstStrikeKillsBlockerFirst(t *testing.T) {
	h := combatHarness(t, []string{"Youthful Knight"}, []string{"Grizzly Bears"})
	knight := h.id(alice, rules.ZoneBattlefield, "Youthful Knight")
	bears := h.id(bob, rules.ZoneBattlefield, "Grizzly Bears")

	h.attack(map[string]string{knight: bob})
	res := h.block(map[string]string{bears: knight})
	assert.Contains(t, eventTypes(res.Events), rules.EventCreatureBlocked)

	h.passUntil(1, rules.StepFirstStrikeDamage)
	assert.Equal(t, 1, h.count(bob, rules.ZoneGraveyard, "Grizzly Bears"))
	h.passUntil(1, rules.StepEndCombat)
	assert.Equal(t, 1, h.count(alice, rules.ZoneBattlefield, "Youthful Knight"), "the dead blocker never strikes back")
	assert.Equal(t, 20, h.life(bob))
}

func TestNoFirstStrikeStepWithoutFirstStrikers(t *testing.T) {
	h := combatHarness(t, []string{"Grizzly Bears"}, []string{"Elite Vanguard"})
	bears := h.id(alice, rules.ZoneBattlefield, "Grizzly Bears")
	vanguard := h.id(bob, rules.ZoneBattlefield, "Elite Vanguard")
	h.attack(map[string]string{bears: bob})
	h.block(map[string]string{vanguard: bears})
	h.pass()
	h.pass()
	assert.Equal(t, rules.StepCombatDamage, h.step())
	assert.Equal(t, 1, h.count(bob, rules.ZoneGraveyard, "Elite Vanguard"))
	obj, _ := h.g.Object(bears)
	assert.Equal(t, 2, obj.Status.Damage)
}

func TestTrampleAssignsLethalThenPlayer(t *testing.T) {
	h := combatHarness(t, []string{"Colossal Dreadmaw"}, []string{"Elite Vanguard"})
	dreadmaw := h.id(alice, rules.ZoneBattlefield, "Colossal Dreadmaw")
	h.attack(map[string]string{dreadmaw: bob})
	h.block(map[string]string{h.id(bob, rules.ZoneBattlefield, "Elite Vanguard"): dreadmaw})
	h.passUntil(1, rules.StepEndCombat)

	assert.Equal(t, 15, h.life(bob))
	assert.Equal(t, 1, h.count(bob, rules.ZoneGraveyard, "Elite Vanguard"))
}

func TestBlockedWithoutTrampleDealsNothingToPlayer(t *testing.T) {
	h := combatHarness(t, []string{"Serra Angel"}, []string{"Giant Spider"})
	angel := h.id(alice, rules.ZoneBattlefield, "Serra Angel")
	spider := h.id(bob, rules.ZoneBattlefield, "Giant Spider")
	h.attack(map[string]string{angel: bob})

	obj, _ := h.g.Object(angel)
	assert.False(t, obj.Status.Tapped, "vigilance")

	h.block(map[string]string{spider: angel})
	h.passUntil(1, rules.StepEndCombat)
	assert.Equal(t, 20, h.life(bob))
	assert.Equal(t, 1, h.count(bob, rules.ZoneGraveyard, "Giant Spider"))
	obj, _ = h.g.Object(angel)
	assert.Equal(t, 2, obj.Status.Damage)
}

func TestFlyingNeedsFlyingOrReach(t *testing.T) {
	h := combatHarness(t, []string{"Serra Angel"}, []string{"Grizzly Bears", "Giant Spider"})
	angel := h.id(alice, rules.ZoneBattlefield, "Serra Angel")
	bears := h.id(bob, rules.ZoneBattlefield, "Grizzly Bears")
	spider := h.id(bob, rules.ZoneBattlefield, "Giant Spider")
	h.attack(map[string]string{angel: bob})
	h.passUntil(1, rules.StepDeclareBlockers)

	d, ok := h.g.PendingDecision()
	require.True(t, ok)
	assert.Equal(t, []string{spider}, slotNamesOf(d))
	h.reject(Action{Kind: ActionDeclareBlockers, Player: bob, Blockers: map[string]string{bears: angel}}, rules.CodeInvalidResponse)
	h.reject(Action{Kind: ActionDeclareBlockers, Player: alice, Blockers: map[string]string{spider: angel}}, rules.CodeInvalidResponse)

	h.apply(Action{Kind: ActionDeclareBlockers, Player: bob})
	h.passUntil(1, rules.StepEndCombat)
	assert.Equal(t, 16, h.life(bob))
}

func TestDeathtouchAndLifelink(t *testing.T) {
	t.Run("deathtouch kills any blocker", func(t *testing.T) {
		h := combatHarness(t, []string{"Typhoid Rats"}, []string{"Colossal Dreadmaw"})
		rats := h.id(alice, rules.ZoneBattlefield, "Typhoid Rats")
		h.attack(map[string]string{rats: bob})
		h.block(map[string]string{h.id(bob, rules.ZoneBattlefield, "Colossal Dreadmaw"): rats})
		h.passUntil(1, rules.StepEndCombat)
		assert.Equal(t, 1, h.count(bob, rules.ZoneGraveyard, "Colossal Dreadmaw"))
		assert.Equal(t, 1, h.count(alice, rules.ZoneGraveyard, "Typhoid Rats"))
	})
	t.Run("lifelink gains what it deals", func(t *testing.T) {
		h := combatHarness(t, []string{"Vampire Nighthawk"}, nil)
		hawk := h.id(alice, rules.ZoneBattlefield, "Vampire Nighthawk")
		h.attack(map[string]string{hawk: bob})
		h.passUntil(1, rules.StepEndCombat)
		assert.Equal(t, 18, h.life(bob))
		assert.Equal(t, 22, h.life(alice))
	})
}

func TestDamageWearsOffInCleanup(t *testing.T) {
	h := combatHarness(t, []string{"Serra Angel"}, []string{"Giant Spider"})
	angel := h.id(alice, rules.ZoneBattlefield, "Serra Angel")
	h.attack(map[string]string{angel: bob})
	h.block(map[string]string{h.id(bob, rules.ZoneBattlefield, "Giant Spider"): angel})
	h.passUntil(2, rules.StepUpkeep)

	obj, _ := h.g.Object(angel)
	assert.Zero(t, obj.Status.Damage)
}

func TestBallLightningDelayedSacrifice(t *testing.T) {
	h := newHarness(t,
		Seat{Player: alice, Library: repeat("Plains", 5), Hand: []string{"Ball Lightning"}, Battlefield: repeat("Mountain", 3)},
		Seat{Player: bob, Library: repeat("Forest", 5)},
	)
	h.passUntil(1, rules.StepMain1)
	h.tapFor(alice, "Mountain", 3)
	h.cast(alice, "Ball Lightning", nil)
	h.resolve()

	require.Len(t, h.g.Stack(), 1, "enters the battlefield trigger")
	h.resolve()
	require.Len(t, h.g.delayed, 1)

	ball := h.id(alice, rules.ZoneBattlefield, "Ball Lightning")
	h.passUntil(1, rules.StepDeclareAttackers)
	h.attack(map[string]string{ball: bob})
	h.passUntil(1, rules.StepEnd)
	assert.Equal(t, 14, h.life(bob))

	stack := h.g.Stack()
	require.Len(t, stack, 1)
	assert.Equal(t, rules.AbilityDelayed, stack[0].Ability.Kind)
	assert.Empty(t, h.g.delayed, "delayed triggers fire once")
	h.resolve()
	assert.Equal(t, 1, h.count(alice, rules.ZoneGraveyard, "Ball Lightning"))
}

func TestActOfTreasonStealsAnAttacker(t *testing.T) {
	h := newHarness(t,
		Seat{Player: alice, Library: repeat("Plains", 5), Hand: []string{"Act of Treason"}, Battlefield: repeat("Mountain", 3)},
		Seat{Player: bob, Library: repeat("Forest", 5), Battlefield: []string{"Colossal Dreadmaw"}},
	)
	h.passUntil(1, rules.StepMain1)
	dreadmaw := h.id(bob, rules.ZoneBattlefield, "Colossal Dreadmaw")
	h.tapFor(alice, "Mountain", 3)
	h.cast(alice, "Act of Treason", map[string][]string{"target": {dreadmaw}})
	h.resolve()

	c, _ := h.g.Characteristics(dreadmaw)
	assert.Equal(t, alice, c.Controller)
	h.passUntil(1, rules.StepDeclareAttackers)
	h.attack(map[string]string{dreadmaw: bob})
	h.passUntil(1, rules.StepEndCombat)
	assert.Equal(t, 14, h.life(bob))

	h.passUntil(2, rules.StepUpkeep)
	c, _ = h.g.Characteristics(dreadmaw)
	assert.Equal(t, bob, c.Controller, "control returns at end of turn")
}

func TestCombatDamageTriggersOnTheAttacker(t *testing.T) {
	t.Run("damage to a player", func(t *testing.T) {
		h := combatHarness(t, []string{"Thieving Magpie"}, nil)
		magpie := h.id(alice, rules.ZoneBattlefield, "Thieving Magpie")
		h.attack(map[string]string{magpie: bob})
		h.passUntil(1, rules.StepEndCombat)

		assert.Equal(t, 19, h.life(bob))
		assert.Equal(t, 1, h.count(alice, rules.ZoneHand, "Plains"), "magpie drew a card")
	})
	t.Run("damage to a creature", func(t *testing.T) {
		h := combatHarness(t, []string{"Ravenous Hound"}, []string{"Raging Goblin"})
		hound := h.id(alice, rules.ZoneBattlefield, "Ravenous Hound")
		goblin := h.id(bob, rules.ZoneBattlefield, "Raging Goblin")
		h.attack(map[string]string{hound: bob})
		h.block(map[string]string{goblin: hound})
		h.passUntil(1, rules.StepEndCombat)

		assert.Equal(t, 20, h.life(bob))
		assert.Equal(t, 1, h.count(bob, rules.ZoneGraveyard, "Raging Goblin"))
		power, toughness := h.pt(hound)
		assert.Equal(t, 3, power)
		assert.Equal(t, 3, toughness)
	})
}
