package game

import (
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	"github.com/magefree/mage-rules-go/internal/game/rules"
	"github.com/magefree/mage-rules-go/internal/game/state"
)

// canAttack applies rule 508.1a to one permanent.
func (g *Game) canAttack(id string, view *effects.View, active string) bool {
	c, ok := view.Get(id)
	if !ok || !c.IsCreature() || c.Controller != active {
		return false
	}
	obj, _ := g.store.Get(id)
	if obj.Status.Tapped || c.HasKeyword(effects.KeywordDefender) || c.Restricted(effects.ModCantAttack) {
		return false
	}
	return !summoningSick(obj, c) || c.HasKeyword(effects.KeywordHaste)
}

// canBlock reports whether blocker may block attacker. Per rule 702.9b
// and 702.17b.
func canBlock(blocker, attacker *effects.Characteristics) bool {
	if attacker.HasKeyword(effects.KeywordFlying) {
		return blocker.HasKeyword(effects.KeywordFlying) || blocker.HasKeyword(effects.KeywordReach)
	}
	return true
}

func hasFirstStrike(c *effects.Characteristics) bool {
	return c.HasKeyword(effects.KeywordFirstStrike) || c.HasKeyword(effects.KeywordDoubleStrike)
}

func (g *Game) askAttackers() error {
	active := g.tm.ActivePlayer()
	view := g.View()
	var opponents []string
	for _, id := range g.apnap() {
		if id != active {
			opponents = append(opponents, id)
		}
	}
	d := &pipeline.Decision{
		Kind:   pipeline.DecisionDeclareAttackers,
		Player: active,
		Prompt: "declare attackers",
	}
	if len(opponents) > 0 {
		for _, id := range g.store.Battlefield() {
			if g.canAttack(id, view, active) {
				d.Slots = append(d.Slots, pipeline.Slot{Name: id, Min: 0, Max: 1, Legal: opponents})
			}
		}
	}
	return g.ask(purposeAttack, d)
}

// declareAttackers applies an attack declaration. Per rule 508.1.
func (g *Game) declareAttackers(resp pipeline.Response) error {
	active := g.tm.ActivePlayer()
	var attackers []string
	for _, id := range sortedKeys(resp.Slots) {
		if len(resp.Slots[id]) > 0 {
			attackers = append(attackers, id)
		}
	}
	if len(attackers) == 0 {
		// Per rule 508.8.
		g.flow.SkipCombat = true
		return nil
	}

	view := g.View()
	attacked := make(map[string]bool)
	err := g.Batch(func() error {
		for _, id := range attackers {
			if !g.canAttack(id, view, active) {
				return rules.Illegal(rules.CodeInvalidAttack, "%s cannot attack", id)
			}
			defender := resp.Slots[id][0]
			c, _ := view.Get(id)
			obj, _ := g.store.Get(id)
			obj.Status.Attacking = defender
			attacked[defender] = true
			if !c.HasKeyword(effects.KeywordVigilance) {
				if err := g.SetTapped([]string{id}, true); err != nil {
					return err
				}
			}
			if hasFirstStrike(c) {
				g.tm.SetHasFirstStrike(true)
			}
			g.emit(rules.Event{
				Type:       rules.EventAttackerDeclared,
				TargetID:   id,
				Controller: active,
				PlayerID:   defender,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	g.flow.Defenders = nil
	for _, p := range g.apnap() {
		if attacked[p] {
			g.flow.Defenders = append(g.flow.Defenders, p)
		}
	}
	return nil
}

// attacking lists the creatures attacking player, in battlefield order.
func (g *Game) attacking(player string) []string {
	var out []string
	for _, id := range g.store.Battlefield() {
		if obj, _ := g.store.Get(id); obj.Status.Attacking == player {
			out = append(out, id)
		}
	}
	return out
}

// askBlockers asks the next attacked player to declare blockers.
func (g *Game) askBlockers() error {
	if len(g.flow.Defenders) == 0 {
		return nil
	}
	defender := g.flow.Defenders[0]
	view := g.View()
	attackers := g.attacking(defender)
	d := &pipeline.Decision{
		Kind:   pipeline.DecisionDeclareBlockers,
		Player: defender,
		Prompt: "declare blockers",
	}
	for _, id := range g.store.Battlefield() {
		c, ok := view.Get(id)
		if !ok || !c.IsCreature() || c.Controller != defender || c.Tapped || c.Restricted(effects.ModCantBlock) {
			continue
		}
		var legal []string
		for _, a := range attackers {
			if ac, ok := view.Get(a); ok && canBlock(c, ac) {
				legal = append(legal, a)
			}
		}
		if len(legal) > 0 {
			d.Slots = append(d.Slots, pipeline.Slot{Name: id, Min: 0, Max: 1, Legal: legal})
		}
	}
	return g.ask(purposeBlock, d)
}

// declareBlockers applies one defending player's block declaration. Per
// rule 509.1. Blockers are ordered for damage assignment in battlefield
// order.
func (g *Game) declareBlockers(defender string, resp pipeline.Response) error {
	if len(g.flow.Defenders) > 0 && g.flow.Defenders[0] == defender {
		g.flow.Defenders = g.flow.Defenders[1:]
	}
	view := g.View()
	err := g.Batch(func() error {
		for _, id := range g.store.Battlefield() {
			choice := resp.Slots[id]
			if len(choice) == 0 {
				continue
			}
			attacker, ok := g.store.Get(choice[0])
			if !ok || attacker.Status.Attacking != defender {
				return rules.Illegal(rules.CodeInvalidBlock, "%s is not attacking %s", choice[0], defender)
			}
			blocker, _ := g.store.Get(id)
			blocker.Status.Blocking = attacker.ID
			attacker.Status.BlockedBy = append(attacker.Status.BlockedBy, id)
			attacker.Status.Blocked = true
			if c, ok := view.Get(id); ok && hasFirstStrike(c) {
				g.tm.SetHasFirstStrike(true)
			}
			g.emit(rules.Event{
				Type:       rules.EventBlockerDeclared,
				TargetID:   id,
				NewID:      attacker.ID,
				Controller: defender,
				PlayerID:   defender,
			})
		}
		for _, id := range g.attacking(defender) {
			obj, _ := g.store.Get(id)
			if obj.Status.Blocked {
				// Per rule 509.1h.
				g.emit(rules.Event{
					Type:       rules.EventCreatureBlocked,
					TargetID:   id,
					Controller: obj.Controller,
					PlayerID:   defender,
					Amount:     len(obj.Status.BlockedBy),
				})
				continue
			}
			g.emit(rules.Event{
				Type:       rules.EventUnblocked,
				TargetID:   id,
				Controller: obj.Controller,
				PlayerID:   defender,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	return g.askBlockers()
}

type combatHit struct {
	source    string
	recipient string
	amount    int
}

// dealsCombatDamage reports whether a creature deals damage in this
// combat damage step. Per rule 510.4.
func (g *Game) dealsCombatDamage(c *effects.Characteristics, obj *state.Object, first bool) bool {
	if first {
		return hasFirstStrike(c)
	}
	if !g.tm.HasFirstStrike() {
		return true
	}
	return c.HasKeyword(effects.KeywordDoubleStrike) || !obj.Status.StruckFirst
}

// combatDamage assigns and deals all combat damage of one step at once.
// Per rule 510.1.
func (g *Game) combatDamage(first bool) error {
	view := g.View()
	var hits []combatHit
	var struck []string

	for _, id := range g.store.Battlefield() {
		obj, _ := g.store.Get(id)
		if obj.Status.Attacking == "" {
			continue
		}
		c, ok := view.Get(id)
		if !ok || !c.IsCreature() || !g.dealsCombatDamage(c, obj, first) {
			continue
		}
		if first {
			struck = append(struck, id)
		}
		if c.Power <= 0 {
			continue
		}
		trample := c.HasKeyword(effects.KeywordTrample)
		if !obj.Status.Blocked {
			hits = append(hits, combatHit{id, obj.Status.Attacking, c.Power})
			continue
		}
		var blockers []string
		for _, b := range obj.Status.BlockedBy {
			if bo, ok := g.store.Get(b); ok && bo.Zone.Kind == rules.ZoneBattlefield && bo.Status.Blocking == id {
				blockers = append(blockers, b)
			}
		}
		if len(blockers) == 0 {
			// Per rule 509.1h and 702.19e.
			if trample {
				hits = append(hits, combatHit{id, obj.Status.Attacking, c.Power})
			}
			continue
		}
		// Per rule 510.1c: lethal damage to each blocker in order before
		// the next; with trample the rest may go to the player.
		remaining := c.Power
		for i, b := range blockers {
			bc, _ := view.Get(b)
			bo, _ := g.store.Get(b)
			need := bc.Toughness - bo.Status.Damage
			if need < 0 {
				need = 0
			}
			if c.HasKeyword(effects.KeywordDeathtouch) && need > 1 {
				need = 1
			}
			assign := need
			if assign > remaining {
				assign = remaining
			}
			if i == len(blockers)-1 && !trample {
				assign = remaining
			}
			if assign > 0 {
				hits = append(hits, combatHit{id, b, assign})
			}
			remaining -= assign
		}
		if remaining > 0 && trample {
			hits = append(hits, combatHit{id, obj.Status.Attacking, remaining})
		}
	}

	for _, id := range g.store.Battlefield() {
		obj, _ := g.store.Get(id)
		if obj.Status.Blocking == "" {
			continue
		}
		c, ok := view.Get(id)
		if !ok || !c.IsCreature() || !g.dealsCombatDamage(c, obj, first) {
			continue
		}
		if first {
			struck = append(struck, id)
		}
		attacker, ok := g.store.Get(obj.Status.Blocking)
		if !ok || attacker.Zone.Kind != rules.ZoneBattlefield || c.Power <= 0 {
			continue
		}
		hits = append(hits, combatHit{id, attacker.ID, c.Power})
	}

	return g.Batch(func() error {
		for _, id := range struck {
			obj, _ := g.store.Get(id)
			obj.Status.StruckFirst = true
		}
		for _, h := range hits {
			if err := g.damage(h.source, h.recipient, h.amount, true); err != nil {
				return err
			}
		}
		return nil
	})
}
