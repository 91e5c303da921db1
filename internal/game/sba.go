package game

import (
	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/catalog"
	"github.com/magefree/mage-rules-go/internal/game/counters"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/rules"
	"github.com/magefree/mage-rules-go/internal/game/targeting"
)

const poisonLimit = 10

// checkStateBasedActions performs every applicable state-based action at
// once and reports whether any was performed. Per rule 704.3.
func (g *Game) checkStateBasedActions() (bool, error) {
	acted := false
	err := g.Batch(func() error {
		view := g.View()

		// Per rule 704.5a, 704.5b and 704.5c.
		for _, id := range g.store.PlayerIDs() {
			p, _ := g.store.Player(id)
			if p.Lost {
				continue
			}
			reason := ""
			switch {
			case p.Life <= 0:
				reason = "life total is 0 or less"
			case p.DrewFromEmpty:
				reason = "drew from an empty library"
			case p.Poison() >= poisonLimit:
				reason = "ten or more poison counters"
			}
			p.DrewFromEmpty = false
			if reason != "" {
				g.lose(id, reason)
				acted = true
			}
		}
		// Per rule 104.4a players who lose at the same time draw.
		if g.checkGameOver() {
			return nil
		}

		var graveyard []string
		var annihilate []string
		for _, id := range g.store.Battlefield() {
			c, ok := view.Get(id)
			if !ok {
				continue
			}
			if c.IsCreature() {
				// Per rule 704.5f.
				if c.Toughness <= 0 {
					graveyard = append(graveyard, id)
					continue
				}
				// Per rule 704.5g and 704.5h.
				if c.LethalDamage() {
					graveyard = append(graveyard, id)
					continue
				}
			}
			// Per rule 704.5m.
			if g.illegalAura(id, c, view) {
				graveyard = append(graveyard, id)
				continue
			}
			// Per rule 704.5q.
			if c.Counters.Get(string(counters.CounterTypeP1P1)) > 0 && c.Counters.Get(string(counters.CounterTypeM1M1)) > 0 {
				annihilate = append(annihilate, id)
			}
		}

		for _, id := range annihilate {
			obj, _ := g.store.Get(id)
			pairs := obj.Status.Counters.Annihilate()
			if pairs == 0 {
				continue
			}
			acted = true
			g.emit(counters.RemovedEvent(id, "", obj.Controller, string(counters.CounterTypeP1P1), pairs))
			g.emit(counters.RemovedEvent(id, "", obj.Controller, string(counters.CounterTypeM1M1), pairs))
		}
		for _, id := range graveyard {
			if _, err := g.move(id, rules.ZoneGraveyard, "", "", ""); err != nil {
				return err
			}
			acted = true
		}

		// Effects that last while their source is on the battlefield end
		// with it; this is bookkeeping, not an action players respond to.
		present := func(id string) bool {
			obj, ok := g.store.Get(id)
			return ok && obj.Zone.Kind == rules.ZoneBattlefield
		}
		for _, fe := range g.store.Effects.PurgeExpired(effects.ExpireSourceCheck, present) {
			g.emitExpired(fe)
		}
		return nil
	})
	return acted, err
}

// illegalAura reports whether an aura is attached to nothing or to
// something it could not enchant.
func (g *Game) illegalAura(id string, c *effects.Characteristics, view *effects.View) bool {
	obj, _ := g.store.Get(id)
	card, ok := g.cards.Get(obj.Card)
	if !ok || card.Enchant == nil {
		return false
	}
	target, ok := view.Get(obj.Status.AttachedTo)
	if !ok || target.Zone != rules.ZoneBattlefield {
		return true
	}
	return !canEnchant(card, target, effects.FilterContext{SourceID: id, Controller: c.Controller})
}

// canEnchant checks the enchant restriction only. Unlike targeting it
// ignores hexproof and shroud. Per rule 303.4d.
func canEnchant(card *catalog.Card, target *effects.Characteristics, ctx effects.FilterContext) bool {
	req := card.Enchant
	switch req.Type {
	case targeting.TargetTypeCreature:
		if !target.IsCreature() {
			return false
		}
	case targeting.TargetTypePlayer, targeting.TargetTypeSpell:
		return false
	}
	if req.Filter != nil && !req.Filter.MatchesIgnoringZone(target, ctx) {
		return false
	}
	return true
}

// lose takes a player out of the game. Per rule 104.2a the game ends once
// at most one player is left; see checkGameOver.
func (g *Game) lose(player, reason string) {
	p, _ := g.store.Player(player)
	if p.Lost {
		return
	}
	p.Lost = true
	p.LossReason = reason
	g.logger.Info("player lost", zap.String("player", player), zap.String("reason", reason))
	g.emit(rules.Event{
		Type:        rules.EventPlayerLost,
		TargetID:    player,
		PlayerID:    player,
		Controller:  player,
		Description: reason,
	})
}

// checkGameOver ends the game when at most one player is left and reports
// whether it is over.
func (g *Game) checkGameOver() bool {
	if g.flow.Over {
		return true
	}
	live := g.store.LivePlayers()
	if len(live) > 1 {
		return false
	}
	g.flow.Over = true
	if len(live) == 1 {
		g.flow.Winner = live[0]
	}
	g.emit(rules.Event{
		Type:       rules.EventGameOver,
		PlayerID:   g.flow.Winner,
		Controller: g.flow.Winner,
	})
	g.logger.Info("game over", zap.String("winner", g.flow.Winner))
	return true
}
