package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// settle runs the game forward until a player has to act: it starts
// steps, performs state-based actions and puts triggers on the stack
// until none apply, then hands out priority. Per rule 117.5.
func (g *Game) settle() error {
	for i := 0; ; i++ {
		if i >= g.cfg.LoopLimit {
			g.logger.Warn("state-based action loop did not settle",
				zap.Int("iterations", i),
				zap.String("step", g.tm.CurrentStep().String()))
			return fmt.Errorf("%w: state did not settle after %d iterations", rules.ErrInvariantViolation, i)
		}
		if g.flow.Over || g.pending != nil {
			return nil
		}
		if !g.flow.StepStarted {
			g.flow.StepStarted = true
			if err := g.beginStep(); err != nil {
				return err
			}
			continue
		}
		step := g.tm.CurrentStep()
		if step == rules.StepUntap {
			// Per rule 502.4: nobody gets priority during untap.
			if err := g.nextStep(); err != nil {
				return err
			}
			continue
		}
		acted, err := g.checkStateBasedActions()
		if err != nil {
			return err
		}
		if acted {
			if step == rules.StepCleanup {
				g.flow.CleanupActed = true
			}
			continue
		}
		if !g.queue.Empty() {
			if step == rules.StepCleanup {
				g.flow.CleanupActed = true
			}
			if err := g.stackTriggers(); err != nil {
				return err
			}
			continue
		}
		if step == rules.StepCleanup && !g.flow.CleanupActed {
			// Per rule 514.3: no priority in cleanup unless something happened.
			if err := g.nextStep(); err != nil {
				return err
			}
			continue
		}
		g.ensurePriority()
		return nil
	}
}

// ensurePriority moves priority past a player who has left the game.
func (g *Game) ensurePriority() {
	if p, ok := g.store.Player(g.tm.PriorityPlayer()); ok && !p.Lost {
		return
	}
	g.tm.SetPriority(g.nextLive(g.tm.PriorityPlayer()))
}

// nextLive returns the first player after current in turn order who is
// still in the game.
func (g *Game) nextLive(current string) string {
	order := g.store.PlayerIDs()
	start := 0
	for i, id := range order {
		if id == current {
			start = i + 1
			break
		}
	}
	for i := 0; i < len(order); i++ {
		id := order[(start+i)%len(order)]
		if p, _ := g.store.Player(id); !p.Lost {
			return id
		}
	}
	return current
}

func (g *Game) beginStep() error {
	step := g.tm.CurrentStep()
	active := g.tm.ActivePlayer()
	g.logger.Debug("step started",
		zap.Int("turn", g.tm.TurnNumber()),
		zap.String("step", step.String()),
		zap.String("active", active))

	if step == rules.StepUntap {
		g.watchers.ResetWatchers()
		g.turnEvents = nil
		for _, id := range g.store.PlayerIDs() {
			p, _ := g.store.Player(id)
			p.LandsPlayed = 0
		}
	}
	err := g.Batch(func() error {
		if step == rules.StepUntap {
			g.emit(rules.Event{Type: rules.EventTurnStarted, PlayerID: active, Controller: active, Amount: g.tm.TurnNumber()})
		}
		g.emit(rules.Event{Type: rules.EventStepStarted, PlayerID: active, Controller: active})
		if step == rules.StepUntap {
			return g.untapStep(active)
		}
		return nil
	})
	if err != nil {
		return err
	}

	switch step {
	case rules.StepDraw:
		// Per rule 103.8a the starting player skips the first draw.
		if g.tm.TurnNumber() == 1 && !g.cfg.DrawOnFirstTurn {
			return nil
		}
		return g.Draw(active, 1)
	case rules.StepDeclareAttackers:
		return g.askAttackers()
	case rules.StepDeclareBlockers:
		return g.askBlockers()
	case rules.StepFirstStrikeDamage:
		return g.combatDamage(true)
	case rules.StepCombatDamage:
		return g.combatDamage(false)
	case rules.StepEndCombat:
		return g.endCombat()
	case rules.StepCleanup:
		return g.beginCleanup()
	}
	return nil
}

// untapStep untaps the active player's permanents. Per rule 502.3; the
// permanents they control also stop being summoning sick.
func (g *Game) untapStep(active string) error {
	view := g.View()
	var untap []string
	for _, id := range g.store.Battlefield() {
		c, ok := view.Get(id)
		if !ok || c.Controller != active {
			continue
		}
		obj, _ := g.store.Get(id)
		obj.Status.SummoningSick = false
		if obj.Status.Tapped {
			untap = append(untap, id)
		}
	}
	return g.SetTapped(untap, false)
}

// nextStep ends the current step and starts the next one, skipping the
// rest of combat when no creature attacks.
func (g *Game) nextStep() error {
	for _, id := range g.store.PlayerIDs() {
		p, _ := g.store.Player(id)
		// Per rule 500.4.
		p.Pool.Empty()
	}
	next := ""
	if g.tm.CurrentStep() == rules.StepCleanup {
		next = g.nextLive(g.tm.ActivePlayer())
	}
	g.tm.AdvanceStep(next)
	for g.flow.SkipCombat {
		step := g.tm.CurrentStep()
		if step != rules.StepDeclareBlockers && step != rules.StepFirstStrikeDamage && step != rules.StepCombatDamage {
			break
		}
		g.tm.AdvanceStep("")
	}
	g.flow.StepStarted = false
	g.flow.CleanupActed = false
	g.passed.Reset()
	return nil
}

func (g *Game) endCombat() error {
	return g.Batch(func() error {
		for _, id := range g.store.Battlefield() {
			if obj, _ := g.store.Get(id); obj.Status.InCombat() {
				obj.Status.ClearCombat()
			}
		}
		for _, fe := range g.store.Effects.PurgeExpired(effects.ExpireEndOfCombat, nil) {
			g.emitExpired(fe)
		}
		g.flow.SkipCombat = false
		g.flow.Defenders = nil
		return nil
	})
}

// beginCleanup makes the active player discard down to the maximum hand
// size before damage wears off. Per rule 514.1.
func (g *Game) beginCleanup() error {
	active := g.tm.ActivePlayer()
	hand := g.store.Zone(active, rules.ZoneHand)
	excess := len(hand) - g.cfg.MaxHandSize
	if excess <= 0 {
		return g.finishCleanup()
	}
	return g.ask(purposeDiscard, &pipeline.Decision{
		Kind:    pipeline.DecisionDiscard,
		Player:  active,
		Prompt:  fmt.Sprintf("discard %d card(s) down to %d", excess, g.cfg.MaxHandSize),
		Min:     excess,
		Max:     excess,
		Options: hand,
	})
}

func (g *Game) discard(player string, ids []string) error {
	err := g.Batch(func() error {
		for _, id := range ids {
			if _, err := g.move(id, rules.ZoneGraveyard, "", "", ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	g.logger.Debug("discarded to hand size", zap.String("player", player), zap.Int("cards", len(ids)))
	return g.finishCleanup()
}

// finishCleanup removes marked damage and ends "until end of turn"
// effects. Per rule 514.2.
func (g *Game) finishCleanup() error {
	return g.Batch(func() error {
		for _, id := range g.store.Battlefield() {
			obj, _ := g.store.Get(id)
			obj.Status.Damage = 0
			obj.Status.Deathtouched = false
		}
		for _, fe := range g.store.Effects.PurgeExpired(effects.ExpireCleanup, nil) {
			g.emitExpired(fe)
		}
		return nil
	})
}
