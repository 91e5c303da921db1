package game

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/catalog"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	"github.com/magefree/mage-rules-go/internal/game/rules"
	"github.com/magefree/mage-rules-go/internal/game/triggers"
)

// program returns the effect program an ability reference points at.
func (g *Game) program(ref rules.AbilityRef) (pipeline.Program, error) {
	card, ok := g.cards.Get(ref.Card)
	if !ok {
		return nil, fmt.Errorf("%w: unknown card %q", rules.ErrInvariantViolation, ref.Card)
	}
	switch ref.Kind {
	case rules.AbilitySpell:
		return card.Program, nil
	case rules.AbilityActivated:
		if ref.Index >= 0 && ref.Index < len(card.Activated) {
			return card.Activated[ref.Index].Program, nil
		}
	case rules.AbilityTriggered:
		if ref.Index >= 0 && ref.Index < len(card.Triggers) {
			return card.Triggers[ref.Index].Program, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no %s ability %d", rules.ErrInvariantViolation, ref.Card, ref.Kind, ref.Index)
}

// itemProgram returns the program a stack item runs and the path of its
// root block inside the card's program.
func (g *Game) itemProgram(item rules.StackItem) (pipeline.Program, []int, error) {
	if item.Ability.Kind != rules.AbilityDelayed {
		p, err := g.program(item.Ability)
		return p, nil, err
	}
	spec, ok := g.fired[item.Ability.DelayedID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: delayed trigger %s is not on the stack", rules.ErrInvariantViolation, item.Ability.DelayedID)
	}
	origin, err := g.program(spec.Origin)
	if err != nil {
		return nil, nil, err
	}
	block, err := pipeline.Locate(origin, spec.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", rules.ErrInvariantViolation, err)
	}
	return block, spec.Path, nil
}

// resolveTop resolves the top object of the stack. Per rule 608.
func (g *Game) resolveTop() error {
	item, ok := g.stack.Peek()
	if !ok {
		return nil
	}
	if err := g.resolution.BeginResolution(item.ID); err != nil {
		return err
	}
	g.logger.Debug("resolving stack object",
		zap.String("item", item.ID),
		zap.String("kind", string(item.Kind)),
		zap.String("description", item.Description))

	card, ok := g.cards.Get(item.Ability.Card)
	if !ok {
		return fmt.Errorf("%w: unknown card %q", rules.ErrInvariantViolation, item.Ability.Card)
	}
	var slots []catalog.TargetSlot
	ctx := effects.FilterContext{SourceID: item.SourceID, Controller: item.Controller}
	switch item.Ability.Kind {
	case rules.AbilitySpell:
		slots = card.CastSlots()
	case rules.AbilityActivated:
		slots = card.Activated[item.Ability.Index].Targets
		if c, ok := g.View().Get(item.SourceID); ok {
			ctx.AttachedTo = c.AttachedTo
		}
	}
	if len(slots) > 0 {
		var fizzled bool
		item, fizzled = g.recheckTargets(item, slots, ctx)
		if fizzled {
			return g.fizzle(item)
		}
	}

	if item.Kind == rules.StackItemKindSpell && card.IsPermanent() {
		return g.resolvePermanent(item, card)
	}
	program, root, err := g.itemProgram(item)
	if err != nil {
		return err
	}
	cont := pipeline.NewContinuation(item.Ability, item.ID, item.SourceID, item.Controller, item.Bindings.Clone())
	cont.Root = root
	status, err := pipeline.NewExecutor(g, g.logger).Run(program, cont)
	if err != nil {
		return err
	}
	return g.afterRun(item, cont, status)
}

// recheckTargets drops targets that became illegal. Per rule 608.2b the
// object does not resolve when every target it had is illegal.
func (g *Game) recheckTargets(item rules.StackItem, slots []catalog.TargetSlot, ctx effects.FilterContext) (rules.StackItem, bool) {
	tv := g.validator()
	chosen, legal := 0, 0
	for _, slot := range slots {
		v, ok := item.Bindings.Get(slot.Name)
		if !ok {
			continue
		}
		refs := v.Refs()
		chosen += len(refs)
		still := make(map[string]bool)
		for _, id := range tv.StillLegal(refs, slot.Requirement, ctx) {
			still[id] = true
		}
		legal += len(still)
		v.Objects = keep(v.Objects, still)
		v.Players = keep(v.Players, still)
		item.Bindings[slot.Name] = v
	}
	g.stack.Update(item)
	return item, chosen > 0 && legal == 0
}

func keep(ids []string, set map[string]bool) []string {
	var out []string
	for _, id := range ids {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}

func (g *Game) fizzle(item rules.StackItem) error {
	g.logger.Debug("stack object has no legal targets", zap.String("item", item.ID))
	err := g.Batch(func() error {
		g.emit(rules.Event{
			Type:        rules.EventCountered,
			TargetID:    item.ID,
			Controller:  item.Controller,
			PlayerID:    item.Controller,
			Description: "all targets are illegal",
		})
		if item.Kind == rules.StackItemKindSpell {
			_, err := g.move(item.ID, rules.ZoneGraveyard, "", "", "")
			return err
		}
		g.stack.Remove(item.ID)
		return nil
	})
	if err != nil {
		return err
	}
	return g.endResolution(item)
}

// resolvePermanent puts a permanent spell onto the battlefield under its
// controller. Per rule 608.3; an aura enters attached to its target.
func (g *Game) resolvePermanent(item rules.StackItem, card *catalog.Card) error {
	err := g.Batch(func() error {
		moved, err := g.move(item.ID, rules.ZoneBattlefield, "", item.Controller, "")
		if err != nil {
			return err
		}
		if card.Enchant != nil {
			if targets := item.Bindings.Objects(catalog.EnchantSlot); len(targets) > 0 {
				moved.Status.AttachedTo = targets[0]
				g.emit(rules.Event{
					Type:       rules.EventAttached,
					TargetID:   moved.ID,
					NewID:      targets[0],
					Controller: item.Controller,
					PlayerID:   item.Controller,
				})
			}
		}
		g.emit(rules.Event{
			Type:        rules.EventStackResolved,
			TargetID:    item.ID,
			NewID:       moved.ID,
			Controller:  item.Controller,
			PlayerID:    item.Controller,
			Description: item.Description,
		})
		return nil
	})
	if err != nil {
		return err
	}
	return g.endResolution(item)
}

// afterRun acts on the outcome of running or resuming a program.
func (g *Game) afterRun(item rules.StackItem, cont *pipeline.Continuation, status pipeline.Status) error {
	switch status {
	case pipeline.StatusSuspended:
		g.resolving = cont
		g.pending = &pending{Purpose: purposeResolve, Decision: cont.Pending.Clone()}
		g.logger.Debug("resolution waiting for a decision",
			zap.String("item", item.ID),
			zap.String("decision", cont.Pending.ID),
			zap.String("player", cont.Pending.Player))
		return nil
	case pipeline.StatusCancelled:
		g.resolving = nil
		g.resolution.Abandon(item.ID)
		g.pruneResolved()
		g.actionTaken()
		return nil
	}
	g.resolving = nil
	err := g.Batch(func() error {
		if _, ok := g.stack.Get(item.ID); ok {
			if item.Kind == rules.StackItemKindSpell {
				// Per rule 608.2n.
				if _, err := g.move(item.ID, rules.ZoneGraveyard, "", "", ""); err != nil {
					return err
				}
			} else {
				g.stack.Remove(item.ID)
			}
		}
		g.emit(rules.Event{
			Type:        rules.EventStackResolved,
			TargetID:    item.ID,
			SourceID:    item.SourceID,
			Controller:  item.Controller,
			PlayerID:    item.Controller,
			Description: item.Description,
		})
		return nil
	})
	if err != nil {
		return err
	}
	if item.Ability.Kind == rules.AbilityDelayed {
		delete(g.fired, item.Ability.DelayedID)
	}
	return g.endResolution(item)
}

func (g *Game) endResolution(item rules.StackItem) error {
	if err := g.resolution.EndResolution(item.ID); err != nil {
		return err
	}
	g.pruneResolved()
	// Per rule 117.3b.
	g.actionTaken()
	return nil
}

func (g *Game) pruneResolved() {
	g.resolution.Prune(func(id string) bool {
		_, ok := g.stack.Get(id)
		return ok
	})
}

// ask puts a decision to a player. A decision with only one possible
// answer is answered at once.
func (g *Game) ask(p purpose, d *pipeline.Decision) error {
	d.ID = g.store.NewID("decision")
	if resp, ok := d.Forced(); ok {
		resp.DecisionID = d.ID
		return g.answer(&pending{Purpose: p, Decision: d}, resp)
	}
	g.pending = &pending{Purpose: p, Decision: d}
	g.logger.Debug("decision pending",
		zap.String("decision", d.ID),
		zap.String("kind", string(d.Kind)),
		zap.String("player", d.Player))
	return nil
}

func (g *Game) respond(player string, resp pipeline.Response) error {
	if g.pending == nil {
		return rules.Illegal(rules.CodeNoDecision, "no decision is pending")
	}
	d := g.pending.Decision
	if d.Player != player {
		return rules.Illegal(rules.CodeInvalidResponse, "decision %s is for %s", d.ID, d.Player).
			WithMeta("decision", d.ID)
	}
	if err := d.Validate(resp); err != nil {
		if errors.Is(err, rules.ErrIllegalAction) {
			return err
		}
		return rules.Illegal(rules.CodeInvalidResponse, "%v", err)
	}
	pd := g.pending
	g.pending = nil
	return g.answer(pd, resp)
}

func (g *Game) answer(pd *pending, resp pipeline.Response) error {
	switch pd.Purpose {
	case purposeResolve:
		item, ok := g.stack.Peek()
		if !ok || g.resolving == nil || g.resolving.StackItemID != item.ID {
			return fmt.Errorf("%w: pending resolution does not match the stack", rules.ErrInvariantViolation)
		}
		program, _, err := g.itemProgram(item)
		if err != nil {
			return err
		}
		cont := g.resolving
		status, err := pipeline.NewExecutor(g, g.logger).Resume(program, cont, resp)
		if err != nil {
			return err
		}
		return g.afterRun(item, cont, status)
	case purposeOrder:
		return g.pushTriggers(resp.Selected)
	case purposeAttack:
		return g.declareAttackers(resp)
	case purposeBlock:
		return g.declareBlockers(pd.Decision.Player, resp)
	case purposeDiscard:
		return g.discard(pd.Decision.Player, resp.Selected)
	}
	return fmt.Errorf("%w: unknown decision purpose %q", rules.ErrInvariantViolation, pd.Purpose)
}

// stackTriggers puts the next player's waiting triggers on the stack,
// asking for an order when they come from different abilities. Per rule
// 603.3b, in APNAP order.
func (g *Game) stackTriggers() error {
	player, group := g.queue.Next(g.apnap())
	if len(group) == 0 {
		return nil
	}
	if triggers.NeedsOrder(group) {
		return g.ask(purposeOrder, triggers.OrderDecision("", player, group))
	}
	return g.pushTriggers(triggers.IDs(group))
}

// pushTriggers moves triggers from the queue to the stack in the given
// order; the last one resolves first.
func (g *Game) pushTriggers(ids []string) error {
	taken, err := g.queue.Take(ids)
	if err != nil {
		return fmt.Errorf("%w: %v", rules.ErrInvariantViolation, err)
	}
	err = g.Batch(func() error {
		for _, in := range taken {
			b := in.Bindings.Clone()
			if len(b.Objects(pipeline.BindingSelf)) == 0 && in.SourceID != "" {
				b.SetObjects(pipeline.BindingSelf, []string{in.SourceID})
			}
			if in.Delayed != nil {
				spec := *in.Delayed
				spec.Env = spec.Env.Clone()
				g.fired[in.Ability.DelayedID] = spec
			}
			id := g.store.NewID("ability")
			g.stack.Push(rules.StackItem{
				ID:          id,
				Controller:  in.Controller,
				Description: in.Description,
				Kind:        rules.StackItemKindTriggered,
				SourceID:    in.SourceID,
				Ability:     in.Ability,
				Bindings:    b,
				Timestamp:   g.store.Tick(),
			})
			g.emit(rules.Event{
				Type:        rules.EventAbilityTriggered,
				TargetID:    id,
				SourceID:    in.SourceID,
				Controller:  in.Controller,
				PlayerID:    in.Controller,
				Description: in.Description,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	g.actionTaken()
	return nil
}
