package game

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/catalog"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/mana"
	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	"github.com/magefree/mage-rules-go/internal/game/rules"
	"github.com/magefree/mage-rules-go/internal/game/state"
	"github.com/magefree/mage-rules-go/internal/game/targeting"
)

// ActionKind names a player action.
type ActionKind string

const (
	ActionCast             ActionKind = "cast"
	ActionActivate         ActionKind = "activate"
	ActionPlayLand         ActionKind = "play_land"
	ActionDeclareAttackers ActionKind = "declare_attackers"
	ActionDeclareBlockers  ActionKind = "declare_blockers"
	ActionPass             ActionKind = "pass"
	ActionRespond          ActionKind = "respond"
	ActionConcede          ActionKind = "concede"
)

// BindingX holds the value chosen for X when a spell is cast.
const BindingX = "x"

// Action is one player input. Which fields are read depends on Kind.
type Action struct {
	Kind   ActionKind `json:"kind" yaml:"kind"`
	Player string     `json:"player" yaml:"player"`
	Object string     `json:"object,omitempty" yaml:"object,omitempty"`
	// Ability indexes the activated abilities of Object.
	Ability int `json:"ability,omitempty" yaml:"ability,omitempty"`
	// Targets maps target slot names to the chosen ids.
	Targets map[string][]string `json:"targets,omitempty" yaml:"targets,omitempty"`
	X       int                 `json:"x,omitempty" yaml:"x,omitempty"`
	// Attackers maps attacking creatures to the player they attack.
	Attackers map[string]string `json:"attackers,omitempty" yaml:"attackers,omitempty"`
	// Blockers maps blocking creatures to the attacker they block.
	Blockers map[string]string  `json:"blockers,omitempty" yaml:"blockers,omitempty"`
	Response *pipeline.Response `json:"response,omitempty" yaml:"response,omitempty"`
}

func (a Action) clone() Action {
	cp := a
	if a.Targets != nil {
		cp.Targets = make(map[string][]string, len(a.Targets))
		for k, v := range a.Targets {
			cp.Targets[k] = append([]string(nil), v...)
		}
	}
	if a.Attackers != nil {
		cp.Attackers = make(map[string]string, len(a.Attackers))
		for k, v := range a.Attackers {
			cp.Attackers[k] = v
		}
	}
	if a.Blockers != nil {
		cp.Blockers = make(map[string]string, len(a.Blockers))
		for k, v := range a.Blockers {
			cp.Blockers[k] = v
		}
	}
	if a.Response != nil {
		r := *a.Response
		r.Selected = append([]string(nil), a.Response.Selected...)
		if a.Response.Slots != nil {
			r.Slots = make(map[string][]string, len(a.Response.Slots))
			for k, v := range a.Response.Slots {
				r.Slots[k] = append([]string(nil), v...)
			}
		}
		cp.Response = &r
	}
	return cp
}

func (g *Game) dispatch(a Action) error {
	if _, ok := g.store.Player(a.Player); !ok {
		return rules.Illegal(rules.CodeUnknownPlayer, "unknown player %q", a.Player)
	}
	if a.Kind == ActionConcede {
		return g.concede(a.Player)
	}
	if g.pending != nil {
		switch a.Kind {
		case ActionRespond, ActionDeclareAttackers, ActionDeclareBlockers:
		default:
			return rules.Illegal(rules.CodeDecisionPending, "decision %s is waiting for %s", g.pending.Decision.ID, g.pending.Decision.Player).
				WithMeta("decision", g.pending.Decision.ID)
		}
	}

	switch a.Kind {
	case ActionCast:
		return g.cast(a)
	case ActionActivate:
		return g.activate(a)
	case ActionPlayLand:
		return g.playLand(a)
	case ActionPass:
		return g.pass(a.Player)
	case ActionRespond:
		if a.Response == nil {
			return rules.Illegal(rules.CodeInvalidResponse, "respond without a response")
		}
		return g.respond(a.Player, *a.Response)
	case ActionDeclareAttackers:
		return g.respondDeclaration(a.Player, purposeAttack, a.Attackers)
	case ActionDeclareBlockers:
		return g.respondDeclaration(a.Player, purposeBlock, a.Blockers)
	}
	return rules.Illegal(rules.CodeUnknownAction, "unknown action %q", a.Kind)
}

// respondDeclaration turns an attack or block declaration into the answer
// to the outstanding declaration decision.
func (g *Game) respondDeclaration(player string, want purpose, assignments map[string]string) error {
	if g.pending == nil || g.pending.Purpose != want {
		return rules.Illegal(rules.CodeWrongStep, "no %s declaration is expected", want)
	}
	resp := pipeline.Response{DecisionID: g.pending.Decision.ID}
	if len(assignments) > 0 {
		resp.Slots = make(map[string][]string, len(assignments))
		for creature, target := range assignments {
			resp.Slots[creature] = []string{target}
		}
	}
	return g.respond(player, resp)
}

func (g *Game) requirePriority(player string) error {
	p, _ := g.store.Player(player)
	if p.Lost {
		return rules.Illegal(rules.CodeGameOver, "%s has left the game", player)
	}
	if g.tm.PriorityPlayer() != player {
		return rules.Illegal(rules.CodeNoPriority, "%s does not have priority", player).
			WithMeta("priority", g.tm.PriorityPlayer())
	}
	return nil
}

// sorceryTiming reports whether player may do something at sorcery speed:
// their own main phase with an empty stack.
func (g *Game) sorceryTiming(player string) bool {
	return g.tm.ActivePlayer() == player && g.tm.CurrentStep().IsMain() && g.stack.IsEmpty()
}

// actionTaken hands priority back to the active player after a spell or
// ability is put on the stack.
func (g *Game) actionTaken() {
	g.passed.Reset()
	g.tm.SetPriority(g.tm.ActivePlayer())
}

func (g *Game) validator() *targeting.TargetValidator {
	var players []targeting.PlayerInfo
	for _, id := range rules.APNAPOrder(g.store.PlayerIDs(), g.tm.ActivePlayer()) {
		p, _ := g.store.Player(id)
		players = append(players, targeting.PlayerInfo{ID: id, Lost: p.Lost})
	}
	var stack []targeting.StackInfo
	for _, item := range g.stack.List() {
		stack = append(stack, targeting.StackInfo{ID: item.ID, Controller: item.Controller, Kind: item.Kind})
	}
	return targeting.NewTargetValidator(g.View(), players, stack)
}

// checkTargets validates chosen targets slot by slot and returns them as
// bindings.
func (g *Game) checkTargets(slots []catalog.TargetSlot, chosen map[string][]string, ctx effects.FilterContext) (rules.Bindings, error) {
	known := make(map[string]bool, len(slots))
	for _, slot := range slots {
		known[slot.Name] = true
	}
	for name := range chosen {
		if !known[name] {
			return nil, rules.Illegal(rules.CodeInvalidTarget, "no target slot named %q", name)
		}
	}

	tv := g.validator()
	bindings := rules.Bindings{}
	for _, slot := range slots {
		ids := chosen[slot.Name]
		lo, hi := slot.Requirement.Bounds()
		if len(ids) < lo || len(ids) > hi {
			return nil, rules.Illegal(rules.CodeInvalidTarget, "slot %s needs %d to %d targets, got %d", slot.Name, lo, hi, len(ids)).
				WithMeta("slot", slot.Name)
		}
		seen := make(map[string]bool, len(ids))
		var objects, players []string
		for _, id := range ids {
			if seen[id] {
				return nil, rules.Illegal(rules.CodeInvalidTarget, "%s chosen twice for %s", id, slot.Name)
			}
			seen[id] = true
			if err := tv.ValidateTarget(id, slot.Requirement, ctx); err != nil {
				return nil, err
			}
			if _, isPlayer := g.store.Player(id); isPlayer {
				players = append(players, id)
			} else {
				objects = append(objects, id)
			}
		}
		if len(objects) > 0 {
			bindings.SetObjects(slot.Name, objects)
		}
		if len(players) > 0 {
			bindings.SetPlayers(slot.Name, players)
		}
	}
	return bindings, nil
}

// payCost pays cost from player's pool. The pool is only touched when the
// whole cost can be paid.
func (g *Game) payCost(player string, cost *mana.ManaCost, x int) error {
	if x < 0 {
		return rules.Illegal(rules.CodeCostUnpayable, "x cannot be negative")
	}
	p, _ := g.store.Player(player)
	pool := p.Pool.Copy()
	if err := mana.Pay(cost, pool, x); err != nil {
		return rules.Illegal(rules.CodeInsufficientMana, "%v", err).WithMeta("cost", cost.String())
	}
	p.Pool.Replace(pool)
	return nil
}

func slotNames(slots []catalog.TargetSlot) []string {
	names := make([]string, 0, len(slots))
	for _, s := range slots {
		names = append(names, s.Name)
	}
	return names
}

// Per rule 601.2: announce, choose targets, pay costs, then the spell
// becomes cast.
func (g *Game) cast(a Action) error {
	if err := g.requirePriority(a.Player); err != nil {
		return err
	}
	obj, ok := g.store.Get(a.Object)
	if !ok {
		return rules.Illegal(rules.CodeUnknownObject, "unknown object %q", a.Object)
	}
	if obj.Zone != state.KeyFor(a.Player, rules.ZoneHand) {
		return rules.Illegal(rules.CodeWrongZone, "%s is not in %s's hand", obj.Card, a.Player)
	}
	card, ok := g.cards.Get(obj.Card)
	if !ok {
		return fmt.Errorf("%w: object %s has unknown card %q", rules.ErrInvariantViolation, obj.ID, obj.Card)
	}
	if card.IsLand() {
		return rules.Illegal(rules.CodeUnknownAction, "%s is a land; play it instead", card.Name)
	}
	c, _ := g.View().Get(obj.ID)
	instant := c.HasType(effects.TypeInstant) || c.HasKeyword(effects.KeywordFlash)
	if !instant && !g.sorceryTiming(a.Player) {
		return rules.Illegal(rules.CodeWrongStep, "%s can only be cast at sorcery speed", card.Name)
	}

	slots := card.CastSlots()
	bindings, err := g.checkTargets(slots, a.Targets, effects.FilterContext{SourceID: obj.ID, Controller: a.Player})
	if err != nil {
		return err
	}
	cost, err := card.Cost()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", rules.ErrInvariantViolation, card.Name, err)
	}
	cost = cost.AdjustGeneric(c.CostDelta)

	err = g.Batch(func() error {
		if err := g.payCost(a.Player, cost, a.X); err != nil {
			return err
		}
		moved, err := g.move(obj.ID, rules.ZoneStack, "", a.Player, "")
		if err != nil {
			return err
		}
		bindings.SetObjects(pipeline.BindingSelf, []string{moved.ID})
		if cost.X {
			bindings.SetNumber(BindingX, a.X)
		}
		g.stack.Push(rules.StackItem{
			ID:          moved.ID,
			Controller:  a.Player,
			Description: card.Name,
			Kind:        rules.StackItemKindSpell,
			SourceID:    moved.ID,
			Ability:     rules.AbilityRef{Card: card.Name, Kind: rules.AbilitySpell},
			Bindings:    bindings,
			TargetSlots: slotNames(slots),
			Timestamp:   g.store.Tick(),
		})
		g.emit(rules.Event{
			Type:        rules.EventSpellCast,
			TargetID:    moved.ID,
			SourceID:    moved.ID,
			Controller:  a.Player,
			PlayerID:    a.Player,
			Description: card.Name,
			Metadata:    map[string]string{rules.MetaCard: card.Name},
		})
		return nil
	})
	if err != nil {
		return err
	}
	g.logger.Debug("spell cast",
		zap.String("player", a.Player),
		zap.String("card", card.Name))
	g.actionTaken()
	return nil
}

// summoningSick reports whether a creature has not been continuously
// controlled by its controller since the turn began. Per rule 302.6.
func summoningSick(obj *state.Object, c *effects.Characteristics) bool {
	return obj.Status.SummoningSick || c.Controller != obj.Controller
}

func (g *Game) activate(a Action) error {
	if err := g.requirePriority(a.Player); err != nil {
		return err
	}
	obj, ok := g.store.Get(a.Object)
	if !ok {
		return rules.Illegal(rules.CodeUnknownObject, "unknown object %q", a.Object)
	}
	c, _ := g.View().Get(obj.ID)
	if c.Zone != rules.ZoneBattlefield {
		return rules.Illegal(rules.CodeWrongZone, "%s is not on the battlefield", obj.Card)
	}
	if c.Controller != a.Player {
		return rules.Illegal(rules.CodeNotController, "%s does not control %s", a.Player, obj.Card)
	}
	card, _ := g.cards.Get(obj.Card)
	if a.Ability < 0 || a.Ability >= len(card.Activated) || c.LostAbilities {
		return rules.Illegal(rules.CodeUnknownAction, "%s has no ability %d", obj.Card, a.Ability)
	}
	ability := &card.Activated[a.Ability]
	if ability.Sorcery && !g.sorceryTiming(a.Player) {
		return rules.Illegal(rules.CodeWrongStep, "%s can only be activated at sorcery speed", obj.Card)
	}
	if ability.Tap {
		if obj.Status.Tapped {
			return rules.Illegal(rules.CodeCostUnpayable, "%s is already tapped", obj.Card)
		}
		if c.IsCreature() && summoningSick(obj, c) && !c.HasKeyword(effects.KeywordHaste) {
			return rules.Illegal(rules.CodeCostUnpayable, "%s has summoning sickness", obj.Card)
		}
	}

	bindings, err := g.checkTargets(ability.Targets, a.Targets, effects.FilterContext{SourceID: obj.ID, Controller: a.Player, AttachedTo: c.AttachedTo})
	if err != nil {
		return err
	}
	bindings.SetObjects(pipeline.BindingSelf, []string{obj.ID})
	cost, err := mana.ParseCost(ability.Cost)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", rules.ErrInvariantViolation, card.Name, err)
	}
	ref := rules.AbilityRef{Card: card.Name, Kind: rules.AbilityActivated, Index: a.Ability}

	err = g.Batch(func() error {
		if err := g.payCost(a.Player, cost, 0); err != nil {
			return err
		}
		if ability.Tap {
			if err := g.SetTapped([]string{obj.ID}, true); err != nil {
				return err
			}
		}
		if ability.Mana {
			// Per rule 605.3b: mana abilities resolve immediately.
			g.emit(rules.Event{
				Type:        rules.EventAbilityActivated,
				TargetID:    obj.ID,
				SourceID:    obj.ID,
				Controller:  a.Player,
				PlayerID:    a.Player,
				Description: ability.Text,
			})
			cont := pipeline.NewContinuation(ref, "", obj.ID, a.Player, bindings)
			status, err := pipeline.NewExecutor(g, g.logger).Run(ability.Program, cont)
			if err != nil {
				return err
			}
			if status != pipeline.StatusDone {
				return fmt.Errorf("%w: mana ability of %s ended %s", rules.ErrInvariantViolation, card.Name, status)
			}
			return nil
		}
		id := g.store.NewID("ability")
		g.stack.Push(rules.StackItem{
			ID:          id,
			Controller:  a.Player,
			Description: ability.Text,
			Kind:        rules.StackItemKindActivated,
			SourceID:    obj.ID,
			Ability:     ref,
			Bindings:    bindings,
			TargetSlots: slotNames(ability.Targets),
			Timestamp:   g.store.Tick(),
		})
		g.emit(rules.Event{
			Type:        rules.EventAbilityActivated,
			TargetID:    id,
			SourceID:    obj.ID,
			Controller:  a.Player,
			PlayerID:    a.Player,
			Description: ability.Text,
		})
		return nil
	})
	if err != nil {
		return err
	}
	if ability.Mana {
		// Off the stack: the pass sequence starts over but priority stays put.
		g.passed.Reset()
		return nil
	}
	g.actionTaken()
	return nil
}

// Per rule 305.2: one land per turn, at sorcery speed.
func (g *Game) playLand(a Action) error {
	if err := g.requirePriority(a.Player); err != nil {
		return err
	}
	obj, ok := g.store.Get(a.Object)
	if !ok {
		return rules.Illegal(rules.CodeUnknownObject, "unknown object %q", a.Object)
	}
	if obj.Zone != state.KeyFor(a.Player, rules.ZoneHand) {
		return rules.Illegal(rules.CodeWrongZone, "%s is not in %s's hand", obj.Card, a.Player)
	}
	card, _ := g.cards.Get(obj.Card)
	if !card.IsLand() {
		return rules.Illegal(rules.CodeUnknownAction, "%s is not a land", card.Name)
	}
	if !g.sorceryTiming(a.Player) {
		return rules.Illegal(rules.CodeWrongStep, "lands can only be played in your main phase with an empty stack")
	}
	p, _ := g.store.Player(a.Player)
	if p.LandsPlayed >= 1 {
		return rules.Illegal(rules.CodeLandLimit, "%s already played a land this turn", a.Player)
	}
	err := g.Batch(func() error {
		moved, err := g.move(obj.ID, rules.ZoneBattlefield, "", a.Player, "")
		if err != nil {
			return err
		}
		p.LandsPlayed++
		g.emit(rules.Event{
			Type:        rules.EventLandPlayed,
			TargetID:    moved.ID,
			Controller:  a.Player,
			PlayerID:    a.Player,
			Description: card.Name,
		})
		return nil
	})
	if err != nil {
		return err
	}
	g.actionTaken()
	return nil
}

// Per rule 117.4: when every player passes in succession the top of the
// stack resolves, or the step ends when the stack is empty.
func (g *Game) pass(player string) error {
	if err := g.requirePriority(player); err != nil {
		return err
	}
	live := g.apnap()
	if !g.passed.Pass(player, live) {
		g.tm.SetPriority(rules.NextPlayer(live, player))
		return nil
	}
	g.passed.Reset()
	if !g.stack.IsEmpty() {
		return g.resolveTop()
	}
	if g.tm.CurrentStep() == rules.StepCleanup {
		// Per rule 514.3a: priority in cleanup means another cleanup step.
		g.tm.RepeatStep()
		g.flow.StepStarted = false
		g.flow.CleanupActed = false
		return nil
	}
	return g.nextStep()
}

// Per rule 104.3a: a player can concede at any time.
func (g *Game) concede(player string) error {
	p, _ := g.store.Player(player)
	if p.Lost {
		return rules.Illegal(rules.CodeGameOver, "%s has already left the game", player)
	}
	if g.pending != nil && g.pending.Decision.Player == player {
		if err := g.dropDecision(); err != nil {
			return err
		}
	}
	return g.Batch(func() error {
		g.lose(player, "conceded")
		g.checkGameOver()
		return nil
	})
}

// dropDecision settles the outstanding decision of a player who leaves.
func (g *Game) dropDecision() error {
	pd := g.pending
	g.pending = nil
	switch pd.Purpose {
	case purposeResolve:
		item, ok := g.stack.Peek()
		if !ok {
			return nil
		}
		g.resolving = nil
		g.resolution.Abandon(item.ID)
		if err := g.Batch(func() error {
			return g.CounterStackItem(item.ID)
		}); err != nil {
			return err
		}
		g.pruneResolved()
		return nil
	case purposeOrder:
		return g.pushTriggers(pd.Decision.Options)
	case purposeAttack:
		return g.declareAttackers(pipeline.Response{DecisionID: pd.Decision.ID})
	case purposeBlock:
		return g.declareBlockers(pd.Decision.Player, pipeline.Response{DecisionID: pd.Decision.ID})
	case purposeDiscard:
		return g.finishCleanup()
	}
	return nil
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
