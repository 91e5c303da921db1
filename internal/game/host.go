package game

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/counters"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/mana"
	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	"github.com/magefree/mage-rules-go/internal/game/rules"
	"github.com/magefree/mage-rules-go/internal/game/state"
	"github.com/magefree/mage-rules-go/internal/game/targeting"
	"github.com/magefree/mage-rules-go/internal/game/triggers"
	"github.com/magefree/mage-rules-go/internal/game/watchers"
)

var _ pipeline.Host = (*Game)(nil)

// Batch runs fn as one atomic group of mutations. Triggers are matched
// once, after fn returns, against the state before and after the batch.
// Nested calls join the open batch.
func (g *Game) Batch(fn func() error) error {
	if g.batch != nil {
		return fn()
	}
	g.touch()
	g.flow.BatchSeq++
	b := &openBatch{
		id:      g.flow.BatchSeq,
		before:  triggers.Snapshot{Store: g.store.Clone(), View: g.View()},
		delayed: cloneDelayed(g.delayed),
	}
	g.batch = b
	err := fn()
	g.batch = nil
	g.touch()
	if err != nil {
		return err
	}
	g.commit(b)
	return nil
}

func (g *Game) commit(b *openBatch) {
	if len(b.events) == 0 {
		return
	}
	for _, evt := range b.events {
		g.watchers.NotifyWatchers(evt)
	}
	g.turnEvents = append(g.turnEvents, b.events...)
	g.events = append(g.events, b.events...)

	res := g.matcher.Match(triggers.Batch{
		Before:  b.before,
		After:   triggers.Snapshot{Store: g.store, View: g.View()},
		Events:  b.events,
		Delayed: b.delayed,
	})
	g.queue.Add(res.Instances...)
	if len(res.FiredDelayed) > 0 {
		fired := make(map[string]bool, len(res.FiredDelayed))
		for _, id := range res.FiredDelayed {
			fired[id] = true
		}
		kept := g.delayed[:0]
		for _, spec := range g.delayed {
			if !fired[spec.ID] {
				kept = append(kept, spec)
			}
		}
		g.delayed = kept
	}
}

// emit records an event in the open batch, opening one if needed.
func (g *Game) emit(evt rules.Event) {
	if g.batch == nil {
		_ = g.Batch(func() error {
			g.emit(evt)
			return nil
		})
		return
	}
	evt.ID = g.store.NewID("event")
	evt.Batch = g.batch.id
	evt.Timestamp = g.store.Clock
	evt.Step = g.tm.CurrentStep()
	g.batch.events = append(g.batch.events, evt)
	g.touch()
}

func cloneDelayed(specs []pipeline.DelayedSpec) []pipeline.DelayedSpec {
	out := make([]pipeline.DelayedSpec, len(specs))
	for i, s := range specs {
		s.Env = s.Env.Clone()
		s.Subjects = append([]string(nil), s.Subjects...)
		s.Path = append([]int(nil), s.Path...)
		out[i] = s
	}
	return out
}

// move performs one zone change and logs it with the last known controller
// and types of the object.
func (g *Game) move(id string, to rules.ZoneKind, position, controller, sourceID string) (*state.Object, error) {
	obj, ok := g.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("move %s: %w", id, state.ErrUnknownObject)
	}
	from := obj.Zone.Kind
	lastController := obj.Controller
	var types []string
	if c, ok := g.View().Get(id); ok {
		lastController = c.Controller
		types = c.Types
	}
	if from == rules.ZoneStack {
		g.stack.Remove(id)
	}
	moved, err := g.store.Move(id, to, position, controller)
	if err != nil {
		return nil, err
	}
	evt := rules.NewZoneChangeEvent(id, moved.ID, obj.Owner, lastController, from, to)
	if to == rules.ZoneBattlefield {
		evt.Controller = moved.Controller
	}
	if sourceID != "" {
		evt.SourceID = sourceID
	}
	evt.Metadata = map[string]string{
		rules.MetaCard:  obj.Card,
		rules.MetaTypes: strings.Join(types, " "),
	}
	evt.Description = fmt.Sprintf("%s moved from %s to %s", obj.Card, from, to)
	g.emit(evt)
	return moved, nil
}

func (g *Game) Players() []string { return g.apnap() }

func (g *Game) LegalTargets(req targeting.TargetRequirement, ctx effects.FilterContext) []string {
	return g.validator().LegalTargets(req, ctx)
}

// Stat reads a per-turn or per-player statistic.
func (g *Game) Stat(name, player string) int {
	switch name {
	case pipeline.StatLife:
		if p, ok := g.store.Player(player); ok {
			return p.Life
		}
	case pipeline.StatHandSize:
		return len(g.store.Zone(player, rules.ZoneHand))
	case pipeline.StatSpellsCastThisTurn:
		if w, ok := watchers.Lookup[*watchers.SpellsCastWatcher](g.watchers, watchers.KeySpellsCast); ok {
			return w.Count(player)
		}
	case pipeline.StatCreaturesDiedThisTurn:
		if w, ok := watchers.Lookup[*watchers.CreaturesDiedWatcher](g.watchers, watchers.KeyCreaturesDied); ok {
			return w.Total()
		}
	case StatCardsDrawnThisTurn:
		if w, ok := watchers.Lookup[*watchers.CardsDrawnWatcher](g.watchers, watchers.KeyCardsDrawn); ok {
			return w.Count(player)
		}
	}
	return 0
}

// StatCardsDrawnThisTurn counts the cards a player drew this turn.
const StatCardsDrawnThisTurn = "cards_drawn_this_turn"

func (g *Game) StackItemAlive(id string) bool {
	_, ok := g.stack.Get(id)
	return ok
}

func (g *Game) NewID(kind string) string { return g.store.NewID(kind) }

func (g *Game) MoveObjects(ids []string, to rules.ZoneKind, position string, sourceID string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	err := g.Batch(func() error {
		for _, id := range ids {
			if _, ok := g.store.Get(id); !ok {
				continue
			}
			moved, err := g.move(id, to, position, "", sourceID)
			if err != nil {
				return err
			}
			out[id] = moved.ID
		}
		return nil
	})
	return out, err
}

// Draw draws n cards one at a time. Drawing from an empty library marks
// the player for the state-based action check.
func (g *Game) Draw(player string, n int) error {
	return g.Batch(func() error {
		for i := 0; i < n; i++ {
			library := g.store.Zone(player, rules.ZoneLibrary)
			if len(library) == 0 {
				if _, _, err := g.store.Draw(player); err != nil {
					return err
				}
				continue
			}
			moved, err := g.move(library[0], rules.ZoneHand, "", "", "")
			if err != nil {
				return err
			}
			g.emit(rules.Event{
				Type:       rules.EventDrewCard,
				TargetID:   moved.ID,
				Controller: player,
				PlayerID:   player,
			})
		}
		return nil
	})
}

func (g *Game) DealDamage(sourceID string, recipients []string, amount int) error {
	return g.Batch(func() error {
		for _, r := range recipients {
			if err := g.damage(sourceID, r, amount, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// damage runs one damage event through prevention and redirection, then
// deals what is left. Per rule 615 and 614.9.
func (g *Game) damage(sourceID, recipient string, amount int, combat bool) error {
	if amount <= 0 {
		return nil
	}
	res := effects.ReplaceDamage(&g.store.Effects, g.View(), effects.DamageEvent{
		SourceID:    sourceID,
		RecipientID: recipient,
		Amount:      amount,
		Combat:      combat,
	})
	g.touch()
	for _, rec := range res.Applied {
		evt := rules.Event{
			TargetID: rec.From,
			SourceID: sourceID,
			Amount:   rec.Amount,
			Flag:     combat,
			Data:     rec.EffectID,
		}
		switch rec.Kind {
		case effects.ModPreventDamage:
			evt.Type = rules.EventDamagePrevented
		case effects.ModRedirectDamage:
			evt.Type = rules.EventDamageRedirected
			evt.NewID = rec.To
		default:
			continue
		}
		g.emit(evt)
	}
	for _, id := range res.Consumed {
		if fe, ok := g.store.Effects.Remove(id); ok {
			g.emitExpired(fe)
		}
	}
	for _, d := range res.Dealt {
		if err := g.applyDamage(d); err != nil {
			return err
		}
	}
	return nil
}

func (g *Game) applyDamage(d effects.DamageEvent) error {
	if d.Amount <= 0 {
		return nil
	}
	src, _ := g.View().Get(d.SourceID)
	var srcController string
	if src != nil {
		srcController = src.Controller
	}
	if p, ok := g.store.Player(d.RecipientID); ok {
		if p.Lost {
			return nil
		}
		p.Life -= d.Amount
		g.emit(rules.Event{
			Type:       rules.EventDamagedPlayer,
			TargetID:   p.ID,
			SourceID:   d.SourceID,
			Controller: srcController,
			PlayerID:   p.ID,
			Amount:     d.Amount,
			Flag:       d.Combat,
		})
	} else {
		obj, ok := g.store.Get(d.RecipientID)
		if !ok || obj.Zone.Kind != rules.ZoneBattlefield {
			return nil
		}
		c, _ := g.View().Get(obj.ID)
		if c == nil || !c.IsCreature() {
			return nil
		}
		obj.Status.Damage += d.Amount
		if src != nil && src.HasKeyword(effects.KeywordDeathtouch) {
			obj.Status.Deathtouched = true
		}
		g.emit(rules.Event{
			Type:       rules.EventDamagedPermanent,
			TargetID:   obj.ID,
			SourceID:   d.SourceID,
			Controller: srcController,
			PlayerID:   c.Controller,
			Amount:     d.Amount,
			Flag:       d.Combat,
		})
	}
	// Per rule 702.15b.
	if src != nil && src.HasKeyword(effects.KeywordLifelink) {
		return g.GainLife(src.Controller, d.Amount)
	}
	return nil
}

func (g *Game) GainLife(player string, n int) error {
	return g.changeLife(player, n, rules.EventGainedLife)
}

func (g *Game) LoseLife(player string, n int) error {
	return g.changeLife(player, -n, rules.EventLostLife)
}

func (g *Game) changeLife(player string, delta int, typ rules.EventType) error {
	p, ok := g.store.Player(player)
	if !ok {
		return fmt.Errorf("change life: unknown player %s", player)
	}
	if delta == 0 || p.Lost {
		return nil
	}
	p.Life += delta
	amount := delta
	if amount < 0 {
		amount = -amount
	}
	g.emit(rules.Event{Type: typ, TargetID: player, PlayerID: player, Controller: player, Amount: amount})
	return nil
}

func (g *Game) SetTapped(ids []string, tapped bool) error {
	typ := rules.EventUntapped
	if tapped {
		typ = rules.EventTapped
	}
	return g.Batch(func() error {
		for _, id := range ids {
			obj, ok := g.store.Get(id)
			if !ok || obj.Zone.Kind != rules.ZoneBattlefield {
				continue
			}
			if g.store.SetTapped(id, tapped) {
				g.emit(rules.Event{Type: typ, TargetID: id, Controller: obj.Controller, PlayerID: obj.Controller})
			}
		}
		return nil
	})
}

// Destroy puts permanents into their owners' graveyards. Per rule 701.7a.
func (g *Game) Destroy(ids []string, sourceID string) error {
	return g.Batch(func() error {
		for _, id := range ids {
			obj, ok := g.store.Get(id)
			if !ok || obj.Zone.Kind != rules.ZoneBattlefield {
				continue
			}
			if _, err := g.move(id, rules.ZoneGraveyard, "", "", sourceID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *Game) AddCounters(ids []string, counter string, n int) error {
	if n <= 0 {
		return nil
	}
	return g.Batch(func() error {
		for _, id := range ids {
			controller := id
			if obj, ok := g.store.Get(id); ok {
				controller = obj.Controller
			}
			if err := g.store.AddCounters(id, counter, n); err != nil {
				return err
			}
			g.emit(counters.AddedEvent(id, "", controller, counter, n))
		}
		return nil
	})
}

// CounterStackItem removes a stack object without resolving it. A countered
// spell goes to its owner's graveyard. Per rule 701.5a.
func (g *Game) CounterStackItem(id string) error {
	item, ok := g.stack.Get(id)
	if !ok {
		return nil
	}
	return g.Batch(func() error {
		g.emit(rules.Event{
			Type:        rules.EventCountered,
			TargetID:    id,
			Controller:  item.Controller,
			PlayerID:    item.Controller,
			Description: item.Description,
		})
		if item.Kind == rules.StackItemKindSpell {
			_, err := g.move(id, rules.ZoneGraveyard, "", "", "")
			return err
		}
		g.stack.Remove(id)
		return nil
	})
}

func (g *Game) Shuffle(player string) error {
	g.store.Shuffle(player, g.rng.Intn)
	g.emit(rules.Event{Type: rules.EventShuffled, TargetID: player, PlayerID: player, Controller: player})
	return nil
}

func (g *Game) FlipCoin(player string) (bool, error) {
	won := g.rng.Intn(2) == 0
	g.emit(rules.Event{Type: rules.EventCoinFlipped, TargetID: player, PlayerID: player, Controller: player, Flag: won})
	return won, nil
}

func (g *Game) AddEffect(sourceID, controller string, selector effects.Selector, mod effects.Modification, duration effects.Duration) (string, error) {
	if err := mod.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", rules.ErrInvariantViolation, err)
	}
	id := g.store.NewID("effect")
	fe := effects.NewFloatingEffect(id, sourceID, controller, g.store.Tick(), selector, mod, duration)
	g.store.Effects.Add(fe)
	g.emit(rules.Event{
		Type:       rules.EventEffectCreated,
		TargetID:   id,
		SourceID:   sourceID,
		Controller: controller,
		PlayerID:   controller,
		Data:       string(mod.Kind),
	})
	return id, nil
}

func (g *Game) emitExpired(fe effects.FloatingEffect) {
	g.emit(rules.Event{
		Type:       rules.EventEffectExpired,
		TargetID:   fe.ID,
		SourceID:   fe.SourceID,
		Controller: fe.Controller,
		Data:       string(fe.Mod.Kind),
	})
}

func (g *Game) RegisterDelayed(spec pipeline.DelayedSpec) error {
	spec.ID = g.store.NewID("delayed")
	spec.Timestamp = g.store.Tick()
	g.delayed = append(g.delayed, spec)
	g.logger.Debug("delayed trigger registered",
		zap.String("delayed", spec.ID),
		zap.String("card", spec.Origin.Card),
		zap.String("event", string(spec.Pattern.Event)))
	return nil
}

// AddMana adds mana written as symbols ("{G}{G}") or bare letters ("GG").
// Generic amounts are added as colorless.
func (g *Game) AddMana(player, symbols string) error {
	p, ok := g.store.Player(player)
	if !ok {
		return fmt.Errorf("add mana: unknown player %s", player)
	}
	if !strings.Contains(symbols, "{") {
		var b strings.Builder
		for _, r := range symbols {
			b.WriteString("{" + string(r) + "}")
		}
		symbols = b.String()
	}
	cost, err := mana.ParseCost(symbols)
	if err != nil {
		return fmt.Errorf("add mana: %w", err)
	}
	amounts := map[mana.ManaType]int{
		mana.ManaWhite:     cost.White,
		mana.ManaBlue:      cost.Blue,
		mana.ManaBlack:     cost.Black,
		mana.ManaRed:       cost.Red,
		mana.ManaGreen:     cost.Green,
		mana.ManaColorless: cost.Colorless + cost.Generic,
	}
	total := 0
	for typ, n := range amounts {
		if n > 0 {
			p.Pool.Add(typ, n)
			total += n
		}
	}
	g.emit(rules.Event{
		Type:       rules.EventManaAdded,
		TargetID:   player,
		PlayerID:   player,
		Controller: player,
		Amount:     total,
		Data:       cost.String(),
	})
	return nil
}
