package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/rules"
	"github.com/magefree/mage-rules-go/internal/game/targeting"
)

// Statistics readable through Amount.Stat.
const (
	StatLife                  = "life"
	StatHandSize              = "hand_size"
	StatSpellsCastThisTurn    = "spells_cast_this_turn"
	StatCreaturesDiedThisTurn = "creatures_died_this_turn"
)

// Host is the game as seen by a running program. Queries read committed
// state through the current projection. Every mutation must happen inside
// Batch so the host can snapshot before it and match triggers after it.
type Host interface {
	View() *effects.View
	// Players returns players still in the game in APNAP order.
	Players() []string
	Zone(player string, kind rules.ZoneKind) []string
	LegalTargets(req targeting.TargetRequirement, ctx effects.FilterContext) []string
	Stat(name, player string) int
	StackItemAlive(id string) bool
	NewID(kind string) string

	Batch(fn func() error) error
	// MoveObjects returns the new id of every moved object keyed by its old id.
	MoveObjects(ids []string, to rules.ZoneKind, position string, sourceID string) (map[string]string, error)
	DealDamage(sourceID string, recipients []string, amount int) error
	Draw(player string, n int) error
	GainLife(player string, n int) error
	LoseLife(player string, n int) error
	SetTapped(ids []string, tapped bool) error
	Destroy(ids []string, sourceID string) error
	AddCounters(ids []string, counter string, n int) error
	CounterStackItem(id string) error
	Shuffle(player string) error
	FlipCoin(player string) (bool, error)
	AddEffect(sourceID, controller string, selector effects.Selector, mod effects.Modification, duration effects.Duration) (string, error)
	RegisterDelayed(spec DelayedSpec) error
	AddMana(player, mana string) error
}

// Status is the outcome of running a program.
type Status int

const (
	StatusDone Status = iota
	StatusSuspended
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusSuspended:
		return "suspended"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("status_%d", int(s))
}

// Executor runs programs against a host.
type Executor struct {
	host    Host
	logger  *zap.Logger
	answers []Response
}

// NewExecutor creates an executor. answers are consumed in order by the
// decisions the programs raise, letting a program run single-shot.
func NewExecutor(host Host, logger *zap.Logger, answers ...Response) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{host: host, logger: logger, answers: answers}
}

// Run executes cont until the program finishes, suspends on a decision or is
// cancelled because its stack object left the stack.
func (x *Executor) Run(program Program, cont *Continuation) (Status, error) {
	return x.run(program, cont, nil)
}

// Resume answers the pending decision of cont and continues. An invalid
// response is rejected and the decision stays outstanding.
func (x *Executor) Resume(program Program, cont *Continuation, resp Response) (Status, error) {
	if cont.Pending == nil {
		return StatusDone, fmt.Errorf("%w: resume without a pending decision", rules.ErrInvariantViolation)
	}
	if err := cont.Pending.Validate(resp); err != nil {
		return StatusSuspended, err
	}
	return x.run(program, cont, &resp)
}

type action int

const (
	actNext action = iota
	actPushed
	actSuspend
	actAbort
)

type execution struct {
	*Executor
	program Program
	cont    *Continuation
	resumed *Response
}

func (x *Executor) run(program Program, cont *Continuation, resumed *Response) (Status, error) {
	r := &execution{Executor: x, program: program, cont: cont, resumed: resumed}
	for len(cont.Frames) > 0 {
		if cont.StackItemID != "" && !x.host.StackItemAlive(cont.StackItemID) {
			x.logger.Debug("pipeline cancelled, stack object left the stack",
				zap.String("stack_item", cont.StackItemID),
				zap.String("card", cont.Ability.Card))
			cont.Frames = nil
			cont.Pending = nil
			return StatusCancelled, nil
		}

		fi := len(cont.Frames) - 1
		frame := &cont.Frames[fi]
		block, err := Locate(program, frame.Path)
		if err != nil {
			return StatusDone, err
		}
		if frame.PC < 0 || frame.PC > len(block) {
			return StatusDone, fmt.Errorf("%w: pc %d outside block of %d ops", rules.ErrInvariantViolation, frame.PC, len(block))
		}
		if frame.PC == len(block) {
			if frame.Items != nil && frame.Item+1 < len(frame.Items) {
				frame.Item++
				frame.PC = 0
				r.bindItem(frame)
				continue
			}
			cont.Frames = cont.Frames[:fi]
			continue
		}

		op := &block[frame.PC]
		act, err := r.step(op, fi)
		if err != nil {
			return StatusDone, fmt.Errorf("%s op %d (%s): %w", cont.Ability.Card, frame.PC, op.Kind, err)
		}
		switch act {
		case actNext:
			cont.Frames[fi].PC++
		case actSuspend:
			x.logger.Debug("pipeline suspended",
				zap.String("card", cont.Ability.Card),
				zap.String("decision", cont.Pending.ID),
				zap.String("kind", string(cont.Pending.Kind)))
			return StatusSuspended, nil
		case actAbort:
			x.logger.Debug("pipeline aborted by guard", zap.String("card", cont.Ability.Card))
			cont.Frames = nil
			return StatusDone, nil
		}
	}
	return StatusDone, nil
}

// push advances the parent frame and enters block of the current op.
func (r *execution) push(fi, block int, frame Frame) action {
	parent := &r.cont.Frames[fi]
	frame.Path = append(append(make([]int, 0, len(parent.Path)+2), parent.Path...), parent.PC, block)
	parent.PC++
	r.cont.Frames = append(r.cont.Frames, frame)
	return actPushed
}

func (r *execution) bindItem(frame *Frame) {
	id := frame.Items[frame.Item]
	env := r.cont.Env
	if _, ok := r.host.View().Get(id); ok {
		env.SetObjects(frame.Var, []string{id})
		env.SetPlayers(frame.Var, nil)
		return
	}
	env.SetObjects(frame.Var, nil)
	env.SetPlayers(frame.Var, []string{id})
}

func (r *execution) skip(op *Op, reason string) action {
	r.logger.Debug("pipeline op skipped",
		zap.String("card", r.cont.Ability.Card),
		zap.String("op", string(op.Kind)),
		zap.String("reason", reason))
	return actNext
}

// decide returns the answer to d, or ok=false when the program must suspend.
func (r *execution) decide(d Decision) (Response, bool, error) {
	if pending := r.cont.Pending; pending != nil {
		if r.resumed == nil {
			return Response{}, false, nil
		}
		resp := *r.resumed
		r.resumed = nil
		r.cont.Pending = nil
		return resp, true, nil
	}
	if resp, ok := d.Forced(); ok {
		return resp, true, nil
	}
	d.ID = r.host.NewID("decision")
	if len(r.answers) > 0 {
		resp := r.answers[0]
		r.answers = r.answers[1:]
		resp.DecisionID = d.ID
		if err := d.Validate(resp); err != nil {
			return Response{}, false, err
		}
		return resp, true, nil
	}
	r.cont.Pending = &d
	return Response{}, false, nil
}

// existing keeps the refs still present as objects or live players.
func (r *execution) existing(refs []string) []string {
	view := r.host.View()
	live := make(map[string]bool)
	for _, p := range r.host.Players() {
		live[p] = true
	}
	out := make([]string, 0, len(refs))
	for _, id := range refs {
		if _, ok := view.Get(id); ok || live[id] {
			out = append(out, id)
		}
	}
	return out
}

// bindRefs stores ids under name, split into objects and players.
func (r *execution) bindRefs(name string, ids []string) {
	view := r.host.View()
	var objects, players []string
	for _, id := range ids {
		if _, ok := view.Get(id); ok {
			objects = append(objects, id)
		} else {
			players = append(players, id)
		}
	}
	r.cont.Env.SetObjects(name, objects)
	r.cont.Env.SetPlayers(name, players)
}

// objects resolves the objects an op acts on: its from binding, otherwise
// every object matching its filter.
func (r *execution) objects(op *Op, scope Scope) []string {
	if op.From != "" {
		view := r.host.View()
		var out []string
		for _, id := range scope.Env.Objects(op.From) {
			if _, ok := view.Get(id); ok {
				out = append(out, id)
			}
		}
		return out
	}
	view := r.host.View()
	return view.Matching(op.Filter, scope.filterContext(view))
}

func (r *execution) chooser(op *Op, scope Scope) string {
	if players := op.Player.Resolve(r.host, scope); len(players) > 0 {
		return players[0]
	}
	return scope.Controller
}

func (r *execution) step(op *Op, fi int) (action, error) {
	scope := r.cont.Scope()
	env := r.cont.Env
	host := r.host
	r.logger.Debug("pipeline op",
		zap.String("card", r.cont.Ability.Card),
		zap.String("op", string(op.Kind)),
		zap.Int("depth", fi))

	switch op.Kind {
	case OpGather:
		zone := rules.ZoneBattlefield
		if op.Zone != nil {
			zone = *op.Zone
		}
		owners := []string{""}
		if !zone.Shared() {
			owners = op.Player.Resolve(host, scope)
		}
		view := host.View()
		ctx := scope.filterContext(view)
		var ids []string
		for _, owner := range owners {
			zoneIDs := host.Zone(owner, zone)
			if op.Count != nil {
				n := max(op.Count.Eval(host, scope), 0)
				if n < len(zoneIDs) {
					zoneIDs = zoneIDs[:n]
				}
			}
			for _, id := range zoneIDs {
				if op.Filter != nil {
					c, ok := view.Get(id)
					if !ok || !op.Filter.MatchesIgnoringZone(c, ctx) {
						continue
					}
				}
				ids = append(ids, id)
			}
		}
		env.SetObjects(op.As, ids)
		return actNext, nil

	case OpSelect:
		candidates := env.Objects(op.From)
		view := host.View()
		ctx := scope.filterContext(view)
		options := make([]string, 0, len(candidates))
		for _, id := range candidates {
			c, ok := view.Get(id)
			if !ok {
				continue
			}
			if op.Filter != nil && !op.Filter.MatchesIgnoringZone(c, ctx) {
				continue
			}
			options = append(options, id)
		}
		lo, hi := op.Min.EvalOr(host, scope, 0), op.Max.EvalOr(host, scope, len(options))
		if op.Count != nil {
			lo = op.Count.Eval(host, scope)
			hi = lo
		}
		hi = min(max(hi, 0), len(options))
		lo = min(max(lo, 0), hi)
		resp, ok, err := r.decide(Decision{
			Kind:    DecisionSelectCards,
			Player:  r.chooser(op, scope),
			Prompt:  op.Prompt,
			Min:     lo,
			Max:     hi,
			Options: options,
			Source:  scope.SourceID,
		})
		if err != nil || !ok {
			return actSuspend, err
		}
		env.SetObjects(op.As, resp.Selected)
		if op.Rest != "" {
			chosen := make(map[string]bool, len(resp.Selected))
			for _, id := range resp.Selected {
				chosen[id] = true
			}
			var rest []string
			for _, id := range candidates {
				if !chosen[id] {
					rest = append(rest, id)
				}
			}
			env.SetObjects(op.Rest, rest)
		}
		return actNext, nil

	case OpMove:
		ids := r.objects(op, scope)
		if len(ids) == 0 {
			return r.skip(op, "nothing to move"), nil
		}
		var lineage map[string]string
		err := host.Batch(func() error {
			var err error
			lineage, err = host.MoveObjects(ids, *op.To, op.Position, scope.SourceID)
			return err
		})
		if err != nil {
			return actNext, err
		}
		for _, oldID := range ids {
			if newID, ok := lineage[oldID]; ok {
				env.Rename(oldID, newID)
			}
		}
		return actNext, nil

	case OpChooseTarget:
		view := host.View()
		legal := host.LegalTargets(*op.Target, scope.filterContext(view))
		if len(legal) == 0 {
			r.bindRefs(op.As, nil)
			return r.skip(op, "no legal targets"), nil
		}
		lo, hi := op.Target.Bounds()
		hi = min(hi, len(legal))
		lo = min(lo, hi)
		resp, ok, err := r.decide(Decision{
			Kind:    DecisionChooseTargets,
			Player:  r.chooser(op, scope),
			Prompt:  op.Target.String(),
			Min:     lo,
			Max:     hi,
			Options: legal,
			Source:  scope.SourceID,
		})
		if err != nil || !ok {
			return actSuspend, err
		}
		r.bindRefs(op.As, resp.Selected)
		return actNext, nil

	case OpDealDamage:
		v, _ := env.Get(op.From)
		recipients := r.existing(v.Refs())
		amount := op.Amount.Eval(host, scope)
		if len(recipients) == 0 || amount <= 0 {
			return r.skip(op, "no damage to deal"), nil
		}
		return actNext, host.Batch(func() error {
			return host.DealDamage(scope.SourceID, recipients, amount)
		})

	case OpApplyEffect:
		mod := cloneModification(*op.Mod)
		if op.Amount != nil {
			mod.Amount = op.Amount.Eval(host, scope)
		}
		if op.RedirectFrom != "" {
			v, _ := env.Get(op.RedirectFrom)
			to := r.existing(v.Refs())
			if len(to) == 0 {
				return r.skip(op, "redirect recipient is gone"), nil
			}
			mod.RedirectTo = to[0]
		}
		if mod.Kind == effects.ModChangeControl && mod.Controller == "" {
			mod.Controller = scope.Controller
		}
		selector := effects.Selector{Filter: op.Filter}
		if op.From != "" {
			v, _ := env.Get(op.From)
			selector.IDs = r.existing(v.Refs())
			if len(selector.IDs) == 0 {
				return r.skip(op, "effect has nothing to apply to"), nil
			}
		}
		duration := op.Duration
		if duration == "" {
			duration = effects.DurationEndOfTurn
		}
		return actNext, host.Batch(func() error {
			_, err := host.AddEffect(scope.SourceID, scope.Controller, selector, mod, duration)
			return err
		})

	case OpDraw, OpGainLife, OpLoseLife:
		players := op.Player.Resolve(host, scope)
		n := op.Amount.Eval(host, scope)
		if len(players) == 0 || n <= 0 {
			return r.skip(op, "nothing to do"), nil
		}
		return actNext, host.Batch(func() error {
			for _, p := range players {
				var err error
				switch op.Kind {
				case OpDraw:
					err = host.Draw(p, n)
				case OpGainLife:
					err = host.GainLife(p, n)
				default:
					err = host.LoseLife(p, n)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})

	case OpTap, OpUntap, OpDestroy, OpAddCounters:
		ids := r.objects(op, scope)
		if len(ids) == 0 {
			return r.skip(op, "no objects"), nil
		}
		return actNext, host.Batch(func() error {
			switch op.Kind {
			case OpTap:
				return host.SetTapped(ids, true)
			case OpUntap:
				return host.SetTapped(ids, false)
			case OpDestroy:
				return host.Destroy(ids, scope.SourceID)
			default:
				return host.AddCounters(ids, op.Counter, op.Amount.EvalOr(host, scope, 1))
			}
		})

	case OpCounterSpell:
		ids := env.Objects(op.From)
		var alive []string
		for _, id := range ids {
			if host.StackItemAlive(id) {
				alive = append(alive, id)
			}
		}
		if len(alive) == 0 {
			return r.skip(op, "spell already left the stack"), nil
		}
		return actNext, host.Batch(func() error {
			for _, id := range alive {
				if err := host.CounterStackItem(id); err != nil {
					return err
				}
			}
			return nil
		})

	case OpShuffle:
		players := op.Player.Resolve(host, scope)
		return actNext, host.Batch(func() error {
			for _, p := range players {
				if err := host.Shuffle(p); err != nil {
					return err
				}
			}
			return nil
		})

	case OpFlipCoin:
		var won bool
		err := host.Batch(func() error {
			var err error
			won, err = host.FlipCoin(r.chooser(op, scope))
			return err
		})
		if err != nil {
			return actNext, err
		}
		env.SetFlag(op.As, won)
		return actNext, nil

	case OpAddMana:
		players := op.Player.Resolve(host, scope)
		return actNext, host.Batch(func() error {
			for _, p := range players {
				if err := host.AddMana(p, op.Mana); err != nil {
					return err
				}
			}
			return nil
		})

	case OpCreateDelayedTrigger:
		frame := r.cont.Frames[fi]
		path := make([]int, 0, len(r.cont.Root)+len(frame.Path)+2)
		path = append(append(append(path, r.cont.Root...), frame.Path...), frame.PC, 0)
		spec := DelayedSpec{
			Pattern:    *op.Trigger,
			Origin:     r.cont.Ability,
			Path:       path,
			Env:        env.Clone(),
			SourceID:   scope.SourceID,
			Controller: scope.Controller,
		}
		if op.Trigger.Object != "" {
			spec.Subjects = r.existing(env.Objects(op.Trigger.Object))
			if len(spec.Subjects) == 0 {
				return r.skip(op, "delayed trigger subject is gone"), nil
			}
		}
		return actNext, host.RegisterDelayed(spec)

	case OpSequence:
		return r.push(fi, 0, Frame{}), nil

	case OpIf:
		if op.Cond.Eval(host, scope) {
			return r.push(fi, 0, Frame{}), nil
		}
		if op.Abort {
			return actAbort, nil
		}
		if len(op.Else) > 0 {
			return r.push(fi, 1, Frame{}), nil
		}
		return r.skip(op, "condition false"), nil

	case OpForEach:
		v, _ := env.Get(op.From)
		items := r.existing(v.Refs())
		if len(items) == 0 {
			return r.skip(op, "nothing to iterate"), nil
		}
		r.push(fi, 0, Frame{Items: items, Var: op.As})
		r.bindItem(&r.cont.Frames[len(r.cont.Frames)-1])
		return actPushed, nil

	case OpMay:
		resp, ok, err := r.decide(Decision{
			Kind:   DecisionYesNo,
			Player: r.chooser(op, scope),
			Prompt: op.Prompt,
			Source: scope.SourceID,
		})
		if err != nil || !ok {
			return actSuspend, err
		}
		if op.As != "" {
			env.SetFlag(op.As, resp.Yes)
		}
		if !resp.Yes {
			return r.skip(op, "declined"), nil
		}
		return r.push(fi, 0, Frame{}), nil

	case OpChooseOne:
		labels := make([]string, len(op.Options))
		for i, o := range op.Options {
			labels[i] = o.Label
		}
		resp, ok, err := r.decide(Decision{
			Kind:    DecisionChooseOne,
			Player:  r.chooser(op, scope),
			Prompt:  op.Prompt,
			Options: labels,
			Source:  scope.SourceID,
		})
		if err != nil || !ok {
			return actSuspend, err
		}
		return r.push(fi, resp.Choice, Frame{}), nil
	}
	return actNext, fmt.Errorf("%w: unknown op %q", rules.ErrInvariantViolation, op.Kind)
}

func cloneModification(m effects.Modification) effects.Modification {
	m.Types = append([]string(nil), m.Types...)
	m.Subtypes = append([]string(nil), m.Subtypes...)
	m.Colors = append([]string(nil), m.Colors...)
	m.Keywords = append([]string(nil), m.Keywords...)
	return m
}
