// Package pipeline interprets card effect programs. A program is a list of
// primitives drawn from a closed set; execution can suspend on a player
// decision and resume later from a serializable continuation.
package pipeline

import (
	"fmt"

	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/rules"
	"github.com/magefree/mage-rules-go/internal/game/targeting"
)

// OpKind names a primitive or combinator.
type OpKind string

const (
	OpGather               OpKind = "gather"
	OpSelect               OpKind = "select"
	OpMove                 OpKind = "move"
	OpChooseTarget         OpKind = "choose_target"
	OpDealDamage           OpKind = "deal_damage"
	OpApplyEffect          OpKind = "apply_effect"
	OpDraw                 OpKind = "draw"
	OpGainLife             OpKind = "gain_life"
	OpLoseLife             OpKind = "lose_life"
	OpTap                  OpKind = "tap"
	OpUntap                OpKind = "untap"
	OpDestroy              OpKind = "destroy"
	OpAddCounters          OpKind = "add_counters"
	OpCounterSpell         OpKind = "counter_spell"
	OpShuffle              OpKind = "shuffle"
	OpFlipCoin             OpKind = "flip_coin"
	OpCreateDelayedTrigger OpKind = "create_delayed_trigger"
	OpAddMana              OpKind = "add_mana"

	OpSequence  OpKind = "sequence"
	OpIf        OpKind = "if"
	OpForEach   OpKind = "for_each"
	OpMay       OpKind = "may"
	OpChooseOne OpKind = "choose_one"
)

// Library positions for move.
const (
	PositionTop    = "top"
	PositionBottom = "bottom"
)

// Option is one mode of a choose_one.
type Option struct {
	Label string  `json:"label" yaml:"label"`
	Do    Program `json:"do" yaml:"do"`
}

// Op is one step of a program. Kind selects which fields are read.
type Op struct {
	Kind OpKind `json:"op" yaml:"op"`

	// As names the binding an op writes; From the binding it reads.
	As   string `json:"as,omitempty" yaml:"as,omitempty"`
	From string `json:"from,omitempty" yaml:"from,omitempty"`
	Rest string `json:"rest,omitempty" yaml:"rest,omitempty"`

	Player   PlayerRef       `json:"player,omitempty" yaml:"player,omitempty"`
	Zone     *rules.ZoneKind `json:"zone,omitempty" yaml:"zone,omitempty"`
	To       *rules.ZoneKind `json:"to,omitempty" yaml:"to,omitempty"`
	Position string          `json:"position,omitempty" yaml:"position,omitempty"`
	Filter   *effects.Filter `json:"filter,omitempty" yaml:"filter,omitempty"`

	Amount *Amount `json:"amount,omitempty" yaml:"amount,omitempty"`
	Count  *Amount `json:"count,omitempty" yaml:"count,omitempty"`
	Min    *Amount `json:"min,omitempty" yaml:"min,omitempty"`
	Max    *Amount `json:"max,omitempty" yaml:"max,omitempty"`

	Target   *targeting.TargetRequirement `json:"target,omitempty" yaml:"target,omitempty"`
	Mod      *effects.Modification        `json:"mod,omitempty" yaml:"mod,omitempty"`
	Duration effects.Duration             `json:"duration,omitempty" yaml:"duration,omitempty"`
	// RedirectFrom names the binding whose first reference receives redirected damage.
	RedirectFrom string   `json:"redirect_from,omitempty" yaml:"redirect_from,omitempty"`
	Counter      string   `json:"counter,omitempty" yaml:"counter,omitempty"`
	Mana         string   `json:"mana,omitempty" yaml:"mana,omitempty"`
	Trigger      *Pattern `json:"trigger,omitempty" yaml:"trigger,omitempty"`

	Prompt  string     `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Cond    *Condition `json:"cond,omitempty" yaml:"cond,omitempty"`
	Abort   bool       `json:"abort,omitempty" yaml:"abort,omitempty"`
	Do      Program    `json:"do,omitempty" yaml:"do,omitempty"`
	Else    Program    `json:"else,omitempty" yaml:"else,omitempty"`
	Options []Option   `json:"options,omitempty" yaml:"options,omitempty"`
}

// Program is an ordered list of ops.
type Program []Op

// Block returns child block i of a combinator. Block 0 is Do (or the first
// option of choose_one), block 1 is Else.
func (op *Op) Block(i int) (Program, bool) {
	switch op.Kind {
	case OpChooseOne:
		if i < 0 || i >= len(op.Options) {
			return nil, false
		}
		return op.Options[i].Do, true
	case OpIf:
		switch i {
		case 0:
			return op.Do, true
		case 1:
			return op.Else, true
		}
	case OpSequence, OpForEach, OpMay, OpCreateDelayedTrigger:
		if i == 0 {
			return op.Do, true
		}
	}
	return nil, false
}

// Locate returns the block addressed by path, a flattened list of
// (op index, block index) pairs from the root.
func Locate(program Program, path []int) (Program, error) {
	if len(path)%2 != 0 {
		return nil, fmt.Errorf("%w: odd program path %v", rules.ErrInvariantViolation, path)
	}
	block := program
	for i := 0; i < len(path); i += 2 {
		opIndex, blockIndex := path[i], path[i+1]
		if opIndex < 0 || opIndex >= len(block) {
			return nil, fmt.Errorf("%w: program path %v out of range", rules.ErrInvariantViolation, path)
		}
		child, ok := block[opIndex].Block(blockIndex)
		if !ok {
			return nil, fmt.Errorf("%w: op %s has no block %d", rules.ErrInvariantViolation, block[opIndex].Kind, blockIndex)
		}
		block = child
	}
	return block, nil
}

// Validate checks a program statically. predefined lists the bindings the
// engine supplies before the program starts.
func (p Program) Validate(predefined ...string) error {
	defined := make(map[string]bool, len(predefined))
	for _, name := range predefined {
		defined[name] = true
	}
	return p.validate(defined)
}

func (p Program) validate(defined map[string]bool) error {
	for i := range p {
		if err := p[i].validate(defined); err != nil {
			return fmt.Errorf("op %d (%s): %w", i, p[i].Kind, err)
		}
	}
	return nil
}

func (op *Op) validate(defined map[string]bool) error {
	needsFrom := func() error {
		if op.From == "" {
			return fmt.Errorf("missing from")
		}
		if !defined[op.From] {
			return fmt.Errorf("binding %q used before it is defined", op.From)
		}
		return nil
	}
	needsAs := func() error {
		if op.As == "" {
			return fmt.Errorf("missing as")
		}
		defined[op.As] = true
		return nil
	}
	fromOrFilter := func() error {
		if op.From == "" && op.Filter == nil {
			return fmt.Errorf("needs from or filter")
		}
		if op.From != "" {
			return needsFrom()
		}
		return nil
	}
	if op.Player != "" && !op.Player.builtin() && !defined[string(op.Player)] {
		return fmt.Errorf("player binding %q used before it is defined", op.Player)
	}
	if err := op.Amount.validate(defined); err != nil {
		return err
	}

	switch op.Kind {
	case OpGather:
		return needsAs()
	case OpSelect:
		if err := needsFrom(); err != nil {
			return err
		}
		if op.Rest != "" {
			defined[op.Rest] = true
		}
		return needsAs()
	case OpMove:
		if op.To == nil {
			return fmt.Errorf("missing to")
		}
		if op.Position != "" && op.Position != PositionTop && op.Position != PositionBottom {
			return fmt.Errorf("unknown position %q", op.Position)
		}
		return needsFrom()
	case OpChooseTarget:
		if op.Target == nil {
			return fmt.Errorf("missing target")
		}
		if err := op.Target.Validate(); err != nil {
			return err
		}
		return needsAs()
	case OpDealDamage:
		if op.Amount == nil {
			return fmt.Errorf("missing amount")
		}
		return needsFrom()
	case OpApplyEffect:
		if op.Mod == nil {
			return fmt.Errorf("missing mod")
		}
		if err := op.Mod.Validate(); err != nil {
			return err
		}
		if op.Duration != "" && !op.Duration.Valid() {
			return fmt.Errorf("unknown duration %q", op.Duration)
		}
		if op.RedirectFrom != "" && !defined[op.RedirectFrom] {
			return fmt.Errorf("binding %q used before it is defined", op.RedirectFrom)
		}
		return fromOrFilter()
	case OpDraw, OpGainLife, OpLoseLife:
		if op.Amount == nil {
			return fmt.Errorf("missing amount")
		}
		return nil
	case OpTap, OpUntap, OpDestroy:
		return fromOrFilter()
	case OpAddCounters:
		if op.Counter == "" {
			return fmt.Errorf("missing counter")
		}
		return fromOrFilter()
	case OpCounterSpell:
		return needsFrom()
	case OpShuffle:
		return nil
	case OpFlipCoin:
		return needsAs()
	case OpAddMana:
		if op.Mana == "" {
			return fmt.Errorf("missing mana")
		}
		return nil
	case OpCreateDelayedTrigger:
		if op.Trigger == nil {
			return fmt.Errorf("missing trigger")
		}
		if err := op.Trigger.Validate(); err != nil {
			return err
		}
		if op.Trigger.Object != "" && !defined[op.Trigger.Object] {
			return fmt.Errorf("binding %q used before it is defined", op.Trigger.Object)
		}
		inner := make(map[string]bool, len(defined)+len(EventBindings))
		for name := range defined {
			inner[name] = true
		}
		for _, name := range EventBindings {
			inner[name] = true
		}
		return op.Do.validate(inner)
	case OpSequence, OpMay:
		return op.Do.validate(defined)
	case OpIf:
		if op.Cond == nil {
			return fmt.Errorf("missing cond")
		}
		if err := op.Cond.validate(defined); err != nil {
			return err
		}
		if err := op.Do.validate(defined); err != nil {
			return err
		}
		return op.Else.validate(defined)
	case OpForEach:
		if err := needsFrom(); err != nil {
			return err
		}
		if err := needsAs(); err != nil {
			return err
		}
		return op.Do.validate(defined)
	case OpChooseOne:
		if len(op.Options) == 0 {
			return fmt.Errorf("choose_one needs options")
		}
		for i := range op.Options {
			if err := op.Options[i].Do.validate(defined); err != nil {
				return fmt.Errorf("option %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown op %q", op.Kind)
	}
}
