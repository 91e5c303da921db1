package pipeline

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// Scope is what a running program knows about itself.
type Scope struct {
	SourceID   string
	Controller string
	Env        rules.Bindings
}

func (s Scope) filterContext(view *effects.View) effects.FilterContext {
	ctx := effects.FilterContext{SourceID: s.SourceID, Controller: s.Controller}
	if src, ok := view.Get(s.SourceID); ok {
		ctx.AttachedTo = src.AttachedTo
	}
	return ctx
}

// Amount is a number computed at execution time. All set parts are summed.
// In YAML a plain integer is shorthand for {value: n}.
type Amount struct {
	Value int `json:"value,omitempty" yaml:"value,omitempty"`
	// Var reads a number binding.
	Var string `json:"var,omitempty" yaml:"var,omitempty"`
	// Count counts the references in a binding.
	Count string `json:"count,omitempty" yaml:"count,omitempty"`
	// Power reads the power of the first object in a binding.
	Power string `json:"power,omitempty" yaml:"power,omitempty"`
	// Stat reads a game statistic for the controller (see Host.Stat).
	Stat string `json:"stat,omitempty" yaml:"stat,omitempty"`
}

// Fixed returns a constant amount.
func Fixed(n int) *Amount {
	return &Amount{Value: n}
}

// UnmarshalYAML accepts a scalar or a mapping.
func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		n, err := strconv.Atoi(node.Value)
		if err != nil {
			return fmt.Errorf("amount %q: %w", node.Value, err)
		}
		*a = Amount{Value: n}
		return nil
	}
	type plain Amount
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*a = Amount(p)
	return nil
}

// Eval computes the amount. A nil amount is zero.
func (a *Amount) Eval(host Host, scope Scope) int {
	if a == nil {
		return 0
	}
	total := a.Value
	if a.Var != "" {
		total += scope.Env.Number(a.Var)
	}
	if a.Count != "" {
		v, _ := scope.Env.Get(a.Count)
		total += len(v.Refs())
	}
	if a.Power != "" {
		if ids := scope.Env.Objects(a.Power); len(ids) > 0 {
			if c, ok := host.View().Get(ids[0]); ok {
				total += c.Power
			}
		}
	}
	if a.Stat != "" {
		total += host.Stat(a.Stat, scope.Controller)
	}
	return total
}

// EvalOr evaluates the amount or returns def when it is nil.
func (a *Amount) EvalOr(host Host, scope Scope, def int) int {
	if a == nil {
		return def
	}
	return a.Eval(host, scope)
}

func (a *Amount) validate(defined map[string]bool) error {
	if a == nil {
		return nil
	}
	for _, name := range []string{a.Var, a.Count, a.Power} {
		if name != "" && !defined[name] {
			return fmt.Errorf("binding %q used before it is defined", name)
		}
	}
	return nil
}

// PlayerRef names the player(s) an op affects. Values other than the
// builtins name a binding holding players (or objects, meaning their
// controllers).
type PlayerRef string

const (
	PlayerYou       PlayerRef = "you"
	PlayerOpponent  PlayerRef = "opponent"
	PlayerOpponents PlayerRef = "opponents"
	PlayerEach      PlayerRef = "each"
	PlayerActive    PlayerRef = "active"
)

func (p PlayerRef) builtin() bool {
	switch p {
	case "", PlayerYou, PlayerOpponent, PlayerOpponents, PlayerEach, PlayerActive:
		return true
	}
	return false
}

// Resolve returns the referenced players in APNAP order of the host.
func (p PlayerRef) Resolve(host Host, scope Scope) []string {
	players := host.Players()
	switch p {
	case "", PlayerYou:
		return []string{scope.Controller}
	case PlayerEach:
		return players
	case PlayerActive:
		if len(players) == 0 {
			return nil
		}
		return players[:1]
	case PlayerOpponent, PlayerOpponents:
		var opponents []string
		for _, player := range players {
			if player != scope.Controller {
				opponents = append(opponents, player)
			}
		}
		if p == PlayerOpponent && len(opponents) > 1 {
			return opponents[:1]
		}
		return opponents
	}
	v, _ := scope.Env.Get(string(p))
	out := append([]string(nil), v.Players...)
	view := host.View()
	for _, id := range v.Objects {
		if c, ok := view.Get(id); ok {
			out = append(out, c.Controller)
		}
	}
	return out
}

// CondKind names a condition.
type CondKind string

const (
	CondNotEmpty      CondKind = "not_empty"
	CondEmpty         CondKind = "empty"
	CondFlag          CondKind = "flag"
	CondCompare       CondKind = "compare"
	CondControls      CondKind = "controls"
	CondSourcePresent CondKind = "source_present"
	CondAll           CondKind = "all"
	CondAny           CondKind = "any"
	CondNot           CondKind = "not"
)

// Condition is a closed predicate used by if and by trigger preconditions.
type Condition struct {
	Kind    CondKind        `json:"kind" yaml:"kind"`
	Binding string          `json:"binding,omitempty" yaml:"binding,omitempty"`
	Filter  *effects.Filter `json:"filter,omitempty" yaml:"filter,omitempty"`
	Left    *Amount         `json:"left,omitempty" yaml:"left,omitempty"`
	Cmp     string          `json:"cmp,omitempty" yaml:"cmp,omitempty"`
	Right   *Amount         `json:"right,omitempty" yaml:"right,omitempty"`
	Of      []Condition     `json:"of,omitempty" yaml:"of,omitempty"`
}

// Eval evaluates the condition against the current state.
func (c *Condition) Eval(host Host, scope Scope) bool {
	if c == nil {
		return true
	}
	switch c.Kind {
	case CondNotEmpty:
		v, _ := scope.Env.Get(c.Binding)
		return !v.IsEmpty()
	case CondEmpty:
		v, _ := scope.Env.Get(c.Binding)
		return v.IsEmpty()
	case CondFlag:
		return scope.Env.Flag(c.Binding)
	case CondCompare:
		return compare(c.Left.Eval(host, scope), c.Cmp, c.Right.Eval(host, scope))
	case CondControls:
		view := host.View()
		ctx := scope.filterContext(view)
		for _, id := range view.Matching(c.Filter, ctx) {
			if obj, _ := view.Get(id); obj.Controller == scope.Controller {
				return true
			}
		}
		return false
	case CondSourcePresent:
		src, ok := host.View().Get(scope.SourceID)
		return ok && src.Zone == rules.ZoneBattlefield
	case CondAll:
		for i := range c.Of {
			if !c.Of[i].Eval(host, scope) {
				return false
			}
		}
		return true
	case CondAny:
		for i := range c.Of {
			if c.Of[i].Eval(host, scope) {
				return true
			}
		}
		return false
	case CondNot:
		return len(c.Of) == 1 && !c.Of[0].Eval(host, scope)
	}
	return false
}

func compare(left int, cmp string, right int) bool {
	switch cmp {
	case "<":
		return left < right
	case "<=":
		return left <= right
	case ">":
		return left > right
	case ">=", "":
		return left >= right
	case "==":
		return left == right
	case "!=":
		return left != right
	}
	return false
}

func (c *Condition) validate(defined map[string]bool) error {
	switch c.Kind {
	case CondNotEmpty, CondEmpty, CondFlag:
		if !defined[c.Binding] {
			return fmt.Errorf("condition binding %q used before it is defined", c.Binding)
		}
	case CondCompare:
		switch c.Cmp {
		case "", "<", "<=", ">", ">=", "==", "!=":
		default:
			return fmt.Errorf("unknown comparison %q", c.Cmp)
		}
		if err := c.Left.validate(defined); err != nil {
			return err
		}
		return c.Right.validate(defined)
	case CondControls, CondSourcePresent:
	case CondAll, CondAny, CondNot:
		if c.Kind == CondNot && len(c.Of) != 1 {
			return fmt.Errorf("not takes exactly one condition")
		}
		for i := range c.Of {
			if err := c.Of[i].validate(defined); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown condition %q", c.Kind)
	}
	return nil
}
