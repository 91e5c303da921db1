package effects

import (
	"sort"

	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// ObjectInput is one object handed to the projector: its printed
// characteristics plus current status, and the static abilities it declares.
type ObjectInput struct {
	Base    Characteristics
	Statics []StaticAbility
}

// Input is everything Project reads. It is never modified.
type Input struct {
	Objects     []ObjectInput
	Floating    []FloatingEffect
	PlayerOrder []string
}

type layerStep struct {
	layer Layer
	sub   Sublayer
}

var layerOrder = []layerStep{
	{LayerCopy, SublayerNone},
	{LayerControl, SublayerNone},
	{LayerText, SublayerNone},
	{LayerType, SublayerNone},
	{LayerColor, SublayerNone},
	{LayerAbility, SublayerNone},
	{LayerPowerToughness, SublayerSet},
	{LayerPowerToughness, SublayerModify},
	{LayerPowerToughness, SublayerSwitch},
	{LayerRules, SublayerNone},
}

// appliedEffect unifies statics and floating effects for ordering.
type appliedEffect struct {
	id         string
	sourceID   string
	controller string
	static     bool
	timestamp  int64
	rank       int
	index      int
	selector   Selector
	mod        Modification
}

func (e *appliedEffect) context(view *View) FilterContext {
	ctx := FilterContext{SourceID: e.sourceID, Controller: e.controller}
	if src, ok := view.Get(e.sourceID); ok {
		if e.static {
			ctx.Controller = src.Controller
		}
		ctx.AttachedTo = src.AttachedTo
	}
	return ctx
}

// suppressed reports whether a static no longer exists because its source
// has lost its abilities. From layer 6 on this also covers a lose-all effect
// applied earlier in the same layer, which makes the static depend on it.
func (e *appliedEffect) suppressed(view *View) bool {
	if !e.static || e.mod.Kind.Layer() < LayerAbility {
		return false
	}
	src, ok := view.Get(e.sourceID)
	return ok && src.LostAbilities
}

func (e *appliedEffect) targets(view *View) []string {
	if e.suppressed(view) {
		return nil
	}
	return e.selector.Select(view, e.context(view))
}

func (e *appliedEffect) apply(view *View) {
	ctx := e.context(view)
	for _, id := range e.targets(view) {
		c, _ := view.Get(id)
		applyModification(c, e.mod, ctx)
	}
}

func (e *appliedEffect) before(o *appliedEffect) bool {
	if e.timestamp != o.timestamp {
		return e.timestamp < o.timestamp
	}
	if e.rank != o.rank {
		return e.rank < o.rank
	}
	if e.sourceID != o.sourceID {
		return e.sourceID < o.sourceID
	}
	if e.index != o.index {
		return e.index < o.index
	}
	return e.id < o.id
}

// Project computes the characteristics of every object by applying all
// active continuous effects in layer order. Within a layer, an effect that
// depends on another applies after it; otherwise effects apply in timestamp
// order. Project is a pure function of its input.
func Project(in Input) *View {
	objects := make([]*Characteristics, 0, len(in.Objects))
	for i := range in.Objects {
		objects = append(objects, in.Objects[i].Base.Clone())
	}
	view := NewView(objects, in.PlayerOrder)
	active := collectEffects(in, view)

	for _, step := range layerOrder {
		var group []*appliedEffect
		for _, e := range active {
			if e.mod.Kind.Layer() == step.layer && e.mod.Kind.Sublayer() == step.sub {
				group = append(group, e)
			}
		}
		for _, e := range orderByDependency(group, view) {
			e.apply(view)
		}
		if step.layer == LayerPowerToughness && step.sub == SublayerModify {
			applyCounters(view)
		}
	}
	return view
}

func collectEffects(in Input, view *View) []*appliedEffect {
	var active []*appliedEffect
	for _, obj := range in.Objects {
		base := obj.Base
		for i, sa := range obj.Statics {
			if !sa.ActiveIn(base.Zone) || sa.Mod.Kind.IsReplacement() || !sa.Mod.Kind.Valid() {
				continue
			}
			selector := Selector{Filter: sa.Filter}
			if sa.Filter == nil {
				selector = Selector{IDs: []string{base.ID}}
			}
			active = append(active, &appliedEffect{
				id:         base.ID,
				sourceID:   base.ID,
				controller: base.Controller,
				static:     true,
				timestamp:  base.Timestamp,
				rank:       view.PlayerRank(base.Controller),
				index:      i,
				selector:   selector,
				mod:        sa.Mod,
			})
		}
	}
	for _, fe := range in.Floating {
		if fe.Mod.Kind.IsReplacement() || !fe.Mod.Kind.Valid() {
			continue
		}
		active = append(active, &appliedEffect{
			id:         fe.ID,
			sourceID:   fe.SourceID,
			controller: fe.Controller,
			timestamp:  fe.Timestamp,
			rank:       view.PlayerRank(fe.Controller),
			selector:   fe.Selector,
			mod:        fe.Mod,
		})
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].before(active[j]) })
	return active
}

// orderByDependency sorts one layer's effects. Effect A depends on B when
// applying B would change the set of objects A applies to. Dependencies are
// evaluated against the view as it stands at the start of the layer. A
// dependency cycle falls back to timestamp order for its members.
func orderByDependency(group []*appliedEffect, view *View) []*appliedEffect {
	if len(group) < 2 {
		return group
	}
	baseline := make([][]string, len(group))
	for i, e := range group {
		baseline[i] = e.targets(view)
	}
	dependsOn := make([][]bool, len(group))
	for i := range group {
		dependsOn[i] = make([]bool, len(group))
	}
	for j, b := range group {
		trial := view.Clone()
		b.apply(trial)
		for i, a := range group {
			if i == j {
				continue
			}
			if !sameIDs(a.targets(trial), baseline[i]) {
				dependsOn[i][j] = true
			}
		}
	}

	ordered := make([]*appliedEffect, 0, len(group))
	done := make([]bool, len(group))
	for len(ordered) < len(group) {
		pick := -1
		for i := range group {
			if done[i] || !ready(i, dependsOn, done) {
				continue
			}
			pick = i
			break
		}
		if pick < 0 {
			// cycle: group is sorted, so the first unapplied one is the earliest
			for i := range group {
				if !done[i] {
					pick = i
					break
				}
			}
		}
		done[pick] = true
		ordered = append(ordered, group[pick])
	}
	return ordered
}

func ready(i int, dependsOn [][]bool, done []bool) bool {
	for j, dep := range dependsOn[i] {
		if dep && !done[j] && !dependsOn[j][i] {
			return false
		}
	}
	return true
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func applyCounters(view *View) {
	for _, c := range view.objects {
		if c.Zone != rules.ZoneBattlefield || len(c.Counters) == 0 {
			continue
		}
		power, toughness := c.Counters.Boost()
		c.Power += power
		c.Toughness += toughness
	}
}

func applyModification(c *Characteristics, mod Modification, ctx FilterContext) {
	switch mod.Kind {
	case ModChangeControl:
		if mod.Controller != "" {
			c.Controller = mod.Controller
		} else {
			c.Controller = ctx.Controller
		}
	case ModAddTypes:
		c.Types = addFold(c.Types, mod.Types...)
		c.Subtypes = addFold(c.Subtypes, mod.Subtypes...)
	case ModRemoveTypes:
		c.Types = removeFold(c.Types, mod.Types...)
		c.Subtypes = removeFold(c.Subtypes, mod.Subtypes...)
	case ModSetTypes:
		c.Types = append([]string(nil), mod.Types...)
		c.Subtypes = append([]string(nil), mod.Subtypes...)
	case ModSetColors:
		c.Colors = append([]string(nil), mod.Colors...)
	case ModAddKeywords:
		c.Keywords = addFold(c.Keywords, mod.Keywords...)
	case ModRemoveKeywords:
		c.Keywords = removeFold(c.Keywords, mod.Keywords...)
	case ModLoseAllAbilities:
		c.Keywords = nil
		c.LostAbilities = true
	case ModSetPT:
		c.Power, c.Toughness = mod.Power, mod.Toughness
	case ModStatDelta:
		c.Power += mod.Power
		c.Toughness += mod.Toughness
	case ModSwitchPT:
		c.Power, c.Toughness = c.Toughness, c.Power
	case ModCostAdjust:
		c.CostDelta += mod.Amount
	case ModCantAttack, ModCantBlock:
		c.Restrictions = addFold(c.Restrictions, string(mod.Kind))
	}
}
