package effects

import (
	"fmt"
	"strings"

	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// Layer corresponds to the rules layers for continuous effects. LayerRules
// holds effects that change game rules rather than characteristics
// (cost adjustments, damage redirection, attack restrictions).
type Layer int

const (
	LayerCopy Layer = 1 + iota
	LayerControl
	LayerText
	LayerType
	LayerColor
	LayerAbility
	LayerPowerToughness
	LayerRules
)

var layerNames = map[Layer]string{
	LayerCopy:           "copy",
	LayerControl:        "control",
	LayerText:           "text",
	LayerType:           "type",
	LayerColor:          "color",
	LayerAbility:        "ability",
	LayerPowerToughness: "power_toughness",
	LayerRules:          "rules",
}

func (l Layer) String() string {
	if name, ok := layerNames[l]; ok {
		return name
	}
	return fmt.Sprintf("layer_%d", int(l))
}

// Sublayer orders power/toughness effects inside LayerPowerToughness.
type Sublayer int

const (
	SublayerNone Sublayer = iota
	SublayerSet
	SublayerModify
	SublayerSwitch
)

// ModKind is the closed set of continuous modifications.
type ModKind string

const (
	ModChangeControl    ModKind = "change_control"
	ModAddTypes         ModKind = "add_types"
	ModRemoveTypes      ModKind = "remove_types"
	ModSetTypes         ModKind = "set_types"
	ModSetColors        ModKind = "set_colors"
	ModAddKeywords      ModKind = "add_keywords"
	ModRemoveKeywords   ModKind = "remove_keywords"
	ModLoseAllAbilities ModKind = "lose_all_abilities"
	ModSetPT            ModKind = "set_pt"
	ModStatDelta        ModKind = "stat_delta"
	ModSwitchPT         ModKind = "switch_pt"
	ModCostAdjust       ModKind = "cost_adjust"
	ModRedirectDamage   ModKind = "redirect_damage"
	ModPreventDamage    ModKind = "prevent_damage"
	ModCantAttack       ModKind = "cant_attack"
	ModCantBlock        ModKind = "cant_block"
)

var modLayers = map[ModKind]struct {
	layer Layer
	sub   Sublayer
}{
	ModChangeControl:    {LayerControl, SublayerNone},
	ModAddTypes:         {LayerType, SublayerNone},
	ModRemoveTypes:      {LayerType, SublayerNone},
	ModSetTypes:         {LayerType, SublayerNone},
	ModSetColors:        {LayerColor, SublayerNone},
	ModAddKeywords:      {LayerAbility, SublayerNone},
	ModRemoveKeywords:   {LayerAbility, SublayerNone},
	ModLoseAllAbilities: {LayerAbility, SublayerNone},
	ModSetPT:            {LayerPowerToughness, SublayerSet},
	ModStatDelta:        {LayerPowerToughness, SublayerModify},
	ModSwitchPT:         {LayerPowerToughness, SublayerSwitch},
	ModCostAdjust:       {LayerRules, SublayerNone},
	ModRedirectDamage:   {LayerRules, SublayerNone},
	ModPreventDamage:    {LayerRules, SublayerNone},
	ModCantAttack:       {LayerRules, SublayerNone},
	ModCantBlock:        {LayerRules, SublayerNone},
}

// Valid reports whether the kind is part of the closed set.
func (k ModKind) Valid() bool {
	_, ok := modLayers[k]
	return ok
}

// Layer returns the layer the modification applies in.
func (k ModKind) Layer() Layer {
	return modLayers[k].layer
}

// Sublayer returns the power/toughness sublayer, or SublayerNone.
func (k ModKind) Sublayer() Sublayer {
	return modLayers[k].sub
}

// IsReplacement reports whether the modification is applied to damage events
// instead of characteristics.
func (k ModKind) IsReplacement() bool {
	return k == ModRedirectDamage || k == ModPreventDamage
}

// Modification is the tagged payload of a continuous effect. Only the fields
// relevant to Kind are read.
type Modification struct {
	Kind       ModKind  `json:"kind" yaml:"kind"`
	Power      int      `json:"power,omitempty" yaml:"power,omitempty"`
	Toughness  int      `json:"toughness,omitempty" yaml:"toughness,omitempty"`
	Types      []string `json:"types,omitempty" yaml:"types,omitempty"`
	Subtypes   []string `json:"subtypes,omitempty" yaml:"subtypes,omitempty"`
	Colors     []string `json:"colors,omitempty" yaml:"colors,omitempty"`
	Keywords   []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Amount     int      `json:"amount,omitempty" yaml:"amount,omitempty"`
	RedirectTo string   `json:"redirect_to,omitempty" yaml:"redirect_to,omitempty"`
	Controller string   `json:"controller,omitempty" yaml:"controller,omitempty"`
}

// Validate checks that the payload carries what its kind needs.
func (m Modification) Validate() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("unknown modification kind %q", m.Kind)
	}
	switch m.Kind {
	case ModAddTypes, ModRemoveTypes:
		if len(m.Types)+len(m.Subtypes) == 0 {
			return fmt.Errorf("%s needs types or subtypes", m.Kind)
		}
	case ModAddKeywords, ModRemoveKeywords:
		if len(m.Keywords) == 0 {
			return fmt.Errorf("%s needs keywords", m.Kind)
		}
	case ModCostAdjust:
		if m.Amount == 0 {
			return fmt.Errorf("%s needs a non-zero amount", m.Kind)
		}
	}
	return nil
}

// Selector picks the objects a continuous effect applies to: a fixed id set,
// a filter re-evaluated on every projection, or both (ids are matched first).
type Selector struct {
	IDs    []string `json:"ids,omitempty" yaml:"ids,omitempty"`
	Filter *Filter  `json:"filter,omitempty" yaml:"filter,omitempty"`
}

// Includes reports whether id is selected.
func (s Selector) Includes(view *View, id string, ctx FilterContext) bool {
	for _, fixed := range s.IDs {
		if fixed == id {
			return true
		}
	}
	if s.Filter == nil {
		return false
	}
	c, ok := view.Get(id)
	if !ok {
		return false
	}
	return s.Filter.Matches(c, ctx)
}

// Select returns the selected object ids present in the view, sorted.
func (s Selector) Select(view *View, ctx FilterContext) []string {
	selected := make([]string, 0)
	seen := make(map[string]bool)
	for _, id := range s.IDs {
		if _, ok := view.Get(id); ok && !seen[id] {
			selected = append(selected, id)
			seen[id] = true
		}
	}
	if s.Filter != nil {
		for _, id := range view.IDs() {
			if seen[id] {
				continue
			}
			c, _ := view.Get(id)
			if s.Filter.Matches(c, ctx) {
				selected = append(selected, id)
			}
		}
	}
	return selected
}

// FloatingEffect is a time-bounded continuous modification.
type FloatingEffect struct {
	ID         string       `json:"id"`
	SourceID   string       `json:"source_id"`
	Controller string       `json:"controller"`
	Timestamp  int64        `json:"timestamp"`
	Layer      Layer        `json:"layer"`
	Selector   Selector     `json:"selector"`
	Mod        Modification `json:"mod"`
	Duration   Duration     `json:"duration"`
	// Remaining is the unused amount of a one-use shield.
	Remaining int `json:"remaining,omitempty"`
}

// NewFloatingEffect builds an effect with its layer derived from the modification.
func NewFloatingEffect(id, sourceID, controller string, timestamp int64, selector Selector, mod Modification, duration Duration) FloatingEffect {
	fe := FloatingEffect{
		ID:         id,
		SourceID:   sourceID,
		Controller: controller,
		Timestamp:  timestamp,
		Layer:      mod.Kind.Layer(),
		Selector:   selector,
		Mod:        mod,
		Duration:   duration,
	}
	if duration == DurationOneUse {
		fe.Remaining = mod.Amount
	}
	return fe
}

// StaticAbility is an always-on modification declared by a card. It is active
// while its source is in one of Zones (battlefield when empty).
type StaticAbility struct {
	Text   string           `json:"text,omitempty" yaml:"text,omitempty"`
	Zones  []rules.ZoneKind `json:"zones,omitempty" yaml:"zones,omitempty"`
	Filter *Filter          `json:"filter,omitempty" yaml:"filter,omitempty"`
	Mod    Modification     `json:"mod" yaml:"mod"`
}

// ActiveIn reports whether a source in zone grants this ability.
func (sa StaticAbility) ActiveIn(zone rules.ZoneKind) bool {
	if len(sa.Zones) == 0 {
		return zone == rules.ZoneBattlefield
	}
	for _, z := range sa.Zones {
		if z == zone {
			return true
		}
	}
	return false
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
