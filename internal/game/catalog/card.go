// Package catalog holds immutable card definitions. Cards are data: printed
// characteristics plus static abilities and effect programs.
package catalog

import (
	"fmt"

	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/mana"
	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	"github.com/magefree/mage-rules-go/internal/game/targeting"
)

// TargetSlot is one named target chosen when a spell is cast or an ability
// activated. The chosen ids are bound under Name.
type TargetSlot struct {
	Name        string                      `json:"name" yaml:"name"`
	Requirement targeting.TargetRequirement `json:"requirement" yaml:",inline"`
}

// TriggeredAbility fires its program when an event matches When.
type TriggeredAbility struct {
	Text    string           `json:"text,omitempty" yaml:"text,omitempty"`
	When    pipeline.Pattern `json:"when" yaml:"when"`
	Program pipeline.Program `json:"do" yaml:"do"`
}

// ActivatedAbility is paid for and put on the stack, unless it is a mana
// ability, which resolves immediately.
type ActivatedAbility struct {
	Text    string           `json:"text,omitempty" yaml:"text,omitempty"`
	Cost    string           `json:"cost,omitempty" yaml:"cost,omitempty"`
	Tap     bool             `json:"tap,omitempty" yaml:"tap,omitempty"`
	Mana    bool             `json:"mana,omitempty" yaml:"mana,omitempty"`
	Sorcery bool             `json:"sorcery,omitempty" yaml:"sorcery,omitempty"`
	Targets []TargetSlot     `json:"targets,omitempty" yaml:"targets,omitempty"`
	Program pipeline.Program `json:"do" yaml:"do"`
}

// Card is the printed definition of a card.
type Card struct {
	Name       string   `json:"name" yaml:"name"`
	ManaCost   string   `json:"mana_cost,omitempty" yaml:"mana_cost,omitempty"`
	Types      []string `json:"types" yaml:"types"`
	Subtypes   []string `json:"subtypes,omitempty" yaml:"subtypes,omitempty"`
	Supertypes []string `json:"supertypes,omitempty" yaml:"supertypes,omitempty"`
	Colors     []string `json:"colors,omitempty" yaml:"colors,omitempty"`
	Power      int      `json:"power,omitempty" yaml:"power,omitempty"`
	Toughness  int      `json:"toughness,omitempty" yaml:"toughness,omitempty"`
	Keywords   []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Text       string   `json:"text,omitempty" yaml:"text,omitempty"`

	Statics   []effects.StaticAbility `json:"statics,omitempty" yaml:"statics,omitempty"`
	Triggers  []TriggeredAbility      `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Activated []ActivatedAbility      `json:"activated,omitempty" yaml:"activated,omitempty"`
	// Enchant makes the card an aura: it is cast targeting what it will
	// enchant and goes to the graveyard once that stops being legal.
	Enchant *targeting.TargetRequirement `json:"enchant,omitempty" yaml:"enchant,omitempty"`
	Targets []TargetSlot                 `json:"targets,omitempty" yaml:"targets,omitempty"`
	Program pipeline.Program             `json:"program,omitempty" yaml:"program,omitempty"`
}

// EnchantSlot is the binding an aura's enchant target is stored under.
const EnchantSlot = "enchanted"

// Characteristics returns the printed characteristics of the card.
func (c *Card) Characteristics() effects.Characteristics {
	return effects.Characteristics{
		CardID:     c.Name,
		Name:       c.Name,
		Types:      append([]string(nil), c.Types...),
		Subtypes:   append([]string(nil), c.Subtypes...),
		Supertypes: append([]string(nil), c.Supertypes...),
		Colors:     append([]string(nil), c.Colors...),
		Keywords:   append([]string(nil), c.Keywords...),
		Power:      c.Power,
		Toughness:  c.Toughness,
		ManaCost:   c.ManaCost,
	}
}

// Cost parses the mana cost.
func (c *Card) Cost() (*mana.ManaCost, error) {
	return mana.ParseCost(c.ManaCost)
}

// IsLand reports whether the card is a land.
func (c *Card) IsLand() bool {
	ch := c.Characteristics()
	return ch.HasType(effects.TypeLand)
}

// IsPermanent reports whether the card resolves onto the battlefield.
func (c *Card) IsPermanent() bool {
	ch := c.Characteristics()
	return ch.IsPermanentCard()
}

// InstantSpeed reports whether the card can be cast whenever its controller has priority.
func (c *Card) InstantSpeed() bool {
	ch := c.Characteristics()
	return ch.HasType(effects.TypeInstant) || ch.HasKeyword(effects.KeywordFlash)
}

// CastSlots returns the targets chosen on cast, including the enchant target of an aura.
func (c *Card) CastSlots() []TargetSlot {
	slots := make([]TargetSlot, 0, len(c.Targets)+1)
	if c.Enchant != nil {
		slots = append(slots, TargetSlot{Name: EnchantSlot, Requirement: *c.Enchant})
	}
	return append(slots, c.Targets...)
}

// Validate checks the card definition and every program on it.
func (c *Card) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("card without a name")
	}
	if len(c.Types) == 0 {
		return fmt.Errorf("%s: card needs at least one type", c.Name)
	}
	if _, err := c.Cost(); err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	for i, sa := range c.Statics {
		if err := sa.Mod.Validate(); err != nil {
			return fmt.Errorf("%s: static %d: %w", c.Name, i, err)
		}
	}
	castNames, err := validateSlots(c.CastSlots())
	if err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	if c.IsPermanent() && len(c.Program) > 0 {
		return fmt.Errorf("%s: permanent cards have no spell program", c.Name)
	}
	if err := c.Program.Validate(append(castNames, pipeline.BindingSelf)...); err != nil {
		return fmt.Errorf("%s: spell program: %w", c.Name, err)
	}
	for i, ta := range c.Triggers {
		if err := ta.When.Validate(); err != nil {
			return fmt.Errorf("%s: trigger %d: %w", c.Name, i, err)
		}
		predefined := append([]string{pipeline.BindingSelf}, pipeline.EventBindings...)
		if err := ta.Program.Validate(predefined...); err != nil {
			return fmt.Errorf("%s: trigger %d: %w", c.Name, i, err)
		}
	}
	for i, aa := range c.Activated {
		if _, err := mana.ParseCost(aa.Cost); err != nil {
			return fmt.Errorf("%s: ability %d: %w", c.Name, i, err)
		}
		names, err := validateSlots(aa.Targets)
		if err != nil {
			return fmt.Errorf("%s: ability %d: %w", c.Name, i, err)
		}
		if aa.Mana && len(aa.Targets) > 0 {
			return fmt.Errorf("%s: ability %d: mana abilities cannot target", c.Name, i)
		}
		if err := aa.Program.Validate(append(names, pipeline.BindingSelf)...); err != nil {
			return fmt.Errorf("%s: ability %d: %w", c.Name, i, err)
		}
	}
	return nil
}

func validateSlots(slots []TargetSlot) ([]string, error) {
	names := make([]string, 0, len(slots))
	seen := make(map[string]bool, len(slots))
	for _, slot := range slots {
		if slot.Name == "" {
			return nil, fmt.Errorf("target slot without a name")
		}
		if seen[slot.Name] {
			return nil, fmt.Errorf("duplicate target slot %q", slot.Name)
		}
		seen[slot.Name] = true
		if err := slot.Requirement.Validate(); err != nil {
			return nil, fmt.Errorf("target %s: %w", slot.Name, err)
		}
		names = append(names, slot.Name)
	}
	return names, nil
}
