package effects

import (
	"strings"

	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// Relation constrains the controller (or owner) of a matched object relative
// to the player evaluating the filter.
type Relation string

const (
	RelationAny      Relation = ""
	RelationYou      Relation = "you"
	RelationOpponent Relation = "opponent"
)

// Matches reports whether player stands in relation r to you.
func (r Relation) Matches(player, you string) bool {
	switch r {
	case RelationYou:
		return player == you
	case RelationOpponent:
		return player != "" && player != you
	default:
		return true
	}
}

// FilterContext is the point of view a filter is evaluated from.
type FilterContext struct {
	SourceID   string
	Controller string
	// AttachedTo is the object the source is attached to, if any.
	AttachedTo string
}

// Filter is a declarative predicate over projected characteristics. Empty
// fields do not constrain. Objects must be on the battlefield unless Zones or
// AnyZone say otherwise.
type Filter struct {
	Types       []string         `json:"types,omitempty" yaml:"types,omitempty"`
	AnyTypes    []string         `json:"any_types,omitempty" yaml:"any_types,omitempty"`
	NotTypes    []string         `json:"not_types,omitempty" yaml:"not_types,omitempty"`
	Subtypes    []string         `json:"subtypes,omitempty" yaml:"subtypes,omitempty"`
	Supertypes  []string         `json:"supertypes,omitempty" yaml:"supertypes,omitempty"`
	Colors      []string         `json:"colors,omitempty" yaml:"colors,omitempty"`
	Keywords    []string         `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	NotKeywords []string         `json:"not_keywords,omitempty" yaml:"not_keywords,omitempty"`
	Name        string           `json:"name,omitempty" yaml:"name,omitempty"`
	Zones       []rules.ZoneKind `json:"zones,omitempty" yaml:"zones,omitempty"`
	AnyZone     bool             `json:"any_zone,omitempty" yaml:"any_zone,omitempty"`
	Controller  Relation         `json:"controller,omitempty" yaml:"controller,omitempty"`
	Owner       Relation         `json:"owner,omitempty" yaml:"owner,omitempty"`
	Self        bool             `json:"self,omitempty" yaml:"self,omitempty"`
	Other       bool             `json:"other,omitempty" yaml:"other,omitempty"`
	Attached    bool             `json:"attached,omitempty" yaml:"attached,omitempty"`
	Tapped      *bool            `json:"tapped,omitempty" yaml:"tapped,omitempty"`
	Attacking   bool             `json:"attacking,omitempty" yaml:"attacking,omitempty"`
	Blocking    bool             `json:"blocking,omitempty" yaml:"blocking,omitempty"`
	MaxPower    *int             `json:"max_power,omitempty" yaml:"max_power,omitempty"`
	Token       *bool            `json:"token,omitempty" yaml:"token,omitempty"`
}

// Matches evaluates the filter against c. A nil filter matches every
// battlefield object.
func (f *Filter) Matches(c *Characteristics, ctx FilterContext) bool {
	if c == nil {
		return false
	}
	if f == nil {
		return c.Zone == rules.ZoneBattlefield
	}
	if !f.AnyZone && !f.matchesZone(c.Zone) {
		return false
	}
	return f.MatchesIgnoringZone(c, ctx)
}

// MatchesIgnoringZone evaluates everything but the zone constraint. Trigger
// subjects use it against last known information.
func (f *Filter) MatchesIgnoringZone(c *Characteristics, ctx FilterContext) bool {
	if c == nil {
		return false
	}
	if f == nil {
		return true
	}
	if f.Self && c.ID != ctx.SourceID {
		return false
	}
	if f.Other && c.ID == ctx.SourceID {
		return false
	}
	if f.Attached && (ctx.AttachedTo == "" || c.ID != ctx.AttachedTo) {
		return false
	}
	for _, t := range f.Types {
		if !c.HasType(t) {
			return false
		}
	}
	if len(f.AnyTypes) > 0 && !anyMatch(f.AnyTypes, c.HasType) {
		return false
	}
	for _, t := range f.NotTypes {
		if c.HasType(t) {
			return false
		}
	}
	if len(f.Subtypes) > 0 && !anyMatch(f.Subtypes, c.HasSubtype) {
		return false
	}
	for _, t := range f.Supertypes {
		if !containsFold(c.Supertypes, t) {
			return false
		}
	}
	if len(f.Colors) > 0 && !anyMatch(f.Colors, c.HasColor) {
		return false
	}
	for _, kw := range f.Keywords {
		if !c.HasKeyword(kw) {
			return false
		}
	}
	for _, kw := range f.NotKeywords {
		if c.HasKeyword(kw) {
			return false
		}
	}
	if f.Name != "" && !strings.EqualFold(f.Name, c.Name) {
		return false
	}
	if !f.Controller.Matches(c.Controller, ctx.Controller) {
		return false
	}
	if !f.Owner.Matches(c.Owner, ctx.Controller) {
		return false
	}
	if f.Tapped != nil && c.Tapped != *f.Tapped {
		return false
	}
	if f.Attacking && !c.Attacking {
		return false
	}
	if f.Blocking && !c.Blocking {
		return false
	}
	if f.MaxPower != nil && (!c.HasType(TypeCreature) || c.Power > *f.MaxPower) {
		return false
	}
	if f.Token != nil && c.Token != *f.Token {
		return false
	}
	return true
}

func (f *Filter) matchesZone(zone rules.ZoneKind) bool {
	if len(f.Zones) == 0 {
		return zone == rules.ZoneBattlefield
	}
	for _, z := range f.Zones {
		if z == zone {
			return true
		}
	}
	return false
}

func anyMatch(values []string, has func(string) bool) bool {
	for _, v := range values {
		if has(v) {
			return true
		}
	}
	return false
}
