package effects

import (
	"sort"

	"github.com/magefree/mage-rules-go/internal/game/counters"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// Card type names used by the engine itself.
const (
	TypeCreature     = "creature"
	TypeLand         = "land"
	TypeArtifact     = "artifact"
	TypeEnchantment  = "enchantment"
	TypeInstant      = "instant"
	TypeSorcery      = "sorcery"
	TypePlaneswalker = "planeswalker"
)

// Keywords the engine gives rules meaning to.
const (
	KeywordFlying       = "flying"
	KeywordReach        = "reach"
	KeywordHaste        = "haste"
	KeywordVigilance    = "vigilance"
	KeywordDefender     = "defender"
	KeywordFirstStrike  = "first_strike"
	KeywordDoubleStrike = "double_strike"
	KeywordTrample      = "trample"
	KeywordDeathtouch   = "deathtouch"
	KeywordLifelink     = "lifelink"
	KeywordFlash        = "flash"
)

// Characteristics are the computed properties of one object, either printed
// (before projection) or after every continuous effect has applied.
type Characteristics struct {
	ID         string            `json:"id"`
	CardID     string            `json:"card_id"`
	Name       string            `json:"name"`
	Owner      string            `json:"owner"`
	Controller string            `json:"controller"`
	Zone       rules.ZoneKind    `json:"zone"`
	Types      []string          `json:"types,omitempty"`
	Subtypes   []string          `json:"subtypes,omitempty"`
	Supertypes []string          `json:"supertypes,omitempty"`
	Colors     []string          `json:"colors,omitempty"`
	Keywords   []string          `json:"keywords,omitempty"`
	Power      int               `json:"power"`
	Toughness  int               `json:"toughness"`
	ManaCost   string            `json:"mana_cost,omitempty"`
	CostDelta  int               `json:"cost_delta,omitempty"`
	Counters   counters.Counters `json:"counters,omitempty"`

	Tapped        bool   `json:"tapped,omitempty"`
	Damage        int    `json:"damage,omitempty"`
	Deathtouched  bool   `json:"deathtouched,omitempty"`
	AttachedTo    string `json:"attached_to,omitempty"`
	Attacking     bool   `json:"attacking,omitempty"`
	Blocking      bool   `json:"blocking,omitempty"`
	SummoningSick bool   `json:"summoning_sick,omitempty"`
	Token         bool   `json:"token,omitempty"`

	LostAbilities bool     `json:"lost_abilities,omitempty"`
	Restrictions  []string `json:"restrictions,omitempty"`
	Timestamp     int64    `json:"timestamp"`
}

// Clone returns a deep copy.
func (c *Characteristics) Clone() *Characteristics {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Types = append([]string(nil), c.Types...)
	cp.Subtypes = append([]string(nil), c.Subtypes...)
	cp.Supertypes = append([]string(nil), c.Supertypes...)
	cp.Colors = append([]string(nil), c.Colors...)
	cp.Keywords = append([]string(nil), c.Keywords...)
	cp.Restrictions = append([]string(nil), c.Restrictions...)
	cp.Counters = c.Counters.Copy()
	return &cp
}

func (c *Characteristics) HasType(name string) bool    { return containsFold(c.Types, name) }
func (c *Characteristics) HasSubtype(name string) bool { return containsFold(c.Subtypes, name) }
func (c *Characteristics) HasColor(name string) bool   { return containsFold(c.Colors, name) }
func (c *Characteristics) HasKeyword(name string) bool { return containsFold(c.Keywords, name) }

// IsCreature is shorthand for HasType(TypeCreature).
func (c *Characteristics) IsCreature() bool { return c.HasType(TypeCreature) }

// IsPermanentCard reports whether the object would resolve onto the battlefield.
func (c *Characteristics) IsPermanentCard() bool {
	return !c.HasType(TypeInstant) && !c.HasType(TypeSorcery)
}

// Restricted reports whether a rules restriction applies.
func (c *Characteristics) Restricted(kind ModKind) bool {
	return containsFold(c.Restrictions, string(kind))
}

// LethalDamage reports whether marked damage destroys the creature.
func (c *Characteristics) LethalDamage() bool {
	if !c.IsCreature() || c.Toughness <= 0 {
		return false
	}
	return c.Damage >= c.Toughness || (c.Damage > 0 && c.Deathtouched)
}

// View is the projected state of every object. It is immutable once built.
type View struct {
	objects map[string]*Characteristics
	ids     []string
	players []string
}

// NewView indexes objects by id. playerOrder is the APNAP order.
func NewView(objects []*Characteristics, playerOrder []string) *View {
	v := &View{
		objects: make(map[string]*Characteristics, len(objects)),
		ids:     make([]string, 0, len(objects)),
		players: append([]string(nil), playerOrder...),
	}
	for _, c := range objects {
		if c == nil || c.ID == "" {
			continue
		}
		if _, dup := v.objects[c.ID]; !dup {
			v.ids = append(v.ids, c.ID)
		}
		v.objects[c.ID] = c
	}
	sort.Strings(v.ids)
	return v
}

// Get returns the characteristics of id.
func (v *View) Get(id string) (*Characteristics, bool) {
	if v == nil {
		return nil, false
	}
	c, ok := v.objects[id]
	return c, ok
}

// IDs returns every object id in sorted order.
func (v *View) IDs() []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v.ids...)
}

// Len returns the number of objects.
func (v *View) Len() int {
	if v == nil {
		return 0
	}
	return len(v.ids)
}

// All returns the characteristics in id order.
func (v *View) All() []*Characteristics {
	out := make([]*Characteristics, 0, v.Len())
	for _, id := range v.IDs() {
		out = append(out, v.objects[id])
	}
	return out
}

// Matching returns the ids matched by filter, sorted.
func (v *View) Matching(filter *Filter, ctx FilterContext) []string {
	var out []string
	for _, id := range v.IDs() {
		if filter.Matches(v.objects[id], ctx) {
			out = append(out, id)
		}
	}
	return out
}

// Players returns the APNAP order the view was built with.
func (v *View) Players() []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v.players...)
}

// PlayerRank is the APNAP position of player, or len(players) when unknown.
func (v *View) PlayerRank(player string) int {
	for i, p := range v.players {
		if p == player {
			return i
		}
	}
	return len(v.players)
}

// Clone deep-copies the view.
func (v *View) Clone() *View {
	cp := &View{
		objects: make(map[string]*Characteristics, len(v.objects)),
		ids:     append([]string(nil), v.ids...),
		players: append([]string(nil), v.players...),
	}
	for id, c := range v.objects {
		cp.objects[id] = c.Clone()
	}
	return cp
}

func addFold(list []string, values ...string) []string {
	for _, v := range values {
		if !containsFold(list, v) {
			list = append(list, v)
		}
	}
	return list
}

func removeFold(list []string, values ...string) []string {
	out := list[:0]
	for _, item := range list {
		if !containsFold(values, item) {
			out = append(out, item)
		}
	}
	return out
}
