// Package state is the object and zone store of a game. Every card is an
// Object living in exactly one zone; moving it between zones replaces it
// with a new Object under a fresh id.
package state

import (
	"fmt"
	"strings"

	"github.com/magefree/mage-rules-go/internal/game/counters"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// ZoneKey addresses one zone. Player is empty for shared zones.
type ZoneKey struct {
	Player string
	Kind   rules.ZoneKind
}

// KeyFor returns the key of kind for player, dropping the player for
// shared zones.
func KeyFor(player string, kind rules.ZoneKind) ZoneKey {
	if kind.Shared() {
		return ZoneKey{Kind: kind}
	}
	return ZoneKey{Player: player, Kind: kind}
}

func (k ZoneKey) String() string {
	if k.Player == "" {
		return k.Kind.String()
	}
	return k.Player + "/" + k.Kind.String()
}

// MarshalText implements encoding.TextMarshaler so zone maps serialize
// with readable keys.
func (k ZoneKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ZoneKey) UnmarshalText(text []byte) error {
	s := string(text)
	player, kind := "", s
	if i := strings.LastIndex(s, "/"); i >= 0 {
		player, kind = s[:i], s[i+1:]
	}
	zone, err := rules.ParseZone(kind)
	if err != nil {
		return fmt.Errorf("zone key %q: %w", s, err)
	}
	*k = ZoneKey{Player: player, Kind: zone}
	return nil
}

// Status is the component set of an object. It is reset on every zone change.
type Status struct {
	Tapped        bool              `json:"tapped,omitempty"`
	Damage        int               `json:"damage,omitempty"`
	Deathtouched  bool              `json:"deathtouched,omitempty"`
	AttachedTo    string            `json:"attached_to,omitempty"`
	Counters      counters.Counters `json:"counters,omitempty"`
	SummoningSick bool              `json:"summoning_sick,omitempty"`

	// Attacking holds the attacked player; empty when not attacking.
	Attacking string `json:"attacking,omitempty"`
	// Blocking holds the attacker this creature blocks.
	Blocking string `json:"blocking,omitempty"`
	// BlockedBy lists blockers in damage assignment order.
	BlockedBy []string `json:"blocked_by,omitempty"`
	Blocked   bool     `json:"blocked,omitempty"`
	// StruckFirst marks a creature that dealt first strike damage this combat.
	StruckFirst bool `json:"struck_first,omitempty"`
}

func (s Status) clone() Status {
	s.Counters = s.Counters.Copy()
	s.BlockedBy = append([]string(nil), s.BlockedBy...)
	return s
}

// InCombat reports whether the object is attacking or blocking.
func (s Status) InCombat() bool {
	return s.Attacking != "" || s.Blocking != ""
}

// ClearCombat removes every combat marker.
func (s *Status) ClearCombat() {
	s.Attacking = ""
	s.Blocking = ""
	s.BlockedBy = nil
	s.Blocked = false
	s.StruckFirst = false
}

// Object is one card in one zone.
type Object struct {
	ID         string  `json:"id"`
	Card       string  `json:"card"`
	Owner      string  `json:"owner"`
	Controller string  `json:"controller"`
	Zone       ZoneKey `json:"zone"`
	// Timestamp is when the object entered its zone.
	Timestamp int64  `json:"timestamp"`
	Status    Status `json:"status"`
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Status = o.Status.clone()
	return &cp
}
