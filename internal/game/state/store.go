package state

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/magefree/mage-rules-go/internal/game/counters"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// ErrUnknownObject is returned for ids that are not in the store.
var ErrUnknownObject = errors.New("unknown object")

// idSpace namespaces every id derived by a store.
var idSpace = uuid.MustParse("6f1c3d2a-58e4-4b0e-9a57-3c1d7e0b4f21")

// Store holds every object, zone and player of one game plus the floating
// effects. It is plain data: Clone gives an independent copy and the JSON
// form is the checkpoint format.
type Store struct {
	GameID  string               `json:"game_id"`
	Objects map[string]*Object   `json:"objects"`
	Zones   map[ZoneKey][]string `json:"zones"`
	Players []*Player            `json:"players"`
	Effects effects.EffectSet    `json:"effects"`
	// Lineage maps the id an object had before a zone change to the id it
	// got afterwards.
	Lineage map[string]string `json:"lineage"`
	// Clock is the game timestamp; Sequence feeds id derivation.
	Clock    int64  `json:"clock"`
	Sequence uint64 `json:"sequence"`
}

// New creates an empty store with players in turn order.
func New(gameID string, players []string, life int) *Store {
	s := &Store{
		GameID:  gameID,
		Objects: make(map[string]*Object),
		Zones:   make(map[ZoneKey][]string),
		Lineage: make(map[string]string),
	}
	for _, id := range players {
		s.Players = append(s.Players, NewPlayer(id, life))
	}
	return s
}

// NewID derives the next id. Ids depend only on the game id and the
// sequence, so a replayed game reproduces them.
func (s *Store) NewID(kind string) string {
	s.Sequence++
	name := s.GameID + "/" + kind + "/" + strconv.FormatUint(s.Sequence, 10)
	return uuid.NewSHA1(idSpace, []byte(name)).String()
}

// Tick advances the game timestamp and returns it.
func (s *Store) Tick() int64 {
	s.Clock++
	return s.Clock
}

// Player returns the player with id.
func (s *Store) Player(id string) (*Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// PlayerIDs returns every player id in turn order, including players who lost.
func (s *Store) PlayerIDs() []string {
	ids := make([]string, len(s.Players))
	for i, p := range s.Players {
		ids[i] = p.ID
	}
	return ids
}

// LivePlayers returns the players still in the game in turn order.
func (s *Store) LivePlayers() []string {
	var ids []string
	for _, p := range s.Players {
		if !p.Lost {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// Get returns the object with id.
func (s *Store) Get(id string) (*Object, bool) {
	o, ok := s.Objects[id]
	return o, ok
}

// Zone returns a copy of the ids in a zone. Library index 0 is the top.
func (s *Store) Zone(player string, kind rules.ZoneKind) []string {
	return append([]string(nil), s.Zones[KeyFor(player, kind)]...)
}

// Battlefield returns the permanents in the order they entered.
func (s *Store) Battlefield() []string {
	return s.Zone("", rules.ZoneBattlefield)
}

// Follow returns the current id of an object that may have changed zones
// since id was recorded.
func (s *Store) Follow(id string) string {
	for i := 0; i < len(s.Lineage)+1; i++ {
		next, ok := s.Lineage[id]
		if !ok {
			return id
		}
		id = next
	}
	return id
}

// Create puts a new object for card into a zone of owner.
func (s *Store) Create(card, owner string, kind rules.ZoneKind, position string) *Object {
	obj := &Object{
		ID:         s.NewID("object"),
		Card:       card,
		Owner:      owner,
		Controller: owner,
		Zone:       KeyFor(owner, kind),
		Timestamp:  s.Tick(),
	}
	if kind == rules.ZoneBattlefield {
		obj.Status.SummoningSick = true
	}
	s.Objects[obj.ID] = obj
	s.insert(obj.Zone, obj.ID, position)
	return obj
}

// Move takes the object out of its zone and puts a new object for the same
// card into kind. The new object has a fresh id, a new timestamp, an empty
// status and its owner as controller (controller overrides that when set).
// It returns the new object.
func (s *Store) Move(id string, kind rules.ZoneKind, position, controller string) (*Object, error) {
	obj, ok := s.Objects[id]
	if !ok {
		return nil, fmt.Errorf("move %s: %w", id, ErrUnknownObject)
	}
	s.remove(obj.Zone, id)
	delete(s.Objects, id)

	moved := &Object{
		ID:         s.NewID("object"),
		Card:       obj.Card,
		Owner:      obj.Owner,
		Controller: obj.Owner,
		Zone:       KeyFor(obj.Owner, kind),
		Timestamp:  s.Tick(),
	}
	if controller != "" {
		moved.Controller = controller
	}
	if kind == rules.ZoneBattlefield {
		moved.Status.SummoningSick = true
	}
	s.Objects[moved.ID] = moved
	s.insert(moved.Zone, moved.ID, position)
	s.Lineage[id] = moved.ID
	return moved, nil
}

// Draw moves the top card of player's library to their hand. An empty
// library marks the player for the state-based action check instead.
func (s *Store) Draw(player string) (*Object, bool, error) {
	p, ok := s.Player(player)
	if !ok {
		return nil, false, fmt.Errorf("draw: unknown player %s", player)
	}
	library := s.Zones[KeyFor(player, rules.ZoneLibrary)]
	if len(library) == 0 {
		p.DrewFromEmpty = true
		return nil, false, nil
	}
	obj, err := s.Move(library[0], rules.ZoneHand, "", "")
	return obj, err == nil, err
}

// Shuffle permutes player's library with intn, a source of uniform ints
// in [0, n).
func (s *Store) Shuffle(player string, intn func(n int) int) {
	key := KeyFor(player, rules.ZoneLibrary)
	library := s.Zones[key]
	for i := len(library) - 1; i > 0; i-- {
		j := intn(i + 1)
		library[i], library[j] = library[j], library[i]
	}
}

// SetTapped changes the tapped status and reports whether it changed.
func (s *Store) SetTapped(id string, tapped bool) bool {
	obj, ok := s.Objects[id]
	if !ok || obj.Status.Tapped == tapped {
		return false
	}
	obj.Status.Tapped = tapped
	return true
}

// AddCounters puts n counters on an object or a player.
func (s *Store) AddCounters(id, name string, n int) error {
	if obj, ok := s.Objects[id]; ok {
		if obj.Status.Counters == nil {
			obj.Status.Counters = counters.New()
		}
		obj.Status.Counters.Add(name, n)
		return nil
	}
	if p, ok := s.Player(id); ok {
		p.Counters.Add(name, n)
		return nil
	}
	return fmt.Errorf("add counters to %s: %w", id, ErrUnknownObject)
}

// AttachedTo returns the objects attached to id, sorted.
func (s *Store) AttachedTo(id string) []string {
	var out []string
	for oid, obj := range s.Objects {
		if obj.Status.AttachedTo == id {
			out = append(out, oid)
		}
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent deep copy.
func (s *Store) Clone() *Store {
	cp := &Store{
		GameID:   s.GameID,
		Objects:  make(map[string]*Object, len(s.Objects)),
		Zones:    make(map[ZoneKey][]string, len(s.Zones)),
		Players:  make([]*Player, len(s.Players)),
		Effects:  s.Effects.Clone(),
		Lineage:  make(map[string]string, len(s.Lineage)),
		Clock:    s.Clock,
		Sequence: s.Sequence,
	}
	for id, obj := range s.Objects {
		cp.Objects[id] = obj.Clone()
	}
	for key, ids := range s.Zones {
		cp.Zones[key] = append([]string(nil), ids...)
	}
	for i, p := range s.Players {
		cp.Players[i] = p.Clone()
	}
	for k, v := range s.Lineage {
		cp.Lineage[k] = v
	}
	return cp
}

// Check verifies that every object is listed in exactly the zone it records.
func (s *Store) Check() error {
	seen := make(map[string]ZoneKey, len(s.Objects))
	for key, ids := range s.Zones {
		for _, id := range ids {
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("%w: object %s in %s and %s", rules.ErrInvariantViolation, id, prev, key)
			}
			seen[id] = key
			obj, ok := s.Objects[id]
			if !ok {
				return fmt.Errorf("%w: zone %s lists unknown object %s", rules.ErrInvariantViolation, key, id)
			}
			if obj.Zone != key {
				return fmt.Errorf("%w: object %s records zone %s but is in %s", rules.ErrInvariantViolation, id, obj.Zone, key)
			}
		}
	}
	if len(seen) != len(s.Objects) {
		return fmt.Errorf("%w: %d objects are in no zone", rules.ErrInvariantViolation, len(s.Objects)-len(seen))
	}
	return nil
}

func (s *Store) insert(key ZoneKey, id, position string) {
	ids := s.Zones[key]
	if key.Kind == rules.ZoneLibrary && position != "bottom" {
		s.Zones[key] = append([]string{id}, ids...)
		return
	}
	if position == "top" {
		s.Zones[key] = append([]string{id}, ids...)
		return
	}
	s.Zones[key] = append(ids, id)
}

func (s *Store) remove(key ZoneKey, id string) {
	ids := s.Zones[key]
	for i, other := range ids {
		if other == id {
			s.Zones[key] = append(ids[:i:i], ids[i+1:]...)
			return
		}
	}
}
