// Package watchers keeps per-turn tallies of committed events. Effect
// programs read them through the engine's stat lookup.
package watchers

import (
	"strings"

	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// Registry keys.
const (
	KeySpellsCast        = "SpellsCastWatcher"
	KeyCreaturesDied     = "CreaturesDiedWatcher"
	KeyCardsDrawn        = "CardsDrawnWatcher"
	KeyPermanentsEntered = "PermanentsEnteredWatcher"
)

// Standard returns a registry holding every watcher the engine uses.
func Standard() *rules.WatcherRegistry {
	reg := rules.NewWatcherRegistry()
	reg.AddWatcher(NewSpellsCastWatcher())
	reg.AddWatcher(NewCreaturesDiedWatcher())
	reg.AddWatcher(NewCardsDrawnWatcher())
	reg.AddWatcher(NewPermanentsEnteredWatcher())
	return reg
}

// Lookup returns the watcher registered under key as a T.
func Lookup[T rules.Watcher](reg *rules.WatcherRegistry, key string) (T, bool) {
	w, ok := reg.GetWatcher(key).(T)
	return w, ok
}

func eventPlayer(event rules.Event) string {
	if event.PlayerID != "" {
		return event.PlayerID
	}
	return event.Controller
}

// SpellsCastWatcher counts spells cast by each player.
type SpellsCastWatcher struct {
	*rules.BaseWatcher
	spellsCast map[string][]string
}

func NewSpellsCastWatcher() *SpellsCastWatcher {
	w := &SpellsCastWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame),
		spellsCast:  make(map[string][]string),
	}
	w.SetKey(KeySpellsCast)
	return w
}

func (w *SpellsCastWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventSpellCast {
		return
	}
	player := eventPlayer(event)
	if player == "" || event.TargetID == "" {
		return
	}
	w.spellsCast[player] = append(w.spellsCast[player], event.TargetID)
	w.SetCondition(true)
}

func (w *SpellsCastWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.spellsCast = make(map[string][]string)
}

// Spells returns the stack ids of the spells player cast this turn.
func (w *SpellsCastWatcher) Spells(player string) []string {
	return append([]string(nil), w.spellsCast[player]...)
}

func (w *SpellsCastWatcher) Count(player string) int {
	return len(w.spellsCast[player])
}

func (w *SpellsCastWatcher) Copy() rules.Watcher {
	cp := NewSpellsCastWatcher()
	cp.SetCondition(w.ConditionMet())
	for k, v := range w.spellsCast {
		cp.spellsCast[k] = append([]string(nil), v...)
	}
	return cp
}

// CreaturesDiedWatcher counts creatures put into a graveyard from the
// battlefield, using the last known types carried on the event.
type CreaturesDiedWatcher struct {
	*rules.BaseWatcher
	byController map[string]int
	total        int
}

func NewCreaturesDiedWatcher() *CreaturesDiedWatcher {
	w := &CreaturesDiedWatcher{
		BaseWatcher:  rules.NewBaseWatcher(rules.WatcherScopeGame),
		byController: make(map[string]int),
	}
	w.SetKey(KeyCreaturesDied)
	return w
}

func (w *CreaturesDiedWatcher) Watch(event rules.Event) {
	if !event.Dies() || !hasType(event, "creature") {
		return
	}
	w.total++
	if event.Controller != "" {
		w.byController[event.Controller]++
	}
	w.SetCondition(true)
}

func hasType(event rules.Event, typ string) bool {
	for _, t := range strings.Fields(event.Metadata[rules.MetaTypes]) {
		if strings.EqualFold(t, typ) {
			return true
		}
	}
	return false
}

func (w *CreaturesDiedWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.byController = make(map[string]int)
	w.total = 0
}

// ByController returns how many creatures controller lost this turn.
func (w *CreaturesDiedWatcher) ByController(controller string) int {
	return w.byController[controller]
}

// Total returns how many creatures died this turn.
func (w *CreaturesDiedWatcher) Total() int {
	return w.total
}

func (w *CreaturesDiedWatcher) Copy() rules.Watcher {
	cp := NewCreaturesDiedWatcher()
	cp.SetCondition(w.ConditionMet())
	cp.total = w.total
	for k, v := range w.byController {
		cp.byController[k] = v
	}
	return cp
}

// CardsDrawnWatcher counts cards drawn by each player.
type CardsDrawnWatcher struct {
	*rules.BaseWatcher
	cardsDrawn map[string]int
}

func NewCardsDrawnWatcher() *CardsDrawnWatcher {
	w := &CardsDrawnWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame),
		cardsDrawn:  make(map[string]int),
	}
	w.SetKey(KeyCardsDrawn)
	return w
}

func (w *CardsDrawnWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventDrewCard {
		return
	}
	if player := eventPlayer(event); player != "" {
		w.cardsDrawn[player]++
		w.SetCondition(true)
	}
}

func (w *CardsDrawnWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.cardsDrawn = make(map[string]int)
}

func (w *CardsDrawnWatcher) Count(player string) int {
	return w.cardsDrawn[player]
}

func (w *CardsDrawnWatcher) Copy() rules.Watcher {
	cp := NewCardsDrawnWatcher()
	cp.SetCondition(w.ConditionMet())
	for k, v := range w.cardsDrawn {
		cp.cardsDrawn[k] = v
	}
	return cp
}

// PermanentsEnteredWatcher records the permanents that entered the
// battlefield under each controller.
type PermanentsEnteredWatcher struct {
	*rules.BaseWatcher
	entered map[string][]string
}

func NewPermanentsEnteredWatcher() *PermanentsEnteredWatcher {
	w := &PermanentsEnteredWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame),
		entered:     make(map[string][]string),
	}
	w.SetKey(KeyPermanentsEntered)
	return w
}

func (w *PermanentsEnteredWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventZoneChange || event.To != rules.ZoneBattlefield || event.NewID == "" {
		return
	}
	w.entered[event.Controller] = append(w.entered[event.Controller], event.NewID)
	w.SetCondition(true)
}

func (w *PermanentsEnteredWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.entered = make(map[string][]string)
}

// Entered returns the ids of permanents that entered under controller.
func (w *PermanentsEnteredWatcher) Entered(controller string) []string {
	return append([]string(nil), w.entered[controller]...)
}

func (w *PermanentsEnteredWatcher) Copy() rules.Watcher {
	cp := NewPermanentsEnteredWatcher()
	cp.SetCondition(w.ConditionMet())
	for k, v := range w.entered {
		cp.entered[k] = append([]string(nil), v...)
	}
	return cp
}
