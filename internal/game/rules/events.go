package rules

import (
	"sort"
	"sync"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	// Turn structure
	EventStepStarted EventType = "STEP_STARTED"
	EventTurnStarted EventType = "TURN_STARTED"

	// Zone movement
	EventZoneChange EventType = "ZONE_CHANGE"
	EventDrewCard   EventType = "DREW_CARD"
	EventShuffled   EventType = "LIBRARY_SHUFFLED"

	// Permanent status
	EventTapped         EventType = "TAPPED"
	EventUntapped       EventType = "UNTAPPED"
	EventCounterAdded   EventType = "COUNTER_ADDED"
	EventCounterRemoved EventType = "COUNTER_REMOVED"
	EventAttached       EventType = "ATTACHED"

	// Damage and life
	EventDamagedPermanent EventType = "DAMAGED_PERMANENT"
	EventDamagedPlayer    EventType = "DAMAGED_PLAYER"
	EventDamageRedirected EventType = "DAMAGE_REDIRECTED"
	EventDamagePrevented  EventType = "DAMAGE_PREVENTED"
	EventGainedLife       EventType = "GAINED_LIFE"
	EventLostLife         EventType = "LOST_LIFE"

	// Combat
	EventAttackerDeclared EventType = "ATTACKER_DECLARED"
	EventBlockerDeclared  EventType = "BLOCKER_DECLARED"
	EventCreatureBlocked  EventType = "CREATURE_BLOCKED"
	EventUnblocked        EventType = "UNBLOCKED_ATTACKER"

	// Stack
	EventSpellCast        EventType = "SPELL_CAST"
	EventAbilityActivated EventType = "ACTIVATED_ABILITY"
	EventAbilityTriggered EventType = "TRIGGERED_ABILITY"
	EventStackResolved    EventType = "STACK_ITEM_RESOLVED"
	EventCountered        EventType = "COUNTERED"
	EventLandPlayed       EventType = "LAND_PLAYED"
	EventManaAdded        EventType = "MANA_ADDED"

	// Effects and misc
	EventEffectCreated EventType = "EFFECT_CREATED"
	EventEffectExpired EventType = "EFFECT_EXPIRED"
	EventCoinFlipped   EventType = "COIN_FLIPPED"
	EventPlayerLost    EventType = "PLAYER_LOST"
	EventGameOver      EventType = "GAME_OVER"
)

// Metadata keys the engine sets on zone change events. They carry last
// known information about the moved object.
const (
	MetaCard  = "card"
	MetaTypes = "types"
)

// Event captures a single rules-relevant mutation.
//
// TargetID is the subject of the event (an object or a player). For zone changes
// TargetID is the id the object had before the move and NewID the id it has after.
type Event struct {
	Type        EventType         `json:"type"`
	ID          string            `json:"id"`
	Batch       int64             `json:"batch"`
	TargetID    string            `json:"target_id,omitempty"`
	NewID       string            `json:"new_id,omitempty"`
	SourceID    string            `json:"source_id,omitempty"`
	Controller  string            `json:"controller,omitempty"`
	PlayerID    string            `json:"player_id,omitempty"`
	Amount      int               `json:"amount,omitempty"`
	Flag        bool              `json:"flag,omitempty"`
	Data        string            `json:"data,omitempty"`
	From        ZoneKind          `json:"from"`
	To          ZoneKind          `json:"to"`
	Step        Step              `json:"step"`
	Timestamp   int64             `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Description string            `json:"description,omitempty"`
}

// IsZoneChange reports whether the event moved an object between the given zones.
func (e Event) IsZoneChange(from, to ZoneKind) bool {
	return e.Type == EventZoneChange && e.From == from && e.To == to
}

// Dies reports whether the event is a battlefield to graveyard move.
func (e Event) Dies() bool {
	return e.IsZoneChange(ZoneBattlefield, ZoneGraveyard)
}

// Listener receives published events.
type Listener func(Event)

type subscription struct {
	handle    int
	eventType EventType
	callback  Listener
}

// EventBus delivers committed events to subscribers in subscription order.
type EventBus struct {
	mu         sync.RWMutex
	subs       []subscription
	nextHandle int
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{nextHandle: 1}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	return bus.SubscribeTyped("", listener)
}

// SubscribeTyped registers a listener for a single event type. An empty type
// subscribes to everything.
func (bus *EventBus) SubscribeTyped(eventType EventType, listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.subs = append(bus.subs, subscription{handle: handle, eventType: eventType, callback: listener})
	return handle
}

// Unsubscribe removes the listener identified by handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i, sub := range bus.subs {
		if sub.handle == handle {
			bus.subs = append(bus.subs[:i], bus.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to all matching listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	subs := make([]subscription, len(bus.subs))
	copy(subs, bus.subs)
	bus.mu.RUnlock()

	sort.SliceStable(subs, func(i, j int) bool { return subs[i].handle < subs[j].handle })
	for _, sub := range subs {
		if sub.eventType == "" || sub.eventType == event.Type {
			sub.callback(event)
		}
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates an event with common fields populated.
func NewEvent(eventType EventType, targetID, sourceID, controllerID string) Event {
	return Event{
		Type:       eventType,
		TargetID:   targetID,
		SourceID:   sourceID,
		Controller: controllerID,
		PlayerID:   controllerID,
	}
}

// NewEventWithAmount creates an event carrying an amount.
func NewEventWithAmount(eventType EventType, targetID, sourceID, controllerID string, amount int) Event {
	evt := NewEvent(eventType, targetID, sourceID, controllerID)
	evt.Amount = amount
	return evt
}

// NewZoneChangeEvent creates a zone change event for an object that moved from one zone to another.
func NewZoneChangeEvent(oldID, newID, owner, controller string, from, to ZoneKind) Event {
	evt := NewEvent(EventZoneChange, oldID, oldID, controller)
	evt.NewID = newID
	evt.PlayerID = owner
	evt.From = from
	evt.To = to
	return evt
}
