package rules

import (
	"sort"
	"sync"
)

// WatcherScope defines the scope of a watcher's tracking.
type WatcherScope int

const (
	// WatcherScopeGame tracks events for the entire game.
	WatcherScopeGame WatcherScope = iota
	// WatcherScopePlayer tracks events for a specific player.
	WatcherScopePlayer
	// WatcherScopeCard tracks events for a specific card/permanent.
	WatcherScopeCard
)

// String returns the string representation of the watcher scope.
func (ws WatcherScope) String() string {
	switch ws {
	case WatcherScopeGame:
		return "GAME"
	case WatcherScopePlayer:
		return "PLAYER"
	case WatcherScopeCard:
		return "CARD"
	default:
		return "UNKNOWN"
	}
}

// Watcher observes committed events and keeps per-turn counts that
// effect conditions can query.
type Watcher interface {
	// Watch is called for every committed event.
	Watch(event Event)
	// Reset clears per-turn state.
	Reset()
	// ConditionMet returns true once the watched condition happened this turn.
	ConditionMet() bool
	// GetScope returns the scope of this watcher.
	GetScope() WatcherScope
	// GetKey returns the unique registry key.
	GetKey() string
	// Copy creates a deep copy of this watcher.
	Copy() Watcher
}

// BaseWatcher provides the bookkeeping shared by all watchers.
type BaseWatcher struct {
	scope        WatcherScope
	controllerID string
	sourceID     string
	condition    bool
	key          string
}

// NewBaseWatcher creates a new base watcher with the specified scope.
func NewBaseWatcher(scope WatcherScope) *BaseWatcher {
	return &BaseWatcher{scope: scope}
}

// GetScope returns the watcher's scope.
func (bw *BaseWatcher) GetScope() WatcherScope {
	return bw.scope
}

// SetControllerID sets the controller ID (for PLAYER scope watchers).
func (bw *BaseWatcher) SetControllerID(id string) {
	bw.controllerID = id
}

// GetControllerID returns the controller ID.
func (bw *BaseWatcher) GetControllerID() string {
	return bw.controllerID
}

// SetSourceID sets the source ID (for CARD scope watchers).
func (bw *BaseWatcher) SetSourceID(id string) {
	bw.sourceID = id
}

// GetSourceID returns the source ID.
func (bw *BaseWatcher) GetSourceID() string {
	return bw.sourceID
}

// ConditionMet returns whether the condition has been met.
func (bw *BaseWatcher) ConditionMet() bool {
	return bw.condition
}

// SetCondition sets the condition flag.
func (bw *BaseWatcher) SetCondition(condition bool) {
	bw.condition = condition
}

// Reset clears the condition.
func (bw *BaseWatcher) Reset() {
	bw.condition = false
}

// GetKey returns the unique key for this watcher.
func (bw *BaseWatcher) GetKey() string {
	return bw.key
}

// SetKey sets the unique key for this watcher.
func (bw *BaseWatcher) SetKey(key string) {
	bw.key = key
}

// WatcherRegistry manages the watchers of one game.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
}

// NewWatcherRegistry creates a new watcher registry.
func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{watchers: make(map[string]Watcher)}
}

// AddWatcher adds a watcher to the registry, replacing one with the same key.
func (wr *WatcherRegistry) AddWatcher(watcher Watcher) {
	if watcher == nil || watcher.GetKey() == "" {
		return
	}
	wr.mu.Lock()
	defer wr.mu.Unlock()
	wr.watchers[watcher.GetKey()] = watcher
}

// RemoveWatcher removes a watcher from the registry.
func (wr *WatcherRegistry) RemoveWatcher(key string) {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	delete(wr.watchers, key)
}

// GetWatcher retrieves a watcher by key.
func (wr *WatcherRegistry) GetWatcher(key string) Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	return wr.watchers[key]
}

// GetWatchersByScope returns the watchers of a scope in key order.
func (wr *WatcherRegistry) GetWatchersByScope(scope WatcherScope) []Watcher {
	var result []Watcher
	for _, watcher := range wr.ordered() {
		if watcher.GetScope() == scope {
			result = append(result, watcher)
		}
	}
	return result
}

// ResetWatchers resets all watchers (called during cleanup).
func (wr *WatcherRegistry) ResetWatchers() {
	for _, watcher := range wr.ordered() {
		watcher.Reset()
	}
}

// NotifyWatchers notifies all watchers of an event in key order.
func (wr *WatcherRegistry) NotifyWatchers(event Event) {
	for _, watcher := range wr.ordered() {
		watcher.Watch(event)
	}
}

// Copy returns a registry holding deep copies of every watcher.
func (wr *WatcherRegistry) Copy() *WatcherRegistry {
	out := NewWatcherRegistry()
	for _, watcher := range wr.ordered() {
		out.AddWatcher(watcher.Copy())
	}
	return out
}

func (wr *WatcherRegistry) ordered() []Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	keys := make([]string, 0, len(wr.watchers))
	for key := range wr.watchers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	result := make([]Watcher, 0, len(keys))
	for _, key := range keys {
		result = append(result, wr.watchers[key])
	}
	return result
}
