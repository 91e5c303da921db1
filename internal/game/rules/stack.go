package rules

import (
	"errors"
	"sync"
)

// StackItemKind describes the type of object on the stack.
type StackItemKind string

const (
	// StackItemKindSpell represents a spell cast by a player.
	StackItemKindSpell StackItemKind = "SPELL"
	// StackItemKindActivated represents an activated ability.
	StackItemKindActivated StackItemKind = "ACTIVATED"
	// StackItemKindTriggered represents a triggered ability.
	StackItemKindTriggered StackItemKind = "TRIGGERED"
)

// AbilityKind selects which program of a card an AbilityRef points at.
type AbilityKind string

const (
	AbilitySpell     AbilityKind = "spell"
	AbilityActivated AbilityKind = "activated"
	AbilityTriggered AbilityKind = "triggered"
	AbilityDelayed   AbilityKind = "delayed"
)

// AbilityRef locates an effect program in the card catalog.
// Delayed triggers carry their registration id in DelayedID.
type AbilityRef struct {
	Card      string      `json:"card"`
	Kind      AbilityKind `json:"kind"`
	Index     int         `json:"index"`
	DelayedID string      `json:"delayed_id,omitempty"`
}

// StackItem represents a single object on the stack.
type StackItem struct {
	ID          string            `json:"id"`
	Controller  string            `json:"controller"`
	Description string            `json:"description"`
	Kind        StackItemKind     `json:"kind"`
	SourceID    string            `json:"source_id"`
	Ability     AbilityRef        `json:"ability"`
	Bindings    Bindings          `json:"bindings,omitempty"`
	TargetSlots []string          `json:"target_slots,omitempty"`
	Timestamp   int64             `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ErrStackEmpty is returned when popping an empty stack.
var ErrStackEmpty = errors.New("stack empty")

// StackManager manages the game stack.
type StackManager struct {
	mu    sync.Mutex
	items []StackItem
}

// NewStackManager creates a new stack manager.
func NewStackManager() *StackManager {
	return &StackManager{
		items: make([]StackItem, 0, 16),
	}
}

// RestoreStackManager rebuilds a stack from a list (topmost last).
func RestoreStackManager(items []StackItem) *StackManager {
	sm := NewStackManager()
	sm.items = append(sm.items, items...)
	return sm
}

// Push adds an item to the top of the stack.
func (sm *StackManager) Push(item StackItem) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.items = append(sm.items, item)
}

// Pop removes the top item from the stack.
func (sm *StackManager) Pop() (StackItem, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if len(sm.items) == 0 {
		return StackItem{}, ErrStackEmpty
	}

	idx := len(sm.items) - 1
	item := sm.items[idx]
	sm.items = sm.items[:idx]
	return item, nil
}

// Remove deletes an item from anywhere in the stack by ID.
func (sm *StackManager) Remove(id string) (StackItem, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for idx := len(sm.items) - 1; idx >= 0; idx-- {
		if sm.items[idx].ID == id {
			item := sm.items[idx]
			sm.items = append(sm.items[:idx], sm.items[idx+1:]...)
			return item, true
		}
	}
	return StackItem{}, false
}

// Get returns the item with the given ID.
func (sm *StackManager) Get(id string) (StackItem, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, item := range sm.items {
		if item.ID == id {
			return item, true
		}
	}
	return StackItem{}, false
}

// FindBySource returns the item whose source is the given object.
func (sm *StackManager) FindBySource(sourceID string) (StackItem, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for idx := len(sm.items) - 1; idx >= 0; idx-- {
		if sm.items[idx].SourceID == sourceID {
			return sm.items[idx], true
		}
	}
	return StackItem{}, false
}

// Update replaces the stored item that has the same ID.
func (sm *StackManager) Update(item StackItem) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for idx := range sm.items {
		if sm.items[idx].ID == item.ID {
			sm.items[idx] = item
			return true
		}
	}
	return false
}

// Peek returns the top item without removing it.
func (sm *StackManager) Peek() (StackItem, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if len(sm.items) == 0 {
		return StackItem{}, false
	}
	return sm.items[len(sm.items)-1], true
}

// List returns a copy of all stack items (topmost last).
func (sm *StackManager) List() []StackItem {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	cpy := make([]StackItem, len(sm.items))
	copy(cpy, sm.items)
	return cpy
}

// Len returns the number of items on the stack.
func (sm *StackManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.items)
}

// IsEmpty returns whether the stack is empty.
func (sm *StackManager) IsEmpty() bool {
	return sm.Len() == 0
}
