package rules

import (
	"fmt"
)

// PriorityTracker counts consecutive passes since the last state change.
// The stack may only resolve, or the step end, once every player still in
// the game has passed in succession.
type PriorityTracker struct {
	Passed []string `json:"passed"`
}

// NewPriorityTracker creates an empty tracker.
func NewPriorityTracker() *PriorityTracker {
	return &PriorityTracker{Passed: make([]string, 0, 4)}
}

// Reset clears the pass sequence. Called after any action or state change.
func (pt *PriorityTracker) Reset() {
	pt.Passed = pt.Passed[:0]
}

// Pass records a pass by player and reports whether every player in
// players has now passed consecutively.
func (pt *PriorityTracker) Pass(player string, players []string) bool {
	if !pt.HasPassed(player) {
		pt.Passed = append(pt.Passed, player)
	}
	for _, p := range players {
		if !pt.HasPassed(p) {
			return false
		}
	}
	return true
}

// HasPassed reports whether player has passed since the last reset.
func (pt *PriorityTracker) HasPassed(player string) bool {
	for _, p := range pt.Passed {
		if p == player {
			return true
		}
	}
	return false
}

// Count returns the number of consecutive passes.
func (pt *PriorityTracker) Count() int {
	return len(pt.Passed)
}

// NextPlayer returns the player after current in turn order.
func NextPlayer(players []string, current string) string {
	if len(players) == 0 {
		return ""
	}
	for i, p := range players {
		if p == current {
			return players[(i+1)%len(players)]
		}
	}
	return players[0]
}

// APNAPOrder returns players in turn order starting with the active player.
func APNAPOrder(players []string, active string) []string {
	ordered := make([]string, 0, len(players))
	start := 0
	for i, p := range players {
		if p == active {
			start = i
			break
		}
	}
	for i := 0; i < len(players); i++ {
		ordered = append(ordered, players[(start+i)%len(players)])
	}
	return ordered
}

// ResolutionContext tracks which stack object is currently resolving so the
// same object can never be resolved twice.
type ResolutionContext struct {
	Resolving string          `json:"resolving,omitempty"`
	Resolved  map[string]bool `json:"resolved,omitempty"`
}

// NewResolutionContext creates a new resolution context.
func NewResolutionContext() *ResolutionContext {
	return &ResolutionContext{Resolved: make(map[string]bool)}
}

// BeginResolution marks the start of resolving a stack object.
func (rc *ResolutionContext) BeginResolution(itemID string) error {
	if rc.Resolved == nil {
		rc.Resolved = make(map[string]bool)
	}
	if rc.Resolving != "" {
		return fmt.Errorf("%w: %s is already resolving", ErrInvariantViolation, rc.Resolving)
	}
	if rc.Resolved[itemID] {
		return fmt.Errorf("%w: stack object %s resolved twice", ErrInvariantViolation, itemID)
	}
	rc.Resolving = itemID
	return nil
}

// EndResolution marks the end of resolving a stack object.
func (rc *ResolutionContext) EndResolution(itemID string) error {
	if rc.Resolving != itemID {
		return fmt.Errorf("%w: resolution mismatch: expected %s, got %s", ErrInvariantViolation, rc.Resolving, itemID)
	}
	rc.Resolving = ""
	rc.Resolved[itemID] = true
	return nil
}

// Abandon clears the resolving marker without marking the object resolved.
// Used when the object leaves the stack mid-resolution.
func (rc *ResolutionContext) Abandon(itemID string) {
	if rc.Resolving == itemID {
		rc.Resolving = ""
		if rc.Resolved == nil {
			rc.Resolved = make(map[string]bool)
		}
		rc.Resolved[itemID] = true
	}
}

// Prune forgets resolved objects that have left the stack. Only an object
// still on the stack could be resolved again.
func (rc *ResolutionContext) Prune(onStack func(itemID string) bool) {
	for id := range rc.Resolved {
		if !onStack(id) {
			delete(rc.Resolved, id)
		}
	}
}

// IsResolving returns true if something is currently resolving.
func (rc *ResolutionContext) IsResolving() bool {
	return rc.Resolving != ""
}
