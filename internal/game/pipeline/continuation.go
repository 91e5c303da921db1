package pipeline

import (
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// Frame is one active block of a running program. Path addresses the block
// (see Locate) and PC is the next op to run in it. for_each frames also carry
// the items being iterated.
type Frame struct {
	Path  []int    `json:"path,omitempty"`
	PC    int      `json:"pc"`
	Items []string `json:"items,omitempty"`
	Item  int      `json:"item,omitempty"`
	Var   string   `json:"var,omitempty"`
}

// Continuation is everything needed to resume a program: which program,
// where in it, and the bindings so far. It holds no references into the
// game and round-trips through JSON.
type Continuation struct {
	Ability     rules.AbilityRef `json:"ability"`
	StackItemID string           `json:"stack_item_id,omitempty"`
	SourceID    string           `json:"source_id"`
	Controller  string           `json:"controller"`
	Frames      []Frame          `json:"frames"`
	Env         rules.Bindings   `json:"env"`
	Pending     *Decision        `json:"pending,omitempty"`
	// Root is the path of the block the program started in, non-empty for
	// delayed triggers.
	Root []int `json:"root,omitempty"`
}

// NewContinuation starts a program at its first op.
func NewContinuation(ability rules.AbilityRef, stackItemID, sourceID, controller string, env rules.Bindings) *Continuation {
	if env == nil {
		env = rules.Bindings{}
	}
	return &Continuation{
		Ability:     ability,
		StackItemID: stackItemID,
		SourceID:    sourceID,
		Controller:  controller,
		Frames:      []Frame{{}},
		Env:         env,
	}
}

// Done reports whether the program has finished.
func (c *Continuation) Done() bool {
	return len(c.Frames) == 0
}

// Scope returns the execution scope of the continuation.
func (c *Continuation) Scope() Scope {
	return Scope{SourceID: c.SourceID, Controller: c.Controller, Env: c.Env}
}

// Clone returns a deep copy.
func (c *Continuation) Clone() *Continuation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Frames = make([]Frame, len(c.Frames))
	for i, f := range c.Frames {
		f.Path = append([]int(nil), f.Path...)
		f.Items = append([]string(nil), f.Items...)
		cp.Frames[i] = f
	}
	cp.Env = c.Env.Clone()
	cp.Pending = c.Pending.Clone()
	cp.Root = append([]int(nil), c.Root...)
	return &cp
}
