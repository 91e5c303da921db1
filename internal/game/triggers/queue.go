package triggers

import (
	"fmt"

	"github.com/magefree/mage-rules-go/internal/game/pipeline"
)

// Queue holds triggered abilities that have triggered but are not on the
// stack yet. They are put on the stack the next time a player would
// receive priority, active player's first.
type Queue struct {
	Pending []Instance `json:"pending,omitempty"`
}

func (q *Queue) Add(instances ...Instance) {
	q.Pending = append(q.Pending, instances...)
}

func (q *Queue) Empty() bool {
	return len(q.Pending) == 0
}

// Next returns the first player in apnap order with pending instances and
// those instances in the order they triggered.
func (q *Queue) Next(apnap []string) (string, []Instance) {
	for _, player := range apnap {
		var group []Instance
		for _, in := range q.Pending {
			if in.Controller == player {
				group = append(group, in)
			}
		}
		if len(group) > 0 {
			return player, group
		}
	}
	// Controllers that left the game: their abilities still resolve in
	// trigger order.
	if len(q.Pending) > 0 {
		player := q.Pending[0].Controller
		var group []Instance
		for _, in := range q.Pending {
			if in.Controller == player {
				group = append(group, in)
			}
		}
		return player, group
	}
	return "", nil
}

// NeedsOrder reports whether the group holds instances of more than one
// ability, in which case its controller picks the stack order.
func NeedsOrder(group []Instance) bool {
	if len(group) < 2 {
		return false
	}
	first := group[0].Key()
	for _, in := range group[1:] {
		if in.Key() != first {
			return true
		}
	}
	return false
}

// OrderDecision asks player to order group. The answer lists instance ids
// in the order they go on the stack, so the last one resolves first.
func OrderDecision(id, player string, group []Instance) *pipeline.Decision {
	d := &pipeline.Decision{
		ID:     id,
		Kind:   pipeline.DecisionOrder,
		Player: player,
		Prompt: "order your triggered abilities; the last one resolves first",
		Min:    len(group),
		Max:    len(group),
	}
	for _, in := range group {
		d.Options = append(d.Options, in.ID)
	}
	return d
}

// Take removes the listed instances from the queue and returns them in the
// given order.
func (q *Queue) Take(ids []string) ([]Instance, error) {
	byID := make(map[string]Instance, len(q.Pending))
	for _, in := range q.Pending {
		byID[in.ID] = in
	}
	taken := make(map[string]bool, len(ids))
	out := make([]Instance, 0, len(ids))
	for _, id := range ids {
		in, ok := byID[id]
		if !ok || taken[id] {
			return nil, fmt.Errorf("trigger %s is not pending", id)
		}
		taken[id] = true
		out = append(out, in)
	}
	rest := q.Pending[:0:0]
	for _, in := range q.Pending {
		if !taken[in.ID] {
			rest = append(rest, in)
		}
	}
	q.Pending = rest
	return out, nil
}

// Clone returns a deep copy.
func (q *Queue) Clone() *Queue {
	cp := &Queue{Pending: make([]Instance, len(q.Pending))}
	for i, in := range q.Pending {
		in.Bindings = in.Bindings.Clone()
		if in.Delayed != nil {
			d := *in.Delayed
			d.Env = d.Env.Clone()
			d.Subjects = append([]string(nil), d.Subjects...)
			d.Path = append([]int(nil), d.Path...)
			in.Delayed = &d
		}
		cp.Pending[i] = in
	}
	return cp
}

// IDs lists the ids of instances.
func IDs(instances []Instance) []string {
	out := make([]string, len(instances))
	for i, in := range instances {
		out[i] = in.ID
	}
	return out
}
