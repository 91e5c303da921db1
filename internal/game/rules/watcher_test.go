package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// castCounter counts spells cast per turn.
type castCounter struct {
	*BaseWatcher
	n int
}

func newCastCounter(key string) *castCounter {
	w := &castCounter{BaseWatcher: NewBaseWatcher(WatcherScopeGame)}
	w.SetKey(key)
	return w
}

func (c *castCounter) Watch(event Event) {
	if event.Type == EventSpellCast {
		c.n++
		c.SetCondition(true)
	}
}

func (c *castCounter) Reset() {
	c.BaseWatcher.Reset()
	c.n = 0
}

func (c *castCounter) Copy() Watcher {
	cp := newCastCounter(c.GetKey())
	cp.n = c.n
	cp.SetCondition(c.ConditionMet())
	return cp
}

func TestWatcherRegistry(t *testing.T) {
	registry := NewWatcherRegistry()
	casts := newCastCounter("casts")
	registry.AddWatcher(casts)
	registry.AddWatcher(nil)
	registry.AddWatcher(&castCounter{BaseWatcher: NewBaseWatcher(WatcherScopeGame)})

	require.Same(t, casts, registry.GetWatcher("casts"))
	assert.Len(t, registry.GetWatchersByScope(WatcherScopeGame), 1, "unkeyed watchers are ignored")
	assert.Empty(t, registry.GetWatchersByScope(WatcherScopePlayer))

	registry.NotifyWatchers(NewEvent(EventSpellCast, "s1", "s1", "p1"))
	registry.NotifyWatchers(NewEvent(EventTapped, "c1", "c1", "p1"))
	registry.NotifyWatchers(NewEvent(EventSpellCast, "s2", "s2", "p2"))
	assert.Equal(t, 2, casts.n)
	assert.True(t, casts.ConditionMet())

	copied := registry.Copy()
	registry.ResetWatchers()
	assert.Zero(t, casts.n)
	assert.False(t, casts.ConditionMet())
	assert.Equal(t, 2, copied.GetWatcher("casts").(*castCounter).n, "a copy keeps its counts")

	registry.RemoveWatcher("casts")
	assert.Nil(t, registry.GetWatcher("casts"))
}

func TestWatcherScopeNames(t *testing.T) {
	tests := map[WatcherScope]string{
		WatcherScopeGame:   "GAME",
		WatcherScopePlayer: "PLAYER",
		WatcherScopeCard:   "CARD",
		WatcherScope(9):    "UNKNOWN",
	}
	for scope, want := range tests {
		assert.Equal(t, want, scope.String())
	}
}

func TestBaseWatcherFields(t *testing.T) {
	bw := NewBaseWatcher(WatcherScopeCard)
	bw.SetKey("k")
	bw.SetControllerID("p1")
	bw.SetSourceID("c1")

	assert.Equal(t, "k", bw.GetKey())
	assert.Equal(t, WatcherScopeCard, bw.GetScope())
	assert.Equal(t, "p1", bw.GetControllerID())
	assert.Equal(t, "c1", bw.GetSourceID())
	assert.False(t, bw.ConditionMet())

	bw.SetCondition(true)
	assert.True(t, bw.ConditionMet())
	bw.Reset()
	assert.False(t, bw.ConditionMet())
}

func TestWatchersFedFromEventBus(t *testing.T) {
	registry := NewWatcherRegistry()
	casts := newCastCounter("casts")
	registry.AddWatcher(casts)

	bus := NewEventBus()
	bus.Subscribe(registry.NotifyWatchers)
	var tapped []string
	handle := bus.SubscribeTyped(EventTapped, func(e Event) { tapped = append(tapped, e.TargetID) })

	bus.PublishBatch([]Event{
		NewEvent(EventSpellCast, "s1", "s1", "p1"),
		NewEvent(EventTapped, "c1", "c1", "p1"),
	})
	assert.Equal(t, 1, casts.n)
	assert.Equal(t, []string{"c1"}, tapped)

	bus.Unsubscribe(handle)
	bus.Publish(NewEvent(EventTapped, "c2", "c2", "p1"))
	assert.Equal(t, []string{"c1"}, tapped)
	assert.Equal(t, -1, bus.Subscribe(nil))
}

func TestWatcherRegistryOrderAndCopy(t *testing.T) {
	registry := NewWatcherRegistry()
	var seen []string
	for _, key := range []string{"b", "c", "a"} {
		w := &orderWatcher{BaseWatcher: NewBaseWatcher(WatcherScopeGame), seen: &seen}
		w.SetKey(key)
		registry.AddWatcher(w)
	}

	registry.NotifyWatchers(NewEvent(EventTapped, "c1", "c1", "p1"))
	assert.Equal(t, []string{"a", "b", "c"}, seen, "watchers are notified in key order")

	copied := registry.Copy()
	assert.NotSame(t, registry.GetWatcher("a"), copied.GetWatcher("a"))
}

type orderWatcher struct {
	*BaseWatcher
	seen *[]string
}

func (o *orderWatcher) Watch(Event) { *o.seen = append(*o.seen, o.GetKey()) }

func (o *orderWatcher) Copy() Watcher {
	w := &orderWatcher{BaseWatcher: NewBaseWatcher(o.GetScope()), seen: o.seen}
	w.SetKey(o.GetKey())
	return w
}
