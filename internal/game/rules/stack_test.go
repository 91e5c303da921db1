package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackManagerPushPop(t *testing.T) {
	sm := NewStackManager()

	sm.Push(StackItem{
		ID:          "first",
		Controller:  "Alice",
		Description: "First Spell",
		Kind:        StackItemKindSpell,
		Ability:     AbilityRef{Card: "Shock", Kind: AbilitySpell},
	})
	sm.Push(StackItem{
		ID:          "second",
		Controller:  "Bob",
		Description: "Second Spell",
		Kind:        StackItemKindTriggered,
	})

	item, err := sm.Pop()
	require.NoError(t, err)
	if item.ID != "second" {
		t.Fatalf("expected LIFO order (second), got %s", item.ID)
	}

	item, err = sm.Pop()
	require.NoError(t, err)
	assert.Equal(t, "first", item.ID)
	assert.Equal(t, "Shock", item.Ability.Card)

	_, err = sm.Pop()
	assert.True(t, errors.Is(err, ErrStackEmpty))
	assert.True(t, sm.IsEmpty())
}

func TestStackManagerRemove(t *testing.T) {
	sm := NewStackManager()

	sm.Push(StackItem{ID: "first"})
	sm.Push(StackItem{ID: "second", SourceID: "card-2"})
	sm.Push(StackItem{ID: "third"})

	found, ok := sm.FindBySource("card-2")
	require.True(t, ok)
	assert.Equal(t, "second", found.ID)

	item, ok := sm.Remove("second")
	if !ok {
		t.Fatalf("expected to remove existing item")
	}
	if item.ID != "second" {
		t.Fatalf("expected removed ID second, got %s", item.ID)
	}
	_, ok = sm.Remove("second")
	assert.False(t, ok)

	top, _ := sm.Pop()
	if top.ID != "third" {
		t.Fatalf("expected third to remain on top, got %s", top.ID)
	}
}

func TestStackManagerUpdateAndRestore(t *testing.T) {
	sm := NewStackManager()
	sm.Push(StackItem{ID: "a", Bindings: Bindings{}})

	item, _ := sm.Peek()
	item.Bindings.SetNumber("x", 3)
	require.True(t, sm.Update(item))
	assert.False(t, sm.Update(StackItem{ID: "missing"}))

	restored := RestoreStackManager(sm.List())
	top, ok := restored.Peek()
	require.True(t, ok)
	assert.Equal(t, 3, top.Bindings.Number("x"))
}
