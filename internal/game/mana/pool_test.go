package mana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManaPool_AddSpend(t *testing.T) {
	pool := NewManaPool()
	pool.Add(ManaWhite, 3)
	pool.Add(ManaBlue, 2)
	pool.Add(ManaBlue, -1)

	if !pool.Spend(ManaWhite, 2) {
		t.Error("Expected to spend 2 white mana")
	}
	assert.Equal(t, 1, pool.Get(ManaWhite))
	assert.False(t, pool.Spend(ManaBlue, 3), "cannot overspend")
	assert.Equal(t, 2, pool.Get(ManaBlue), "failed spend leaves the pool alone")
	assert.Equal(t, 3, pool.Total())

	pool.Empty()
	assert.Equal(t, 0, pool.Total())
}

func TestManaPool_CopyReplace(t *testing.T) {
	pool := NewManaPool()
	pool.Add(ManaGreen, 2)

	cp := pool.Copy()
	cp.Spend(ManaGreen, 2)
	assert.Equal(t, 2, pool.Get(ManaGreen))

	pool.Replace(cp)
	assert.Equal(t, 0, pool.Get(ManaGreen))
}

func TestParseManaType(t *testing.T) {
	for input, expected := range map[string]ManaType{"G": ManaGreen, "{w}": ManaWhite, "colorless": ManaColorless} {
		got, err := ParseManaType(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, got)
	}
	_, err := ParseManaType("purple")
	assert.Error(t, err)
	assert.Equal(t, "R", ManaRed.Symbol())
}
