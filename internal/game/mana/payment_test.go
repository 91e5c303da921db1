package mana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePayment(t *testing.T) {
	pool := NewManaPool()
	pool.Add(ManaGreen, 2)
	pool.Add(ManaColorless, 1)

	result := CalculatePayment(&ManaCost{Generic: 1, Green: 1}, pool, 0)
	require.True(t, result.Success, result.Reason)
	assert.Equal(t, 1, result.Plan.Spend[ManaColorless], "generic is paid with colorless first")
	assert.Equal(t, 1, result.Plan.Spend[ManaGreen])
	assert.Equal(t, 3, pool.Total(), "calculation never spends")

	result = CalculatePayment(&ManaCost{Red: 1}, pool, 0)
	assert.False(t, result.Success)
	assert.Contains(t, result.Reason, "RED")

	result = CalculatePayment(&ManaCost{X: true}, pool, 4)
	assert.False(t, result.Success)

	assert.True(t, CalculatePayment(nil, pool, 0).Success)
}

func TestPayIsAllOrNothing(t *testing.T) {
	pool := NewManaPool()
	pool.Add(ManaWhite, 1)

	err := Pay(&ManaCost{Generic: 1, White: 1}, pool, 0)
	assert.Error(t, err)
	assert.Equal(t, 1, pool.Get(ManaWhite))

	pool.Add(ManaWhite, 1)
	require.NoError(t, Pay(&ManaCost{Generic: 1, White: 1}, pool, 0))
	assert.Equal(t, 0, pool.Total())
}
