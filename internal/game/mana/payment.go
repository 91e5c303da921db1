package mana

import (
	"fmt"
)

// PaymentPlan records how much of each mana type pays a cost.
type PaymentPlan struct {
	Spend  map[ManaType]int
	XValue int
}

// PaymentResult represents the result of a payment attempt.
type PaymentResult struct {
	Success bool
	Plan    *PaymentPlan
	Reason  string
}

// CalculatePayment works out a payment plan for cost from pool without
// touching the pool. Coloured requirements are paid first; generic mana
// (including X) is paid from what remains in payment order.
func CalculatePayment(cost *ManaCost, pool *ManaPool, xValue int) *PaymentResult {
	plan := &PaymentPlan{Spend: make(map[ManaType]int), XValue: xValue}
	if cost == nil {
		return &PaymentResult{Success: true, Plan: plan}
	}
	if cost.X && xValue < 0 {
		return &PaymentResult{Reason: "X value must not be negative"}
	}

	testPool := pool.Copy()
	for _, manaType := range paymentOrder {
		need := cost.Colored(manaType)
		if !testPool.Spend(manaType, need) {
			return &PaymentResult{
				Reason: fmt.Sprintf("insufficient %s mana (need %d, have %d)", manaType, need, testPool.Get(manaType)),
			}
		}
		plan.Spend[manaType] += need
	}

	generic := cost.Generic
	if cost.X {
		generic += xValue
	}
	for _, manaType := range genericOrder {
		if generic == 0 {
			break
		}
		take := testPool.Get(manaType)
		if take > generic {
			take = generic
		}
		testPool.Spend(manaType, take)
		plan.Spend[manaType] += take
		generic -= take
	}
	if generic > 0 {
		return &PaymentResult{Reason: fmt.Sprintf("insufficient mana for generic cost (missing %d)", generic)}
	}
	return &PaymentResult{Success: true, Plan: plan}
}

// genericOrder spends colorless first, then colours.
var genericOrder = []ManaType{ManaColorless, ManaWhite, ManaBlue, ManaBlack, ManaRed, ManaGreen}

// ExecutePayment spends a calculated plan from the pool. It is all or nothing.
func ExecutePayment(plan *PaymentPlan, pool *ManaPool) bool {
	if plan == nil {
		return true
	}
	trial := pool.Copy()
	for _, manaType := range paymentOrder {
		if !trial.Spend(manaType, plan.Spend[manaType]) {
			return false
		}
	}
	pool.Replace(trial)
	return true
}

// Pay calculates and executes a payment in one step.
func Pay(cost *ManaCost, pool *ManaPool, xValue int) error {
	result := CalculatePayment(cost, pool, xValue)
	if !result.Success {
		return fmt.Errorf("cannot pay %s: %s", cost, result.Reason)
	}
	if !ExecutePayment(result.Plan, pool) {
		return fmt.Errorf("cannot pay %s: pool changed during payment", cost)
	}
	return nil
}
