package counters

// CounterType names a kind of counter.
type CounterType string

const (
	CounterTypeP1P1    CounterType = "+1/+1"
	CounterTypeM1M1    CounterType = "-1/-1"
	CounterTypeP1P0    CounterType = "+1/+0"
	CounterTypeP0P1    CounterType = "+0/+1"
	CounterTypePoison  CounterType = "poison"
	CounterTypeLoyalty CounterType = "loyalty"
	CounterTypeCharge  CounterType = "charge"
	CounterTypeTime    CounterType = "time"
	CounterTypeShield  CounterType = "shield"
)

// PoisonLimit is the number of poison counters at which a player loses.
const PoisonLimit = 10

// IsBoost reports whether the counter type changes power/toughness.
func (ct CounterType) IsBoost() bool {
	_, _, ok := ParseBoost(string(ct))
	return ok
}
