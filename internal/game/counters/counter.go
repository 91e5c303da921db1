package counters

import (
	"sort"
	"strconv"
	"strings"
)

// Counters is the counter component of a permanent or player, keyed by counter name.
type Counters map[string]int

// New creates an empty counter set.
func New() Counters {
	return make(Counters)
}

// Add adds amount counters of the given name. Non-positive amounts are ignored.
func (cs Counters) Add(name string, amount int) {
	if amount <= 0 {
		return
	}
	cs[name] += amount
}

// Remove removes up to amount counters and returns how many were removed.
func (cs Counters) Remove(name string, amount int) int {
	if amount <= 0 {
		return 0
	}
	have := cs[name]
	if amount > have {
		amount = have
	}
	if have-amount == 0 {
		delete(cs, name)
	} else {
		cs[name] = have - amount
	}
	return amount
}

// Get returns the count of counters with the given name.
func (cs Counters) Get(name string) int {
	return cs[name]
}

// Has returns true if there are any counters with the given name.
func (cs Counters) Has(name string) bool {
	return cs[name] > 0
}

// Total returns the total number of all counters.
func (cs Counters) Total() int {
	total := 0
	for _, n := range cs {
		total += n
	}
	return total
}

// Names returns the counter names in sorted order.
func (cs Counters) Names() []string {
	names := make([]string, 0, len(cs))
	for name := range cs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Copy creates a deep copy. A nil set copies to nil.
func (cs Counters) Copy() Counters {
	if cs == nil {
		return nil
	}
	out := make(Counters, len(cs))
	for name, n := range cs {
		out[name] = n
	}
	return out
}

// Boost returns the summed power/toughness change of all boost counters
// (names such as "+1/+1" or "-1/-1").
func (cs Counters) Boost() (power, toughness int) {
	for _, name := range cs.Names() {
		p, t, ok := ParseBoost(name)
		if !ok {
			continue
		}
		power += p * cs[name]
		toughness += t * cs[name]
	}
	return power, toughness
}

// Annihilate removes matching pairs of +1/+1 and -1/-1 counters and returns
// the number of pairs removed.
func (cs Counters) Annihilate() int {
	pairs := cs.Get(string(CounterTypeP1P1))
	if m := cs.Get(string(CounterTypeM1M1)); m < pairs {
		pairs = m
	}
	if pairs == 0 {
		return 0
	}
	cs.Remove(string(CounterTypeP1P1), pairs)
	cs.Remove(string(CounterTypeM1M1), pairs)
	return pairs
}

// ParseBoost parses a boost counter name ("+1/+1", "-2/-0") into power/toughness deltas.
func ParseBoost(name string) (int, int, bool) {
	left, right, found := strings.Cut(name, "/")
	if !found {
		return 0, 0, false
	}
	power, ok := parseSigned(left)
	if !ok {
		return 0, 0, false
	}
	toughness, ok := parseSigned(right)
	if !ok {
		return 0, 0, false
	}
	return power, toughness, true
}

// BoostName formats power/toughness deltas as a counter name.
func BoostName(power, toughness int) string {
	return formatSigned(power) + "/" + formatSigned(toughness)
}

func parseSigned(s string) (int, bool) {
	if len(s) < 2 || (s[0] != '+' && s[0] != '-') {
		return 0, false
	}
	value, err := strconv.Atoi(s[1:])
	if err != nil || value < 0 {
		return 0, false
	}
	if s[0] == '-' {
		value = -value
	}
	return value, true
}

func formatSigned(value int) string {
	if value < 0 {
		return strconv.Itoa(value)
	}
	return "+" + strconv.Itoa(value)
}
