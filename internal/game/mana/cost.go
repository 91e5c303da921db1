package mana

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ManaCost represents a parsed mana cost.
type ManaCost struct {
	Generic   int  `json:"generic,omitempty"`
	White     int  `json:"white,omitempty"`
	Blue      int  `json:"blue,omitempty"`
	Black     int  `json:"black,omitempty"`
	Red       int  `json:"red,omitempty"`
	Green     int  `json:"green,omitempty"`
	Colorless int  `json:"colorless,omitempty"`
	X         bool `json:"x,omitempty"`
}

var symbolPattern = regexp.MustCompile(`\{([^}]+)\}`)

// ParseCost parses a mana cost string (e.g., "{1}{G}", "{2}{R}{R}", "{X}{R}").
func ParseCost(costStr string) (*ManaCost, error) {
	cost := &ManaCost{}
	if strings.TrimSpace(costStr) == "" {
		return cost, nil
	}

	matches := symbolPattern.FindAllStringSubmatch(costStr, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no mana symbols in %q", costStr)
	}
	for _, match := range matches {
		symbol := strings.ToUpper(strings.TrimSpace(match[1]))
		if symbol == "X" {
			cost.X = true
			continue
		}
		if manaType, ok := symbolTypes[symbol]; ok {
			cost.add(manaType, 1)
			continue
		}
		num, err := strconv.Atoi(symbol)
		if err != nil || num < 0 {
			return nil, fmt.Errorf("unknown mana symbol: {%s}", symbol)
		}
		cost.Generic += num
	}
	return cost, nil
}

func (mc *ManaCost) add(manaType ManaType, amount int) {
	switch manaType {
	case ManaWhite:
		mc.White += amount
	case ManaBlue:
		mc.Blue += amount
	case ManaBlack:
		mc.Black += amount
	case ManaRed:
		mc.Red += amount
	case ManaGreen:
		mc.Green += amount
	case ManaColorless:
		mc.Colorless += amount
	}
}

// Colored returns the required amount of a specific mana type.
func (mc *ManaCost) Colored(manaType ManaType) int {
	switch manaType {
	case ManaWhite:
		return mc.White
	case ManaBlue:
		return mc.Blue
	case ManaBlack:
		return mc.Black
	case ManaRed:
		return mc.Red
	case ManaGreen:
		return mc.Green
	case ManaColorless:
		return mc.Colorless
	default:
		return 0
	}
}

// ManaValue returns the total amount of mana in the cost, counting X as zero.
func (mc *ManaCost) ManaValue() int {
	return mc.Generic + mc.White + mc.Blue + mc.Black + mc.Red + mc.Green + mc.Colorless
}

// String returns the cost in brace notation.
func (mc *ManaCost) String() string {
	var b strings.Builder
	if mc.X {
		b.WriteString("{X}")
	}
	if mc.Generic > 0 {
		fmt.Fprintf(&b, "{%d}", mc.Generic)
	}
	for _, manaType := range paymentOrder {
		for i := 0; i < mc.Colored(manaType); i++ {
			fmt.Fprintf(&b, "{%s}", manaType.Symbol())
		}
	}
	if b.Len() == 0 {
		return "{0}"
	}
	return b.String()
}

// AdjustGeneric returns a copy whose generic part is changed by delta.
// Negative deltas are reductions and never take the generic part below zero.
func (mc *ManaCost) AdjustGeneric(delta int) *ManaCost {
	adjusted := *mc
	adjusted.Generic += delta
	if adjusted.Generic < 0 {
		adjusted.Generic = 0
	}
	return &adjusted
}

// ApplyReduction applies a generic and per-colour reduction to this mana cost.
func (mc *ManaCost) ApplyReduction(genericReduction int, coloredReduction map[ManaType]int) *ManaCost {
	reduced := mc.AdjustGeneric(-genericReduction)
	for manaType, amount := range coloredReduction {
		have := reduced.Colored(manaType)
		if amount > have {
			amount = have
		}
		reduced.add(manaType, -amount)
	}
	return reduced
}
