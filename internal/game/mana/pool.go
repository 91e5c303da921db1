package mana

import (
	"fmt"
	"strings"
	"sync"
)

// ManaType represents a type of mana.
type ManaType string

const (
	ManaWhite     ManaType = "WHITE"
	ManaBlue      ManaType = "BLUE"
	ManaBlack     ManaType = "BLACK"
	ManaRed       ManaType = "RED"
	ManaGreen     ManaType = "GREEN"
	ManaColorless ManaType = "COLORLESS"
)

var symbolTypes = map[string]ManaType{
	"W": ManaWhite,
	"U": ManaBlue,
	"B": ManaBlack,
	"R": ManaRed,
	"G": ManaGreen,
	"C": ManaColorless,
}

// paymentOrder is the order colours are spent in; colorless comes last so
// generic costs are paid with the least useful mana first.
var paymentOrder = []ManaType{ManaWhite, ManaBlue, ManaBlack, ManaRed, ManaGreen, ManaColorless}

// Symbol returns the one-letter symbol of the mana type.
func (mt ManaType) Symbol() string {
	for symbol, manaType := range symbolTypes {
		if manaType == mt {
			return symbol
		}
	}
	return "?"
}

// ParseManaType converts "G", "{G}" or "green" into a ManaType.
func ParseManaType(s string) (ManaType, error) {
	key := strings.ToUpper(strings.Trim(strings.TrimSpace(s), "{}"))
	if manaType, ok := symbolTypes[key]; ok {
		return manaType, nil
	}
	for _, manaType := range paymentOrder {
		if string(manaType) == key {
			return manaType, nil
		}
	}
	return "", fmt.Errorf("unknown mana type %q", s)
}

// ManaPool represents a player's mana pool. It empties between steps.
type ManaPool struct {
	mu sync.RWMutex

	White     int `json:"white,omitempty"`
	Blue      int `json:"blue,omitempty"`
	Black     int `json:"black,omitempty"`
	Red       int `json:"red,omitempty"`
	Green     int `json:"green,omitempty"`
	Colorless int `json:"colorless,omitempty"`
}

// NewManaPool creates a new empty mana pool.
func NewManaPool() *ManaPool {
	return &ManaPool{}
}

func (mp *ManaPool) slot(manaType ManaType) *int {
	switch manaType {
	case ManaWhite:
		return &mp.White
	case ManaBlue:
		return &mp.Blue
	case ManaBlack:
		return &mp.Black
	case ManaRed:
		return &mp.Red
	case ManaGreen:
		return &mp.Green
	case ManaColorless:
		return &mp.Colorless
	default:
		return nil
	}
}

// Add adds mana to the pool.
func (mp *ManaPool) Add(manaType ManaType, amount int) {
	if amount <= 0 {
		return
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if slot := mp.slot(manaType); slot != nil {
		*slot += amount
	}
}

// Get returns the amount of a specific mana type.
func (mp *ManaPool) Get(manaType ManaType) int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	if slot := mp.slot(manaType); slot != nil {
		return *slot
	}
	return 0
}

// Spend removes mana of a specific type. It returns false, spending nothing,
// when the pool holds less than amount.
func (mp *ManaPool) Spend(manaType ManaType, amount int) bool {
	if amount <= 0 {
		return true
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	slot := mp.slot(manaType)
	if slot == nil || *slot < amount {
		return false
	}
	*slot -= amount
	return true
}

// Total returns the amount of mana in the pool.
func (mp *ManaPool) Total() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.White + mp.Blue + mp.Black + mp.Red + mp.Green + mp.Colorless
}

// Empty removes all mana from the pool.
func (mp *ManaPool) Empty() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.White, mp.Blue, mp.Black, mp.Red, mp.Green, mp.Colorless = 0, 0, 0, 0, 0, 0
}

// Copy creates a copy of the pool.
func (mp *ManaPool) Copy() *ManaPool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return &ManaPool{
		White:     mp.White,
		Blue:      mp.Blue,
		Black:     mp.Black,
		Red:       mp.Red,
		Green:     mp.Green,
		Colorless: mp.Colorless,
	}
}

// Replace overwrites the pool contents with other's.
func (mp *ManaPool) Replace(other *ManaPool) {
	snapshot := other.Copy()
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.White = snapshot.White
	mp.Blue = snapshot.Blue
	mp.Black = snapshot.Black
	mp.Red = snapshot.Red
	mp.Green = snapshot.Green
	mp.Colorless = snapshot.Colorless
}
