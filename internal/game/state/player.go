package state

import (
	"github.com/magefree/mage-rules-go/internal/game/counters"
	"github.com/magefree/mage-rules-go/internal/game/mana"
)

// Player is the per-player part of the store.
type Player struct {
	ID       string            `json:"id"`
	Life     int               `json:"life"`
	Counters counters.Counters `json:"counters,omitempty"`
	Pool     *mana.ManaPool    `json:"pool"`

	Lost bool `json:"lost,omitempty"`
	// LossReason is kept for the game log.
	LossReason string `json:"loss_reason,omitempty"`
	// DrewFromEmpty is set by a draw from an empty library and read by the
	// next state-based action check.
	DrewFromEmpty bool `json:"drew_from_empty,omitempty"`
	LandsPlayed   int  `json:"lands_played,omitempty"`
}

// NewPlayer creates a player with an empty pool.
func NewPlayer(id string, life int) *Player {
	return &Player{ID: id, Life: life, Counters: counters.New(), Pool: mana.NewManaPool()}
}

// Poison returns the number of poison counters.
func (p *Player) Poison() int {
	return p.Counters.Get(string(counters.CounterTypePoison))
}

// Clone returns a deep copy.
func (p *Player) Clone() *Player {
	cp := &Player{
		ID:            p.ID,
		Life:          p.Life,
		Counters:      p.Counters.Copy(),
		Lost:          p.Lost,
		LossReason:    p.LossReason,
		DrewFromEmpty: p.DrewFromEmpty,
		LandsPlayed:   p.LandsPlayed,
	}
	if p.Pool != nil {
		cp.Pool = p.Pool.Copy()
	} else {
		cp.Pool = mana.NewManaPool()
	}
	if cp.Counters == nil {
		cp.Counters = counters.New()
	}
	return cp
}
