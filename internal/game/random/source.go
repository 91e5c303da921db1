// Package random supplies the engine's only source of randomness. A seeded
// source records how far it has advanced so a checkpoint can restore it.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

//go:generate mockgen -destination=mock/mock_source.go -package=mockrandom -source=source.go

// Source produces the random values the rules need: coin flips and shuffles.
type Source interface {
	// Intn returns a uniform int in [0, n).
	Intn(n int) int
	// Position returns how many values the source has drawn since it was seeded.
	Position() int64
}

// counting wraps a rand.Source and counts every draw from it, including the
// extra draws Intn makes when it rejects a sample.
type counting struct {
	src rand.Source
	n   int64
}

func (c *counting) Int63() int64 {
	c.n++
	return c.src.Int63()
}

func (c *counting) Seed(seed int64) {
	c.src.Seed(seed)
	c.n = 0
}

// Seeded is a deterministic Source.
type Seeded struct {
	seed int64
	src  *counting
	rng  *rand.Rand
}

// NewSeeded creates a source from seed.
func NewSeeded(seed int64) *Seeded {
	src := &counting{src: rand.NewSource(seed)}
	return &Seeded{seed: seed, src: src, rng: rand.New(src)}
}

// Restore recreates the source a checkpoint was taken from.
func Restore(seed, position int64) *Seeded {
	s := NewSeeded(seed)
	for s.src.n < position {
		s.src.Int63()
	}
	return s
}

func (s *Seeded) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return s.rng.Intn(n)
}

func (s *Seeded) Position() int64 { return s.src.n }

// Seed returns the seed the source was created with.
func (s *Seeded) Seed() int64 { return s.seed }

// NewSeed draws a seed from crypto/rand for games configured without one.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
