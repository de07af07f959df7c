package random

import (
	"math/rand/v2"
	"sync"
	"time"
)

const streamMix = 0x9e3779b97f4a7c15

// Generator is a seedable pseudo random number generator built on PCG.
// All methods are safe for concurrent use.
type Generator struct {
	mu   sync.Mutex
	seed uint64
	pcg  *rand.PCG
	rng  *rand.Rand
}

// Default is a process wide generator seeded from the wall clock.
var Default = New(uint64(time.Now().UnixNano()))

// New returns a generator seeded with seed. Two generators with the same seed
// produce the same sequence.
func New(seed uint64) *Generator {
	pcg := rand.NewPCG(seed, seed^streamMix)
	return &Generator{
		seed: seed,
		pcg:  pcg,
		rng:  rand.New(pcg),
	}
}

// Seed returns the seed the generator was created or last reseeded with.
func (g *Generator) Seed() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seed
}

// Reset rewinds the generator to the start of its seed's sequence.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pcg.Seed(g.seed, g.seed^streamMix)
}

// Reseed switches the generator to the sequence for seed.
func (g *Generator) Reseed(seed uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seed = seed
	g.pcg.Seed(seed, seed^streamMix)
}

// Range returns a uniformly distributed integer in [lo, hi]. The bounds may be
// given in either order.
func (g *Generator) Range(lo, hi int64) int64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	span := uint64(hi - lo)

	g.mu.Lock()
	defer g.mu.Unlock()
	if span == ^uint64(0) {
		return int64(g.rng.Uint64())
	}
	return lo + int64(g.rng.Uint64N(span+1))
}

// RangeFloat returns a uniformly distributed float in [lo, hi).
func (g *Generator) RangeFloat(lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + g.rng.Float64()*(hi-lo)
}

// Index returns a random index into a collection of length n. It returns 0
// when n is 0 or 1.
func (g *Generator) Index(n int) int {
	if n <= 1 {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}

// DieRoll rolls a die with the given number of sides, returning a value in
// [1, sides]. A die with no sides always rolls 0.
func (g *Generator) DieRoll(sides uint32) uint32 {
	if sides == 0 {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return 1 + g.rng.Uint32N(sides)
}

// Probability reports true with probability p. p is clamped to [0, 1].
func (g *Generator) Probability(p float64) bool {
	switch {
	case p <= 0:
		return false
	case p >= 1:
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() < p
}

// Duration returns a random duration in [0, limit). Non-positive limit yields 0.
func (g *Generator) Duration(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Duration(g.rng.Int64N(int64(limit)))
}

// Shuffle pseudo-randomizes the order of elements using swap.
func (g *Generator) Shuffle(n int, swap func(i, j int)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng.Shuffle(n, swap)
}

// Range returns Default.Range(lo, hi).
func Range(lo, hi int64) int64 { return Default.Range(lo, hi) }

// RangeFloat returns Default.RangeFloat(lo, hi).
func RangeFloat(lo, hi float64) float64 { return Default.RangeFloat(lo, hi) }

// Index returns Default.Index(n).
func Index(n int) int { return Default.Index(n) }

// DieRoll returns Default.DieRoll(sides).
func DieRoll(sides uint32) uint32 { return Default.DieRoll(sides) }

// Probability returns Default.Probability(p).
func Probability(p float64) bool { return Default.Probability(p) }
