// rng.go - seedable control-thread-only PRNG

package engine

import "math/rand/v2"

// Rand wraps a seeded generator for the two control-thread-only
// sources of randomness the engine needs: small-world rewiring targets
// and "random" poke phase hints (spec.md §9). It must never be called
// from the audio render path.
type Rand struct {
	r *rand.Rand
}

// NewRand seeds a generator deterministically so topology rebuilds and
// randomized pokes are reproducible in tests (spec.md §9).
func NewRand(seed uint64) *Rand {
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *Rand) Float64() float64 {
	return r.r.Float64()
}

func (r *Rand) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return r.r.IntN(n)
}
