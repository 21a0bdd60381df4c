package plife

import (
	"math"
	"time"

	"golang.org/x/exp/rand"
)

// newRand returns a PCG-backed generator. A zero seed is replaced by the clock.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewSource(seed))
}

// gaussian draws a standard normal sample with the polar Box-Muller method.
// Candidates outside the unit disc and the degenerate centre are rejected.
func gaussian(rng *rand.Rand) float64 {
	var u, v, s float64
	for {
		u = 2*rng.Float64() - 1
		v = 2*rng.Float64() - 1
		s = u*u + v*v
		if s < 1 && math.Abs(s) >= 1e-6 {
			break
		}
	}
	return u * math.Sqrt(-2*math.Log(s)/s)
}

// uniform draws from [lo, hi).
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}
