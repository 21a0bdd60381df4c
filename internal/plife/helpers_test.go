package plife

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// testConfig returns a small deterministic configuration without gravity,
// friction or an initial population.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.World.Lower = r3.Vec{X: -50, Y: -50, Z: -50}
	cfg.World.Upper = r3.Vec{X: 50, Y: 50, Z: 50}
	cfg.World.CellSize = 10
	cfg.Physics.MinStepRate = 0
	cfg.Physics.SpeedMultiplier = 1
	cfg.Physics.SpeedMultiplier2 = 1
	cfg.Physics.Friction = 1
	cfg.Physics.Strength = 1
	cfg.Physics.MaxSpeed = 1000
	cfg.Gravity.Strength = 0
	cfg.Types.NumTypes = 2
	cfg.Types.RangeMinUpper = 4
	cfg.Types.RangeMaxLower = 5
	cfg.Types.RangeMaxUpper = 10
	cfg.Spawn.Count = 0
	cfg.Seed = 1
	return cfg
}

func newTestWorld(t *testing.T, cfg Config) *World {
	t.Helper()
	w, err := NewWorld("test", cfg)
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}
	return w
}

func randomPositions(n int, lo, hi float64, seed uint64) []r3.Vec {
	rng := newRand(seed)
	out := make([]r3.Vec, n)
	for i := range out {
		out[i] = r3.Vec{X: uniform(rng, lo, hi), Y: uniform(rng, lo, hi), Z: uniform(rng, lo, hi)}
	}
	return out
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
