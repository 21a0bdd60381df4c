package plife

import (
	"math"
	"testing"

	"github.com/aquilax/go-perlin"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSpawnRegion_Bounds(t *testing.T) {
	w := WorldConfig{Lower: r3.Vec{X: -100, Y: 0, Z: 0}, Upper: r3.Vec{X: 100, Y: 100, Z: 10}}
	r := SpawnRegion{Center: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, Size: r3.Vec{X: 0.25, Y: 0.5, Z: 1}}
	lo, hi := r.Bounds(w)
	if lo != (r3.Vec{X: -25, Y: 25, Z: 0}) || hi != (r3.Vec{X: 25, Y: 75, Z: 10}) {
		t.Errorf("Unexpected bounds %v - %v", lo, hi)
	}
}

func TestSpawnParticles_InsideRegion(t *testing.T) {
	cfg := DefaultConfig()
	region := cfg.SpawnRegion()
	lo, hi := region.Bounds(cfg.World)
	ps := spawnParticles(newRand(1), cfg.World, region, cfg.Types.NumTypes, 2000)
	if len(ps) != 2000 {
		t.Fatalf("Expected 2000 particles, got %d", len(ps))
	}
	counts := make([]int, cfg.Types.NumTypes)
	for _, p := range ps {
		if p.Position.X < lo.X || p.Position.X > hi.X ||
			p.Position.Y < lo.Y || p.Position.Y > hi.Y ||
			p.Position.Z < lo.Z || p.Position.Z > hi.Z {
			t.Fatalf("Particle %v outside spawn region", p.Position)
		}
		s := region.InitialSpeed
		if math.Abs(p.Velocity.X) > s || math.Abs(p.Velocity.Y) > s || math.Abs(p.Velocity.Z) > s {
			t.Fatalf("Velocity %v exceeds initial speed %g", p.Velocity, s)
		}
		counts[p.Type]++
	}
	for typ, c := range counts {
		if c == 0 {
			t.Errorf("Expected uniform types to include type %d", typ)
		}
	}
}

func TestSpawnParticles_NoiseTypes(t *testing.T) {
	cfg := DefaultConfig()
	region := cfg.SpawnRegion()
	region.TypeNoise = 4
	ps := spawnParticles(newRand(2), cfg.World, region, 4, 1000)
	for _, p := range ps {
		if p.Type < 0 || p.Type >= 4 {
			t.Fatalf("Expected type in [0, 4), got %d", p.Type)
		}
	}

	// Nearby particles mostly share a type in a low-frequency field.
	region.Size = r3.Vec{X: 0.001, Y: 0.001, Z: 0.001}
	region.TypeNoise = 0.5
	ps = spawnParticles(newRand(3), cfg.World, region, 4, 50)
	same := 0
	for _, p := range ps {
		if p.Type == ps[0].Type {
			same++
		}
	}
	if same < 45 {
		t.Errorf("Expected a coherent noise patch, only %d of 50 share a type", same)
	}
}

func TestSpawnParticles_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	a := spawnParticles(newRand(9), cfg.World, cfg.SpawnRegion(), 3, 20)
	b := spawnParticles(newRand(9), cfg.World, cfg.SpawnRegion(), 3, 20)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Expected identical particles for identical seeds at %d", i)
		}
	}
}

func TestNoiseType_InRange(t *testing.T) {
	noise := perlin.NewPerlin(2, 2, 3, 17)
	ext := r3.Vec{X: 100, Y: 100, Z: 100}
	for i := 0; i < 500; i++ {
		rel := r3.Vec{X: float64(i % 100), Y: float64(i * 7 % 100), Z: float64(i * 13 % 100)}
		if typ := noiseType(noise, rel, ext, 3, 5); typ < 0 || typ >= 5 {
			t.Fatalf("Expected type in [0, 5), got %d", typ)
		}
	}
	if typ := noiseType(noise, r3.Vec{X: 1}, r3.Vec{}, 3, 5); typ < 0 || typ >= 5 {
		t.Errorf("Expected type in range for a flat world, got %d", typ)
	}
}

func TestSpawnRegion_Validate(t *testing.T) {
	if err := DefaultConfig().SpawnRegion().Validate(); err != nil {
		t.Errorf("Expected default region to be valid, got %v", err)
	}
	bad := SpawnRegion{Size: r3.Vec{X: -1}}
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for negative size")
	}
	bad = SpawnRegion{InitialSpeed: math.NaN()}
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for NaN speed")
	}
}
