package plife

import (
	"math"

	"github.com/aquilax/go-perlin"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"
)

// SpawnRegion is a box, relative to the world box, that new particles are
// scattered in. Center (0.5, 0.5, 0.5) with Size (1, 1, 1) fills the world.
type SpawnRegion struct {
	Center       r3.Vec  `json:"center"`
	Size         r3.Vec  `json:"size"`
	InitialSpeed float64 `json:"initial_speed"`
	// TypeNoise > 0 assigns types from a Perlin noise field instead of
	// uniformly at random, producing same-type patches. The value is the
	// spatial frequency in features per world width.
	TypeNoise float64 `json:"type_noise,omitempty"`
}

// Validate checks the region parameters.
func (r SpawnRegion) Validate() error {
	err := &ValidationError{}
	validateSpawn(SpawnConfig{
		Center:       r.Center,
		Size:         r.Size,
		InitialSpeed: r.InitialSpeed,
		TypeNoise:    r.TypeNoise,
	}, err)
	return err.orNil()
}

// Bounds returns the absolute corners of the region inside w.
func (r SpawnRegion) Bounds(w WorldConfig) (lo, hi r3.Vec) {
	ext := w.Extent()
	center := r3.Vec{
		X: w.Lower.X + r.Center.X*ext.X,
		Y: w.Lower.Y + r.Center.Y*ext.Y,
		Z: w.Lower.Z + r.Center.Z*ext.Z,
	}
	half := r3.Vec{X: 0.5 * r.Size.X * ext.X, Y: 0.5 * r.Size.Y * ext.Y, Z: 0.5 * r.Size.Z * ext.Z}
	return r3.Sub(center, half), r3.Add(center, half)
}

// spawnParticles creates n particles inside region.
func spawnParticles(rng *rand.Rand, w WorldConfig, region SpawnRegion, numTypes, n int) []Particle {
	lo, hi := region.Bounds(w)
	var noise *perlin.Perlin
	if region.TypeNoise > 0 {
		noise = perlin.NewPerlin(2, 2, 3, int64(rng.Uint64()>>1))
	}
	ext := w.Extent()
	s := region.InitialSpeed
	out := make([]Particle, n)
	for i := range out {
		p := r3.Vec{
			X: uniform(rng, lo.X, hi.X),
			Y: uniform(rng, lo.Y, hi.Y),
			Z: uniform(rng, lo.Z, hi.Z),
		}
		out[i] = Particle{
			Position: p,
			Velocity: r3.Vec{X: uniform(rng, -s, s), Y: uniform(rng, -s, s), Z: uniform(rng, -s, s)},
		}
		if noise != nil {
			out[i].Type = noiseType(noise, r3.Sub(p, w.Lower), ext, region.TypeNoise, numTypes)
		} else {
			out[i].Type = rng.Intn(numTypes)
		}
	}
	return out
}

// noiseType samples the noise field at rel (relative to the lower corner)
// and maps it onto [0, numTypes).
func noiseType(noise *perlin.Perlin, rel, ext r3.Vec, freq float64, numTypes int) int {
	scale := func(v, e float64) float64 {
		if e <= 0 {
			return 0
		}
		return v / e * freq
	}
	v := noise.Noise3D(scale(rel.X, ext.X), scale(rel.Y, ext.Y), scale(rel.Z, ext.Z))
	t := int(math.Floor((v*0.5 + 0.5) * float64(numTypes)))
	if t < 0 {
		return 0
	}
	if t >= numTypes {
		return numTypes - 1
	}
	return t
}
