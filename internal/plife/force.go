package plife

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// epsilon guards every division and every comparison against a degenerate
// distance, span or denominator.
const epsilon = 1e-6

// maxFoldIterations bounds the add/subtract loops used for periodic folding
// before falling back to math.Mod.
const maxFoldIterations = 8

// PairForce returns the signed force magnitude between two particles at
// separation r. Positive values attract.
//
// Between rangeMin and rangeMax the force follows a tent profile that is zero
// at both ends and peaks at |attract| in the middle; with flat set it is
// attract throughout. Below rangeMin the force is always repulsive and
// shaped by the smoothing radius. Both branches are zero at r == rangeMin,
// and the force is exactly zero from rangeMax on.
func PairForce(r, attract, rangeMin, rangeMax, smoothing float64, flat bool) float64 {
	if r >= rangeMax && r >= rangeMin {
		return 0
	}
	if r >= rangeMin {
		if flat {
			return attract
		}
		span := rangeMax - rangeMin
		if span <= epsilon {
			return attract
		}
		mid := (rangeMin + rangeMax) * 0.5
		return attract * (1 - 2*math.Abs(r-mid)/span)
	}
	d0 := rangeMin + smoothing
	d1 := r + smoothing
	if d0 <= epsilon || d1 <= epsilon {
		return 0
	}
	return smoothing * rangeMin * (1/d0 - 1/d1)
}

// forceEvaluator accumulates pairwise velocity changes for one step. It only
// reads its inputs and is safe for concurrent use.
type forceEvaluator struct {
	matrix    *TypeMatrix
	dim       [3]float64
	half      [3]float64
	wrap      [3]bool
	flat      bool
	smoothing float64
	gain      float64 // strength * dt
}

func newForceEvaluator(m *TypeMatrix, w WorldConfig, p PhysicsConfig, dt float64) *forceEvaluator {
	ext := w.Extent()
	fe := &forceEvaluator{
		matrix:    m,
		dim:       [3]float64{ext.X, ext.Y, ext.Z},
		flat:      p.FlatForce,
		smoothing: p.SmoothingRadius,
		gain:      p.Strength * dt,
	}
	for a := 0; a < 3; a++ {
		fe.half[a] = fe.dim[a] * 0.5
		fe.wrap[a] = w.Wrap[a] && fe.dim[a] > 0
	}
	return fe
}

// displacement returns to - from using the nearest periodic image on
// wrapped axes.
func (fe *forceEvaluator) displacement(from, to r3.Vec) r3.Vec {
	d := r3.Sub(to, from)
	if fe.wrap[0] {
		d.X = foldDisplacement(d.X, fe.dim[0], fe.half[0])
	}
	if fe.wrap[1] {
		d.Y = foldDisplacement(d.Y, fe.dim[1], fe.half[1])
	}
	if fe.wrap[2] {
		d.Z = foldDisplacement(d.Z, fe.dim[2], fe.half[2])
	}
	return d
}

// accumulate adds the velocity change particle i (at pi, type ti) receives
// from particle j (at pj, type tj) to dv. It reports whether j was within
// interaction range.
func (fe *forceEvaluator) accumulate(pi r3.Vec, ti int, pj r3.Vec, tj int, dv *r3.Vec) bool {
	d := fe.displacement(pi, pj)
	k := ti*fe.matrix.NumTypes + tj
	rangeMax := fe.matrix.RangeMax[k]
	r2 := r3.Norm2(d)
	if r2 >= rangeMax*rangeMax {
		return false
	}
	r := math.Sqrt(r2)
	if r < epsilon {
		return false
	}
	f := PairForce(r, fe.matrix.Attract[k], fe.matrix.RangeMin[k], rangeMax, fe.smoothing, fe.flat)
	*dv = r3.Add(*dv, r3.Scale(f*fe.gain/r, d))
	return true
}

// foldDisplacement maps d into [-half, half] for a periodic axis of length dim.
func foldDisplacement(d, dim, half float64) float64 {
	for k := 0; k < maxFoldIterations; k++ {
		switch {
		case d < -half:
			d += dim
		case d > half:
			d -= dim
		default:
			return d
		}
	}
	d = math.Mod(d, dim)
	if d > half {
		d -= dim
	} else if d < -half {
		d += dim
	}
	return d
}
