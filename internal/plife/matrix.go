package plife

import (
	"math"

	"golang.org/x/exp/rand"
)

// TypeMatrix holds the interaction parameters of every ordered type pair.
// Entry (a, b) lives at index a*NumTypes+b of each array and describes how a
// particle of type a reacts to a neighbour of type b.
//
// A matrix that has been published to a World must not be mutated; build a
// new one (or Clone) and publish that instead.
type TypeMatrix struct {
	NumTypes int       `json:"num_types" msgpack:"num_types"`
	Attract  []float64 `json:"attract" msgpack:"attract"`
	RangeMin []float64 `json:"range_min" msgpack:"range_min"`
	RangeMax []float64 `json:"range_max" msgpack:"range_max"`
}

// RandomizeParams describes the distributions used by TypeMatrix.Randomize.
type RandomizeParams struct {
	AttractMean float64    `json:"attract_mean"`
	AttractStd  float64    `json:"attract_std"`
	RangeMin    [2]float64 `json:"range_min"`
	RangeMax    [2]float64 `json:"range_max"`
	// MinSeparation floors every RangeMin, typically twice the particle radius.
	MinSeparation float64 `json:"min_separation"`
}

// Validate checks that the parameters describe usable distributions.
func (p RandomizeParams) Validate() error {
	err := &ValidationError{}
	for _, v := range []float64{p.AttractMean, p.AttractStd, p.RangeMin[0], p.RangeMin[1], p.RangeMax[0], p.RangeMax[1], p.MinSeparation} {
		if !isFinite(v) {
			err.Add("randomize: parameters must be finite")
			return err
		}
	}
	if p.AttractStd < 0 {
		err.Add("randomize: attract_std must be >= 0")
	}
	if p.RangeMin[0] < 0 || p.RangeMin[0] > p.RangeMin[1] {
		err.Add("randomize: range_min must satisfy 0 <= lower <= upper")
	}
	if p.RangeMax[0] < 0 || p.RangeMax[0] > p.RangeMax[1] {
		err.Add("randomize: range_max must satisfy 0 <= lower <= upper")
	}
	if p.MinSeparation < 0 {
		err.Add("randomize: min_separation must be >= 0")
	}
	return err.orNil()
}

// NewTypeMatrix allocates a zeroed matrix for numTypes types.
func NewTypeMatrix(numTypes int) *TypeMatrix {
	m := &TypeMatrix{}
	if numTypes < 1 {
		numTypes = 1
	}
	m.allocate(numTypes)
	return m
}

func (m *TypeMatrix) allocate(numTypes int) {
	n2 := numTypes * numTypes
	m.NumTypes = numTypes
	m.Attract = make([]float64, n2)
	m.RangeMin = make([]float64, n2)
	m.RangeMax = make([]float64, n2)
}

// Resize reallocates the matrix for numTypes types. Previous contents are lost.
func (m *TypeMatrix) Resize(numTypes int) error {
	if numTypes < 1 {
		return &ValidationError{Issues: []string{"type matrix: num_types must be >= 1"}}
	}
	m.allocate(numTypes)
	return nil
}

func (m *TypeMatrix) consistent() bool {
	n2 := m.NumTypes * m.NumTypes
	return m.NumTypes >= 1 && len(m.Attract) == n2 && len(m.RangeMin) == n2 && len(m.RangeMax) == n2
}

// Randomize refills the matrix from p. Off-diagonal attractions are drawn
// independently per direction while the ranges are shared by both directions.
// Diagonal attractions are always negative so a type never pulls itself
// together. A matrix with inconsistent array lengths is left untouched.
func (m *TypeMatrix) Randomize(rng *rand.Rand, p RandomizeParams) error {
	if !m.consistent() {
		return ValidateMatrix(m)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	n := m.NumTypes
	draw := func() float64 { return gaussian(rng)*p.AttractStd + p.AttractMean }
	for i := 0; i < n; i++ {
		for k := i; k < n; k++ {
			ik := i*n + k
			ki := k*n + i
			if i == k {
				m.Attract[ik] = -math.Abs(draw())
				m.RangeMin[ik] = p.MinSeparation
			} else {
				m.Attract[ik] = draw()
				m.Attract[ki] = draw()
				m.RangeMin[ik] = math.Max(p.MinSeparation, uniform(rng, p.RangeMin[0], p.RangeMin[1]))
			}
			m.RangeMax[ik] = math.Max(m.RangeMin[ik], uniform(rng, p.RangeMax[0], p.RangeMax[1]))
			m.RangeMin[ki] = m.RangeMin[ik]
			m.RangeMax[ki] = m.RangeMax[ik]
		}
	}
	return nil
}

// At returns the parameters of the ordered pair (a, b).
func (m *TypeMatrix) At(a, b int) (attract, rangeMin, rangeMax float64) {
	k := a*m.NumTypes + b
	return m.Attract[k], m.RangeMin[k], m.RangeMax[k]
}

// Set stores the parameters of the ordered pair (a, b).
func (m *TypeMatrix) Set(a, b int, attract, rangeMin, rangeMax float64) {
	k := a*m.NumTypes + b
	m.Attract[k] = attract
	m.RangeMin[k] = rangeMin
	m.RangeMax[k] = rangeMax
}

// MaxRangeMax returns the largest interaction range in the matrix.
func (m *TypeMatrix) MaxRangeMax() float64 {
	maxRange := 0.0
	for _, r := range m.RangeMax {
		if r > maxRange {
			maxRange = r
		}
	}
	return maxRange
}

// Clone returns a deep copy.
func (m *TypeMatrix) Clone() *TypeMatrix {
	return &TypeMatrix{
		NumTypes: m.NumTypes,
		Attract:  append([]float64(nil), m.Attract...),
		RangeMin: append([]float64(nil), m.RangeMin...),
		RangeMax: append([]float64(nil), m.RangeMax...),
	}
}

// Equal reports whether both matrices hold bit-identical values.
func (m *TypeMatrix) Equal(o *TypeMatrix) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.NumTypes == o.NumTypes &&
		bitsEqual(m.Attract, o.Attract) &&
		bitsEqual(m.RangeMin, o.RangeMin) &&
		bitsEqual(m.RangeMax, o.RangeMax)
}

func bitsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			return false
		}
	}
	return true
}
