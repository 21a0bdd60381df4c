package plife

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Particle is a single typed point mass.
type Particle struct {
	Position r3.Vec `json:"position"`
	Velocity r3.Vec `json:"velocity"`
	Type     int    `json:"type"`
}

// State is the bulk particle state in struct-of-arrays layout. The three
// slices always have the same length; index i is particle i for one step.
type State struct {
	Positions  []r3.Vec `json:"positions" msgpack:"positions"`
	Velocities []r3.Vec `json:"velocities" msgpack:"velocities"`
	Types      []int    `json:"types" msgpack:"types"`
}

// Len returns the number of particles.
func (s State) Len() int {
	return len(s.Positions)
}

// Particle returns particle i.
func (s State) Particle(i int) Particle {
	return Particle{Position: s.Positions[i], Velocity: s.Velocities[i], Type: s.Types[i]}
}

// Append adds particles to the end of the state.
func (s *State) Append(ps ...Particle) {
	for _, p := range ps {
		s.Positions = append(s.Positions, p.Position)
		s.Velocities = append(s.Velocities, p.Velocity)
		s.Types = append(s.Types, p.Type)
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	return State{
		Positions:  append([]r3.Vec(nil), s.Positions...),
		Velocities: append([]r3.Vec(nil), s.Velocities...),
		Types:      append([]int(nil), s.Types...),
	}
}

// Reset truncates all arrays, keeping their capacity.
func (s *State) Reset() {
	s.Positions = s.Positions[:0]
	s.Velocities = s.Velocities[:0]
	s.Types = s.Types[:0]
}

// resize sets the length of every array to n, reusing capacity when possible.
func (s *State) resize(n int) {
	if cap(s.Positions) < n || cap(s.Velocities) < n || cap(s.Types) < n {
		s.Positions = make([]r3.Vec, n)
		s.Velocities = make([]r3.Vec, n)
		s.Types = make([]int, n)
		return
	}
	s.Positions = s.Positions[:n]
	s.Velocities = s.Velocities[:n]
	s.Types = s.Types[:n]
}

// Equal reports whether both states hold bit-identical values.
func (s State) Equal(o State) bool {
	if len(s.Positions) != len(o.Positions) || len(s.Velocities) != len(o.Velocities) || len(s.Types) != len(o.Types) {
		return false
	}
	for i := range s.Positions {
		if !vecBitsEqual(s.Positions[i], o.Positions[i]) {
			return false
		}
	}
	for i := range s.Velocities {
		if !vecBitsEqual(s.Velocities[i], o.Velocities[i]) {
			return false
		}
	}
	for i := range s.Types {
		if s.Types[i] != o.Types[i] {
			return false
		}
	}
	return true
}

func vecBitsEqual(a, b r3.Vec) bool {
	return math.Float64bits(a.X) == math.Float64bits(b.X) &&
		math.Float64bits(a.Y) == math.Float64bits(b.Y) &&
		math.Float64bits(a.Z) == math.Float64bits(b.Z)
}
