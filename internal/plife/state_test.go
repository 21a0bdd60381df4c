package plife

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestState_AppendAndParticle(t *testing.T) {
	var s State
	p := Particle{Position: r3.Vec{X: 1, Y: 2, Z: 3}, Velocity: r3.Vec{X: -1}, Type: 4}
	s.Append(p, Particle{})
	if s.Len() != 2 {
		t.Fatalf("Expected 2 particles, got %d", s.Len())
	}
	if s.Particle(0) != p {
		t.Errorf("Expected %+v, got %+v", p, s.Particle(0))
	}
}

func TestState_CloneIsDeep(t *testing.T) {
	var s State
	s.Append(Particle{Type: 1})
	c := s.Clone()
	c.Types[0] = 7
	c.Positions[0].X = 3
	if s.Types[0] != 1 || s.Positions[0].X != 0 {
		t.Error("Expected clone not to share memory")
	}
}

func TestState_ResetKeepsCapacity(t *testing.T) {
	var s State
	s.Append(make([]Particle, 10)...)
	capBefore := cap(s.Positions)
	s.Reset()
	if s.Len() != 0 || cap(s.Positions) != capBefore {
		t.Errorf("Expected empty state with kept capacity, got len %d cap %d", s.Len(), cap(s.Positions))
	}
}

func TestState_Resize(t *testing.T) {
	var s State
	s.Append(make([]Particle, 3)...)
	s.resize(100)
	if len(s.Positions) != 100 || len(s.Velocities) != 100 || len(s.Types) != 100 {
		t.Errorf("Expected all arrays resized to 100")
	}
	s.resize(5)
	if s.Len() != 5 || len(s.Types) != 5 {
		t.Errorf("Expected all arrays shrunk to 5")
	}
}

func TestState_Equal(t *testing.T) {
	var a State
	a.Append(Particle{Position: r3.Vec{X: 0.1}})
	b := a.Clone()
	if !a.Equal(b) {
		t.Fatal("Expected equal states")
	}
	b.Positions[0].X = math.Nextafter(0.1, 1)
	if a.Equal(b) {
		t.Error("Expected a one-ulp difference to be detected")
	}
	b = a.Clone()
	b.Velocities[0].X = math.Copysign(0, -1)
	if a.Equal(b) {
		t.Error("Expected signed zero to be detected")
	}
}
