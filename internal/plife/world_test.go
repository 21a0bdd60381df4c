package plife

import (
	"errors"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestNewWorld(t *testing.T) {
	cfg := testConfig()
	cfg.Spawn.Count = 100
	w := newTestWorld(t, cfg)

	if w.ID() != "test" {
		t.Errorf("Expected ID 'test', got '%s'", w.ID())
	}
	if n := w.State().Len(); n != 100 {
		t.Errorf("Expected 100 particles, got %d", n)
	}
	if w.MatrixVersion() != 1 {
		t.Errorf("Expected matrix version 1, got %d", w.MatrixVersion())
	}
	if err := ValidateMatrix(w.Matrix()); err != nil {
		t.Errorf("Expected a valid initial matrix, got %v", err)
	}
}

func TestNewWorld_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.World.CellSize = 0
	if _, err := NewWorld("bad", cfg); err == nil {
		t.Fatal("Expected error for zero cell size")
	}
	var verr *ValidationError
	cfg = testConfig()
	cfg.Types.NumTypes = 0
	_, err := NewWorld("bad", cfg)
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
}

func TestWorld_StateRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.Spawn.Count = 50
	w := newTestWorld(t, cfg)
	for i := 0; i < 3; i++ {
		w.Step(1.0 / 60)
	}

	before := w.State()
	if err := w.SetState(w.State()); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	if !w.State().Equal(before) {
		t.Error("Expected bit-identical state after round trip")
	}

	m := w.Matrix()
	if _, err := w.SetMatrix(w.Matrix()); err != nil {
		t.Fatalf("SetMatrix failed: %v", err)
	}
	if !w.Matrix().Equal(m) {
		t.Error("Expected bit-identical matrix after round trip")
	}
}

func TestWorld_StateIsCopied(t *testing.T) {
	cfg := testConfig()
	cfg.Spawn.Count = 5
	w := newTestWorld(t, cfg)
	s := w.State()
	s.Positions[0] = r3.Vec{X: 1234}
	if w.State().Positions[0].X == 1234 {
		t.Error("Expected State to return a copy")
	}
}

func TestWorld_SetStateRejected(t *testing.T) {
	w := newTestWorld(t, testConfig())
	var s State
	s.Append(Particle{Position: r3.Vec{X: 1}, Type: 0})
	if err := w.SetState(s); err != nil {
		t.Fatalf("Expected valid state, got %v", err)
	}

	tests := []struct {
		name  string
		state State
	}{
		{"mismatched lengths", State{Positions: make([]r3.Vec, 2), Velocities: make([]r3.Vec, 1), Types: make([]int, 2)}},
		{"type out of range", State{Positions: make([]r3.Vec, 1), Velocities: make([]r3.Vec, 1), Types: []int{2}}},
		{"negative type", State{Positions: make([]r3.Vec, 1), Velocities: make([]r3.Vec, 1), Types: []int{-1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := w.SetState(tt.state); err == nil {
				t.Error("Expected error")
			}
			if got := w.State(); !got.Equal(s) {
				t.Error("Expected previous state to be kept")
			}
		})
	}
}

func TestWorld_SetMatrixRejected(t *testing.T) {
	w := newTestWorld(t, testConfig())
	before := w.Matrix()
	version := w.MatrixVersion()

	bad := &TypeMatrix{NumTypes: 2, Attract: make([]float64, 4), RangeMin: make([]float64, 3), RangeMax: make([]float64, 4)}
	if _, err := w.SetMatrix(bad); err == nil {
		t.Error("Expected error for inconsistent matrix")
	}
	if _, err := w.PublishMatrix(bad); err == nil {
		t.Error("Expected error publishing inconsistent matrix")
	}
	w.Step(0.01)
	if !w.Matrix().Equal(before) || w.MatrixVersion() != version {
		t.Error("Expected previous matrix to be kept")
	}
}

func TestWorld_PublishMatrixAdoptedNextStep(t *testing.T) {
	w := newTestWorld(t, testConfig())
	m := scenarioMatrix()

	v, err := w.PublishMatrix(m)
	if err != nil {
		t.Fatalf("PublishMatrix failed: %v", err)
	}
	if v <= w.MatrixVersion() {
		t.Fatalf("Expected new version above %d, got %d", w.MatrixVersion(), v)
	}
	if w.Matrix().Equal(m) {
		t.Error("Expected matrix not to be adopted before the next step")
	}

	// Mutating the caller's copy must not leak into the world.
	m.Attract[0] = 99

	stats := w.Step(0.01)
	if stats.MatrixVersion != v {
		t.Errorf("Expected step to use version %d, got %d", v, stats.MatrixVersion)
	}
	if w.MatrixVersion() != v {
		t.Errorf("Expected active version %d, got %d", v, w.MatrixVersion())
	}
	if got := w.Matrix().Attract[0]; got != -1 {
		t.Errorf("Expected published value -1, got %g", got)
	}
}

func TestWorld_LatestPublishWins(t *testing.T) {
	w := newTestWorld(t, testConfig())
	first := scenarioMatrix()
	second := scenarioMatrix()
	second.Attract[0] = -0.5

	_, _ = w.PublishMatrix(first)
	v2, _ := w.PublishMatrix(second)
	w.Step(0.01)
	if w.MatrixVersion() != v2 || w.Matrix().Attract[0] != -0.5 {
		t.Error("Expected the latest published matrix to be adopted")
	}
}

func TestWorld_ResizeTypesFoldsParticleTypes(t *testing.T) {
	cfg := testConfig()
	cfg.Types.NumTypes = 5
	w := newTestWorld(t, cfg)

	var s State
	for i := 0; i < 5; i++ {
		s.Append(Particle{Position: r3.Vec{X: float64(i) * 3}, Type: i})
	}
	if err := w.SetState(s); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}

	v, err := w.ResizeTypes(3)
	if err != nil {
		t.Fatalf("ResizeTypes failed: %v", err)
	}
	if w.Config().Types.NumTypes != 5 {
		t.Error("Expected type count to change only when the step adopts the matrix")
	}
	w.Step(0.01)

	if w.MatrixVersion() != v {
		t.Errorf("Expected version %d, got %d", v, w.MatrixVersion())
	}
	if w.Matrix().NumTypes != 3 || w.Config().Types.NumTypes != 3 {
		t.Errorf("Expected 3 types, got matrix %d config %d", w.Matrix().NumTypes, w.Config().Types.NumTypes)
	}
	want := []int{0, 1, 2, 0, 1}
	got := w.State().Types
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected type %d for particle %d, got %d", want[i], i, got[i])
		}
	}

	if _, err := w.ResizeTypes(0); err == nil {
		t.Error("Expected error for zero types")
	}
}

func TestWorld_RandomizeTypes(t *testing.T) {
	w := newTestWorld(t, testConfig())
	before := w.Matrix()
	v, err := w.RandomizeTypes(w.Config().RandomizeParams())
	if err != nil {
		t.Fatalf("RandomizeTypes failed: %v", err)
	}
	w.Step(0.01)
	if w.MatrixVersion() != v {
		t.Errorf("Expected version %d, got %d", v, w.MatrixVersion())
	}
	if w.Matrix().Equal(before) {
		t.Error("Expected a different matrix after randomizing")
	}

	bad := w.Config().RandomizeParams()
	bad.AttractStd = -1
	if _, err := w.RandomizeTypes(bad); err == nil {
		t.Error("Expected error for invalid params")
	}
}

func TestWorld_SpawnClearRespawn(t *testing.T) {
	w := newTestWorld(t, testConfig())
	region := SpawnRegion{Center: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, Size: r3.Vec{X: 0.1, Y: 0.1, Z: 0.1}, InitialSpeed: 1}
	if err := w.Spawn(20, region); err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if err := w.Spawn(10, region); err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if n := w.State().Len(); n != 30 {
		t.Errorf("Expected 30 particles, got %d", n)
	}
	if n := w.ParticleCount(); n != 30 {
		t.Errorf("Expected particle count 30, got %d", n)
	}
	if err := w.Spawn(-1, region); err == nil {
		t.Error("Expected error for negative count")
	}

	if err := w.Respawn(-1); err != nil {
		t.Fatalf("Respawn failed: %v", err)
	}
	if n := w.State().Len(); n != 30 {
		t.Errorf("Expected respawn to keep 30 particles, got %d", n)
	}
	if err := w.Respawn(7); err != nil {
		t.Fatalf("Respawn failed: %v", err)
	}
	if n := w.State().Len(); n != 7 {
		t.Errorf("Expected 7 particles, got %d", n)
	}

	w.Clear()
	if n := w.State().Len(); n != 0 {
		t.Errorf("Expected no particles after clear, got %d", n)
	}
	w.Step(0.01)
}

func TestWorld_SetConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Spawn.Count = 10
	w := newTestWorld(t, cfg)

	cfg.Physics.Strength = 3
	cfg.Types.NumTypes = 4
	if err := w.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if w.Config().Physics.Strength != 3 {
		t.Error("Expected strength to be updated")
	}
	if w.Matrix().NumTypes != 4 {
		t.Errorf("Expected matrix resized to 4 types, got %d", w.Matrix().NumTypes)
	}
	if n := w.State().Len(); n != 10 {
		t.Errorf("Expected particles to be kept, got %d", n)
	}

	bad := cfg
	bad.Physics.Friction = 2
	if err := w.SetConfig(bad); err == nil {
		t.Error("Expected error for friction > 1")
	}
	if w.Config().Physics.Friction != cfg.Physics.Friction {
		t.Error("Expected previous config to be kept")
	}
}

func TestWorld_SetCellSizeAndBounds(t *testing.T) {
	w := newTestWorld(t, testConfig())
	if err := w.SetCellSize(25); err != nil {
		t.Fatalf("SetCellSize failed: %v", err)
	}
	if w.Config().World.CellSize != 25 {
		t.Error("Expected cell size 25")
	}
	if err := w.SetCellSize(-1); err == nil {
		t.Error("Expected error for negative cell size")
	}
	if err := w.SetCellSize(1e-6); err == nil {
		t.Error("Expected error for a grid that is too large")
	}

	lower := r3.Vec{X: 0, Y: 0, Z: 0}
	upper := r3.Vec{X: 200, Y: 100, Z: 100}
	if err := w.SetBounds(lower, upper, [3]bool{true, false, false}, 0.3); err != nil {
		t.Fatalf("SetBounds failed: %v", err)
	}
	wc := w.Config().World
	if wc.Upper != upper || wc.Wrap != [3]bool{true, false, false} || wc.Bounce != 0.3 {
		t.Errorf("Unexpected world config %+v", wc)
	}
	if err := w.SetBounds(upper, lower, [3]bool{}, 1); err == nil {
		t.Error("Expected error for inverted bounds")
	}
	if w.Config().World.Upper != upper {
		t.Error("Expected previous bounds to be kept")
	}
}

func TestWorld_StepStatsAndReport(t *testing.T) {
	cfg := testConfig()
	cfg.Spawn.Count = 40
	w := newTestWorld(t, cfg)

	for i := 0; i < 3; i++ {
		w.Step(1.0 / 60)
	}
	last := w.LastStats()
	if last.Step != 3 || w.Steps() != 3 {
		t.Errorf("Expected step 3, got %d / %d", last.Step, w.Steps())
	}
	if last.Particles != 40 {
		t.Errorf("Expected 40 particles, got %d", last.Particles)
	}

	r := w.Report()
	if r.WorldID != "test" || r.Steps != 3 || r.Particles != 40 || r.NumTypes != 2 {
		t.Errorf("Unexpected report %+v", r)
	}
	if r.Running {
		t.Error("Expected world not to be running")
	}
}

func TestWorld_RunStop(t *testing.T) {
	cfg := testConfig()
	cfg.Spawn.Count = 10
	w := newTestWorld(t, cfg)

	w.Run(5 * time.Millisecond)
	if !w.IsRunning() {
		t.Fatal("Expected world to be running")
	}
	w.Run(5 * time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	w.Stop()
	if w.IsRunning() {
		t.Error("Expected world to be stopped")
	}
	steps := w.Steps()
	if steps == 0 {
		t.Error("Expected at least one step while running")
	}

	time.Sleep(30 * time.Millisecond)
	if after := w.Steps(); after > steps+1 {
		t.Errorf("Expected no steps after stop, got %d more", after-steps)
	}

	// Restart after stop.
	w.Run(5 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	w.Stop()
	if w.Steps() <= steps {
		t.Error("Expected steps after restarting")
	}
	w.Stop()
}
