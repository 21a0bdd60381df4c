package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/daniacca/particlelife/internal/plife"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestConfigBuilder(t *testing.T) {
	cfg := NewConfig().
		Bounds(r3.Vec{X: -10, Y: -10, Z: -10}, r3.Vec{X: 10, Y: 10, Z: 10}).
		Wrap(true, false, true).
		Bounce(0.5).
		CellSize(5).
		Types(4).
		Attraction(0.1, 2).
		RangeMin(0, 1).
		RangeMax(2, 5).
		Friction(0.9, 0.2).
		Strength(3).
		FlatForce(true).
		SmoothingRadius(0.5).
		Radius(0.25).
		Speed(1, 1, 20).
		MinStepRate(30).
		Gravity(r3.Vec{X: 0.5, Y: 0, Z: 0.5}, 10, 2).
		LinearGravity(8).
		Spawn(50).
		SpawnRegion(r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, r3.Vec{X: 1, Y: 1, Z: 1}).
		InitialSpeed(0).
		TypeNoise(0.3).
		Workers(2).
		Seed(42).
		Build()

	if cfg.World.Wrap != [3]bool{true, false, true} {
		t.Errorf("Expected wrap [true false true], got %v", cfg.World.Wrap)
	}
	if cfg.World.CellSize != 5 {
		t.Errorf("Expected cell size 5, got %v", cfg.World.CellSize)
	}
	if cfg.Types.NumTypes != 4 {
		t.Errorf("Expected 4 types, got %d", cfg.Types.NumTypes)
	}
	if cfg.Types.RangeMaxUpper != 5 {
		t.Errorf("Expected range max upper 5, got %v", cfg.Types.RangeMaxUpper)
	}
	if cfg.Physics.Friction != 0.9 || cfg.Physics.FrictionTime != 0.2 {
		t.Errorf("Expected friction 0.9/0.2, got %v/%v", cfg.Physics.Friction, cfg.Physics.FrictionTime)
	}
	if !cfg.Physics.FlatForce {
		t.Errorf("Expected flat force")
	}
	if cfg.Physics.MaxSpeed != 20 {
		t.Errorf("Expected max speed 20, got %v", cfg.Physics.MaxSpeed)
	}
	if !cfg.Gravity.Linear || cfg.Gravity.TargetRange != 8 {
		t.Errorf("Expected linear gravity with range 8, got %v/%v", cfg.Gravity.Linear, cfg.Gravity.TargetRange)
	}
	if cfg.Spawn.Count != 50 || cfg.Spawn.TypeNoise != 0.3 {
		t.Errorf("Expected spawn 50 with noise 0.3, got %d/%v", cfg.Spawn.Count, cfg.Spawn.TypeNoise)
	}
	if cfg.Workers != 2 || cfg.Seed != 42 {
		t.Errorf("Expected 2 workers and seed 42, got %d/%d", cfg.Workers, cfg.Seed)
	}
}

func TestConfigBuilder_DefaultsAndValidate(t *testing.T) {
	cb := NewConfig()
	if cb.Build().Types.NumTypes != plife.DefaultConfig().Types.NumTypes {
		t.Errorf("Expected builder to start from the default config")
	}
	if err := cb.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
	if err := NewConfig().Types(0).Validate(); err == nil {
		t.Errorf("Expected error for zero types")
	}
	if NewConfig().NoGravity().Build().Gravity.Strength != 0 {
		t.Errorf("Expected gravity strength 0")
	}
}

// newWorldServer serves the client routes for a single world backed by a real plife.World.
func newWorldServer(t *testing.T) (*httptest.Server, **plife.World) {
	t.Helper()
	var world *plife.World

	mux := http.NewServeMux()
	mux.HandleFunc("/world/w1/config", func(w http.ResponseWriter, r *http.Request) {
		cfg := plife.DefaultConfig()
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		nw, err := plife.NewWorld("w1", cfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		world = nw
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/world/w1/spawn", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Count int `json:"count"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if err := world.Spawn(req.Count, world.Config().SpawnRegion()); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"particles": world.State().Len()})
	})
	mux.HandleFunc("/world/w1/step", func(w http.ResponseWriter, r *http.Request) {
		dt, err := strconv.ParseFloat(r.URL.Query().Get("dt"), 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(world.Step(dt))
	})
	mux.HandleFunc("/world/w1/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			var st plife.State
			_ = json.NewDecoder(r.Body).Decode(&st)
			if err := world.SetState(st); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
			}
			return
		}
		_ = json.NewEncoder(w).Encode(world.State())
	})
	mux.HandleFunc("/world/w1/matrix", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			var m plife.TypeMatrix
			_ = json.NewDecoder(r.Body).Decode(&m)
			var v uint64
			var err error
			if r.URL.Query().Get("immediate") == "true" {
				v, err = world.SetMatrix(&m)
			} else {
				v, err = world.PublishMatrix(&m)
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]uint64{"version": v})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"version": world.MatrixVersion(), "matrix": world.Matrix()})
	})
	mux.HandleFunc("/world/w1/stats", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(world.Report())
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, &world
}

func smallConfig() *ConfigBuilder {
	return NewConfig().
		Bounds(r3.Vec{X: -50, Y: -50, Z: -50}, r3.Vec{X: 50, Y: 50, Z: 50}).
		CellSize(25).
		RangeMax(10, 25).
		Types(3).
		Spawn(10).
		Workers(1).
		Seed(5)
}

func TestClient_RoundTrip(t *testing.T) {
	ts, worldRef := newWorldServer(t)
	ctx := context.Background()

	if err := ApplyConfig(ctx, ts.URL, "w1", smallConfig()); err != nil {
		t.Fatalf("ApplyConfig failed: %v", err)
	}
	if *worldRef == nil {
		t.Fatal("Expected the world to be created")
	}

	n, err := Spawn(ctx, ts.URL, "w1", 5)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if n != 15 {
		t.Errorf("Expected 15 particles, got %d", n)
	}

	stats, err := Step(ctx, ts.URL, "w1", 0.01)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if stats.Step != 1 || stats.Particles != 15 {
		t.Errorf("Expected step 1 with 15 particles, got step %d with %d", stats.Step, stats.Particles)
	}

	st, err := FetchState(ctx, ts.URL, "w1")
	if err != nil {
		t.Fatalf("FetchState failed: %v", err)
	}
	if st.Len() != 15 {
		t.Fatalf("Expected 15 particles, got %d", st.Len())
	}
	st.Positions[0] = r3.Vec{X: 1, Y: 2, Z: 3}
	if err := PushState(ctx, ts.URL, "w1", st); err != nil {
		t.Fatalf("PushState failed: %v", err)
	}
	if got := (*worldRef).State().Positions[0]; got != (r3.Vec{X: 1, Y: 2, Z: 3}) {
		t.Errorf("Expected pushed position, got %v", got)
	}

	m, version, err := FetchMatrix(ctx, ts.URL, "w1")
	if err != nil {
		t.Fatalf("FetchMatrix failed: %v", err)
	}
	if m.NumTypes != 3 || version == 0 {
		t.Errorf("Expected a 3 type matrix with a version, got %d types version %d", m.NumTypes, version)
	}
	m.Set(0, 1, -1, 2, 20)
	newVersion, err := PushMatrix(ctx, ts.URL, "w1", m, true)
	if err != nil {
		t.Fatalf("PushMatrix failed: %v", err)
	}
	if newVersion <= version {
		t.Errorf("Expected a newer version than %d, got %d", version, newVersion)
	}
	if !(*worldRef).Matrix().Equal(m) {
		t.Errorf("Expected the pushed matrix to be active")
	}

	report, err := FetchStats(ctx, ts.URL, "w1")
	if err != nil {
		t.Fatalf("FetchStats failed: %v", err)
	}
	if report.Steps != 1 || report.Particles != 15 {
		t.Errorf("Expected 1 step and 15 particles, got %d and %d", report.Steps, report.Particles)
	}
}

func TestClient_Errors(t *testing.T) {
	ts, _ := newWorldServer(t)
	ctx := context.Background()

	err := ApplyConfig(ctx, ts.URL, "w1", NewConfig().Types(0))
	if err == nil {
		t.Fatal("Expected error for invalid config")
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Errorf("Expected status 400 in error, got %v", err)
	}

	if err := ApplyConfig(ctx, ts.URL, "w1", smallConfig()); err != nil {
		t.Fatalf("ApplyConfig failed: %v", err)
	}
	bad := plife.NewTypeMatrix(3)
	bad.Set(0, 0, 0, 5, 1)
	if _, err := PushMatrix(ctx, ts.URL, "w1", bad, false); err == nil {
		t.Errorf("Expected error for invalid matrix")
	}

	if _, err := FetchStats(ctx, ts.URL, "missing"); err == nil {
		t.Errorf("Expected error for unknown world")
	}
	if _, err := FetchState(ctx, "http://127.0.0.1:1", "w1"); err == nil {
		t.Errorf("Expected error for unreachable server")
	}
}

func TestWorldURL(t *testing.T) {
	u, err := worldURL("http://localhost:8080/", "alpha", "step")
	if err != nil {
		t.Fatalf("worldURL failed: %v", err)
	}
	if u != "http://localhost:8080/world/alpha/step" {
		t.Errorf("Expected http://localhost:8080/world/alpha/step, got %s", u)
	}
}
