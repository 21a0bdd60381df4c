package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daniacca/particlelife/internal/plife"
	"gonum.org/v1/gonum/spatial/r3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

const smallWorld = `{
	"world": {"lower": {"X": -100, "Y": -100, "Z": -100}, "upper": {"X": 100, "Y": 100, "Z": 100}, "wrap": [true, true, true], "cell_size": 50},
	"types": {"num_types": 3},
	"spawn": {"count": 30},
	"seed": 11
}`

func TestRun_PrintsSummary(t *testing.T) {
	var out bytes.Buffer
	opts := simOptions{
		ConfigFile: writeConfig(t, smallWorld),
		Steps:      5,
		Dt:         0.01,
		Spawn:      -1,
		WorldID:    "sim",
		LogLevel:   "error",
	}
	if err := run(opts, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"Simulation finished (world=sim, steps=5)",
		"Particles: 30",
		"Type counts:",
		"Last step:",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestRun_OverridesAndSnapshot(t *testing.T) {
	var out bytes.Buffer
	snap := filepath.Join(t.TempDir(), "out", "final.msgpack")
	opts := simOptions{
		ConfigFile:  writeConfig(t, smallWorld),
		Steps:       3,
		Dt:          0.01,
		Spawn:       8,
		Seed:        99,
		Workers:     2,
		SnapshotOut: snap,
		WorldID:     "sim",
		LogLevel:    "error",
	}
	if err := run(opts, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	s, err := plife.ReadSnapshotFile(snap)
	if err != nil {
		t.Fatalf("ReadSnapshotFile failed: %v", err)
	}
	if s.Step != 3 {
		t.Errorf("Expected snapshot at step 3, got %d", s.Step)
	}
	if s.State.Len() != 8 {
		t.Errorf("Expected 8 particles, got %d", s.State.Len())
	}
	if s.Config.Seed != 99 || s.Config.Workers != 2 {
		t.Errorf("Expected seed 99 and 2 workers, got %d and %d", s.Config.Seed, s.Config.Workers)
	}
}

func TestRun_Errors(t *testing.T) {
	var out bytes.Buffer
	if err := run(simOptions{Steps: -1, Dt: 0.01}, &out); err == nil {
		t.Errorf("Expected error for negative steps")
	}
	if err := run(simOptions{Steps: 1, Dt: 0}, &out); err == nil {
		t.Errorf("Expected error for zero dt")
	}
	if err := run(simOptions{Steps: 1, Dt: 0.01, ConfigFile: "/does/not/exist.json"}, &out); err == nil {
		t.Errorf("Expected error for missing config file")
	}
	bad := writeConfig(t, `{"types": {"num_types": 0}}`)
	if err := run(simOptions{Steps: 1, Dt: 0.01, ConfigFile: bad}, &out); err == nil {
		t.Errorf("Expected error for invalid config")
	}
}

func TestSummarize(t *testing.T) {
	var st plife.State
	st.Append(
		plife.Particle{Velocity: r3.Vec{X: 3, Y: 4}, Type: 1},
		plife.Particle{Velocity: r3.Vec{Z: 1}, Type: 0},
		plife.Particle{Type: 1},
	)
	s := summarize(st)
	if s.Particles != 3 {
		t.Errorf("Expected 3 particles, got %d", s.Particles)
	}
	if s.TypeCounts[0] != 1 || s.TypeCounts[1] != 2 {
		t.Errorf("Expected type counts {0:1, 1:2}, got %v", s.TypeCounts)
	}
	if s.MeanSpeed != 2 {
		t.Errorf("Expected mean speed 2, got %v", s.MeanSpeed)
	}

	empty := summarize(plife.State{})
	if empty.Particles != 0 || empty.MeanSpeed != 0 {
		t.Errorf("Expected empty summary, got %+v", empty)
	}
}
