package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/daniacca/particlelife/internal/logging"
	"github.com/daniacca/particlelife/internal/plife"
	"gonum.org/v1/gonum/spatial/r3"
)

// simOptions are the command line settings of one headless run
type simOptions struct {
	ConfigFile  string
	Steps       int
	Dt          float64
	Spawn       int
	Seed        uint64
	Workers     int
	SnapshotOut string
	WorldID     string
	LogLevel    string
}

func main() {
	var opts simOptions
	flag.StringVar(&opts.ConfigFile, "config", "", "path to a world config JSON file (optional, defaults are used otherwise)")
	flag.IntVar(&opts.Steps, "steps", 100, "number of steps to run")
	flag.Float64Var(&opts.Dt, "dt", 1.0/60.0, "frame time per step in seconds")
	flag.IntVar(&opts.Spawn, "spawn", -1, "particle count; negative keeps the config spawn count")
	flag.Uint64Var(&opts.Seed, "seed", 0, "RNG seed; 0 keeps the config seed")
	flag.IntVar(&opts.Workers, "workers", 0, "force pass goroutines; 0 keeps the config value")
	flag.StringVar(&opts.SnapshotOut, "snapshot-out", "", "write the final snapshot here (.json or .msgpack)")
	flag.StringVar(&opts.WorldID, "world-id", "simulation", "world ID")
	flag.StringVar(&opts.LogLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run builds the world, steps it and prints a summary to out
func run(opts simOptions, out io.Writer) error {
	if opts.Steps < 0 {
		return fmt.Errorf("steps must be >= 0, got %d", opts.Steps)
	}
	if !(opts.Dt > 0) {
		return fmt.Errorf("dt must be > 0, got %g", opts.Dt)
	}

	cfg, err := loadConfig(opts.ConfigFile)
	if err != nil {
		return err
	}
	if opts.Spawn >= 0 {
		cfg.Spawn.Count = opts.Spawn
	}
	if opts.Seed != 0 {
		cfg.Seed = opts.Seed
	}
	if opts.Workers != 0 {
		cfg.Workers = opts.Workers
	}

	logger := logging.New(opts.LogLevel)
	world, err := plife.NewWorldWithLogger(plife.WorldID(opts.WorldID), cfg, logger)
	if err != nil {
		return fmt.Errorf("creating world: %w", err)
	}

	for i := 0; i < opts.Steps; i++ {
		world.Step(opts.Dt)
	}

	if opts.SnapshotOut != "" {
		if err := plife.WriteSnapshotFile(opts.SnapshotOut, world.Snapshot()); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
		logger.Infof("Snapshot written: path=%s", opts.SnapshotOut)
	}

	printSummary(out, world)
	return nil
}

// loadConfig reads a world config over DefaultConfig, or returns the defaults for an empty path
func loadConfig(path string) (plife.Config, error) {
	cfg := plife.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return plife.Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return plife.Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}
	if err := plife.ValidateConfig(cfg); err != nil {
		return plife.Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// summary is what printSummary reports about a world
type summary struct {
	Particles  int
	TypeCounts map[int]int
	MeanSpeed  float64
}

func summarize(st plife.State) summary {
	s := summary{Particles: st.Len(), TypeCounts: make(map[int]int)}
	for i := 0; i < st.Len(); i++ {
		s.TypeCounts[st.Types[i]]++
		s.MeanSpeed += r3.Norm(st.Velocities[i])
	}
	if s.Particles > 0 {
		s.MeanSpeed /= float64(s.Particles)
	}
	return s
}

func printSummary(out io.Writer, world *plife.World) {
	s := summarize(world.State())
	last := world.LastStats()

	fmt.Fprintf(out, "Simulation finished (world=%s, steps=%d)\n", world.ID(), world.Steps())
	fmt.Fprintf(out, "Particles: %d\n", s.Particles)
	fmt.Fprintf(out, "Mean speed: %.4f\n", s.MeanSpeed)
	fmt.Fprintln(out, "Type counts:")

	types := make([]int, 0, len(s.TypeCounts))
	for t := range s.TypeCounts {
		types = append(types, t)
	}
	sort.Ints(types)
	for _, t := range types {
		fmt.Fprintf(out, "  %d: %d\n", t, s.TypeCounts[t])
	}

	fmt.Fprintln(out, "Last step:")
	fmt.Fprintf(out, "  cells: %d (occupied %d, max %d, avg %.2f)\n",
		last.NumCells, last.OccupiedCells, last.MaxCellSize, last.AverageCellSize)
	fmt.Fprintf(out, "  interactions: %d of %d candidates, %d cell accesses\n",
		last.Interactions, last.Candidates, last.CellAccesses)
	fmt.Fprintf(out, "  effective dt: %g, matrix version: %d, duration: %v\n",
		last.EffectiveDt, last.MatrixVersion, last.Duration)
}
