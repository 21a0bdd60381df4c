package plife

import (
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// minChunkSize is the smallest particle range handed to a worker.
const minChunkSize = 256

// stepper runs the two phases of a simulation step: a grid rebuild over the
// previous positions, then the per-particle force and integration pass.
// The second phase reads only the previous state and writes only its own
// slots of the next state, so the result does not depend on the number of
// workers or the order in which chunks complete.
type stepper struct {
	grid *SpatialGrid
}

func newStepper() *stepper {
	return &stepper{grid: NewSpatialGrid()}
}

// step computes next from cur. cfg and matrix must not change while it runs.
func (s *stepper) step(cfg Config, matrix *TypeMatrix, cur State, next *State, frameDt float64) StepStats {
	start := time.Now()
	dt := effectiveDt(frameDt, cfg.Physics)
	n := cur.Len()

	next.resize(n)
	copy(next.Types, cur.Types)

	w := cfg.World
	s.grid.Rebuild(cur.Positions, w.Lower, w.Upper, w.CellSize, w.Wrap)

	fe := newForceEvaluator(matrix, w, cfg.Physics, dt)
	in := newIntegrator(cfg, dt)

	workers := resolveWorkers(cfg.Workers)
	chunks := (n + minChunkSize - 1) / minChunkSize
	if chunks > workers {
		chunks = workers
	}
	if chunks < 1 {
		chunks = 1
	}
	counters := make([]pairCounters, chunks)

	var g errgroup.Group
	g.SetLimit(workers)
	for c := 0; c < chunks; c++ {
		lo := c * n / chunks
		hi := (c + 1) * n / chunks
		g.Go(func() error {
			counters[c] = s.integrateRange(fe, in, cur, next, lo, hi)
			return nil
		})
	}
	_ = g.Wait()

	var total pairCounters
	for _, c := range counters {
		total.merge(c)
	}
	maxCell, occupied, avg := s.grid.Occupancy()
	return StepStats{
		Particles:       n,
		NumCells:        s.grid.NumCells(),
		MaxCellSize:     maxCell,
		OccupiedCells:   occupied,
		AverageCellSize: avg,
		CellAccesses:    total.cellAccesses,
		Candidates:      total.candidates,
		Interactions:    total.interactions,
		InvalidCellRefs: total.invalidCellRefs,
		EffectiveDt:     dt,
		Duration:        time.Since(start),
	}
}

func (s *stepper) integrateRange(fe *forceEvaluator, in *integrator, cur State, next *State, lo, hi int) pairCounters {
	var cnt pairCounters
	numTypes := fe.matrix.NumTypes
	for i := lo; i < hi; i++ {
		pi := cur.Positions[i]
		ti := cur.Types[i]
		var dv r3.Vec
		if ti >= 0 && ti < numTypes {
			for _, c := range s.grid.Neighborhood(i) {
				if !s.grid.validCell(c) {
					cnt.invalidCellRefs++
					continue
				}
				cnt.cellAccesses++
				for _, j := range s.grid.Cell(int(c)) {
					if int(j) == i {
						continue
					}
					tj := cur.Types[j]
					if tj < 0 || tj >= numTypes {
						continue
					}
					cnt.candidates++
					if fe.accumulate(pi, ti, cur.Positions[j], tj, &dv) {
						cnt.interactions++
					}
				}
			}
		}
		next.Positions[i], next.Velocities[i] = in.advance(pi, cur.Velocities[i], dv)
	}
	return cnt
}

func resolveWorkers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}
