package plife

import "time"

// StepStats describes one completed simulation step.
type StepStats struct {
	Step      int64 `json:"step"`
	Particles int   `json:"particles"`
	NumCells  int   `json:"num_cells"`

	MaxCellSize     int           `json:"max_cell_size"`
	OccupiedCells   int           `json:"occupied_cells"`
	AverageCellSize float64       `json:"average_cell_size"`
	CellAccesses    int64         `json:"cell_accesses"`
	Candidates      int64         `json:"interaction_candidates"`
	Interactions    int64         `json:"interactions"`
	InvalidCellRefs int64         `json:"invalid_cell_refs,omitempty"`
	EffectiveDt     float64       `json:"effective_dt"`
	MatrixVersion   uint64        `json:"matrix_version"`
	Duration        time.Duration `json:"duration_ns"`
}

// pairCounters are accumulated per worker chunk and merged after the barrier.
type pairCounters struct {
	cellAccesses    int64
	candidates      int64
	interactions    int64
	invalidCellRefs int64
}

func (c *pairCounters) merge(o pairCounters) {
	c.cellAccesses += o.cellAccesses
	c.candidates += o.candidates
	c.interactions += o.interactions
	c.invalidCellRefs += o.invalidCellRefs
}

// rateGain is the smoothing factor of the exponential moving averages.
const rateGain = 0.05

// RateMeter tracks smoothed step throughput against wall-clock time.
type RateMeter struct {
	stepsPerSecond   float64
	simTimePerSecond float64
	last             time.Time
}

// Observe records a step that advanced the simulation by simDt seconds and
// finished at now.
func (r *RateMeter) Observe(now time.Time, simDt float64) {
	if r.last.IsZero() {
		r.last = now
		return
	}
	wall := now.Sub(r.last).Seconds()
	r.last = now
	if wall <= 1e-9 {
		return
	}
	r.stepsPerSecond = (1/wall)*rateGain + (1-rateGain)*r.stepsPerSecond
	r.simTimePerSecond = (simDt/wall)*rateGain + (1-rateGain)*r.simTimePerSecond
}

// Reset forgets the last observation so an idle gap is not averaged in.
func (r *RateMeter) Reset() {
	r.last = time.Time{}
}

// StepsPerSecond returns the smoothed step rate.
func (r *RateMeter) StepsPerSecond() float64 { return r.stepsPerSecond }

// SimTimePerSecond returns the smoothed simulated seconds per wall second.
func (r *RateMeter) SimTimePerSecond() float64 { return r.simTimePerSecond }

// StatsReport is the observability view of a world.
type StatsReport struct {
	WorldID          WorldID   `json:"world_id"`
	Steps            int64     `json:"steps"`
	Particles        int       `json:"particles"`
	NumTypes         int       `json:"num_types"`
	Running          bool      `json:"running"`
	StepsPerSecond   float64   `json:"steps_per_second"`
	SimTimePerSecond float64   `json:"sim_time_per_second"`
	Last             StepStats `json:"last"`
}
