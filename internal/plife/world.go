package plife

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"
)

// WorldID is a unique identifier for a world
type WorldID string

// publishedMatrix is a matrix waiting to be adopted by the next step.
type publishedMatrix struct {
	matrix  *TypeMatrix
	version uint64
}

// World owns one simulation: its configuration, a double-buffered particle
// state, the active type matrix and the grid used by the step.
//
// Commands that change the configuration or the state take the world lock and
// therefore apply between steps. A matrix passed to PublishMatrix is stored
// without the lock and adopted at the start of the next step.
type World struct {
	mu      sync.RWMutex
	id      WorldID
	cfg     Config
	cur     State
	next    State
	stepper *stepper
	rng     *rand.Rand
	logger  Logger

	matrix        *TypeMatrix
	matrixVersion uint64
	published     atomic.Pointer[publishedMatrix]
	versionSeq    atomic.Uint64

	steps int64
	last  StepStats
	rate  RateMeter

	notifications *NotificationManager
	notifyConfig  NotificationConfig
	snapshotDir   string
	snapshotEvery int64

	stopCh    chan struct{}
	isRunning bool
}

// NewWorld creates a world from cfg, randomizes its type matrix and spawns
// cfg.Spawn.Count particles in the default spawn region.
func NewWorld(id WorldID, cfg Config) (*World, error) {
	return NewWorldWithLogger(id, cfg, nil)
}

// NewWorldWithLogger is NewWorld with a custom logger
func NewWorldWithLogger(id WorldID, cfg Config, logger Logger) (*World, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	w := &World{
		id:      id,
		cfg:     cfg,
		stepper: newStepper(),
		rng:     newRand(cfg.Seed),
		logger:  orNoOp(logger),
	}
	m, err := w.randomMatrix(cfg.Types.NumTypes, cfg.RandomizeParams())
	if err != nil {
		return nil, err
	}
	w.adoptLocked(m, w.versionSeq.Add(1))
	w.cur.Append(spawnParticles(w.rng, cfg.World, cfg.SpawnRegion(), m.NumTypes, cfg.Spawn.Count)...)
	return w, nil
}

// ID returns the world identifier
func (w *World) ID() WorldID {
	return w.id
}

// Config returns the current configuration
func (w *World) Config() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// SetConfig replaces the configuration. A change of Types.NumTypes installs a
// freshly randomized matrix and folds particle types into the new range.
func (w *World) SetConfig(cfg Config) error {
	if err := ValidateConfig(cfg); err != nil {
		w.logger.Warnf("world %s: rejected config: %v", w.id, err)
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setConfigLocked(cfg)
}

func (w *World) setConfigLocked(cfg Config) error {
	if cfg.Seed != 0 && cfg.Seed != w.cfg.Seed {
		w.rng = newRand(cfg.Seed)
	}
	if cfg.Types.NumTypes != w.matrix.NumTypes {
		m, err := w.randomMatrix(cfg.Types.NumTypes, cfg.RandomizeParams())
		if err != nil {
			return err
		}
		w.cfg = cfg
		w.adoptLocked(m, w.versionSeq.Add(1))
		return nil
	}
	w.cfg = cfg
	w.checkRangeLocked()
	return nil
}

// SetCellSize changes the grid cell edge length.
func (w *World) SetCellSize(cellSize float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cfg := w.cfg
	cfg.World.CellSize = cellSize
	if err := ValidateConfig(cfg); err != nil {
		w.logger.Warnf("world %s: rejected cell size %g: %v", w.id, cellSize, err)
		return err
	}
	return w.setConfigLocked(cfg)
}

// SetBounds changes the world box and its boundary behaviour.
func (w *World) SetBounds(lower, upper r3.Vec, wrap [3]bool, bounce float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cfg := w.cfg
	cfg.World.Lower = lower
	cfg.World.Upper = upper
	cfg.World.Wrap = wrap
	cfg.World.Bounce = bounce
	if err := ValidateConfig(cfg); err != nil {
		w.logger.Warnf("world %s: rejected bounds: %v", w.id, err)
		return err
	}
	return w.setConfigLocked(cfg)
}

// Spawn appends n particles inside region.
func (w *World) Spawn(n int, region SpawnRegion) error {
	if n < 0 {
		return &ValidationError{Issues: []string{fmt.Sprintf("spawn: count must be >= 0, got %d", n)}}
	}
	if err := region.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cur.Append(spawnParticles(w.rng, w.cfg.World, region, w.matrix.NumTypes, n)...)
	return nil
}

// Clear removes every particle.
func (w *World) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cur.Reset()
}

// Respawn replaces all particles with n new ones in the default spawn region.
// A negative n keeps the current particle count.
func (w *World) Respawn(n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n < 0 {
		n = w.cur.Len()
	}
	w.cur.Reset()
	w.cur.Append(spawnParticles(w.rng, w.cfg.World, w.cfg.SpawnRegion(), w.matrix.NumTypes, n)...)
	return nil
}

// RandomizeTypes publishes a new random matrix with the current type count.
func (w *World) RandomizeTypes(p RandomizeParams) (uint64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	m, err := w.randomMatrix(w.pendingNumTypes(), p)
	if err != nil {
		return 0, err
	}
	return w.PublishMatrix(m)
}

// ResizeTypes publishes a random matrix for numTypes types. When it is adopted
// particle types are folded with type % numTypes.
func (w *World) ResizeTypes(numTypes int) (uint64, error) {
	if numTypes < 1 {
		return 0, &ValidationError{Issues: []string{fmt.Sprintf("types: num_types must be >= 1, got %d", numTypes)}}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	m, err := w.randomMatrix(numTypes, w.cfg.RandomizeParams())
	if err != nil {
		return 0, err
	}
	return w.PublishMatrix(m)
}

func (w *World) randomMatrix(numTypes int, p RandomizeParams) (*TypeMatrix, error) {
	m := NewTypeMatrix(numTypes)
	if err := m.Randomize(w.rng, p); err != nil {
		return nil, err
	}
	return m, nil
}

// pendingNumTypes is the type count the next step will run with.
func (w *World) pendingNumTypes() int {
	if p := w.published.Load(); p != nil && p.version > w.matrixVersion {
		return p.matrix.NumTypes
	}
	return w.matrix.NumTypes
}

// State returns a copy of the current particle state.
func (w *World) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur.Clone()
}

// ParticleCount returns the current number of particles.
func (w *World) ParticleCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur.Len()
}

// SetState replaces the particle state. It is rejected when the arrays differ
// in length, hold non-finite values or reference a type outside the matrix.
func (w *World) SetState(s State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := ValidateState(s, w.matrix.NumTypes); err != nil {
		w.logger.Warnf("world %s: rejected state: %v", w.id, err)
		return err
	}
	w.cur = s.Clone()
	return nil
}

// Matrix returns a copy of the matrix the world currently steps with.
func (w *World) Matrix() *TypeMatrix {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.matrix.Clone()
}

// MatrixVersion returns the version of the active matrix.
func (w *World) MatrixVersion() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.matrixVersion
}

// PublishMatrix validates m and stores a copy for adoption at the start of
// the next step. It does not wait for a running step and returns the version
// the copy will carry. A later publish supersedes an unadopted earlier one.
func (w *World) PublishMatrix(m *TypeMatrix) (uint64, error) {
	if err := ValidateMatrix(m); err != nil {
		w.logger.Warnf("world %s: rejected matrix: %v", w.id, err)
		return 0, err
	}
	v := w.versionSeq.Add(1)
	w.published.Store(&publishedMatrix{matrix: m.Clone(), version: v})
	return v, nil
}

// SetMatrix validates m and installs it immediately.
func (w *World) SetMatrix(m *TypeMatrix) (uint64, error) {
	if err := ValidateMatrix(m); err != nil {
		w.logger.Warnf("world %s: rejected matrix: %v", w.id, err)
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	v := w.versionSeq.Add(1)
	w.adoptLocked(m.Clone(), v)
	return v, nil
}

// adoptPublishedLocked switches to the most recently published matrix if it
// is newer than the active one.
func (w *World) adoptPublishedLocked() {
	p := w.published.Load()
	if p == nil || p.version <= w.matrixVersion {
		return
	}
	w.adoptLocked(p.matrix, p.version)
}

func (w *World) adoptLocked(m *TypeMatrix, version uint64) {
	numTypes := m.NumTypes
	if w.matrix != nil && w.matrix.NumTypes != numTypes {
		for i, t := range w.cur.Types {
			w.cur.Types[i] = t % numTypes
		}
		w.logger.Infof("world %s: type count changed %d -> %d", w.id, w.matrix.NumTypes, numTypes)
	}
	w.matrix = m
	w.matrixVersion = version
	w.cfg.Types.NumTypes = numTypes
	w.checkRangeLocked()
}

// checkRangeLocked warns when interactions reach past the neighbour cells.
func (w *World) checkRangeLocked() {
	if r := w.matrix.MaxRangeMax(); r > w.cfg.World.CellSize {
		w.logger.Warnf("world %s: max interaction range %g exceeds cell size %g, forces beyond one cell are ignored",
			w.id, r, w.cfg.World.CellSize)
	}
}

// Step advances the world by one frame of frameDt wall seconds and returns the
// statistics of the step.
func (w *World) Step(frameDt float64) StepStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.adoptPublishedLocked()
	stats := w.stepper.step(w.cfg, w.matrix, w.cur, &w.next, frameDt)
	w.cur, w.next = w.next, w.cur

	w.steps++
	stats.Step = w.steps
	stats.MatrixVersion = w.matrixVersion
	w.last = stats
	w.rate.Observe(time.Now(), stats.EffectiveDt)

	if stats.InvalidCellRefs > 0 {
		w.logger.Debugf("world %s: step %d skipped %d invalid cell references", w.id, w.steps, stats.InvalidCellRefs)
	}
	if w.notifications != nil && w.notifyConfig.due(w.steps) {
		w.notifications.Enqueue(w.statsEventLocked(), w.notifyConfig.Notifiers)
	}
	if w.snapshotDir != "" && w.snapshotEvery > 0 && w.steps%w.snapshotEvery == 0 {
		if _, err := w.saveSnapshotLocked(); err != nil {
			w.logger.Errorf("world %s: snapshot at step %d failed: %v", w.id, w.steps, err)
		}
	}
	return stats
}

// Steps returns the number of completed steps.
func (w *World) Steps() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.steps
}

// LastStats returns the statistics of the most recent step.
func (w *World) LastStats() StepStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

// Report summarizes the world for monitoring.
func (w *World) Report() StatsReport {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return StatsReport{
		WorldID:          w.id,
		Steps:            w.steps,
		Particles:        w.cur.Len(),
		NumTypes:         w.matrix.NumTypes,
		Running:          w.isRunning,
		StepsPerSecond:   w.rate.StepsPerSecond(),
		SimTimePerSecond: w.rate.SimTimePerSecond(),
		Last:             w.last,
	}
}

func (w *World) statsEventLocked() StatsEvent {
	return StatsEvent{
		WorldID:          w.id,
		Timestamp:        time.Now().Unix(),
		Step:             w.steps,
		Particles:        w.cur.Len(),
		NumTypes:         w.matrix.NumTypes,
		StepsPerSecond:   w.rate.StepsPerSecond(),
		SimTimePerSecond: w.rate.SimTimePerSecond(),
		Stats:            w.last,
	}
}

// SetNotificationManager sets the manager stats events are enqueued to
func (w *World) SetNotificationManager(nm *NotificationManager) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notifications = nm
}

// SetNotificationConfig selects the notifiers and cadence of stats events
func (w *World) SetNotificationConfig(cfg NotificationConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cfg.Notifiers = append([]string(nil), cfg.Notifiers...)
	w.notifyConfig = cfg
}

// NotificationConfig returns the current notification settings
func (w *World) NotificationConfig() NotificationConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.notifyConfig
}

// Run steps the world on a ticker in its own goroutine, passing the measured
// wall time between ticks as the frame time. It can be called again after Stop.
func (w *World) Run(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second / 60
	}
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return
	}
	stopCh := make(chan struct{})
	w.stopCh = stopCh
	w.isRunning = true
	w.rate.Reset()
	w.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case now := <-ticker.C:
				select {
				case <-stopCh:
					return
				default:
				}
				w.Step(now.Sub(last).Seconds())
				last = now
			case <-stopCh:
				return
			}
		}
	}()
}

// Stop ends a Run loop. A step already in progress completes.
func (w *World) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isRunning {
		return
	}
	close(w.stopCh)
	w.isRunning = false
}

// IsRunning reports whether a Run loop is active
func (w *World) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isRunning
}
