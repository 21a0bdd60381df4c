package plife

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrWorldExists is returned when creating a world whose ID is taken.
	ErrWorldExists = errors.New("world already exists")
	// ErrWorldNotFound is returned for operations on an unknown world ID.
	ErrWorldNotFound = errors.New("world not found")
)

// WorldManager manages multiple worlds, each isolated from the others
type WorldManager struct {
	mu            sync.RWMutex
	worlds        map[WorldID]*World
	logger        Logger
	notifications *NotificationManager
	snapshotDir   string
	snapshotEvery int64
}

// NewWorldManager creates a new world manager
func NewWorldManager() *WorldManager {
	return NewWorldManagerWithLogger(nil)
}

// NewWorldManagerWithLogger creates a world manager whose worlds log through logger
func NewWorldManagerWithLogger(logger Logger) *WorldManager {
	return &WorldManager{
		worlds: make(map[WorldID]*World),
		logger: orNoOp(logger),
	}
}

// SetNotificationManager attaches nm to existing and future worlds
func (wm *WorldManager) SetNotificationManager(nm *NotificationManager) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.notifications = nm
	for _, w := range wm.worlds {
		w.SetNotificationManager(nm)
	}
}

// SetSnapshotDefaults sets the snapshot directory and cadence applied to
// worlds created afterwards.
func (wm *WorldManager) SetSnapshotDefaults(dir string, everySteps int64) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.snapshotDir = dir
	wm.snapshotEvery = everySteps
}

// CreateWorld creates a new world with the given ID and configuration
func (wm *WorldManager) CreateWorld(id WorldID, cfg Config) (*World, error) {
	if id == "" {
		return nil, fmt.Errorf("world id cannot be empty")
	}
	wm.mu.Lock()
	defer wm.mu.Unlock()

	if _, exists := wm.worlds[id]; exists {
		return nil, fmt.Errorf("world %s: %w", id, ErrWorldExists)
	}
	w, err := NewWorldWithLogger(id, cfg, wm.logger)
	if err != nil {
		return nil, err
	}
	w.SetNotificationManager(wm.notifications)
	w.SetSnapshotDir(wm.snapshotDir)
	w.SetSnapshotEverySteps(wm.snapshotEvery)
	wm.worlds[id] = w
	wm.logger.Infof("world %s created with %d particles and %d types", id, cfg.Spawn.Count, cfg.Types.NumTypes)
	return w, nil
}

// GetWorld retrieves a world by ID
func (wm *WorldManager) GetWorld(id WorldID) (*World, bool) {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	w, exists := wm.worlds[id]
	return w, exists
}

// DeleteWorld stops and removes a world
func (wm *WorldManager) DeleteWorld(id WorldID) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	w, exists := wm.worlds[id]
	if !exists {
		return fmt.Errorf("world %s: %w", id, ErrWorldNotFound)
	}
	w.Stop()
	delete(wm.worlds, id)
	wm.logger.Infof("world %s deleted", id)
	return nil
}

// ListWorlds returns the sorted IDs of all worlds
func (wm *WorldManager) ListWorlds() []WorldID {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	ids := make([]WorldID, 0, len(wm.worlds))
	for id := range wm.worlds {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// UpdateWorldConfig replaces the configuration of an existing world and keeps its particles
func (wm *WorldManager) UpdateWorldConfig(id WorldID, cfg Config) error {
	w, exists := wm.GetWorld(id)
	if !exists {
		return fmt.Errorf("world %s: %w", id, ErrWorldNotFound)
	}
	return w.SetConfig(cfg)
}

// StopAll stops the run loop of every world
func (wm *WorldManager) StopAll() {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	for _, w := range wm.worlds {
		w.Stop()
	}
}
