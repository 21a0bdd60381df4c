package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/daniacca/particlelife/internal/logging"
	"github.com/daniacca/particlelife/internal/plife"
)

// Server represents the HTTP server for the particle life worlds
type Server struct {
	manager            *plife.WorldManager
	notifiers          *plife.NotificationManager
	snapshotDir        string
	snapshotEverySteps int64
	notifyEverySteps   int64
	workers            int
	maxParticles       int
	logger             *logging.Logger
}

// NewServer creates a new server instance
func NewServer(logger *logging.Logger) *Server {
	nm := plife.NewNotificationManagerWithLogger(logger)
	manager := plife.NewWorldManagerWithLogger(logger)
	manager.SetNotificationManager(nm)
	return &Server{
		manager:          manager,
		notifiers:        nm,
		notifyEverySteps: 1,
		maxParticles:     defaultMaxParticles,
		logger:           logger,
	}
}

// SetSnapshotDir sets the snapshot directory for all worlds
func (s *Server) SetSnapshotDir(dir string) {
	s.snapshotDir = dir
	s.manager.SetSnapshotDefaults(s.snapshotDir, s.snapshotEverySteps)
}

// SetSnapshotEverySteps sets the snapshot frequency for all worlds
func (s *Server) SetSnapshotEverySteps(steps int64) {
	s.snapshotEverySteps = steps
	s.manager.SetSnapshotDefaults(s.snapshotDir, s.snapshotEverySteps)
}

// SetNotifyEverySteps sets the default cadence used when a notify request omits one
func (s *Server) SetNotifyEverySteps(steps int64) {
	if steps < 1 {
		steps = 1
	}
	s.notifyEverySteps = steps
}

// SetWorkers sets the worker count used by worlds whose config leaves it at zero
func (s *Server) SetWorkers(n int) {
	s.workers = n
}

// SetMaxParticles caps the particle count any request may produce. 0 removes the cap.
func (s *Server) SetMaxParticles(n int) {
	if n < 0 {
		n = 0
	}
	s.maxParticles = n
}

// checkParticleLimit rejects a request that would leave a world with total particles.
func (s *Server) checkParticleLimit(total int) error {
	if s.maxParticles > 0 && total > s.maxParticles {
		return &plife.ValidationError{Issues: []string{
			fmt.Sprintf("particle count %d exceeds the server limit of %d", total, s.maxParticles),
		}}
	}
	return nil
}

// Close stops every world and shuts the notifiers down
func (s *Server) Close() error {
	s.manager.StopAll()
	return s.notifiers.Close()
}

// routes builds the request multiplexer
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/worlds", s.handleWorlds)
	mux.HandleFunc("/world/", s.handleWorldRoutes)
	mux.HandleFunc("/notifiers", s.handleNotifiersRoutes)
	mux.HandleFunc("/notifiers/", s.handleNotifiersRoutes)
	return mux
}

// createOrUpdateWorld creates the world, or replaces the config of an
// existing one. It reports whether a world was created.
func (s *Server) createOrUpdateWorld(id plife.WorldID, cfg plife.Config) (bool, error) {
	if cfg.Workers == 0 {
		cfg.Workers = s.workers
	}
	if err := s.checkParticleLimit(cfg.Spawn.Count); err != nil {
		return false, err
	}
	_, err := s.manager.CreateWorld(id, cfg)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, plife.ErrWorldExists) {
		return false, err
	}
	if err := s.manager.UpdateWorldConfig(id, cfg); err != nil {
		return false, err
	}
	s.logger.Infof("World config updated: world_id=%s", id)
	return false, nil
}
