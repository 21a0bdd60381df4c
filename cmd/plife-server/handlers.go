package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/daniacca/particlelife/internal/plife"
	plifenotifiers "github.com/daniacca/particlelife/internal/plife/notifiers"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	defaultStepDt      = 1.0 / 60.0
	defaultRunInterval = 16 * time.Millisecond
	msgpackContentType = "application/x-msgpack"
)

// extractWorldID extracts the world ID from a path like "/world/{worldID}/..."
// Returns the world ID and the remaining path, or empty string if not found
func extractWorldID(path string) (plife.WorldID, string) {
	if !strings.HasPrefix(path, "/world/") {
		return "", ""
	}

	rest := path[len("/world/"):]
	idx := strings.Index(rest, "/")
	if idx == -1 {
		return plife.WorldID(rest), ""
	}
	return plife.WorldID(rest[:idx]), rest[idx:]
}

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps validation failures to 400 and everything else to 500
func errorStatus(err error) int {
	var verr *plife.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	if errors.Is(err, plife.ErrWorldNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, plife.ErrWorldExists) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// readBody returns the request body, or nil when it is empty or whitespace
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return data, nil
}

// world looks up the world named in the path and writes a 404 when it is missing
func (s *Server) world(w http.ResponseWriter, id plife.WorldID) (*plife.World, bool) {
	world, exists := s.manager.GetWorld(id)
	if !exists {
		http.Error(w, "world not found", http.StatusNotFound)
		return nil, false
	}
	return world, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// createWorldRequest is the body of POST /worlds. Both fields are optional.
type createWorldRequest struct {
	ID     string          `json:"id"`
	Config json.RawMessage `json:"config"`
}

// GET /worlds lists world IDs, POST /worlds creates a world
func (s *Server) handleWorlds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListWorlds(w, r)
	case http.MethodPost:
		s.handleCreateWorld(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListWorlds(w http.ResponseWriter, _ *http.Request) {
	worldIDs := s.manager.ListWorlds()
	ids := make([]string, len(worldIDs))
	for i, id := range worldIDs {
		ids[i] = string(id)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"worlds": ids})
}

func (s *Server) handleCreateWorld(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	data, err := readBody(r)
	if err != nil {
		http.Error(w, "cannot read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	var req createWorldRequest
	if data != nil {
		if err := json.Unmarshal(data, &req); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	cfg := plife.DefaultConfig()
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			http.Error(w, "invalid config json: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if cfg.Workers == 0 {
		cfg.Workers = s.workers
	}
	if err := s.checkParticleLimit(cfg.Spawn.Count); err != nil {
		http.Error(w, "cannot create world: "+err.Error(), http.StatusBadRequest)
		return
	}

	id := plife.WorldID(req.ID)
	if id == "" {
		id = plife.WorldID(plife.NewRandomID())
	}

	if _, err := s.manager.CreateWorld(id, cfg); err != nil {
		s.logger.Warnf("Failed to create world: world_id=%s error=%v", id, err)
		http.Error(w, "cannot create world: "+err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": string(id)})
}

// DELETE /world/{worldID}
func (s *Server) handleDeleteWorld(w http.ResponseWriter, r *http.Request) {
	id, _ := extractWorldID(r.URL.Path)
	if err := s.manager.DeleteWorld(id); err != nil {
		s.logger.Warnf("Failed to delete world: world_id=%s error=%v", id, err)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Infof("World deleted: world_id=%s", id)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("world deleted"))
}

// POST /world/{worldID}/config
// Body: Config JSON. Missing fields take their default values.
// Creates the world, or replaces the config of an existing one.
func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	id, _ := extractWorldID(r.URL.Path)
	cfg := plife.DefaultConfig()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid config json: "+err.Error(), http.StatusBadRequest)
		return
	}

	created, err := s.createOrUpdateWorld(id, cfg)
	if err != nil {
		s.logger.Errorf("Failed to apply world config: world_id=%s error=%v", id, err)
		http.Error(w, "cannot apply config: "+err.Error(), errorStatus(err))
		return
	}

	if created {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("world created"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("config updated"))
}

// GET /world/{worldID}/config
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, world.Config())
}

// POST /world/{worldID}/spawn
// Body: { "count": 100, "center": {...}, "size": {...}, "initial_speed": 2, "type_noise": 0 }
// Fields other than count default to the world's spawn config.
type spawnRequest struct {
	Count        int      `json:"count"`
	Center       *r3.Vec  `json:"center"`
	Size         *r3.Vec  `json:"size"`
	InitialSpeed *float64 `json:"initial_speed"`
	TypeNoise    *float64 `json:"type_noise"`
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}

	var req spawnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	region := world.Config().SpawnRegion()
	if req.Center != nil {
		region.Center = *req.Center
	}
	if req.Size != nil {
		region.Size = *req.Size
	}
	if req.InitialSpeed != nil {
		region.InitialSpeed = *req.InitialSpeed
	}
	if req.TypeNoise != nil {
		region.TypeNoise = *req.TypeNoise
	}
	if err := s.checkParticleLimit(world.ParticleCount() + req.Count); err != nil {
		http.Error(w, "cannot spawn: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := world.Spawn(req.Count, region); err != nil {
		http.Error(w, "cannot spawn: "+err.Error(), errorStatus(err))
		return
	}
	s.logger.Debugf("Particles spawned: world_id=%s count=%d", id, req.Count)
	writeJSON(w, http.StatusOK, map[string]int{"particles": world.State().Len()})
}

// POST /world/{worldID}/clear
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}
	world.Clear()
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("cleared"))
}

// POST /world/{worldID}/respawn
// Body: { "count": 500 }. Without a count the particle count is kept.
type respawnRequest struct {
	Count *int `json:"count"`
}

func (s *Server) handleRespawn(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}

	data, err := readBody(r)
	if err != nil {
		http.Error(w, "cannot read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	var req respawnRequest
	if data != nil {
		if err := json.Unmarshal(data, &req); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	n := -1
	if req.Count != nil {
		n = *req.Count
	}
	if err := s.checkParticleLimit(n); err != nil {
		http.Error(w, "cannot respawn: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := world.Respawn(n); err != nil {
		http.Error(w, "cannot respawn: "+err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"particles": world.State().Len()})
}

// POST /world/{worldID}/randomize
// Body: RandomizeParams JSON, or empty to use the world's type settings.
func (s *Server) handleRandomize(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}

	data, err := readBody(r)
	if err != nil {
		http.Error(w, "cannot read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	params := world.Config().RandomizeParams()
	if data != nil {
		if err := json.Unmarshal(data, &params); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	version, err := world.RandomizeTypes(params)
	if err != nil {
		http.Error(w, "cannot randomize: "+err.Error(), errorStatus(err))
		return
	}
	s.logger.Debugf("Matrix randomized: world_id=%s version=%d", id, version)
	writeJSON(w, http.StatusOK, map[string]uint64{"version": version})
}

// POST /world/{worldID}/types
// Body: { "num_types": 6 }
type typesRequest struct {
	NumTypes int `json:"num_types"`
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}

	var req typesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	version, err := world.ResizeTypes(req.NumTypes)
	if err != nil {
		http.Error(w, "cannot change types: "+err.Error(), errorStatus(err))
		return
	}
	s.logger.Infof("Type count changed: world_id=%s num_types=%d version=%d", id, req.NumTypes, version)
	writeJSON(w, http.StatusOK, map[string]uint64{"version": version})
}

// POST /world/{worldID}/step
// Runs one step. Query param: dt in seconds (default 1/60).
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}

	dt := defaultStepDt
	if dtStr := r.URL.Query().Get("dt"); dtStr != "" {
		v, err := strconv.ParseFloat(dtStr, 64)
		if err != nil || !(v > 0) || math.IsInf(v, 0) {
			http.Error(w, "invalid dt: must be a positive number of seconds", http.StatusBadRequest)
			return
		}
		dt = v
	}

	stats := world.Step(dt)
	writeJSON(w, http.StatusOK, stats)
}

// POST /world/{worldID}/start
// Start the world auto-running with the specified interval (in milliseconds)
// Query param: interval (default: 16ms)
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}

	interval := defaultRunInterval
	if intervalStr := r.URL.Query().Get("interval"); intervalStr != "" {
		if ms, err := strconv.Atoi(intervalStr); err == nil && ms > 0 {
			interval = time.Duration(ms) * time.Millisecond
		} else {
			http.Error(w, "invalid interval: must be a positive integer (milliseconds)", http.StatusBadRequest)
			return
		}
	}

	world.Run(interval)
	s.logger.Infof("World started: world_id=%s interval=%v", id, interval)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("world started"))
}

// POST /world/{worldID}/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}

	world.Stop()
	s.logger.Infof("World stopped: world_id=%s", id)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("world stopped"))
}

// GET /world/{worldID}/state
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, world.State())
}

// PUT /world/{worldID}/state
// Body: State JSON. Rejected when the arrays differ in length, hold non-finite
// values or use a type outside the matrix.
func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}

	var st plife.State
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		http.Error(w, "invalid state json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := world.SetState(st); err != nil {
		http.Error(w, "cannot set state: "+err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"particles": st.Len()})
}

// matrixResponse carries the active matrix with its version
type matrixResponse struct {
	Version uint64            `json:"version"`
	Matrix  *plife.TypeMatrix `json:"matrix"`
}

// GET /world/{worldID}/matrix
func (s *Server) handleGetMatrix(w http.ResponseWriter, r *http.Request) {
	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, matrixResponse{Version: world.MatrixVersion(), Matrix: world.Matrix()})
}

// PUT /world/{worldID}/matrix
// Body: TypeMatrix JSON. The matrix is adopted by the next step, or right
// away with ?immediate=true.
func (s *Server) handlePutMatrix(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}

	var m plife.TypeMatrix
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, "invalid matrix json: "+err.Error(), http.StatusBadRequest)
		return
	}

	var version uint64
	var err error
	if r.URL.Query().Get("immediate") == "true" {
		version, err = world.SetMatrix(&m)
	} else {
		version, err = world.PublishMatrix(&m)
	}
	if err != nil {
		http.Error(w, "cannot set matrix: "+err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"version": version})
}

// GET /world/{worldID}/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, world.Report())
}

// POST /world/{worldID}/notify
// Body: NotificationConfig JSON. Every listed notifier must be registered.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}

	var cfg plife.NotificationConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	for _, nid := range cfg.Notifiers {
		if _, exists := s.notifiers.GetNotifier(nid); !exists {
			http.Error(w, "unknown notifier: "+nid, http.StatusBadRequest)
			return
		}
	}
	if cfg.EverySteps == 0 {
		cfg.EverySteps = s.notifyEverySteps
	}

	world.SetNotificationConfig(cfg)
	s.logger.Infof("Notifications configured: world_id=%s enabled=%v notifiers=%v every_steps=%d",
		id, cfg.Enabled, cfg.Notifiers, cfg.EverySteps)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifications configured"))
}

// POST /world/{worldID}/snapshot
// Triggers a synchronous snapshot save
func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}

	if s.snapshotDir == "" {
		http.Error(w, "snapshot directory not configured", http.StatusInternalServerError)
		return
	}
	world.SetSnapshotDir(s.snapshotDir)

	path, err := world.SaveSnapshot()
	if err != nil {
		s.logger.Errorf("Failed to save snapshot: world_id=%s error=%v", id, err)
		http.Error(w, "failed to save snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Debugf("Snapshot saved: world_id=%s path=%s", id, path)

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"path":   path,
	})
}

// GET /world/{worldID}/snapshot
// Returns the saved snapshot as raw JSON, or as msgpack with ?format=msgpack
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}

	if s.snapshotDir == "" {
		http.Error(w, "snapshot directory not configured", http.StatusInternalServerError)
		return
	}
	world.SetSnapshotDir(s.snapshotDir)
	path := world.SnapshotPath()

	if r.URL.Query().Get("format") == "msgpack" {
		snap, err := plife.ReadSnapshotFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				http.Error(w, "snapshot not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to read snapshot: "+err.Error(), http.StatusInternalServerError)
			return
		}
		data, err := plife.EncodeSnapshotMsgpack(snap)
		if err != nil {
			http.Error(w, "cannot encode snapshot: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", msgpackContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "snapshot not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to read snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// PUT /world/{worldID}/snapshot
// Restores the world from a snapshot body, JSON or msgpack by Content-Type
func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	id, _ := extractWorldID(r.URL.Path)
	world, ok := s.world(w, id)
	if !ok {
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "cannot read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var snap plife.Snapshot
	if r.Header.Get("Content-Type") == msgpackContentType {
		snap, err = plife.DecodeSnapshotMsgpack(data)
	} else {
		snap, err = plife.DecodeSnapshotJSON(data)
	}
	if err != nil {
		http.Error(w, "invalid snapshot: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := world.RestoreSnapshot(snap); err != nil {
		http.Error(w, "cannot restore snapshot: "+err.Error(), errorStatus(err))
		return
	}
	s.logger.Infof("Snapshot restored: world_id=%s step=%d", id, snap.Step)
	writeJSON(w, http.StatusOK, map[string]int64{"step": world.Steps()})
}

// handleWorldRoutes routes requests to world-specific handlers
// Handles paths like /world/{worldID}/config, /world/{worldID}/step, etc.
func (s *Server) handleWorldRoutes(w http.ResponseWriter, r *http.Request) {
	worldID, remainingPath := extractWorldID(r.URL.Path)
	if worldID == "" {
		http.Error(w, "world ID is required in path: /world/{worldID}/...", http.StatusBadRequest)
		return
	}

	switch {
	case remainingPath == "" && r.Method == http.MethodDelete:
		s.handleDeleteWorld(w, r)
	case remainingPath == "/config" && r.Method == http.MethodPost:
		s.handleSetConfig(w, r)
	case remainingPath == "/config" && r.Method == http.MethodGet:
		s.handleGetConfig(w, r)
	case remainingPath == "/spawn" && r.Method == http.MethodPost:
		s.handleSpawn(w, r)
	case remainingPath == "/clear" && r.Method == http.MethodPost:
		s.handleClear(w, r)
	case remainingPath == "/respawn" && r.Method == http.MethodPost:
		s.handleRespawn(w, r)
	case remainingPath == "/randomize" && r.Method == http.MethodPost:
		s.handleRandomize(w, r)
	case remainingPath == "/types" && r.Method == http.MethodPost:
		s.handleTypes(w, r)
	case remainingPath == "/step" && r.Method == http.MethodPost:
		s.handleStep(w, r)
	case remainingPath == "/start" && r.Method == http.MethodPost:
		s.handleStart(w, r)
	case remainingPath == "/stop" && r.Method == http.MethodPost:
		s.handleStop(w, r)
	case remainingPath == "/state" && r.Method == http.MethodGet:
		s.handleGetState(w, r)
	case remainingPath == "/state" && r.Method == http.MethodPut:
		s.handlePutState(w, r)
	case remainingPath == "/matrix" && r.Method == http.MethodGet:
		s.handleGetMatrix(w, r)
	case remainingPath == "/matrix" && r.Method == http.MethodPut:
		s.handlePutMatrix(w, r)
	case remainingPath == "/stats" && r.Method == http.MethodGet:
		s.handleStats(w, r)
	case remainingPath == "/notify" && r.Method == http.MethodPost:
		s.handleNotify(w, r)
	case remainingPath == "/snapshot" && r.Method == http.MethodPost:
		s.handleSaveSnapshot(w, r)
	case remainingPath == "/snapshot" && r.Method == http.MethodGet:
		s.handleGetSnapshot(w, r)
	case remainingPath == "/snapshot" && r.Method == http.MethodPut:
		s.handleRestoreSnapshot(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// handleNotifiersRoutes handles notifier management endpoints
func (s *Server) handleNotifiersRoutes(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/notifiers" && r.Method == http.MethodGet:
		s.handleListNotifiers(w, r)
	case r.URL.Path == "/notifiers" && r.Method == http.MethodPost:
		s.handleRegisterNotifier(w, r)
	case strings.HasPrefix(r.URL.Path, "/notifiers/") && strings.HasSuffix(r.URL.Path, "/ws") && r.Method == http.MethodGet:
		s.handleNotifierWebSocket(w, r)
	case strings.HasPrefix(r.URL.Path, "/notifiers/") && r.Method == http.MethodDelete:
		s.handleUnregisterNotifier(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// GET /notifiers
// List all registered notifiers
func (s *Server) handleListNotifiers(w http.ResponseWriter, _ *http.Request) {
	notifierIDs := s.notifiers.ListNotifiers()

	notifiers := make([]map[string]string, 0, len(notifierIDs))
	for _, id := range notifierIDs {
		notifier, exists := s.notifiers.GetNotifier(id)
		if exists {
			notifiers = append(notifiers, map[string]string{
				"id":   id,
				"type": notifier.Type(),
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"notifiers": notifiers})
}

// POST /notifiers
// Register a new notifier
// Body: { "type": "webhook", "id": "my-webhook", "config": { "url": "http://..." } }
// or    { "type": "websocket", "id": "live" }
type registerNotifierRequest struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Config map[string]any `json:"config"`
}

func (s *Server) handleRegisterNotifier(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req registerNotifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.ID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}

	var notifier plife.Notifier
	switch req.Type {
	case "webhook":
		url, ok := req.Config["url"].(string)
		if !ok || url == "" {
			http.Error(w, "webhook URL is required", http.StatusBadRequest)
			return
		}
		wh := plifenotifiers.NewWebhookNotifier(req.ID, url)
		if headers, ok := req.Config["headers"].(map[string]any); ok {
			for k, v := range headers {
				if vStr, ok := v.(string); ok {
					wh.SetHeader(k, vStr)
				}
			}
		}
		notifier = wh
	case "websocket":
		notifier = plifenotifiers.NewWebSocketNotifier(req.ID)
	default:
		http.Error(w, "unknown notifier type: "+req.Type, http.StatusBadRequest)
		return
	}

	if err := s.notifiers.RegisterNotifier(notifier); err != nil {
		_ = notifier.Close()
		http.Error(w, "cannot register notifier: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Infof("Notifier registered: id=%s type=%s", req.ID, req.Type)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifier registered"))
}

// DELETE /notifiers/{id}
// Unregister a notifier
func (s *Server) handleUnregisterNotifier(w http.ResponseWriter, r *http.Request) {
	notifierID := strings.TrimPrefix(r.URL.Path, "/notifiers/")
	if notifierID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}

	if err := s.notifiers.UnregisterNotifier(notifierID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifier unregistered"))
}

// GET /notifiers/{id}/ws
// Upgrades the connection and subscribes it to a websocket notifier
func (s *Server) handleNotifierWebSocket(w http.ResponseWriter, r *http.Request) {
	notifierID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/notifiers/"), "/ws")
	notifier, exists := s.notifiers.GetNotifier(notifierID)
	if !exists {
		http.Error(w, "notifier not found", http.StatusNotFound)
		return
	}
	wsn, ok := notifier.(*plifenotifiers.WebSocketNotifier)
	if !ok {
		http.Error(w, "notifier is not a websocket notifier", http.StatusBadRequest)
		return
	}

	upgrader := wsn.GetUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("WebSocket upgrade failed: notifier_id=%s error=%v", notifierID, err)
		return
	}
	wsn.RegisterClient(conn)
	s.logger.Debugf("WebSocket client connected: notifier_id=%s", notifierID)

	// Drain client frames until the peer goes away.
	go func() {
		defer wsn.UnregisterClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
