package plife

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is a point-in-time capture of a world: its configuration, the raw
// particle arrays and the active type matrix.
type Snapshot struct {
	WorldID       WorldID     `json:"world_id"`
	Step          int64       `json:"step"`
	Config        Config      `json:"config"`
	State         State       `json:"state"`
	Matrix        *TypeMatrix `json:"matrix"`
	MatrixVersion uint64      `json:"matrix_version"`
}

// ValidateSnapshot checks that a snapshot can be restored:
//   - the config is valid
//   - the matrix is well formed and matches config.types.num_types
//   - every particle is finite and typed inside the matrix
func ValidateSnapshot(s Snapshot) error {
	if s.Step < 0 {
		return &ValidationError{Issues: []string{fmt.Sprintf("snapshot step must be >= 0, got %d", s.Step)}}
	}
	if err := ValidateConfig(s.Config); err != nil {
		return fmt.Errorf("snapshot config: %w", err)
	}
	if err := ValidateMatrix(s.Matrix); err != nil {
		return fmt.Errorf("snapshot matrix: %w", err)
	}
	if s.Matrix.NumTypes != s.Config.Types.NumTypes {
		return &ValidationError{Issues: []string{fmt.Sprintf("snapshot matrix has %d types, config has %d", s.Matrix.NumTypes, s.Config.Types.NumTypes)}}
	}
	if err := ValidateState(s.State, s.Matrix.NumTypes); err != nil {
		return fmt.Errorf("snapshot state: %w", err)
	}
	return nil
}

// EncodeSnapshotJSON encodes a snapshot to JSON format.
func EncodeSnapshotJSON(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshotJSON decodes a snapshot from JSON format.
func DecodeSnapshotJSON(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s, nil
}

// EncodeSnapshotMsgpack encodes a snapshot to MessagePack using the same
// field names as the JSON form.
func EncodeSnapshotMsgpack(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshotMsgpack decodes a snapshot from MessagePack format.
func DecodeSnapshotMsgpack(data []byte) (Snapshot, error) {
	var s Snapshot
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s, nil
}

// isMsgpackPath reports whether path names a MessagePack snapshot.
func isMsgpackPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk":
		return true
	}
	return false
}

// WriteSnapshotFile encodes s according to the file extension (.msgpack or
// .mpk for MessagePack, anything else JSON) and replaces path atomically.
func WriteSnapshotFile(path string, s Snapshot) error {
	var (
		data []byte
		err  error
	)
	if isMsgpackPath(path) {
		data, err = EncodeSnapshotMsgpack(s)
	} else {
		data, err = EncodeSnapshotJSON(s)
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshotFile reads and validates a snapshot written by WriteSnapshotFile.
func ReadSnapshotFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var s Snapshot
	if isMsgpackPath(path) {
		s, err = DecodeSnapshotMsgpack(data)
	} else {
		s, err = DecodeSnapshotJSON(data)
	}
	if err != nil {
		return Snapshot{}, err
	}
	if err := ValidateSnapshot(s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Snapshot captures the world between steps.
func (w *World) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshotLocked()
}

func (w *World) snapshotLocked() Snapshot {
	return Snapshot{
		WorldID:       w.id,
		Step:          w.steps,
		Config:        w.cfg,
		State:         w.cur.Clone(),
		Matrix:        w.matrix.Clone(),
		MatrixVersion: w.matrixVersion,
	}
}

// RestoreSnapshot replaces configuration, particles, matrix and step count
// with the contents of s. The restored matrix receives a new version.
func (w *World) RestoreSnapshot(s Snapshot) error {
	if err := ValidateSnapshot(s); err != nil {
		w.logger.Warnf("world %s: rejected snapshot: %v", w.id, err)
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if s.Config.Seed != 0 && s.Config.Seed != w.cfg.Seed {
		w.rng = newRand(s.Config.Seed)
	}
	w.cfg = s.Config
	w.cur = s.State.Clone()
	w.adoptLocked(s.Matrix.Clone(), w.versionSeq.Add(1))
	w.steps = s.Step
	w.last = StepStats{}
	return nil
}

// SetSnapshotDir sets the directory SaveSnapshot writes to. An empty dir
// disables periodic snapshots.
func (w *World) SetSnapshotDir(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snapshotDir = dir
}

// SetSnapshotEverySteps sets the periodic snapshot cadence. Zero disables it.
func (w *World) SetSnapshotEverySteps(n int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n < 0 {
		n = 0
	}
	w.snapshotEvery = n
}

// SnapshotPath returns the file SaveSnapshot writes, or "" without a directory.
func (w *World) SnapshotPath() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshotPathLocked()
}

func (w *World) snapshotPathLocked() string {
	if w.snapshotDir == "" {
		return ""
	}
	return filepath.Join(w.snapshotDir, string(w.id)+".json")
}

// SaveSnapshot writes the current snapshot to SnapshotPath and returns the path.
func (w *World) SaveSnapshot() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saveSnapshotLocked()
}

func (w *World) saveSnapshotLocked() (string, error) {
	path := w.snapshotPathLocked()
	if path == "" {
		return "", fmt.Errorf("world %s has no snapshot directory", w.id)
	}
	if err := WriteSnapshotFile(path, w.snapshotLocked()); err != nil {
		return "", err
	}
	w.logger.Debugf("world %s: snapshot written to %s at step %d", w.id, path, w.steps)
	return path, nil
}
