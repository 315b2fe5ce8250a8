// Package state persists whether the camera should be streaming, so a
// restart resumes where the node left off.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// State is the persisted camera state. The file holds exactly {"on": <bool>}.
type State struct {
	On bool `json:"on"`
}

// DefaultPath is where the daemon keeps the state file unless configured.
const DefaultPath = "/var/lib/mjpegnode/state.json"

// Default is the state used when the file is missing or unreadable.
var Default = State{On: false}

// Store reads and writes the state file.
type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore creates a store backed by the file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With("file", path),
	}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Read returns the persisted state. A missing, unreadable or malformed file
// yields Default, which is also written back so the next read succeeds.
// Read never fails.
func (s *Store) Read() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err == nil {
		return st
	}

	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("No saved state, using default", "on", Default.On)
	} else {
		s.logger.Warn("Saved state unreadable, resetting to default", "error", err)
	}
	if werr := s.write(Default); werr != nil {
		s.logger.Error("Failed to write default state", "error", werr)
	}
	return Default
}

// Load returns the persisted state without repairing the file.
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Write persists st, replacing the file atomically. Errors are logged and
// returned; callers are expected to carry on with the in-memory state.
func (s *Store) Write(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(st); err != nil {
		s.logger.Error("Failed to save state", "on", st.On, "error", err)
		return err
	}
	s.logger.Debug("State saved", "on", st.On)
	return nil
}

func (s *Store) load() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return State{}, err
	}

	// Decode into a pointer so a file without "on" is rejected rather than
	// silently read as false.
	var raw struct {
		On *bool `json:"on"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return State{}, fmt.Errorf("parse state: %w", err)
	}
	if raw.On == nil {
		return State{}, errors.New("parse state: missing \"on\" field")
	}
	return State{On: *raw.On}, nil
}

func (s *Store) write(st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
