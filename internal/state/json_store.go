package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dotbins/dotbins/internal/events"
	"github.com/dotbins/dotbins/internal/models"
)

// stateFile wraps persisted data with store metadata so corruption is
// detectable on load.
type stateFile struct {
	SchemaVersion int                 `json:"schema_version"`
	SavedAt       time.Time           `json:"saved_at"`
	State         models.InstallState `json:"state,omitempty"`
	Pins          models.Pins         `json:"pins,omitempty"`
	Checksum      string              `json:"checksum,omitempty"`
}

// JSONStore implements file-based state storage. State and pins live in
// separate files under baseDir; snapshots under baseDir/backups.
type JSONStore struct {
	baseDir string
	logger  *events.Logger

	mu sync.Mutex
}

// NewJSONStore creates a JSON-based state store rooted at baseDir.
func NewJSONStore(baseDir string, logger *events.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	return &JSONStore{
		baseDir: baseDir,
		logger:  logger.WithField("component", "json_state_store"),
	}, nil
}

// LoadState reads install records from state.json.
func (s *JSONStore) LoadState() (models.InstallState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wrapper, err := s.loadFile(s.statePath())
	if err != nil {
		return nil, err
	}
	if wrapper.State == nil {
		return models.InstallState{}, nil
	}
	return wrapper.State, nil
}

// SaveState writes the full install state atomically.
func (s *JSONStore) SaveState(state models.InstallState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.WithField("records", len(state)).Debug("Saving install state")
	return s.saveFile(s.statePath(), stateFile{State: state})
}

// LoadPins reads the pin map from pins.json.
func (s *JSONStore) LoadPins() (models.Pins, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wrapper, err := s.loadFile(s.pinsPath())
	if err != nil {
		return nil, err
	}
	if wrapper.Pins == nil {
		return models.Pins{}, nil
	}
	return wrapper.Pins, nil
}

// SavePins writes the full pin map atomically.
func (s *JSONStore) SavePins(pins models.Pins) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.WithField("pins", len(pins)).Debug("Saving pins")
	return s.saveFile(s.pinsPath(), stateFile{Pins: pins})
}

// Pin records tool at version, overwriting any existing pin.
func (s *JSONStore) Pin(tool, version string) error {
	pins, err := s.LoadPins()
	if err != nil {
		return err
	}
	pins[tool] = version
	return s.SavePins(pins)
}

// Unpin removes a pin, reporting whether one existed.
func (s *JSONStore) Unpin(tool string) (bool, error) {
	pins, err := s.LoadPins()
	if err != nil {
		return false, err
	}
	if _, ok := pins[tool]; !ok {
		return false, nil
	}
	delete(pins, tool)
	return true, s.SavePins(pins)
}

// PinnedVersion reports the pinned version for a tool.
func (s *JSONStore) PinnedVersion(tool string) (string, bool, error) {
	pins, err := s.LoadPins()
	if err != nil {
		return "", false, err
	}
	version, ok := pins[tool]
	return version, ok, nil
}

// Backup snapshots current state and pins into a timestamp-named file.
func (s *JSONStore) Backup(ts time.Time) (string, error) {
	state, err := s.LoadState()
	if err != nil {
		return "", err
	}
	pins, err := s.LoadPins()
	if err != nil {
		return "", err
	}

	path, err := writeSnapshot(s.backupDir(), models.BackupSnapshot{
		Timestamp: ts,
		State:     state,
		Pins:      pins,
	})
	if err != nil {
		return "", err
	}

	s.logger.WithField("path", path).Info("Wrote backup snapshot")
	return path, nil
}

// Restore replaces state and pins from a snapshot file.
func (s *JSONStore) Restore(path string) error {
	snap, err := readSnapshot(path)
	if err != nil {
		return err
	}

	if err := s.SaveState(snap.State); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	if err := s.SavePins(snap.Pins); err != nil {
		return fmt.Errorf("restore pins: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"path":    path,
		"records": len(snap.State),
		"pins":    len(snap.Pins),
	}).Info("Restored from snapshot")
	return nil
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}

// File helpers

func (s *JSONStore) statePath() string { return filepath.Join(s.baseDir, "state.json") }
func (s *JSONStore) pinsPath() string  { return filepath.Join(s.baseDir, "pins.json") }
func (s *JSONStore) backupDir() string { return filepath.Join(s.baseDir, "backups") }

func (s *JSONStore) loadFile(path string) (stateFile, error) {
	var wrapper stateFile

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// First run.
		return wrapper, nil
	}
	if err != nil {
		return wrapper, fmt.Errorf("read state file: %w", err)
	}

	if err := json.Unmarshal(data, &wrapper); err != nil {
		if recovered, rerr := s.loadRecovery(path); rerr == nil {
			s.logger.WithField("path", path).Warn("Loaded state from recovery copy after corruption")
			return recovered, nil
		}
		return wrapper, fmt.Errorf("%s: %w", path, models.ErrStateCorrupt)
	}

	if wrapper.Checksum != "" {
		calculated := checksum(wrapper)
		if calculated != wrapper.Checksum {
			s.logger.WithFields(map[string]interface{}{
				"path":     path,
				"expected": wrapper.Checksum,
				"actual":   calculated,
			}).Error("State checksum mismatch")

			if recovered, rerr := s.loadRecovery(path); rerr == nil {
				return recovered, nil
			}
			return wrapper, fmt.Errorf("%s: %w", path, models.ErrStateCorrupt)
		}
	}

	if wrapper.SchemaVersion != CurrentSchemaVersion {
		s.logger.WithField("version", wrapper.SchemaVersion).Warn("State schema version mismatch")
	}

	return wrapper, nil
}

func (s *JSONStore) saveFile(path string, wrapper stateFile) error {
	wrapper.SchemaVersion = CurrentSchemaVersion
	wrapper.SavedAt = time.Now().UTC()
	wrapper.Checksum = checksum(wrapper)

	data, err := json.MarshalIndent(wrapper, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	// Keep a recovery copy of the previous version.
	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".backup"); err != nil {
			s.logger.WithError(err).Warn("Failed to write recovery copy")
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

func (s *JSONStore) loadRecovery(path string) (stateFile, error) {
	var wrapper stateFile
	data, err := os.ReadFile(path + ".backup")
	if err != nil {
		return wrapper, err
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return wrapper, err
	}
	return wrapper, nil
}

// checksum hashes the wrapper with its checksum field cleared.
func checksum(wrapper stateFile) string {
	wrapper.Checksum = ""
	data, _ := json.Marshal(wrapper)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
