// Package state persists install records, pins, and backup snapshots.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dotbins/dotbins/internal/models"
)

// Store manages install state and pin persistence.
//
// Stores serialize access within a single process. They do not protect
// against concurrent separate processes mutating the same files.
type Store interface {
	// LoadState retrieves the install state. A store with no saved state
	// returns an empty map, not an error; first run is a valid state.
	LoadState() (models.InstallState, error)

	// SaveState persists the full install state, replacing what was there.
	SaveState(state models.InstallState) error

	// LoadPins retrieves the pin map. Empty map when none saved.
	LoadPins() (models.Pins, error)

	// SavePins persists the full pin map.
	SavePins(pins models.Pins) error

	// Pin records tool at version, overwriting any existing pin.
	Pin(tool, version string) error

	// Unpin removes a pin. Returns false when the tool was not pinned.
	Unpin(tool string) (bool, error)

	// PinnedVersion reports the pinned version for a tool, if any.
	PinnedVersion(tool string) (string, bool, error)

	// Backup writes a snapshot of state and pins to a timestamp-named
	// file and returns its path. Snapshot files are write-once.
	Backup(ts time.Time) (string, error)

	// Restore replaces state and pins from a snapshot file. Installed
	// binaries are untouched; the caller re-syncs to reconcile.
	Restore(path string) error

	// Close releases resources.
	Close() error
}

// CurrentSchemaVersion for state file migrations.
const CurrentSchemaVersion = 1

// snapshot file helpers shared by both backends

func writeSnapshot(dir string, snap models.BackupSnapshot) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("backup-%s.json", snap.Timestamp.UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	// O_EXCL keeps snapshots write-once.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create snapshot file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	return path, nil
}

func readSnapshot(path string) (models.BackupSnapshot, error) {
	var snap models.BackupSnapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if snap.State == nil {
		snap.State = models.InstallState{}
	}
	if snap.Pins == nil {
		snap.Pins = models.Pins{}
	}
	return snap, nil
}
