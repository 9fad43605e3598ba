package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dotbins/dotbins/internal/events"
	"github.com/dotbins/dotbins/internal/models"
)

// SQLiteStore implements SQLite-based state storage. Snapshot files are
// still written as JSON so backups stay portable across backends.
type SQLiteStore struct {
	db        *sql.DB
	backupDir string
	logger    *events.Logger
}

// NewSQLiteStore opens or creates a SQLite state store at dbPath.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:        db,
		backupDir: filepath.Join(filepath.Dir(dbPath), "backups"),
		logger:    logger.WithField("component", "sqlite_state_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS install_records (
        key TEXT PRIMARY KEY,
        sha256 TEXT NOT NULL DEFAULT '',
        url TEXT NOT NULL,
        installed_at TIMESTAMP NOT NULL
    );

    CREATE TABLE IF NOT EXISTS pins (
        tool TEXT PRIMARY KEY,
        version TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );

    INSERT OR IGNORE INTO schema_info (version) VALUES (?);
    `

	if _, err := s.db.Exec(schema, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// LoadState reads all install records.
func (s *SQLiteStore) LoadState() (models.InstallState, error) {
	rows, err := s.db.Query(`SELECT key, sha256, url, installed_at FROM install_records`)
	if err != nil {
		return nil, fmt.Errorf("query install records: %w", err)
	}
	defer rows.Close()

	state := models.InstallState{}
	for rows.Next() {
		var key string
		var record models.InstallRecord
		if err := rows.Scan(&key, &record.SHA256, &record.URL, &record.InstalledAt); err != nil {
			return nil, fmt.Errorf("scan install record: %w", err)
		}
		state[key] = record
	}
	return state, rows.Err()
}

// SaveState replaces all install records in one transaction.
func (s *SQLiteStore) SaveState(state models.InstallState) error {
	s.logger.WithField("records", len(state)).Debug("Saving install state")

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM install_records`); err != nil {
		return fmt.Errorf("clear install records: %w", err)
	}

	stmt, err := tx.Prepare(`
        INSERT INTO install_records (key, sha256, url, installed_at)
        VALUES (?, ?, ?, ?)
    `)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for key, record := range state {
		if _, err := stmt.Exec(key, record.SHA256, record.URL, record.InstalledAt.UTC()); err != nil {
			return fmt.Errorf("insert record %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// LoadPins reads all pins.
func (s *SQLiteStore) LoadPins() (models.Pins, error) {
	rows, err := s.db.Query(`SELECT tool, version FROM pins`)
	if err != nil {
		return nil, fmt.Errorf("query pins: %w", err)
	}
	defer rows.Close()

	pins := models.Pins{}
	for rows.Next() {
		var tool, version string
		if err := rows.Scan(&tool, &version); err != nil {
			return nil, fmt.Errorf("scan pin: %w", err)
		}
		pins[tool] = version
	}
	return pins, rows.Err()
}

// SavePins replaces all pins in one transaction.
func (s *SQLiteStore) SavePins(pins models.Pins) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM pins`); err != nil {
		return fmt.Errorf("clear pins: %w", err)
	}
	for tool, version := range pins {
		if _, err := tx.Exec(`INSERT INTO pins (tool, version) VALUES (?, ?)`, tool, version); err != nil {
			return fmt.Errorf("insert pin %s: %w", tool, err)
		}
	}

	return tx.Commit()
}

// Pin records tool at version, overwriting any existing pin.
func (s *SQLiteStore) Pin(tool, version string) error {
	_, err := s.db.Exec(`
        INSERT INTO pins (tool, version) VALUES (?, ?)
        ON CONFLICT(tool) DO UPDATE SET version = excluded.version
    `, tool, version)
	if err != nil {
		return fmt.Errorf("pin %s: %w", tool, err)
	}
	return nil
}

// Unpin removes a pin, reporting whether one existed.
func (s *SQLiteStore) Unpin(tool string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM pins WHERE tool = ?`, tool)
	if err != nil {
		return false, fmt.Errorf("unpin %s: %w", tool, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unpin %s: %w", tool, err)
	}
	return n > 0, nil
}

// PinnedVersion reports the pinned version for a tool.
func (s *SQLiteStore) PinnedVersion(tool string) (string, bool, error) {
	var version string
	err := s.db.QueryRow(`SELECT version FROM pins WHERE tool = ?`, tool).Scan(&version)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query pin %s: %w", tool, err)
	}
	return version, true, nil
}

// Backup snapshots current state and pins into a timestamp-named file.
func (s *SQLiteStore) Backup(ts time.Time) (string, error) {
	state, err := s.LoadState()
	if err != nil {
		return "", err
	}
	pins, err := s.LoadPins()
	if err != nil {
		return "", err
	}

	path, err := writeSnapshot(s.backupDir, models.BackupSnapshot{
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
func (s *SQLiteStore) Restore(path string) error {
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

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
