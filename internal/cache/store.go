// Package cache stores downloaded archives under deterministic names so
// repeated syncs can reuse verified artifacts across runs.
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dotbins/dotbins/internal/archive"
	"github.com/dotbins/dotbins/internal/digest"
	"github.com/dotbins/dotbins/internal/events"
	"github.com/dotbins/dotbins/internal/models"
)

// Store is a keyed archive cache. Filenames are deterministic from the
// manifest key and tag, so concurrent writers for distinct keys never
// collide.
type Store struct {
	dir    string
	logger *events.Logger
}

// NewStore creates the cache directory if needed.
func NewStore(dir string, logger *events.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger.WithField("component", "cache"),
	}, nil
}

// Dir returns the cache root.
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the deterministic cache name for a manifest entry:
// <tool>-<tag>-<platform>-<arch> plus the archive extension of the URL.
func FileName(entry models.ManifestEntry) string {
	return fmt.Sprintf("%s-%s-%s-%s%s",
		entry.Key.Tool, entry.Tag, entry.Key.Platform, entry.Key.Arch,
		archive.DetectFormat(entry.URL).Ext())
}

// Path returns the absolute cache path for a manifest entry.
func (s *Store) Path(entry models.ManifestEntry) string {
	return filepath.Join(s.dir, FileName(entry))
}

// Has reports whether a cached file exists for the entry.
func (s *Store) Has(entry models.ManifestEntry) bool {
	_, err := os.Stat(s.Path(entry))
	return err == nil
}

// VerifiedPath returns the cache path when a cached file exists and
// still matches the entry's digest. A cached file is never trusted
// silently: a digest mismatch (manifest changed, or the file was
// corrupted on disk) returns ok=false so the caller re-downloads.
// Entries without a digest are reused on existence alone.
func (s *Store) VerifiedPath(entry models.ManifestEntry) (path string, ok bool, err error) {
	path = s.Path(entry)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return path, false, nil
		}
		return path, false, fmt.Errorf("stat cache file: %w", err)
	}

	if entry.SHA256 == "" {
		s.logger.WithField("file", filepath.Base(path)).Debug("Reusing cached file without digest check")
		return path, true, nil
	}

	match, err := digest.Verify(path, entry.SHA256)
	if err != nil {
		return path, false, err
	}
	if !match {
		s.logger.WithFields(map[string]interface{}{
			"file":     filepath.Base(path),
			"expected": entry.SHA256,
		}).Warn("Cached file digest mismatch, will re-download")
		return path, false, nil
	}

	return path, true, nil
}

// Remove deletes the cached file for an entry, tolerating absence.
func (s *Store) Remove(entry models.ManifestEntry) error {
	err := os.Remove(s.Path(entry))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

// Clean deletes cached archives whose names are not in keep and returns
// the removed names. Callers build keep from the manifest entries of
// currently installed keys.
func (s *Store) Clean(keep map[string]struct{}) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read cache directory: %w", err)
	}

	var removed []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if _, ok := keep[name]; ok {
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return removed, fmt.Errorf("remove %s: %w", name, err)
		}
		s.logger.WithField("file", name).Debug("Removed cached archive")
		removed = append(removed, name)
	}

	return removed, nil
}
