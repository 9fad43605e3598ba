package state_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotbins/dotbins/internal/config"
	"github.com/dotbins/dotbins/internal/models"
	"github.com/dotbins/dotbins/internal/state"
	"github.com/dotbins/dotbins/test/testutil"
)

func backends(t *testing.T) map[string]state.Store {
	t.Helper()

	jsonStore, err := state.NewJSONStore(t.TempDir(), testutil.Logger())
	require.NoError(t, err)

	sqliteStore, err := state.NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"), testutil.Logger())
	require.NoError(t, err)

	stores := map[string]state.Store{
		"json":   jsonStore,
		"sqlite": sqliteStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func sampleState() models.InstallState {
	return models.InstallState{
		"fzf/linux/amd64": {
			SHA256:      "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
			URL:         "https://example.com/fzf.tar.gz",
			InstalledAt: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		},
		"bat/linux/amd64": {
			URL:         "https://example.com/bat.tar.gz",
			InstalledAt: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestStateRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Missing state is a valid first run.
			got, err := store.LoadState()
			require.NoError(t, err)
			assert.Empty(t, got)

			want := sampleState()
			require.NoError(t, store.SaveState(want))

			got, err = store.LoadState()
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, want["fzf/linux/amd64"].SHA256, got["fzf/linux/amd64"].SHA256)
			assert.Equal(t, want["bat/linux/amd64"].URL, got["bat/linux/amd64"].URL)
			assert.True(t, want["fzf/linux/amd64"].InstalledAt.Equal(got["fzf/linux/amd64"].InstalledAt))

			// Save replaces, never merges.
			require.NoError(t, store.SaveState(models.InstallState{}))
			got, err = store.LoadState()
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestPins(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.PinnedVersion("fzf")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Pin("fzf", "0.46.0"))
			require.NoError(t, store.Pin("fzf", "0.47.0")) // overwrite

			version, ok, err := store.PinnedVersion("fzf")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "0.47.0", version)

			removed, err := store.Unpin("fzf")
			require.NoError(t, err)
			assert.True(t, removed)

			removed, err = store.Unpin("fzf")
			require.NoError(t, err)
			assert.False(t, removed, "unpinning an unpinned tool is a reported no-op")
		})
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.SaveState(sampleState()))
			require.NoError(t, store.Pin("fzf", "0.46.0"))

			ts := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
			path, err := store.Backup(ts)
			require.NoError(t, err)
			assert.FileExists(t, path)
			assert.Contains(t, filepath.Base(path), "20260401T120000Z")

			// Snapshots are write-once.
			_, err = store.Backup(ts)
			assert.Error(t, err)

			// Mutate, then restore.
			require.NoError(t, store.SaveState(models.InstallState{}))
			_, err = store.Unpin("fzf")
			require.NoError(t, err)

			require.NoError(t, store.Restore(path))

			got, err := store.LoadState()
			require.NoError(t, err)
			assert.Len(t, got, 2)

			version, ok, err := store.PinnedVersion("fzf")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "0.46.0", version)
		})
	}
}

func TestRestoreMissingSnapshot(t *testing.T) {
	store, err := state.NewJSONStore(t.TempDir(), testutil.Logger())
	require.NoError(t, err)
	defer store.Close()

	err = store.Restore(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestJSONStoreCorruptRecovery(t *testing.T) {
	dir := t.TempDir()
	store, err := state.NewJSONStore(dir, testutil.Logger())
	require.NoError(t, err)
	defer store.Close()

	// Two saves so a recovery copy of the first exists.
	require.NoError(t, store.SaveState(sampleState()))
	require.NoError(t, store.SaveState(sampleState()))

	statePath := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte("{garbage"), 0o600))

	got, err := store.LoadState()
	require.NoError(t, err, "corrupt state should fall back to the recovery copy")
	assert.Len(t, got, 2)
}

func TestJSONStoreCorruptWithoutRecovery(t *testing.T) {
	dir := t.TempDir()
	store, err := state.NewJSONStore(dir, testutil.Logger())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{garbage"), 0o600))

	_, err = store.LoadState()
	assert.ErrorIs(t, err, models.ErrStateCorrupt)
}

func TestJSONStoreChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	store, err := state.NewJSONStore(dir, testutil.Logger())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveState(sampleState()))

	// Flip a value without recomputing the checksum.
	statePath := filepath.Join(dir, "state.json")
	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "fzf.tar.gz", "evil.tar.gz", 1)
	require.NoError(t, os.WriteFile(statePath, []byte(tampered), 0o600))
	_ = os.Remove(statePath + ".backup")

	_, err = store.LoadState()
	assert.ErrorIs(t, err, models.ErrStateCorrupt)
}

func TestFactory(t *testing.T) {
	t.Run("json backend", func(t *testing.T) {
		store, err := state.New(&config.StateConfig{Backend: "json", Dir: t.TempDir()}, testutil.Logger())
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &state.JSONStore{}, store)
	})

	t.Run("sqlite backend", func(t *testing.T) {
		store, err := state.New(&config.StateConfig{Backend: "sqlite", Dir: t.TempDir()}, testutil.Logger())
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &state.SQLiteStore{}, store)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := state.New(&config.StateConfig{Backend: "etcd", Dir: t.TempDir()}, testutil.Logger())
		assert.Error(t, err)
	})
}
