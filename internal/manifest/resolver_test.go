package manifest_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotbins/dotbins/internal/manifest"
	"github.com/dotbins/dotbins/internal/models"
	"github.com/dotbins/dotbins/test/testutil"
)

const sampleManifest = `{
  "fzf/linux/amd64": {
    "url": "https://example.com/fzf-0.46.0-linux_amd64.tar.gz",
    "sha256": "` + sampleDigest + `",
    "tag": "0.46.0",
    "path_in_archive": "fzf-0.46.0-linux_amd64/fzf"
  },
  "fzf/macos/arm64": {
    "url": "https://example.com/fzf-0.46.0-darwin_arm64.tar.gz",
    "tag": "0.46.0"
  },
  "bat/linux/amd64": {
    "url": "https://example.com/bat-v0.24.0.tar.gz",
    "tag": "v0.24.0"
  }
}`

const sampleDigest = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestResolve(t *testing.T) {
	r, err := manifest.Parse([]byte(sampleManifest))
	require.NoError(t, err)

	t.Run("present key", func(t *testing.T) {
		entry, err := r.Resolve("fzf", "linux", "amd64")
		require.NoError(t, err)
		assert.Equal(t, "0.46.0", entry.Tag)
		assert.Equal(t, sampleDigest, entry.SHA256)
		assert.Equal(t, "fzf", entry.BinaryName)
		assert.Equal(t, "fzf-0.46.0-linux_amd64/fzf", entry.PathInArchive)
	})

	t.Run("defaults applied", func(t *testing.T) {
		entry, err := r.Resolve("bat", "linux", "amd64")
		require.NoError(t, err)
		assert.Equal(t, "bat", entry.BinaryName)
		assert.Equal(t, "bat", entry.PathInArchive)
		assert.Empty(t, entry.SHA256)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := r.Resolve("ripgrep", "linux", "amd64")
		assert.ErrorIs(t, err, models.ErrEntryNotFound)
	})

	t.Run("case sensitive", func(t *testing.T) {
		_, err := r.Resolve("FZF", "linux", "amd64")
		assert.ErrorIs(t, err, models.ErrEntryNotFound)
	})
}

func TestKeysFileOrder(t *testing.T) {
	r, err := manifest.Parse([]byte(sampleManifest))
	require.NoError(t, err)

	keys := r.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, "fzf/linux/amd64", keys[0].String())
	assert.Equal(t, "fzf/macos/arm64", keys[1].String())
	assert.Equal(t, "bat/linux/amd64", keys[2].String())
}

func TestEntries(t *testing.T) {
	r, err := manifest.Parse([]byte(sampleManifest))
	require.NoError(t, err)

	entries := r.Entries("fzf")
	require.Len(t, entries, 2)
	assert.Equal(t, "linux", entries[0].Key.Platform)
	assert.Equal(t, "macos", entries[1].Key.Platform)

	assert.Empty(t, r.Entries("nonexistent"))
}

func TestLoad(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "manifest.json", []byte(sampleManifest))

	r, err := manifest.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	_, err = manifest.Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"not json", "{broken", "parse manifest"},
		{"root not object", `["a"]`, "parse manifest"},
		{"bad key shape", `{"fzf/linux": {"url": "https://x"}}`, "manifest key"},
		{"missing url", `{"fzf/linux/amd64": {"tag": "1.0"}}`, "manifest entry"},
		{"bad digest", `{"fzf/linux/amd64": {"url": "https://x", "sha256": "zz"}}`, "manifest entry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manifest.Parse([]byte(tt.input))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "got %v", err)
		})
	}
}
