package tools_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotbins/dotbins/internal/archive"
	"github.com/dotbins/dotbins/internal/cache"
	"github.com/dotbins/dotbins/internal/config"
	"github.com/dotbins/dotbins/internal/manifest"
	"github.com/dotbins/dotbins/internal/models"
	syncsvc "github.com/dotbins/dotbins/internal/services/sync"
	"github.com/dotbins/dotbins/internal/services/tools"
	"github.com/dotbins/dotbins/internal/state"
	"github.com/dotbins/dotbins/internal/transport"
	"github.com/dotbins/dotbins/test/testutil"
)

type harness struct {
	service *tools.Service
	store   state.Store
	cfg     *config.Config
}

// newHarness builds a service whose manifest targets the detected host
// platform, so install paths work wherever the tests run.
func newHarness(t *testing.T) *harness {
	t.Helper()

	platform, arch := tools.DetectPlatform()

	body := testutil.TarGzArchive(t,
		testutil.Member{Name: "fzf-0.46.0/fzf", Body: []byte("fzf binary")},
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)

	manifestJSON := fmt.Sprintf(`{
  "fzf/%[1]s/%[2]s": {
    "url": "%[3]s/fzf.tar.gz",
    "sha256": "%[4]s",
    "tag": "0.46.0",
    "path_in_archive": "fzf-0.46.0/fzf"
  },
  "fzf/linux/arm64": {
    "url": "%[3]s/fzf.tar.gz",
    "sha256": "%[4]s",
    "tag": "0.46.0",
    "path_in_archive": "fzf-0.46.0/fzf"
  },
  "bat/%[1]s/%[2]s": {
    "url": "%[3]s/bat.tar.gz",
    "tag": "v0.24.0"
  }
}`, platform, arch, server.URL, testutil.SHA256(body))

	root := t.TempDir()
	cfg := config.Default()
	cfg.Root.Dir = root
	cfg.Cache.Dir = filepath.Join(root, "cache")
	cfg.State.Dir = filepath.Join(root, "state")
	cfg.HTTP.Timeout = 5 * time.Second

	logger := testutil.Logger()

	resolver, err := manifest.Parse([]byte(manifestJSON))
	require.NoError(t, err)

	cacheStore, err := cache.NewStore(cfg.Cache.Dir, logger)
	require.NoError(t, err)

	store, err := state.NewJSONStore(cfg.State.Dir, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine := syncsvc.NewEngine(resolver, cacheStore,
		transport.NewClient(&cfg.HTTP, logger), archive.NewExtractor(logger),
		store, cfg, logger)

	service := tools.NewService(resolver, engine, store, cfg, logger)

	return &harness{service: service, store: store, cfg: cfg}
}

func TestDetectPlatform(t *testing.T) {
	platform, arch := tools.DetectPlatform()
	assert.NotEmpty(t, platform)
	assert.NotEmpty(t, arch)
	assert.NotEqual(t, "darwin", platform, "darwin must map to macos")
}

func TestInstallDefaultsToHostPlatform(t *testing.T) {
	h := newHarness(t)

	res := h.service.Install(context.Background(), "fzf", "", "", false)
	require.NoError(t, res.Err)
	assert.Equal(t, syncsvc.StatusInstalled, res.Status)

	platform, arch := tools.DetectPlatform()
	assert.FileExists(t, filepath.Join(h.cfg.BinDir(platform, arch), "fzf"))
}

func TestListInstalled(t *testing.T) {
	h := newHarness(t)

	infos, err := h.service.ListInstalled()
	require.NoError(t, err)
	assert.Empty(t, infos)

	res := h.service.Install(context.Background(), "fzf", "", "", false)
	require.Equal(t, syncsvc.StatusInstalled, res.Status)
	require.NoError(t, h.store.Pin("fzf", "0.46.0"))

	infos, err = h.service.ListInstalled()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "fzf", infos[0].Name)
	assert.Equal(t, "0.46.0", infos[0].Version)
	assert.True(t, infos[0].Pinned)
	assert.False(t, infos[0].InstalledAt.IsZero())
}

func TestListAvailable(t *testing.T) {
	h := newHarness(t)

	available, err := h.service.ListAvailable()
	require.NoError(t, err)
	require.Len(t, available, 2)

	assert.Equal(t, "fzf", available[0].Name)
	assert.Len(t, available[0].Platforms, 2)
	assert.False(t, available[0].Installed)

	res := h.service.Install(context.Background(), "fzf", "", "", false)
	require.Equal(t, syncsvc.StatusInstalled, res.Status)

	available, err = h.service.ListAvailable()
	require.NoError(t, err)
	assert.True(t, available[0].Installed)
	assert.False(t, available[1].Installed)
}

func TestUninstall(t *testing.T) {
	h := newHarness(t)
	platform, arch := tools.DetectPlatform()

	t.Run("not installed", func(t *testing.T) {
		err := h.service.Uninstall("fzf", platform, arch)
		assert.ErrorIs(t, err, models.ErrEntryNotFound)
	})

	res := h.service.Install(context.Background(), "fzf", "", "", false)
	require.Equal(t, syncsvc.StatusInstalled, res.Status)
	binPath := filepath.Join(h.cfg.BinDir(platform, arch), "fzf")
	require.FileExists(t, binPath)

	t.Run("removes binary and record", func(t *testing.T) {
		require.NoError(t, h.service.Uninstall("fzf", platform, arch))
		assert.NoFileExists(t, binPath)

		installState, err := h.store.LoadState()
		require.NoError(t, err)
		assert.Empty(t, installState)
	})

	t.Run("missing binary tolerated", func(t *testing.T) {
		res := h.service.Install(context.Background(), "fzf", "", "", false)
		require.Equal(t, syncsvc.StatusInstalled, res.Status)
		require.NoError(t, os.Remove(binPath))

		assert.NoError(t, h.service.Uninstall("fzf", platform, arch))
	})
}

func TestExportProfile(t *testing.T) {
	h := newHarness(t)
	platform, arch := tools.DetectPlatform()

	res := h.service.Install(context.Background(), "fzf", "", "", false)
	require.Equal(t, syncsvc.StatusInstalled, res.Status)
	require.NoError(t, h.store.Pin("fzf", "0.45.0"))

	fixed := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	h.service.WithClock(func() time.Time { return fixed })

	var buf bytes.Buffer
	require.NoError(t, h.service.ExportProfile(&buf, platform, arch))

	var profile models.Profile
	require.NoError(t, json.Unmarshal(buf.Bytes(), &profile))
	assert.Equal(t, platform, profile.Platform)
	assert.Equal(t, arch, profile.Arch)
	assert.True(t, fixed.Equal(profile.ExportedAt))
	require.Len(t, profile.Tools, 1)
	assert.Equal(t, "fzf", profile.Tools[0].Name)
	assert.Equal(t, "0.45.0", profile.Tools[0].Version, "pin overrides manifest tag")
	assert.True(t, profile.Tools[0].Pinned)
}

func writeProfile(t *testing.T, profile models.Profile) string {
	t.Helper()
	data, err := json.Marshal(profile)
	require.NoError(t, err)
	return testutil.WriteFile(t, t.TempDir(), "profile.json", data)
}

func TestImportProfile(t *testing.T) {
	platform, arch := tools.DetectPlatform()

	matching := models.Profile{
		Platform: platform,
		Arch:     arch,
		Tools: []models.ProfileTool{
			{Name: "fzf", Version: "0.46.0", Pinned: true},
		},
	}

	t.Run("matching platform installs and repins", func(t *testing.T) {
		h := newHarness(t)

		result, err := h.service.ImportProfile(context.Background(), writeProfile(t, matching), false)
		require.NoError(t, err)
		assert.Equal(t, syncsvc.StatusInstalled, result.Results["fzf"].Status)
		assert.Equal(t, []string{"fzf"}, result.Repinned)

		version, ok, err := h.store.PinnedVersion("fzf")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "0.46.0", version)
	})

	mismatched := models.Profile{
		Platform: "plan9",
		Arch:     "mips",
		Tools:    matching.Tools,
	}

	t.Run("mismatch without terminal fails", func(t *testing.T) {
		h := newHarness(t)
		h.service.WithPrompt(bytes.NewReader(nil), &bytes.Buffer{}, func() bool { return false })

		_, err := h.service.ImportProfile(context.Background(), writeProfile(t, mismatched), false)
		assert.ErrorIs(t, err, models.ErrPlatformMismatch)
	})

	t.Run("mismatch declined at prompt", func(t *testing.T) {
		h := newHarness(t)
		h.service.WithPrompt(bytes.NewReader([]byte("n\n")), &bytes.Buffer{}, func() bool { return true })

		_, err := h.service.ImportProfile(context.Background(), writeProfile(t, mismatched), false)
		assert.ErrorIs(t, err, models.ErrPlatformMismatch)
	})

	t.Run("mismatch confirmed at prompt", func(t *testing.T) {
		h := newHarness(t)
		var out bytes.Buffer
		h.service.WithPrompt(bytes.NewReader([]byte("y\n")), &out, func() bool { return true })

		result, err := h.service.ImportProfile(context.Background(), writeProfile(t, mismatched), false)
		require.NoError(t, err)
		assert.Equal(t, syncsvc.StatusInstalled, result.Results["fzf"].Status)
		assert.Contains(t, out.String(), "plan9/mips")
	})

	t.Run("mismatch with force flag", func(t *testing.T) {
		h := newHarness(t)
		h.service.WithPrompt(bytes.NewReader(nil), &bytes.Buffer{}, func() bool { return false })

		result, err := h.service.ImportProfile(context.Background(), writeProfile(t, mismatched), true)
		require.NoError(t, err)
		assert.Equal(t, syncsvc.StatusInstalled, result.Results["fzf"].Status)
	})

	t.Run("missing profile file", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.service.ImportProfile(context.Background(), filepath.Join(t.TempDir(), "nope.json"), false)
		assert.Error(t, err)
	})
}
