// Package tools provides listing, install/uninstall, and profile
// export/import on top of the sync engine.
package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/dotbins/dotbins/internal/config"
	"github.com/dotbins/dotbins/internal/events"
	"github.com/dotbins/dotbins/internal/manifest"
	"github.com/dotbins/dotbins/internal/models"
	syncsvc "github.com/dotbins/dotbins/internal/services/sync"
	"github.com/dotbins/dotbins/internal/state"
)

// Service manages the installed tool set.
type Service struct {
	resolver *manifest.Resolver
	engine   *syncsvc.Engine
	store    state.Store
	cfg      *config.Config
	logger   *events.Logger

	now func() time.Time

	// Prompt plumbing, replaceable in tests.
	stdin      io.Reader
	stdout     io.Writer
	isTerminal func() bool
}

// NewService creates a tools service.
func NewService(
	resolver *manifest.Resolver,
	engine *syncsvc.Engine,
	store state.Store,
	cfg *config.Config,
	logger *events.Logger,
) *Service {
	return &Service{
		resolver: resolver,
		engine:   engine,
		store:    store,
		cfg:      cfg,
		logger:   logger.WithField("component", "tools_service"),
		now:      time.Now,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

// WithClock replaces the service's time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithPrompt replaces the confirmation plumbing.
func (s *Service) WithPrompt(stdin io.Reader, stdout io.Writer, isTerminal func() bool) *Service {
	s.stdin = stdin
	s.stdout = stdout
	s.isTerminal = isTerminal
	return s
}

// DetectPlatform reports the running platform in manifest terms.
func DetectPlatform() (platform, arch string) {
	platform = runtime.GOOS
	if platform == "darwin" {
		platform = "macos"
	}
	return platform, runtime.GOARCH
}

// ListInstalled joins install records with manifest entries and pins.
// Sorted by key for stable output.
func (s *Service) ListInstalled() ([]models.ToolInfo, error) {
	installState, err := s.store.LoadState()
	if err != nil {
		return nil, err
	}
	pins, err := s.store.LoadPins()
	if err != nil {
		return nil, err
	}

	infos := make([]models.ToolInfo, 0, len(installState))
	for keyStr, record := range installState {
		key, err := models.ParseKey(keyStr)
		if err != nil {
			s.logger.WithField("key", keyStr).Warn("Skipping malformed state key")
			continue
		}

		version := ""
		if entry, err := s.resolver.Resolve(key.Tool, key.Platform, key.Arch); err == nil {
			version = entry.Tag
		}
		_, pinned := pins[key.Tool]

		infos = append(infos, models.ToolInfo{
			Name:        key.Tool,
			Platform:    key.Platform,
			Arch:        key.Arch,
			Version:     version,
			InstalledAt: record.InstalledAt,
			Pinned:      pinned,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Name != infos[j].Name {
			return infos[i].Name < infos[j].Name
		}
		if infos[i].Platform != infos[j].Platform {
			return infos[i].Platform < infos[j].Platform
		}
		return infos[i].Arch < infos[j].Arch
	})
	return infos, nil
}

// ListAvailable groups manifest entries by tool.
func (s *Service) ListAvailable() ([]models.AvailableTool, error) {
	installState, err := s.store.LoadState()
	if err != nil {
		return nil, err
	}

	byTool := make(map[string]*models.AvailableTool)
	var order []string
	for _, key := range s.resolver.Keys() {
		tool, ok := byTool[key.Tool]
		if !ok {
			tool = &models.AvailableTool{Name: key.Tool}
			byTool[key.Tool] = tool
			order = append(order, key.Tool)
		}
		tool.Platforms = append(tool.Platforms, key.Platform+"/"+key.Arch)
		if _, installed := installState[key.String()]; installed {
			tool.Installed = true
		}
	}

	out := make([]models.AvailableTool, 0, len(order))
	for _, name := range order {
		out = append(out, *byTool[name])
	}
	return out, nil
}

// Install syncs one tool. Platform and arch default to the detected host.
func (s *Service) Install(ctx context.Context, tool, platform, arch string, force bool) syncsvc.Result {
	if platform == "" || arch == "" {
		detectedPlatform, detectedArch := DetectPlatform()
		if platform == "" {
			platform = detectedPlatform
		}
		if arch == "" {
			arch = detectedArch
		}
	}
	return s.engine.Sync(ctx, tool, platform, arch, force)
}

// Uninstall removes a tool's binary and its install record. A missing
// binary is tolerated; a missing record is an error.
func (s *Service) Uninstall(tool, platform, arch string) error {
	key := models.Key{Tool: tool, Platform: platform, Arch: arch}

	installState, err := s.store.LoadState()
	if err != nil {
		return err
	}
	if _, ok := installState[key.String()]; !ok {
		return fmt.Errorf("%s: %w", key, models.ErrEntryNotFound)
	}

	binaryName := tool
	if entry, err := s.resolver.Resolve(tool, platform, arch); err == nil {
		binaryName = entry.BinaryName
	}

	binPath := filepath.Join(s.cfg.BinDir(platform, arch), binaryName)
	if err := os.Remove(binPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove binary: %w", err)
	}

	delete(installState, key.String())
	if err := s.store.SaveState(installState); err != nil {
		return err
	}

	s.logger.WithField("key", key.String()).Info("Uninstalled")
	return nil
}

// ExportProfile writes the installed set for one platform as JSON.
func (s *Service) ExportProfile(w io.Writer, platform, arch string) error {
	installState, err := s.store.LoadState()
	if err != nil {
		return err
	}
	pins, err := s.store.LoadPins()
	if err != nil {
		return err
	}

	profile := models.Profile{
		Platform:   platform,
		Arch:       arch,
		ExportedAt: s.now().UTC(),
	}

	var keys []string
	for keyStr := range installState {
		keys = append(keys, keyStr)
	}
	sort.Strings(keys)

	for _, keyStr := range keys {
		key, err := models.ParseKey(keyStr)
		if err != nil || key.Platform != platform || key.Arch != arch {
			continue
		}

		version := ""
		if entry, err := s.resolver.Resolve(key.Tool, key.Platform, key.Arch); err == nil {
			version = entry.Tag
		}
		if pinnedVersion, ok := pins[key.Tool]; ok {
			version = pinnedVersion
		}

		_, pinned := pins[key.Tool]
		profile.Tools = append(profile.Tools, models.ProfileTool{
			Name:    key.Tool,
			Version: version,
			Pinned:  pinned,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(profile)
}

// ImportResult summarizes one profile import.
type ImportResult struct {
	Results  map[string]syncsvc.Result
	Repinned []string
}

// ImportProfile installs every tool listed in a profile file onto the
// current platform. When the profile was exported for a different
// platform, the user must confirm interactively or pass forcePlatform.
func (s *Service) ImportProfile(ctx context.Context, path string, forcePlatform bool) (*ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var profile models.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	platform, arch := DetectPlatform()
	if profile.Platform != platform || profile.Arch != arch {
		if !forcePlatform {
			ok, err := s.confirmMismatch(profile, platform, arch)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, models.ErrPlatformMismatch
			}
		}
		s.logger.WithFields(map[string]interface{}{
			"profile": profile.Platform + "/" + profile.Arch,
			"host":    platform + "/" + arch,
		}).Warn("Importing profile exported for a different platform")
	}

	result := &ImportResult{Results: make(map[string]syncsvc.Result, len(profile.Tools))}
	for _, tool := range profile.Tools {
		res := s.engine.Sync(ctx, tool.Name, platform, arch, false)
		result.Results[tool.Name] = res

		if tool.Pinned && res.OK() {
			if err := s.store.Pin(tool.Name, tool.Version); err != nil {
				return result, fmt.Errorf("re-pin %s: %w", tool.Name, err)
			}
			result.Repinned = append(result.Repinned, tool.Name)
		}
	}
	return result, nil
}

func (s *Service) confirmMismatch(profile models.Profile, platform, arch string) (bool, error) {
	if !s.isTerminal() {
		return false, fmt.Errorf("%w: profile is for %s/%s, host is %s/%s (use --force-platform)",
			models.ErrPlatformMismatch, profile.Platform, profile.Arch, platform, arch)
	}

	fmt.Fprintf(s.stdout, "Profile was exported for %s/%s but this host is %s/%s. Continue? [y/N] ",
		profile.Platform, profile.Arch, platform, arch)

	reader := bufio.NewReader(s.stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
