// Package verify runs post-install health checks against installed
// binaries and aggregates a report.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/dotbins/dotbins/internal/config"
	"github.com/dotbins/dotbins/internal/events"
	"github.com/dotbins/dotbins/internal/manifest"
	"github.com/dotbins/dotbins/internal/models"
	"github.com/dotbins/dotbins/internal/state"
)

// CheckResult is the outcome of verifying one installed binary.
type CheckResult struct {
	Key    models.Key `json:"key"`
	Binary string     `json:"binary"`
	OK     bool       `json:"ok"`
	Reason string     `json:"reason,omitempty"`
}

// Report aggregates per-binary results.
type Report struct {
	Results []CheckResult `json:"results"`
	Passed  int           `json:"passed"`
	Failed  int           `json:"failed"`
}

// Service verifies installed binaries.
type Service struct {
	resolver *manifest.Resolver
	store    state.Store
	cfg      *config.Config
	logger   *events.Logger
}

// NewService creates a verify service.
func NewService(resolver *manifest.Resolver, store state.Store, cfg *config.Config, logger *events.Logger) *Service {
	return &Service{
		resolver: resolver,
		store:    store,
		cfg:      cfg,
		logger:   logger.WithField("component", "verify_service"),
	}
}

// VerifyBinary checks one binary on disk. The first failing step
// short-circuits with an ExecError naming the reason.
func (s *Service) VerifyBinary(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return &models.ExecError{Binary: path, Reason: "binary does not exist"}
	}
	if err != nil {
		return &models.ExecError{Binary: path, Reason: "stat failed", Err: err}
	}

	if info.Mode()&0o111 == 0 {
		return &models.ExecError{Binary: path, Reason: "not executable"}
	}

	head, err := readHead(path, 1024)
	if err != nil {
		return &models.ExecError{Binary: path, Reason: "read failed", Err: err}
	}
	if models.IsPointerFile(head) {
		return &models.ExecError{Binary: path, Reason: "file is a git-lfs pointer, not a binary"}
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.Verify.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, path, s.cfg.Verify.ProbeArg)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		if probeCtx.Err() == context.DeadlineExceeded {
			return &models.ExecError{Binary: path, Reason: "probe timed out", Err: err}
		}
		return &models.ExecError{
			Binary: path,
			Reason: fmt.Sprintf("probe %s failed", s.cfg.Verify.ProbeArg),
			Err:    err,
		}
	}
	return nil
}

// VerifyAll checks every installed binary. A failing binary never halts
// the remaining checks.
func (s *Service) VerifyAll(ctx context.Context) (*Report, error) {
	installState, err := s.store.LoadState()
	if err != nil {
		return nil, err
	}

	var keys []string
	for keyStr := range installState {
		keys = append(keys, keyStr)
	}
	sort.Strings(keys)

	report := &Report{}
	for _, keyStr := range keys {
		key, err := models.ParseKey(keyStr)
		if err != nil {
			s.logger.WithField("key", keyStr).Warn("Skipping malformed state key")
			continue
		}

		binaryName := key.Tool
		if entry, err := s.resolver.Resolve(key.Tool, key.Platform, key.Arch); err == nil {
			binaryName = entry.BinaryName
		}
		binPath := filepath.Join(s.cfg.BinDir(key.Platform, key.Arch), binaryName)

		result := CheckResult{Key: key, Binary: binPath, OK: true}
		if err := s.VerifyBinary(ctx, binPath); err != nil {
			result.OK = false
			var execErr *models.ExecError
			if errors.As(err, &execErr) {
				result.Reason = execErr.Reason
			} else {
				result.Reason = err.Error()
			}
			s.logger.WithFields(map[string]interface{}{
				"key":    keyStr,
				"reason": result.Reason,
			}).Warn("Verification failed")
		}

		report.Results = append(report.Results, result)
		if result.OK {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	return report, nil
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	return buf[:read], err
}
