// Package sync implements the per-key install state machine and sync_all.
package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dotbins/dotbins/internal/archive"
	"github.com/dotbins/dotbins/internal/cache"
	"github.com/dotbins/dotbins/internal/config"
	"github.com/dotbins/dotbins/internal/events"
	"github.com/dotbins/dotbins/internal/manifest"
	"github.com/dotbins/dotbins/internal/models"
	"github.com/dotbins/dotbins/internal/state"
	"github.com/dotbins/dotbins/internal/transport"
)

// Status classifies the outcome of one key's sync.
type Status string

const (
	StatusInstalled Status = "installed"
	StatusUpToDate  Status = "up_to_date"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Result is the outcome of syncing one manifest key.
type Result struct {
	Key    models.Key
	Status Status
	Reason string
	Err    error
}

// OK reports whether the key ended in a non-failed state.
func (r Result) OK() bool {
	return r.Status != StatusFailed
}

// Options controls a sync run.
type Options struct {
	// Force bypasses up-to-date checks and cache reuse.
	Force bool

	// Platform and Arch filter SyncAll to matching keys when set.
	Platform string
	Arch     string

	// MaxConcurrent bounds the worker pool for SyncAll. Values below 1
	// mean sequential processing in manifest order.
	MaxConcurrent int
}

// EventType defines sync event types.
type EventType string

const (
	EventStarted     EventType = "started"
	EventKeyStarted  EventType = "key_started"
	EventDownloading EventType = "downloading"
	EventProgress    EventType = "progress"
	EventInstalled   EventType = "installed"
	EventUpToDate    EventType = "up_to_date"
	EventSkipped     EventType = "skipped"
	EventKeyFailed   EventType = "key_failed"
	EventCompleted   EventType = "completed"
)

// Event reports sync progress for display.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Key       models.Key
	Reason    string
	Received  int64
	Total     int64
	Error     error
}

// Engine drives manifest entries through resolve, fetch, verify, extract,
// and install. All collaborators and the clock are injected.
type Engine struct {
	resolver  *manifest.Resolver
	cache     *cache.Store
	client    *transport.Client
	extractor *archive.Extractor
	store     state.Store
	cfg       *config.Config
	logger    *events.Logger

	now func() time.Time

	// stateMu serializes state read-modify-write across workers.
	stateMu sync.Mutex

	// Run lifecycle
	mu           sync.Mutex
	syncing      bool
	events       chan Event
	eventsClosed bool
}

// NewEngine creates a sync engine.
func NewEngine(
	resolver *manifest.Resolver,
	cacheStore *cache.Store,
	client *transport.Client,
	extractor *archive.Extractor,
	store state.Store,
	cfg *config.Config,
	logger *events.Logger,
) *Engine {
	return &Engine{
		resolver:  resolver,
		cache:     cacheStore,
		client:    client,
		extractor: extractor,
		store:     store,
		cfg:       cfg,
		logger:    logger.WithField("component", "sync_engine"),
		now:       time.Now,
		events:    make(chan Event, 100),
	}
}

// WithClock replaces the engine's time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Events returns the event channel. It is closed when SyncAll finishes.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Sync brings one manifest key to its manifest-declared version.
func (e *Engine) Sync(ctx context.Context, tool, platform, arch string, force bool) Result {
	entry, err := e.resolver.Resolve(tool, platform, arch)
	if err != nil {
		key := models.Key{Tool: tool, Platform: platform, Arch: arch}
		return e.fail(key, "resolve", models.ErrCodeNotFound, err)
	}
	return e.syncEntry(ctx, entry, force)
}

// SyncAll processes every manifest key, optionally filtered and
// parallelized. One key's failure never aborts the rest. The returned map
// is keyed by slash-joined manifest key.
func (e *Engine) SyncAll(ctx context.Context, opts Options) (map[string]Result, error) {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return nil, models.ErrSyncInProgress
	}
	e.syncing = true
	if e.eventsClosed {
		e.events = make(chan Event, 100)
		e.eventsClosed = false
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing = false
		if !e.eventsClosed {
			close(e.events)
			e.eventsClosed = true
		}
		e.mu.Unlock()
	}()

	keys := e.filterKeys(opts)

	e.logger.WithFields(map[string]interface{}{
		"keys":  len(keys),
		"force": opts.Force,
	}).Info("Starting sync")
	e.emitEvent(Event{Type: EventStarted, Timestamp: e.now()})

	results := make(map[string]Result, len(keys))

	if opts.MaxConcurrent > 1 {
		var wg sync.WaitGroup
		var resultsMu sync.Mutex
		sem := make(chan struct{}, opts.MaxConcurrent)

		for _, key := range keys {
			wg.Add(1)
			go func(key models.Key) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				res := e.Sync(ctx, key.Tool, key.Platform, key.Arch, opts.Force)
				resultsMu.Lock()
				results[key.String()] = res
				resultsMu.Unlock()
			}(key)
		}
		wg.Wait()
	} else {
		for _, key := range keys {
			results[key.String()] = e.Sync(ctx, key.Tool, key.Platform, key.Arch, opts.Force)
		}
	}

	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}
	e.logger.WithFields(map[string]interface{}{
		"keys":   len(results),
		"failed": failed,
	}).Info("Sync completed")
	e.emitEvent(Event{Type: EventCompleted, Timestamp: e.now()})

	return results, nil
}

func (e *Engine) filterKeys(opts Options) []models.Key {
	all := e.resolver.Keys()
	if opts.Platform == "" && opts.Arch == "" {
		return all
	}
	var keys []models.Key
	for _, key := range all {
		if opts.Platform != "" && key.Platform != opts.Platform {
			continue
		}
		if opts.Arch != "" && key.Arch != opts.Arch {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func (e *Engine) syncEntry(ctx context.Context, entry models.ManifestEntry, force bool) Result {
	key := entry.Key
	logger := e.logger.WithField("key", key.String())

	e.emitEvent(Event{Type: EventKeyStarted, Timestamp: e.now(), Key: key})

	// Pin check: a pin naming a different version skips the key.
	if pinned, ok, err := e.store.PinnedVersion(key.Tool); err != nil {
		return e.fail(key, "pins", models.ErrCodeIO, err)
	} else if ok && pinned != entry.Tag && !force {
		reason := fmt.Sprintf("pinned to %s, manifest has %s", pinned, entry.Tag)
		logger.WithField("pinned", pinned).Warn("Skipping pinned tool")
		e.emitEvent(Event{Type: EventSkipped, Timestamp: e.now(), Key: key, Reason: reason})
		return Result{Key: key, Status: StatusSkipped, Reason: reason}
	}

	installState, err := e.loadState()
	if err != nil {
		return e.fail(key, "state", models.ErrCodeIO, err)
	}

	if record, ok := installState[key.String()]; ok && !force {
		if record.SHA256 == entry.SHA256 && (entry.SHA256 != "" || record.URL == entry.URL) {
			logger.Debug("Already up to date")
			e.emitEvent(Event{Type: EventUpToDate, Timestamp: e.now(), Key: key})
			return Result{Key: key, Status: StatusUpToDate}
		}
	}

	if entry.SHA256 == "" {
		logger.Warn("Manifest entry declares no digest; download will not be verified")
	}

	archivePath, err := e.obtainArchive(ctx, entry, force, logger)
	if err != nil {
		return e.classifyFail(key, "fetch", err)
	}

	destPath := filepath.Join(e.cfg.BinDir(key.Platform, key.Arch), entry.BinaryName)
	member, err := e.extractor.Extract(archivePath, entry.PathInArchive, destPath)
	if err != nil {
		return e.classifyFail(key, "extract", err)
	}
	logger.WithField("member", member).Debug("Extracted binary")

	// State write is the last step, once the binary is in place.
	if err := e.recordInstall(key, entry); err != nil {
		return e.fail(key, "state", models.ErrCodeIO, err)
	}

	logger.WithFields(map[string]interface{}{
		"tag":  entry.Tag,
		"dest": destPath,
	}).Info("Installed")
	e.emitEvent(Event{Type: EventInstalled, Timestamp: e.now(), Key: key})

	return Result{Key: key, Status: StatusInstalled}
}

// obtainArchive returns a path to a digest-verified archive, reusing the
// cache when allowed and re-downloading otherwise.
func (e *Engine) obtainArchive(ctx context.Context, entry models.ManifestEntry, force bool, logger *events.Logger) (string, error) {
	if !force {
		if path, ok, err := e.cache.VerifiedPath(entry); err != nil {
			return "", err
		} else if ok {
			logger.WithField("path", path).Debug("Reusing cached archive")
			return path, nil
		}
	}

	dest := e.cache.Path(entry)
	e.emitEvent(Event{Type: EventDownloading, Timestamp: e.now(), Key: entry.Key})

	_, err := e.client.Fetch(ctx, entry.URL, dest, entry.SHA256, func(received, total int64) {
		e.emitEvent(Event{
			Type:      EventProgress,
			Timestamp: e.now(),
			Key:       entry.Key,
			Received:  received,
			Total:     total,
		})
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

func (e *Engine) loadState() (models.InstallState, error) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.store.LoadState()
}

// recordInstall updates one key's record under the state mutex so
// concurrent workers never lose each other's writes.
func (e *Engine) recordInstall(key models.Key, entry models.ManifestEntry) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	installState, err := e.store.LoadState()
	if err != nil {
		return err
	}
	installState[key.String()] = models.InstallRecord{
		SHA256:      entry.SHA256,
		URL:         entry.URL,
		InstalledAt: e.now().UTC(),
	}
	return e.store.SaveState(installState)
}

func (e *Engine) fail(key models.Key, phase, code string, err error) Result {
	syncErr := &models.SyncError{Code: code, Phase: phase, Key: key.String(), Err: err}
	e.logger.WithError(err).WithFields(map[string]interface{}{
		"key":   key.String(),
		"phase": phase,
	}).Error("Sync failed for key")
	e.emitEvent(Event{Type: EventKeyFailed, Timestamp: e.now(), Key: key, Error: syncErr})
	return Result{Key: key, Status: StatusFailed, Err: syncErr}
}

func (e *Engine) classifyFail(key models.Key, phase string, err error) Result {
	code := models.ErrCodeIO
	var transportErr *models.TransportError
	var integrityErr *models.IntegrityError
	var memberErr *models.MemberNotFoundError
	switch {
	case errors.As(err, &transportErr):
		code = models.ErrCodeTransport
	case errors.As(err, &integrityErr):
		code = models.ErrCodeIntegrity
	case errors.As(err, &memberErr):
		code = models.ErrCodeMember
	case errors.Is(err, models.ErrUnsupportedPattern):
		code = models.ErrCodeMember
	}
	return e.fail(key, phase, code, err)
}

func (e *Engine) emitEvent(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.eventsClosed {
		return
	}
	select {
	case e.events <- event:
	default:
		// Channel full, drop event.
	}
}
