// Package client wires configuration, stores, and services into the
// high-level API the CLI commands consume.
package client

import (
	"fmt"

	"github.com/dotbins/dotbins/internal/archive"
	"github.com/dotbins/dotbins/internal/cache"
	"github.com/dotbins/dotbins/internal/config"
	"github.com/dotbins/dotbins/internal/events"
	"github.com/dotbins/dotbins/internal/manifest"
	"github.com/dotbins/dotbins/internal/services/advisory"
	syncsvc "github.com/dotbins/dotbins/internal/services/sync"
	"github.com/dotbins/dotbins/internal/services/tools"
	"github.com/dotbins/dotbins/internal/services/verify"
	"github.com/dotbins/dotbins/internal/state"
	"github.com/dotbins/dotbins/internal/transport"
)

// Client provides the high-level API for dotbins operations.
type Client struct {
	Sync     *syncsvc.Engine
	Tools    *tools.Service
	Verify   *verify.Service
	Advisory *advisory.Service

	Manifest *manifest.Resolver
	Cache    *cache.Store
	State    state.Store

	config *config.Config
	logger *events.Logger
}

// New creates a dotbins client from configuration.
func New(cfg *config.Config, logger *events.Logger) (*Client, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	resolver, err := manifest.Load(cfg.Root.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	cacheStore, err := cache.NewStore(cfg.Cache.Dir, logger)
	if err != nil {
		return nil, err
	}

	stateStore, err := state.New(&cfg.State, logger)
	if err != nil {
		return nil, err
	}

	transportClient := transport.NewClient(&cfg.HTTP, logger)
	extractor := archive.NewExtractor(logger)

	engine := syncsvc.NewEngine(resolver, cacheStore, transportClient, extractor, stateStore, cfg, logger)

	return &Client{
		Sync:     engine,
		Tools:    tools.NewService(resolver, engine, stateStore, cfg, logger),
		Verify:   verify.NewService(resolver, stateStore, cfg, logger),
		Advisory: advisory.NewService(transportClient, &cfg.Advisory, logger),
		Manifest: resolver,
		Cache:    cacheStore,
		State:    stateStore,
		config:   cfg,
		logger:   logger,
	}, nil
}

// Config returns the client's configuration.
func (c *Client) Config() *config.Config {
	return c.config
}

// Close releases held resources.
func (c *Client) Close() error {
	return c.State.Close()
}
