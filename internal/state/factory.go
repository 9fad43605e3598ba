package state

import (
	"fmt"
	"path/filepath"

	"github.com/dotbins/dotbins/internal/config"
	"github.com/dotbins/dotbins/internal/events"
)

// New builds the configured store backend.
func New(cfg *config.StateConfig, logger *events.Logger) (Store, error) {
	switch cfg.Backend {
	case "json", "":
		return NewJSONStore(cfg.Dir, logger)
	case "sqlite":
		return NewSQLiteStore(filepath.Join(cfg.Dir, "state.db"), logger)
	default:
		return nil, fmt.Errorf("unknown state backend: %s", cfg.Backend)
	}
}
