// Package advisory enriches tool listings with published security
// advisories. Lookups are read-only and best-effort; a failed lookup
// degrades to an empty result and never fails the calling command.
package advisory

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dotbins/dotbins/internal/config"
	"github.com/dotbins/dotbins/internal/events"
	"github.com/dotbins/dotbins/internal/transport"
)

// Advisory is one published security advisory.
type Advisory struct {
	GHSAID   string `json:"ghsa_id"`
	CVEID    string `json:"cve_id"`
	Summary  string `json:"summary"`
	Severity string `json:"severity"`
	HTMLURL  string `json:"html_url"`
}

// Service queries the advisory API.
type Service struct {
	client *transport.Client
	cfg    *config.AdvisoryConfig
	logger *events.Logger
}

// NewService creates an advisory service.
func NewService(client *transport.Client, cfg *config.AdvisoryConfig, logger *events.Logger) *Service {
	return &Service{
		client: client,
		cfg:    cfg,
		logger: logger.WithField("component", "advisory_service"),
	}
}

// Lookup returns advisories whose summary mentions the tool name,
// case-insensitively. Transport failures log a warning and return an
// empty slice.
func (s *Service) Lookup(ctx context.Context, tool string) []Advisory {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s?ecosystem=%s&per_page=100",
		strings.TrimRight(s.cfg.BaseURL, "/"), url.QueryEscape(s.cfg.Ecosystem))

	var all []Advisory
	if err := s.client.GetJSON(ctx, endpoint, &all); err != nil {
		s.logger.WithError(err).WithField("tool", tool).Warn("Advisory lookup failed")
		return nil
	}

	needle := strings.ToLower(tool)
	var matched []Advisory
	for _, adv := range all {
		if strings.Contains(strings.ToLower(adv.Summary), needle) {
			matched = append(matched, adv)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"tool":    tool,
		"matched": len(matched),
	}).Debug("Advisory lookup complete")
	return matched
}

// LookupAll maps each tool to its matching advisories, omitting tools
// with none.
func (s *Service) LookupAll(ctx context.Context, toolNames []string) map[string][]Advisory {
	out := make(map[string][]Advisory)
	for _, tool := range toolNames {
		if advisories := s.Lookup(ctx, tool); len(advisories) > 0 {
			out[tool] = advisories
		}
	}
	return out
}
