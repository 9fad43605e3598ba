package archive

import (
	"fmt"
	"strings"

	"github.com/dotbins/dotbins/internal/models"
)

// Pattern matches archive member names. Two shapes are supported:
// a literal pattern matches any member path ending with it, and a
// single-wildcard pattern "prefix*suffix" matches on both ends.
// Anything with more than one wildcard is rejected up front.
type Pattern struct {
	raw      string
	prefix   string
	suffix   string
	wildcard bool
}

// ParsePattern validates and compiles a member pattern.
func ParsePattern(raw string) (Pattern, error) {
	if raw == "" {
		return Pattern{}, fmt.Errorf("%w: empty pattern", models.ErrUnsupportedPattern)
	}

	switch strings.Count(raw, "*") {
	case 0:
		return Pattern{raw: raw, suffix: raw}, nil
	case 1:
		i := strings.IndexByte(raw, '*')
		return Pattern{
			raw:      raw,
			prefix:   raw[:i],
			suffix:   raw[i+1:],
			wildcard: true,
		}, nil
	default:
		return Pattern{}, fmt.Errorf("%w: %q has more than one wildcard", models.ErrUnsupportedPattern, raw)
	}
}

// Match reports whether a member path satisfies the pattern.
func (p Pattern) Match(path string) bool {
	if !p.wildcard {
		return strings.HasSuffix(path, p.suffix)
	}
	if len(path) < len(p.prefix)+len(p.suffix) {
		return false
	}
	return strings.HasPrefix(path, p.prefix) && strings.HasSuffix(path, p.suffix)
}

// String returns the original pattern text.
func (p Pattern) String() string {
	return p.raw
}
