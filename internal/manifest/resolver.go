// Package manifest loads the tool manifest and resolves entries by key.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dotbins/dotbins/internal/models"
)

// Resolver answers lookups against a manifest loaded once at construction.
// The manifest is treated as immutable for the resolver's lifetime.
type Resolver struct {
	entries map[string]models.ManifestEntry
	order   []string
}

// Load reads a manifest file and builds a Resolver. Every entry is
// normalized and validated up front so resolution never surprises callers.
func Load(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse builds a Resolver from raw manifest JSON.
func Parse(data []byte) (*Resolver, error) {
	var raw map[string]models.ManifestEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	// json.Unmarshal does not preserve key order, so recover it by decoding
	// the top-level object a token at a time.
	order, err := keyOrder(data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	r := &Resolver{
		entries: make(map[string]models.ManifestEntry, len(raw)),
		order:   order,
	}
	for keyStr, entry := range raw {
		key, err := models.ParseKey(keyStr)
		if err != nil {
			return nil, fmt.Errorf("manifest key %q: %w", keyStr, err)
		}
		entry.Normalize(key)
		if err := entry.Validate(); err != nil {
			return nil, err
		}
		r.entries[keyStr] = entry
	}
	return r, nil
}

// Resolve returns the entry for (tool, platform, arch). Keys are
// case-sensitive. Returns models.ErrEntryNotFound when absent.
func (r *Resolver) Resolve(tool, platform, arch string) (models.ManifestEntry, error) {
	keyStr := models.Key{Tool: tool, Platform: platform, Arch: arch}.String()
	entry, ok := r.entries[keyStr]
	if !ok {
		return models.ManifestEntry{}, fmt.Errorf("%q: %w", keyStr, models.ErrEntryNotFound)
	}
	return entry, nil
}

// Keys returns every manifest key in file order.
func (r *Resolver) Keys() []models.Key {
	keys := make([]models.Key, 0, len(r.order))
	for _, keyStr := range r.order {
		entry := r.entries[keyStr]
		keys = append(keys, entry.Key)
	}
	return keys
}

// Entries returns all entries for a tool, in file order. Empty slice when
// the tool has no entries.
func (r *Resolver) Entries(tool string) []models.ManifestEntry {
	var out []models.ManifestEntry
	for _, keyStr := range r.order {
		entry := r.entries[keyStr]
		if entry.Key.Tool == tool {
			out = append(out, entry)
		}
	}
	return out
}

// Len reports the number of manifest entries.
func (r *Resolver) Len() int {
	return len(r.entries)
}

func keyOrder(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("manifest root must be an object")
	}

	var order []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		order = append(order, tok.(string))

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return order, nil
}
