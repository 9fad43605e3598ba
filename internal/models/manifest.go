package models

import (
	"fmt"
	"strings"
)

// Key identifies one tool build as a (tool, platform, arch) triple.
// Keys are case-sensitive and stored slash-joined, e.g. "fzf/linux/amd64".
type Key struct {
	Tool     string
	Platform string
	Arch     string
}

// ParseKey splits a slash-joined manifest key.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Key{}, fmt.Errorf("invalid manifest key %q: want tool/platform/arch", s)
	}
	return Key{Tool: parts[0], Platform: parts[1], Arch: parts[2]}, nil
}

// String returns the slash-joined storage form.
func (k Key) String() string {
	return k.Tool + "/" + k.Platform + "/" + k.Arch
}

// ManifestEntry describes where one tool build lives and how to install it.
// Entries are immutable once loaded.
type ManifestEntry struct {
	Key Key `json:"-"`

	URL           string `json:"url"`
	SHA256        string `json:"sha256,omitempty"`
	Tag           string `json:"tag,omitempty"`
	BinaryName    string `json:"binary_name,omitempty"`
	PathInArchive string `json:"path_in_archive,omitempty"`
}

// Normalize fills defaulted fields for an entry stored under key.
// Tag defaults to "latest", binary_name to the tool name, and
// path_in_archive to binary_name.
func (e *ManifestEntry) Normalize(key Key) {
	e.Key = key
	if e.Tag == "" {
		e.Tag = "latest"
	}
	if e.BinaryName == "" {
		e.BinaryName = key.Tool
	}
	if e.PathInArchive == "" {
		e.PathInArchive = e.BinaryName
	}
}

// Validate checks required fields.
func (e *ManifestEntry) Validate() error {
	if e.URL == "" {
		return fmt.Errorf("manifest entry %s: missing url", e.Key)
	}
	if e.SHA256 != "" && len(e.SHA256) != 64 {
		return fmt.Errorf("manifest entry %s: sha256 must be 64 hex chars, got %d", e.Key, len(e.SHA256))
	}
	return nil
}
