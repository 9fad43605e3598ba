// Package archive locates and extracts a single binary member from
// downloaded artifacts.
package archive

import "strings"

// Format is the closed set of supported artifact layouts, resolved once
// per artifact and dispatched from there.
type Format int

const (
	// Raw means the artifact is the binary itself.
	Raw Format = iota
	Tar
	TarGz
	TarBz2
	TarXz
	Zip
)

// String returns the conventional name of a format.
func (f Format) String() string {
	switch f {
	case Tar:
		return "tar"
	case TarGz:
		return "tar.gz"
	case TarBz2:
		return "tar.bz2"
	case TarXz:
		return "tar.xz"
	case Zip:
		return "zip"
	default:
		return "raw"
	}
}

// Ext returns the cache-file extension for a format, with leading dot,
// or "" for raw artifacts.
func (f Format) Ext() string {
	if f == Raw {
		return ""
	}
	return "." + f.String()
}

// DetectFormat resolves the format from an artifact name or URL.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	// Strip URL query, if any.
	if i := strings.IndexByte(lower, '?'); i >= 0 {
		lower = lower[:i]
	}

	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return TarGz
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return TarBz2
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return TarXz
	case strings.HasSuffix(lower, ".tar"):
		return Tar
	case strings.HasSuffix(lower, ".zip"):
		return Zip
	default:
		return Raw
	}
}
