package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/dotbins/dotbins/internal/events"
	"github.com/dotbins/dotbins/internal/models"
)

// installMode is the permission set for installed binaries.
const installMode = os.FileMode(0o755)

// Extractor pulls a single binary member out of an archive and stages
// it through a private temp directory before the final copy.
type Extractor struct {
	logger *events.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(logger *events.Logger) *Extractor {
	return &Extractor{
		logger: logger.WithField("component", "extractor"),
	}
}

// Extract locates the member matching pattern inside the archive at
// archivePath and installs it executable at dest, creating parent
// directories as needed. It returns the archive member name that was
// installed ("" for raw artifacts). Zero matches fail with
// MemberNotFoundError; with several matches the first in archive order
// wins and a warning names the choice.
func (e *Extractor) Extract(archivePath, memberPattern, dest string) (string, error) {
	format := DetectFormat(archivePath)

	e.logger.WithFields(map[string]interface{}{
		"archive": archivePath,
		"format":  format.String(),
		"pattern": memberPattern,
	}).Debug("Extracting binary")

	if format == Raw {
		if err := installFile(archivePath, dest); err != nil {
			return "", err
		}
		return "", nil
	}

	pattern, err := ParsePattern(memberPattern)
	if err != nil {
		return "", err
	}

	var member string
	var extra int
	switch format {
	case Zip:
		member, extra, err = e.extractZip(archivePath, pattern, dest)
	default:
		member, extra, err = e.extractTar(archivePath, format, pattern, dest)
	}
	if err != nil {
		return "", err
	}

	if extra > 0 {
		e.logger.WithFields(map[string]interface{}{
			"pattern": pattern.String(),
			"member":  member,
			"also":    extra,
		}).Warn("Pattern matched multiple members, using first in archive order")
	}

	return member, nil
}

// extractTar scans a tar stream for the first matching regular file,
// stages it, then keeps scanning so ambiguous patterns are reported.
func (e *Extractor) extractTar(archivePath string, format Format, pattern Pattern, dest string) (string, int, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", 0, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	switch format {
	case TarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return "", 0, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		reader = gz
	case TarBz2:
		reader = bzip2.NewReader(f)
	case TarXz:
		xzr, err := xz.NewReader(f)
		if err != nil {
			return "", 0, fmt.Errorf("open xz stream: %w", err)
		}
		reader = xzr
	}

	stageDir, err := os.MkdirTemp("", "dotbins-extract-")
	if err != nil {
		return "", 0, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stageDir)

	var member string
	staged := filepath.Join(stageDir, "binary")
	extra := 0

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("read tar entry: %w", err)
		}

		if hdr.Typeflag != tar.TypeReg || !pattern.Match(hdr.Name) {
			continue
		}

		if member != "" {
			extra++
			continue
		}
		member = hdr.Name

		if err := stageFromReader(tr, staged); err != nil {
			return "", 0, fmt.Errorf("stage %s: %w", hdr.Name, err)
		}
	}

	if member == "" {
		return "", 0, &models.MemberNotFoundError{Archive: archivePath, Pattern: pattern.String()}
	}

	if err := installFile(staged, dest); err != nil {
		return "", 0, err
	}
	return member, extra, nil
}

func (e *Extractor) extractZip(archivePath string, pattern Pattern, dest string) (string, int, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", 0, fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	var match *zip.File
	extra := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !pattern.Match(f.Name) {
			continue
		}
		if match != nil {
			extra++
			continue
		}
		match = f
	}

	if match == nil {
		return "", 0, &models.MemberNotFoundError{Archive: archivePath, Pattern: pattern.String()}
	}

	stageDir, err := os.MkdirTemp("", "dotbins-extract-")
	if err != nil {
		return "", 0, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stageDir)

	rc, err := match.Open()
	if err != nil {
		return "", 0, fmt.Errorf("open member %s: %w", match.Name, err)
	}
	defer rc.Close()

	staged := filepath.Join(stageDir, "binary")
	if err := stageFromReader(rc, staged); err != nil {
		return "", 0, fmt.Errorf("stage %s: %w", match.Name, err)
	}

	if err := installFile(staged, dest); err != nil {
		return "", 0, err
	}
	return match.Name, extra, nil
}

// stageFromReader writes a member stream to a staging path.
func stageFromReader(r io.Reader, path string) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// installFile copies src to dest and marks it executable.
func installFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open staged binary: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create install directory: %w", err)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, installMode)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}

	// The umask may have masked the execute bits at create time.
	if err := os.Chmod(dest, installMode); err != nil {
		return fmt.Errorf("chmod %s: %w", dest, err)
	}

	return nil
}
