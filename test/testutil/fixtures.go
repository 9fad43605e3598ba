// Package testutil provides archive and manifest fixtures shared by
// package tests and integration tests.
package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotbins/dotbins/internal/events"
)

// Member is one file placed into a fixture archive.
type Member struct {
	Name string
	Body []byte
	Mode int64
}

// TarGzArchive builds an in-memory .tar.gz containing the members in order.
func TarGzArchive(t *testing.T, members ...Member) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, m := range members {
		mode := m.Mode
		if mode == 0 {
			mode = 0o755
		}
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     m.Name,
			Mode:     mode,
			Size:     int64(len(m.Body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write(m.Body)
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// ZipArchive builds an in-memory .zip containing the members in order.
func ZipArchive(t *testing.T, members ...Member) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, m := range members {
		w, err := zw.Create(m.Name)
		require.NoError(t, err)
		_, err = w.Write(m.Body)
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// WriteFile writes data under dir and returns the full path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// SHA256 returns the hex digest of data.
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Logger returns a quiet test logger.
func Logger() *events.Logger {
	return events.NewTestLogger(events.ErrorLevel, "text", &bytes.Buffer{})
}
