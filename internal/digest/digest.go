// Package digest computes and compares SHA-256 content digests.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// copyBufSize bounds memory use regardless of file size.
const copyBufSize = 32 * 1024

// Reader returns the hex SHA-256 digest of everything read from r.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, copyBufSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("hash stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File returns the hex SHA-256 digest of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sum, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

// Verify reports whether the file at path has the expected hex digest.
// Comparison is case-insensitive over the hex encoding.
func Verify(path, expected string) (bool, error) {
	actual, err := File(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, expected), nil
}
