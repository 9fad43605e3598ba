package models

import "bytes"

// lfsPointerSignature marks a Git LFS pointer file. A pointer is a small
// text stand-in for a binary stored externally and must never be mistaken
// for the real artifact.
var lfsPointerSignature = []byte("version https://git-lfs.github.com/spec/v1")

// pointerScanLen bounds how far into a file the signature scan looks.
const pointerScanLen = 1024

// IsPointerFile reports whether the leading bytes of a file identify it
// as a placeholder rather than a real binary.
func IsPointerFile(head []byte) bool {
	if len(head) > pointerScanLen {
		head = head[:pointerScanLen]
	}
	return bytes.Contains(head, lfsPointerSignature)
}
