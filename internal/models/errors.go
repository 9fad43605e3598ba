package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeNotFound  = "NOT_FOUND"
	ErrCodeTransport = "TRANSPORT_ERROR"
	ErrCodeIntegrity = "INTEGRITY_ERROR"
	ErrCodeMember    = "MEMBER_NOT_FOUND"
	ErrCodeIO        = "IO_ERROR"
	ErrCodeExec      = "EXEC_ERROR"
)

// Sentinel errors
var (
	ErrEntryNotFound      = errors.New("manifest entry not found")
	ErrUnsupportedPattern = errors.New("unsupported member pattern")
	ErrStateNotFound      = errors.New("state not found")
	ErrStateCorrupt       = errors.New("state file is corrupt")
	ErrSyncInProgress     = errors.New("sync already in progress")
	ErrPlatformMismatch   = errors.New("profile platform does not match current platform")
)

// TransportError represents a network or protocol failure while fetching.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IntegrityError represents a digest mismatch.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: expected %s, got %s",
		e.Path, e.Expected, e.Actual)
}

// MemberNotFoundError reports that an archive lacks the requested binary.
type MemberNotFoundError struct {
	Archive string
	Pattern string
}

func (e *MemberNotFoundError) Error() string {
	return fmt.Sprintf("no member matching %q in archive %s", e.Pattern, e.Archive)
}

// SyncError provides detailed per-key sync failure information.
type SyncError struct {
	Code  string
	Phase string
	Key   string
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s [%s]: %s: %v", e.Phase, e.Code, e.Key, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// ExecError represents a post-install probe failure.
type ExecError struct {
	Binary string
	Reason string
	Err    error
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe %s: %s: %v", e.Binary, e.Reason, e.Err)
	}
	return fmt.Sprintf("probe %s: %s", e.Binary, e.Reason)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
