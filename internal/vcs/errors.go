package vcs

import "errors"

// Common errors returned by Repository implementations.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, vcs.ErrNotInVCS) {
//	    // path is not a git working directory
//	}
var (
	// ErrNotInVCS is returned when a path does not open as a git repository.
	ErrNotInVCS = errors.New("not a git repository")

	// ErrVCSNotAvailable is returned when the git binary is not in PATH.
	ErrVCSNotAvailable = errors.New("git binary not available")

	// ErrRemoteNotFound is returned when the named remote is not configured.
	ErrRemoteNotFound = errors.New("remote not found")

	// ErrRefNotFound is returned when a reference does not exist or does
	// not resolve to a commit.
	ErrRefNotFound = errors.New("reference not found")

	// ErrRefChanged is returned by a conditional ref update when the ref
	// moved since it was read.
	ErrRefChanged = errors.New("reference changed concurrently")

	// ErrTimeout is returned when a git command exceeds its timeout.
	ErrTimeout = errors.New("operation timed out")
)

// IsRetryable returns true if the error is likely to succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Timeouts are usually network stalls
	if errors.Is(err, ErrTimeout) {
		return true
	}

	// Someone else moved the ref; re-reading it may succeed
	if errors.Is(err, ErrRefChanged) {
		return true
	}

	return false
}

// IsTimeout reports whether err came from a git command that was killed by
// its timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
