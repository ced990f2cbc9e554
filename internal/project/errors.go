package project

import (
	"errors"
	"fmt"
)

// Registration failures. Check with errors.Is:
//
//	if errors.Is(err, project.ErrNoOriginRemote) {
//	    // ask the user to add a remote first
//	}
var (
	// ErrEmptyField is returned when path or name is empty.
	ErrEmptyField = errors.New("project path and name must not be empty")

	// ErrNotARepository is returned when the path does not open as a git repository.
	ErrNotARepository = errors.New("path does not exist or is not a git repository")

	// ErrNoOriginRemote is returned when the repository has no origin remote.
	ErrNoOriginRemote = errors.New("repository has no 'origin' remote")

	// ErrIndexOutOfRange is returned by Update for an index outside the store.
	ErrIndexOutOfRange = errors.New("project index out of range")
)

// ErrWriteFailed is the only persistence failure kind.
var ErrWriteFailed = errors.New("failed to write project list")

// RegistrationError reports why a candidate record was rejected.
type RegistrationError struct {
	// Kind is one of ErrEmptyField, ErrNotARepository, ErrNoOriginRemote.
	Kind error

	// Record is the rejected candidate.
	Record Record

	// Err is the underlying cause, if any.
	Err error
}

func (e *RegistrationError) Error() string {
	switch e.Kind {
	case ErrEmptyField:
		return e.Kind.Error()
	case ErrNotARepository:
		return fmt.Sprintf("project path %s does not exist or is not a valid git repository", e.Record.Path)
	case ErrNoOriginRemote:
		return fmt.Sprintf("project %s is not a valid git repository or has no 'origin' remote", e.Record.Name)
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

// Is matches the sentinel kind.
func (e *RegistrationError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// IsRegistrationError reports whether err is a rejected registration.
func IsRegistrationError(err error) bool {
	var re *RegistrationError
	return errors.As(err, &re)
}

// PersistenceError reports a failed write of the project list. It is never
// fatal: the in-memory list stays authoritative for the session.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to save project list %s: %v", e.Path, e.Err)
}

// Is matches ErrWriteFailed.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrWriteFailed
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
