package project

import (
	"errors"

	"github.com/go-git/go-git/v5"
)

// Validator checks that a candidate record points at a usable repository.
type Validator interface {
	Validate(r Record) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(r Record) error

func (f ValidatorFunc) Validate(r Record) error { return f(r) }

// RepoValidator opens the candidate with go-git and requires an origin remote.
// Linked worktrees are accepted.
type RepoValidator struct {
	Remote string
}

// Validate returns a *RegistrationError of kind ErrNotARepository or
// ErrNoOriginRemote, or nil.
func (v RepoValidator) Validate(r Record) error {
	remote := v.Remote
	if remote == "" {
		remote = "origin"
	}

	repo, err := git.PlainOpenWithOptions(r.Path, &git.PlainOpenOptions{
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return &RegistrationError{Kind: ErrNotARepository, Record: r, Err: err}
	}

	if _, err := repo.Remote(remote); err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return &RegistrationError{Kind: ErrNoOriginRemote, Record: r}
		}
		return &RegistrationError{Kind: ErrNoOriginRemote, Record: r, Err: err}
	}
	return nil
}
