// Package vcs defines the git capability the sync engine depends on.
//
// The engine never talks to git directly. It drives a Repository, which
// exposes exactly the primitives needed for a fetch / merge-analysis /
// fast-forward cycle:
//
//   - open a working directory and look up a remote by name
//   - fetch a single branch and read FETCH_HEAD
//   - classify the relationship between the local tip and the fetched commit
//   - move a branch ref, point HEAD at it, and force the working tree to match
//
// # Usage
//
//	repo, err := git.Open("/src/project")
//	if err != nil {
//	    return err
//	}
//	if err := repo.Fetch(ctx, "origin", "master"); err != nil {
//	    return err
//	}
//	fetched, err := repo.ResolveCommit("FETCH_HEAD")
//
// # Implementations
//
//   - internal/vcs/git: shells out to the git binary
package vcs

import (
	"context"
)

// DefaultRemote is the only remote ffpull pulls from.
const DefaultRemote = "origin"

// DefaultBranch is used when neither the project nor the config names a branch.
const DefaultBranch = "master"

// FetchHead is the pseudo-ref recording the most recent fetch.
const FetchHead = "FETCH_HEAD"

// Repository is an opened local git working directory.
type Repository interface {
	// Root returns the absolute path of the working directory.
	Root() string

	// HasRemote reports whether a remote with the given name is configured.
	HasRemote(name string) (bool, error)

	// Fetch fetches ref from remote. On success FETCH_HEAD names the fetched tip.
	Fetch(ctx context.Context, remote, ref string) error

	// ResolveCommit resolves ref to a full commit hash.
	// Returns ErrRefNotFound if ref does not exist or does not peel to a commit.
	ResolveCommit(ref string) (string, error)

	// Head returns the commit HEAD points to and the symbolic ref it follows
	// ("" when detached). Unborn is true for a branch with no commits yet.
	Head() (HeadInfo, error)

	// IsAncestor reports whether ancestor is reachable from descendant.
	IsAncestor(ancestor, descendant string) (bool, error)

	// MergeAnalysis classifies fetched against the current HEAD.
	MergeAnalysis(fetched string) (MergeAnalysis, error)

	// UpdateRef points ref at newHash. If oldHash is non-empty the update
	// only happens when ref currently equals oldHash.
	UpdateRef(ref, newHash, oldHash, message string) error

	// DeleteRef removes ref.
	DeleteRef(ref string) error

	// SetHead makes HEAD a symbolic ref to ref (e.g. "refs/heads/master").
	SetHead(ref string) error

	// ForceCheckout makes the index and tracked files match branch,
	// discarding local modifications. Untracked files are left alone.
	ForceCheckout(ctx context.Context, branch string) error

	// Exec runs a raw git command in the working directory.
	Exec(ctx context.Context, args ...string) ([]byte, error)
}

// HeadInfo describes where HEAD currently points.
type HeadInfo struct {
	// Hash is the commit HEAD resolves to; empty when Unborn.
	Hash string

	// Ref is the symbolic ref HEAD follows, e.g. "refs/heads/master".
	// Empty when HEAD is detached.
	Ref string

	// Unborn is true when Ref names a branch that has no commits.
	Unborn bool
}

// Detached reports whether HEAD points directly at a commit.
func (h HeadInfo) Detached() bool {
	return h.Ref == ""
}

// MergeAnalysis is the relationship between the local tip and a fetched commit.
type MergeAnalysis int

const (
	// AnalysisUpToDate means the local tip already contains the fetched commit.
	AnalysisUpToDate MergeAnalysis = iota

	// AnalysisFastForward means the local tip is a strict ancestor of the
	// fetched commit (or the branch is unborn).
	AnalysisFastForward

	// AnalysisNormal means the histories diverged and a real merge is needed.
	AnalysisNormal
)

// String returns a short label for the analysis result.
func (a MergeAnalysis) String() string {
	switch a {
	case AnalysisUpToDate:
		return "up-to-date"
	case AnalysisFastForward:
		return "fast-forward"
	case AnalysisNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// BranchRef returns the full ref name for a local branch.
func BranchRef(branch string) string {
	return "refs/heads/" + branch
}

// ShortHash abbreviates a commit hash for log lines.
func ShortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
