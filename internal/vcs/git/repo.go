package git

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ffpull/ffpull/internal/vcs"
)

// detect populates repository information
func (g *Git) detect(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// A bare repository prints the git dir but no toplevel
	output, err := vcs.ExecSimple(absPath, "git", "rev-parse", "--git-dir", "--show-toplevel")
	if err != nil {
		if errors.Is(err, vcs.ErrVCSNotAvailable) {
			return err
		}
		return fmt.Errorf("%s: %w", path, vcs.ErrNotInVCS)
	}

	lines := vcs.ParseLines(output)
	if len(lines) < 2 {
		// Bare repositories have no toplevel; they have no working tree to update either
		return fmt.Errorf("%s has no working tree: %w", path, vcs.ErrNotInVCS)
	}

	g.repoRoot = normalizeRepoRoot(lines[1])
	return nil
}

// normalizeRepoRoot resolves symlinks so two spellings of a path compare equal
func normalizeRepoRoot(path string) string {
	path = filepath.FromSlash(path)

	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}

	return path
}

// Remotes returns the names of all configured remotes
func (g *Git) Remotes() ([]string, error) {
	output, err := g.run("remote")
	if err != nil {
		return nil, err
	}
	return vcs.ParseLines(output), nil
}

// HasRemote returns true if the named remote is configured
func (g *Git) HasRemote(name string) (bool, error) {
	remotes, err := g.Remotes()
	if err != nil {
		return false, err
	}

	for _, r := range remotes {
		if r == name {
			return true, nil
		}
	}
	return false, nil
}
