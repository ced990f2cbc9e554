package vcs

import (
	"os"
	"path/filepath"
	"strings"
)

// Location describes the git checkout enclosing a path.
type Location struct {
	// Root is the working tree root.
	Root string

	// GitDir is the metadata directory (.git, or the worktree's gitdir).
	GitDir string

	// IsWorktree is set when .git is a file pointing elsewhere.
	IsWorktree bool

	// MainRoot is the main checkout for a worktree, else Root.
	MainRoot string
}

// Detect walks up from path to the nearest git working tree.
//
// Registration requires the exact working tree root, so callers use this to
// suggest the root when a subdirectory was given. Returns ErrNotInVCS if no
// .git is found before the filesystem root.
func Detect(path string) (*Location, error) {
	current, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	for {
		gitPath := filepath.Join(current, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			loc := &Location{Root: current, GitDir: gitPath, MainRoot: current}
			if info.Mode().IsRegular() {
				// .git is a file - this is a worktree
				loc.IsWorktree = true
				loc.MainRoot, loc.GitDir = resolveWorktree(current, gitPath)
			}
			return loc, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return nil, ErrNotInVCS
		}
		current = parent
	}
}

// resolveWorktree reads a worktree's .git file and returns
// (mainRoot, gitDir).
//
// The file contains:
//
//	gitdir: /path/to/main/.git/worktrees/name
func resolveWorktree(worktreePath, gitFile string) (string, string) {
	content, err := os.ReadFile(gitFile)
	if err != nil {
		return worktreePath, gitFile
	}

	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir: ") {
		return worktreePath, gitFile
	}

	gitDir := strings.TrimPrefix(line, "gitdir: ")
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(worktreePath, gitDir)
	}
	gitDir = filepath.Clean(gitDir)

	if idx := strings.Index(gitDir, string(filepath.Separator)+"worktrees"+string(filepath.Separator)); idx > 0 {
		return filepath.Dir(gitDir[:idx]), gitDir
	}
	return worktreePath, gitDir
}
