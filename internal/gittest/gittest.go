// Package gittest builds throwaway git repositories for tests.
//
// Every helper shells out to the real git binary with a fixed identity, so
// tests exercise the same code paths ffpull uses against user clones.
// Call RequireGit first; it skips the test when git is not installed.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ffpull/ffpull/internal/vcs"
)

// Branch is the branch every fixture repository uses.
const Branch = "master"

var identity = []string{
	"GIT_AUTHOR_NAME=Test User",
	"GIT_AUTHOR_EMAIL=test@example.com",
	"GIT_COMMITTER_NAME=Test User",
	"GIT_COMMITTER_EMAIL=test@example.com",
	"GIT_CONFIG_NOSYSTEM=1",
	"GIT_TERMINAL_PROMPT=0",
}

// RequireGit skips t when git is not available.
func RequireGit(t testing.TB) {
	t.Helper()
	if !vcs.IsGitAvailable() {
		t.Skip("git binary not available")
	}
}

// Run executes git in dir and returns trimmed stdout. It fails the test on error.
func Run(t testing.TB, dir string, args ...string) string {
	t.Helper()

	full := append([]string{"-c", "commit.gpgsign=false", "-c", "init.defaultBranch=" + Branch}, args...)
	cmd := exec.Command("git", full...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), identity...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, output)
	}
	return strings.TrimSpace(string(output))
}

// Init creates an empty repository on Branch and returns its path.
func Init(t testing.TB) string {
	t.Helper()

	dir := t.TempDir()
	Run(t, dir, "init", "--quiet")
	Run(t, dir, "symbolic-ref", "HEAD", "refs/heads/"+Branch)
	return dir
}

// Commit writes content to name inside dir, commits it, and returns the new hash.
func Commit(t testing.TB, dir, name, content, message string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}

	Run(t, dir, "add", name)
	Run(t, dir, "commit", "--quiet", "-m", message)
	return Head(t, dir)
}

// Head returns the commit hash of HEAD in dir.
func Head(t testing.TB, dir string) string {
	t.Helper()
	return Run(t, dir, "rev-parse", "HEAD")
}

// RefHash returns the hash ref points at in dir.
func RefHash(t testing.TB, dir, ref string) string {
	t.Helper()
	return Run(t, dir, "rev-parse", ref)
}

// NewOrigin creates a bare repository whose Branch holds one commit.
func NewOrigin(t testing.TB) string {
	t.Helper()

	seed := Init(t)
	Commit(t, seed, "README.md", "hello\n", "initial commit")

	origin := filepath.Join(t.TempDir(), "origin.git")
	Run(t, seed, "clone", "--quiet", "--bare", seed, origin)
	return origin
}

// Clone clones origin into a fresh directory and returns the working copy path.
func Clone(t testing.TB, origin string) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "clone")
	Run(t, filepath.Dir(dir), "clone", "--quiet", "--branch", Branch, origin, dir)
	return dir
}

// Advance pushes a new commit touching name onto origin's Branch and
// returns its hash.
func Advance(t testing.TB, origin, name, content string) string {
	t.Helper()

	work := Clone(t, origin)
	hash := Commit(t, work, name, content, "upstream change to "+name)
	Run(t, work, "push", "--quiet", "origin", Branch)
	return hash
}

// ReadFile returns the content of name inside dir.
func ReadFile(t testing.TB, dir, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}
