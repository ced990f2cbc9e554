// Package git implements vcs.Repository by shelling out to the git binary.
//
// Network operations (fetch) take a context and an optional timeout; local
// plumbing commands run with vcs.DefaultTimeout.
package git

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ffpull/ffpull/internal/vcs"
)

// Git is an opened git working directory.
type Git struct {
	// repoRoot is the working directory root
	repoRoot string

	// fetchTimeout bounds Fetch; zero means only the caller's context applies
	fetchTimeout time.Duration

	// trace receives every command line when set
	trace func(format string, args ...any)
}

// Option configures a Git instance.
type Option func(*Git)

// WithFetchTimeout bounds each Fetch call.
func WithFetchTimeout(d time.Duration) Option {
	return func(g *Git) {
		g.fetchTimeout = d
	}
}

// WithTrace logs each git invocation through fn.
func WithTrace(fn func(format string, args ...any)) Option {
	return func(g *Git) {
		g.trace = fn
	}
}

// Open opens the git working directory at path.
// Returns an error wrapping vcs.ErrNotInVCS when path is not inside one.
func Open(path string, opts ...Option) (*Git, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path: %w", vcs.ErrNotInVCS)
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, vcs.ErrNotInVCS)
	}

	g := &Git{}
	for _, opt := range opts {
		opt(g)
	}

	if err := g.detect(path); err != nil {
		return nil, err
	}

	return g, nil
}

// Opener adapts Open to the signature the sync engine expects.
func Opener(opts ...Option) func(path string) (vcs.Repository, error) {
	return func(path string) (vcs.Repository, error) {
		g, err := Open(path, opts...)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

// Root returns the working directory root.
func (g *Git) Root() string {
	return g.repoRoot
}

// Exec executes a raw git command in the working directory.
func (g *Git) Exec(ctx context.Context, args ...string) ([]byte, error) {
	return g.execTimeout(ctx, vcs.DefaultTimeout, args...)
}

// gitEnv keeps git from blocking on a credential prompt in the middle of a batch.
var gitEnv = []string{"GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=", "SSH_ASKPASS="}

// run executes a local plumbing command.
func (g *Git) run(args ...string) ([]byte, error) {
	return g.execTimeout(context.Background(), vcs.DefaultTimeout, args...)
}

func (g *Git) execTimeout(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	if g.trace != nil {
		g.trace("git -C %s %s", g.repoRoot, strings.Join(args, " "))
	}

	output, err := vcs.ExecEnv(ctx, timeout, g.repoRoot, gitEnv, "git", args...)
	if err != nil {
		return output, fmt.Errorf("git %s failed: %w", args[0], err)
	}
	return output, nil
}

var _ vcs.Repository = (*Git)(nil)
