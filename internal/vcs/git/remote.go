package git

import (
	"context"
	"fmt"

	"github.com/ffpull/ffpull/internal/vcs"
)

// Fetch fetches ref from remote, recording the tip in FETCH_HEAD.
// If remote is empty, uses origin. Credentials are whatever git negotiates
// on its own; terminal prompts are disabled so a missing credential fails
// instead of hanging the batch.
func (g *Git) Fetch(ctx context.Context, remote, ref string) error {
	if remote == "" {
		remote = vcs.DefaultRemote
	}

	ok, err := g.HasRemote(remote)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", remote, vcs.ErrRemoteNotFound)
	}

	args := []string{"fetch", "--no-tags", "--quiet", remote}
	if ref != "" {
		args = append(args, ref)
	}

	if _, err := g.execTimeout(ctx, g.fetchTimeout, args...); err != nil {
		return err
	}
	return nil
}
