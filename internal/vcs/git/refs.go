package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/ffpull/ffpull/internal/vcs"
)

// ResolveCommit returns the commit hash ref peels to
func (g *Git) ResolveCommit(ref string) (string, error) {
	output, err := g.run("rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("%s: %w", ref, vcs.ErrRefNotFound)
	}

	hash := vcs.TrimOutput(output)
	if hash == "" {
		return "", fmt.Errorf("%s: %w", ref, vcs.ErrRefNotFound)
	}
	return hash, nil
}

// Head reports where HEAD points
func (g *Git) Head() (vcs.HeadInfo, error) {
	var info vcs.HeadInfo

	// symbolic-ref fails with exit code 1 when HEAD is detached
	output, err := g.run("symbolic-ref", "--quiet", "HEAD")
	if err == nil {
		info.Ref = vcs.TrimOutput(output)
	} else if vcs.GetExitCode(err) != 1 {
		return info, fmt.Errorf("failed to read HEAD: %w", err)
	}

	hash, err := g.ResolveCommit("HEAD")
	if err != nil {
		if info.Ref == "" {
			return info, fmt.Errorf("detached HEAD does not resolve: %w", err)
		}
		info.Unborn = true
		return info, nil
	}

	info.Hash = hash
	return info, nil
}

// IsAncestor reports whether ancestor is reachable from descendant
func (g *Git) IsAncestor(ancestor, descendant string) (bool, error) {
	_, err := g.run("merge-base", "--is-ancestor", ancestor, descendant)
	if err == nil {
		return true, nil
	}

	// Exit code 1 is a clean "no"; anything else is a real failure
	if vcs.GetExitCode(err) == 1 {
		return false, nil
	}
	return false, fmt.Errorf("failed to compare %s and %s: %w", vcs.ShortHash(ancestor), vcs.ShortHash(descendant), err)
}

// MergeAnalysis classifies fetched against HEAD.
//
// Precedence: up-to-date, then fast-forward, then normal.
func (g *Git) MergeAnalysis(fetched string) (vcs.MergeAnalysis, error) {
	head, err := g.Head()
	if err != nil {
		return vcs.AnalysisNormal, err
	}

	// Nothing local to lose on an unborn branch
	if head.Unborn {
		return vcs.AnalysisFastForward, nil
	}

	if head.Hash == fetched {
		return vcs.AnalysisUpToDate, nil
	}

	contained, err := g.IsAncestor(fetched, head.Hash)
	if err != nil {
		return vcs.AnalysisNormal, err
	}
	if contained {
		return vcs.AnalysisUpToDate, nil
	}

	behind, err := g.IsAncestor(head.Hash, fetched)
	if err != nil {
		return vcs.AnalysisNormal, err
	}
	if behind {
		return vcs.AnalysisFastForward, nil
	}

	return vcs.AnalysisNormal, nil
}

// UpdateRef points ref at newHash, optionally guarded by oldHash
func (g *Git) UpdateRef(ref, newHash, oldHash, message string) error {
	args := []string{"update-ref"}
	if message != "" {
		args = append(args, "-m", message)
	}
	args = append(args, ref, newHash)
	if oldHash != "" {
		args = append(args, oldHash)
	}

	if _, err := g.run(args...); err != nil {
		if oldHash != "" && strings.Contains(err.Error(), "but expected") {
			return fmt.Errorf("%s: %w", ref, vcs.ErrRefChanged)
		}
		return fmt.Errorf("failed to update %s: %w", ref, err)
	}
	return nil
}

// DeleteRef removes ref
func (g *Git) DeleteRef(ref string) error {
	if _, err := g.run("update-ref", "-d", ref); err != nil {
		return fmt.Errorf("failed to delete %s: %w", ref, err)
	}
	return nil
}

// SetHead makes HEAD follow ref
func (g *Git) SetHead(ref string) error {
	if _, err := g.run("symbolic-ref", "HEAD", ref); err != nil {
		return fmt.Errorf("failed to point HEAD at %s: %w", ref, err)
	}
	return nil
}

// ForceCheckout resets the index and tracked files to branch.
// Untracked files survive, modified tracked files do not.
func (g *Git) ForceCheckout(ctx context.Context, branch string) error {
	if _, err := g.execTimeout(ctx, vcs.DefaultTimeout, "checkout", "--force", "--quiet", branch, "--"); err != nil {
		return fmt.Errorf("failed to check out %s: %w", branch, err)
	}
	return nil
}
