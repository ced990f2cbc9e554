// Package engine brings registered repositories up to date with origin.
//
// For each project it fetches the configured branch from origin, classifies
// the local tip against the fetched commit, and fast-forwards when that is
// safe. It never merges, rebases, or pushes. Projects are processed strictly
// one after another and every per-project failure becomes an Outcome, so a
// batch as a whole cannot fail.
//
// Three equivalent entry points are offered:
//
//	for p := range eng.Sync(ctx, records) { ... }   // pull, on the caller's goroutine
//	for p := range eng.Stream(ctx, records) { ... } // push, on a worker goroutine
//	eng.Run(ctx, records, func(p engine.Progress) { ... })
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ffpull/ffpull/internal/logbuf"
	"github.com/ffpull/ffpull/internal/project"
	"github.com/ffpull/ffpull/internal/vcs"
	"github.com/ffpull/ffpull/internal/vcs/git"
)

// DefaultFetchTimeout bounds a single fetch.
const DefaultFetchTimeout = 5 * time.Minute

// ReflogMessage is recorded on every fast-forwarded branch ref.
const ReflogMessage = "Fast-Forward"

// Opener opens the repository at path.
type Opener func(path string) (vcs.Repository, error)

// Sink receives one severity-tagged line per project.
type Sink interface {
	Logf(sev logbuf.Severity, format string, args ...any)
}

// Engine syncs projects against origin.
type Engine struct {
	open         Opener
	fetchTimeout time.Duration
	remote       string
	branch       string
	sink         Sink
	logger       *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithOpener replaces the git CLI backend.
func WithOpener(open Opener) Option {
	return func(e *Engine) { e.open = open }
}

// WithBranch sets the branch synced for projects without an override.
func WithBranch(branch string) Option {
	return func(e *Engine) {
		if branch != "" {
			e.branch = branch
		}
	}
}

// WithSink sets where per-project log lines go.
func WithSink(sink Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithLogger sets the process logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithFetchTimeout bounds each fetch made by the default git backend.
// It has no effect combined with WithOpener.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

// New creates an Engine syncing vcs.DefaultBranch from vcs.DefaultRemote.
func New(opts ...Option) *Engine {
	e := &Engine{
		fetchTimeout: DefaultFetchTimeout,
		remote:       vcs.DefaultRemote,
		branch:       vcs.DefaultBranch,
		logger:       log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.open == nil {
		e.open = git.Opener(git.WithFetchTimeout(e.fetchTimeout), git.WithTrace(e.logger.Printf))
	}
	return e
}

// Branch returns the default branch.
func (e *Engine) Branch() string {
	return e.branch
}

// Remote returns the remote synced from.
func (e *Engine) Remote() string {
	return e.remote
}

// Sync returns a sequence yielding one Progress per project, in input
// order, each after that project finished. Nothing runs until the sequence
// is ranged over, and it can be ranged over only once.
//
// ctx is checked between projects: once canceled the sequence ends early.
// A project already started always runs to completion.
func (e *Engine) Sync(ctx context.Context, records []project.Record) iter.Seq[Progress] {
	records = slices.Clone(records)
	var started atomic.Bool

	return func(yield func(Progress) bool) {
		if !started.CompareAndSwap(false, true) {
			return
		}

		total := len(records)
		for i, r := range records {
			if ctx.Err() != nil {
				e.logger.Printf("sync canceled after %d/%d", i, total)
				return
			}

			outcome := e.SyncOne(context.WithoutCancel(ctx), r)
			p := Progress{
				Index:    i + 1,
				Total:    total,
				Record:   r,
				Outcome:  outcome,
				Fraction: float64(i+1) / float64(total),
			}
			if !yield(p) {
				return
			}
		}
	}
}

// Stream runs Sync on its own goroutine. The channel is closed when the
// batch completes or is canceled.
func (e *Engine) Stream(ctx context.Context, records []project.Record) <-chan Progress {
	ch := make(chan Progress, len(records))
	seq := e.Sync(ctx, records)
	go func() {
		defer close(ch)
		for p := range seq {
			ch <- p
		}
	}()
	return ch
}

// Run syncs records, calling fn after each project, and returns the tally.
func (e *Engine) Run(ctx context.Context, records []project.Record, fn func(Progress)) Summary {
	summary := Summary{Total: len(records)}
	for p := range e.Sync(ctx, records) {
		summary.Add(p)
		if fn != nil {
			fn(p)
		}
	}
	return summary
}

// SyncOne syncs a single project and reports the outcome to the sink.
func (e *Engine) SyncOne(ctx context.Context, r project.Record) Outcome {
	branch := r.BranchOr(e.branch)
	outcome := e.syncOne(ctx, r, branch)

	sev, msg := outcome.Message(r, e.remote, branch)
	if e.sink != nil {
		e.sink.Logf(sev, "%s", msg)
	}
	e.logger.Printf("%s: %s", r.Name, outcome)
	return outcome
}

func (e *Engine) syncOne(ctx context.Context, r project.Record, branch string) Outcome {
	repo, err := e.open(r.Path)
	if err != nil {
		return Outcome{Kind: RepositoryOpenFailed, Reason: err.Error()}
	}

	ok, err := repo.HasRemote(e.remote)
	if err != nil {
		return Outcome{Kind: RepositoryOpenFailed, Reason: err.Error()}
	}
	if !ok {
		return Outcome{Kind: RemoteMissing}
	}

	if err := repo.Fetch(ctx, e.remote, branch); err != nil {
		if errors.Is(err, vcs.ErrRemoteNotFound) {
			return Outcome{Kind: RemoteMissing}
		}
		if vcs.IsTimeout(err) {
			return Outcome{Kind: FetchFailed, Reason: fmt.Sprintf("fetch timed out after %s", e.fetchTimeout)}
		}
		return Outcome{Kind: FetchFailed, Reason: err.Error()}
	}

	fetched, err := repo.ResolveCommit(vcs.FetchHead)
	if err != nil {
		return Outcome{Kind: CorruptFetchHead}
	}

	head, err := repo.Head()
	if err != nil {
		return Outcome{Kind: RepositoryOpenFailed, Reason: err.Error()}
	}

	analysis, err := repo.MergeAnalysis(fetched)
	if err != nil {
		return Outcome{Kind: RepositoryOpenFailed, Reason: err.Error(), OldHead: head.Hash}
	}

	switch analysis {
	case vcs.AnalysisUpToDate:
		return Outcome{Kind: UpToDate, OldHead: head.Hash, NewHead: head.Hash}
	case vcs.AnalysisFastForward:
		return e.fastForward(ctx, repo, branch, head, fetched)
	default:
		return Outcome{Kind: Conflict, OldHead: head.Hash, NewHead: head.Hash}
	}
}

// fastForward moves refs/heads/<branch> to fetched, points HEAD at it and
// force-checks it out. If any step fails the ref and HEAD are put back.
//
// HEAD may sit on another branch or be detached, so the branch ref is
// checked separately: when it holds commits fetched lacks the result is a
// Conflict and nothing is touched.
func (e *Engine) fastForward(ctx context.Context, repo vcs.Repository, branch string, head vcs.HeadInfo, fetched string) Outcome {
	ref := vcs.BranchRef(branch)
	conflict := Outcome{Kind: Conflict, OldHead: head.Hash, NewHead: head.Hash}

	var previous string
	for attempt := 1; ; attempt++ {
		var (
			ok  bool
			err error
		)
		previous, ok, err = branchBase(repo, ref, fetched)
		if err != nil {
			return Outcome{Kind: RepositoryOpenFailed, Reason: err.Error(), OldHead: head.Hash}
		}
		if !ok {
			return conflict
		}

		err = repo.UpdateRef(ref, fetched, previous, ReflogMessage)
		if err == nil {
			break
		}
		if attempt < updateRefAttempts && vcs.IsRetryable(err) {
			e.logger.Printf("WARN: %s in %s moved during fast-forward, retrying: %v", ref, repo.Root(), err)
			continue
		}
		return Outcome{Kind: FastForwardFailed, Reason: fmt.Sprintf("update-ref: %v", err), OldHead: head.Hash, NewHead: head.Hash}
	}
	refExisted := previous != ""

	fail := func(step string, err error) Outcome {
		reason := fmt.Sprintf("%s: %v", step, err)
		if rbErr := e.rollback(ctx, repo, ref, refExisted, previous, fetched, head); rbErr != nil {
			reason += fmt.Sprintf(" (rollback: %v)", rbErr)
		}
		return Outcome{Kind: FastForwardFailed, Reason: reason, OldHead: head.Hash, NewHead: head.Hash}
	}

	if err := repo.SetHead(ref); err != nil {
		return fail("set HEAD", err)
	}
	if err := repo.ForceCheckout(ctx, branch); err != nil {
		return fail("checkout", err)
	}

	return Outcome{Kind: FastForwarded, OldHead: head.Hash, NewHead: fetched}
}

// updateRefAttempts bounds how often a ref that moved under us is re-read.
const updateRefAttempts = 2

// branchBase reads ref before it is moved. previous is empty when the ref
// does not exist yet; ok is false when ref holds commits fetched does not.
func branchBase(repo vcs.Repository, ref, fetched string) (previous string, ok bool, err error) {
	previous, err = repo.ResolveCommit(ref)
	if err != nil {
		if errors.Is(err, vcs.ErrRefNotFound) {
			return "", true, nil
		}
		return "", false, err
	}
	if previous == fetched {
		return previous, true, nil
	}
	ok, err = repo.IsAncestor(previous, fetched)
	return previous, ok, err
}

// rollback restores the branch ref and HEAD to their state before a failed
// fast-forward.
func (e *Engine) rollback(ctx context.Context, repo vcs.Repository, ref string, refExisted bool, previous, fetched string, head vcs.HeadInfo) error {
	var errs []string

	switch {
	case head.Detached():
		if _, err := repo.Exec(ctx, "update-ref", "--no-deref", "HEAD", head.Hash); err != nil {
			errs = append(errs, fmt.Sprintf("restore HEAD: %v", err))
		}
	case head.Ref != ref:
		if err := repo.SetHead(head.Ref); err != nil {
			errs = append(errs, fmt.Sprintf("restore HEAD: %v", err))
		}
	}

	if refExisted {
		if err := repo.UpdateRef(ref, previous, fetched, ReflogMessage+" (rollback)"); err != nil {
			errs = append(errs, fmt.Sprintf("restore %s: %v", ref, err))
		}
	} else if err := repo.DeleteRef(ref); err != nil {
		errs = append(errs, fmt.Sprintf("delete %s: %v", ref, err))
	}

	if len(errs) > 0 {
		e.logger.Printf("ERROR: rollback in %s incomplete: %s", repo.Root(), strings.Join(errs, "; "))
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
