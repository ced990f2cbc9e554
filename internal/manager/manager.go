// Package manager is the caller-facing API shared by the CLI and the server.
//
// A Manager ties the project store, the sync engine, the in-app log and the
// optional history database together:
//
//	m, err := manager.New(manager.OptionsFromConfig(cfg, lg))
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	seq, err := m.SyncAll(ctx)
//	if err != nil {
//	    return err // another ffpull is syncing
//	}
//	for p := range seq {
//	    fmt.Printf("%3.0f%% %s\n", p.Fraction*100, p.Record.Name)
//	}
package manager

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/ffpull/ffpull/internal/config"
	"github.com/ffpull/ffpull/internal/engine"
	"github.com/ffpull/ffpull/internal/history"
	"github.com/ffpull/ffpull/internal/logbuf"
	"github.com/ffpull/ffpull/internal/logging"
	"github.com/ffpull/ffpull/internal/project"
)

// ErrSyncInProgress is returned when another batch holds the sync lock.
var ErrSyncInProgress = errors.New("another sync is in progress")

// Options configures a Manager.
type Options struct {
	StorePath    string
	Branch       string
	FetchTimeout time.Duration
	LogCapacity  int

	// SyncLockPath defaults to StorePath + ".sync.lock".
	SyncLockPath string

	// HistoryPath enables the history database when non-empty.
	HistoryPath string

	// Logging supplies the process loggers; nil discards them.
	Logging *logging.Logging

	// Validator and Opener replace the git-backed defaults.
	Validator project.Validator
	Opener    engine.Opener
}

// OptionsFromConfig maps the loaded configuration to Options.
func OptionsFromConfig(cfg *config.Config, lg *logging.Logging) Options {
	opts := Options{
		StorePath:    cfg.Store.Path,
		Branch:       cfg.Sync.Branch,
		FetchTimeout: cfg.Sync.FetchTimeout,
		LogCapacity:  cfg.Log.Capacity,
		SyncLockPath: cfg.SyncLockPath(),
		Logging:      lg,
	}
	if cfg.History.Enabled {
		opts.HistoryPath = cfg.History.Path
	}
	return opts
}

// Manager is safe for concurrent use. Only one batch runs at a time.
type Manager struct {
	store   *project.Store
	engine  *engine.Engine
	log     *logbuf.Buffer
	history *history.DB
	logger  *log.Logger

	syncLock *flock.Flock
	running  sync.Mutex

	closeOnce sync.Once
}

// New opens the store and, when configured, the history database.
func New(opts Options) (*Manager, error) {
	lg := opts.Logging
	if lg == nil {
		lg = logging.Discard()
	}

	buf := logbuf.New(opts.LogCapacity)
	buf.SetMirror(lg.Logger("log"))

	storeOpts := []project.Option{
		project.WithLogger(lg.Logger("store")),
		project.WithSink(buf),
	}
	if opts.Validator != nil {
		storeOpts = append(storeOpts, project.WithValidator(opts.Validator))
	}
	store, err := project.Open(opts.StorePath, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open project store: %w", err)
	}

	engineOpts := []engine.Option{
		engine.WithBranch(opts.Branch),
		engine.WithFetchTimeout(opts.FetchTimeout),
		engine.WithSink(buf),
		engine.WithLogger(lg.Logger("sync")),
	}
	if opts.Opener != nil {
		engineOpts = append(engineOpts, engine.WithOpener(opts.Opener))
	}

	lockPath := opts.SyncLockPath
	if lockPath == "" {
		lockPath = opts.StorePath + ".sync.lock"
	}

	m := &Manager{
		store:    store,
		engine:   engine.New(engineOpts...),
		log:      buf,
		logger:   lg.Logger("manager"),
		syncLock: flock.New(lockPath),
	}

	if opts.HistoryPath != "" {
		db, err := history.Open(opts.HistoryPath)
		if err != nil {
			// History is an add-on; syncing works without it.
			m.logger.Printf("WARN: history disabled: %v", err)
			buf.Warnf("sync history disabled: %v", err)
		} else {
			m.history = db
		}
	}
	return m, nil
}

// Store returns the underlying project store.
func (m *Manager) Store() *project.Store {
	return m.store
}

// Engine returns the sync engine.
func (m *Manager) Engine() *engine.Engine {
	return m.engine
}

// History returns the history database, or nil when disabled.
func (m *Manager) History() *history.DB {
	return m.history
}

// Log returns the in-app log.
func (m *Manager) Log() *logbuf.Buffer {
	return m.log
}

// ListProjects returns the registered projects in order.
func (m *Manager) ListProjects() []project.Record {
	return m.store.List()
}

// RegisterProject validates and appends a project.
func (m *Manager) RegisterProject(path, name, notes string) error {
	return m.RegisterRecord(project.Record{Path: path, Name: name, Notes: notes})
}

// RegisterRecord validates and appends r. Rejections are logged as [ERROR].
func (m *Manager) RegisterRecord(r project.Record) error {
	if err := m.store.Register(r); err != nil {
		m.log.Errorf("%v", err)
		return err
	}
	return nil
}

// DeleteProjects removes the projects at indices and returns how many were
// removed. Invalid and repeated indices are ignored.
func (m *Manager) DeleteProjects(indices ...int) int {
	return m.store.Remove(indices...)
}

// UpdateProject edits the project at index.
func (m *Manager) UpdateProject(index int, patch project.Patch) error {
	if err := m.store.Update(index, patch); err != nil {
		m.log.Errorf("%v", err)
		return err
	}
	return nil
}

// Select returns the records at indices in store order. Out-of-range
// indices are skipped and duplicates collapsed.
func (m *Manager) Select(indices ...int) []project.Record {
	all := m.store.List()
	seen := make(map[int]bool, len(indices))
	var picked []int
	for _, i := range indices {
		if i < 0 || i >= len(all) || seen[i] {
			continue
		}
		seen[i] = true
		picked = append(picked, i)
	}
	sort.Ints(picked)

	out := make([]project.Record, 0, len(picked))
	for _, i := range picked {
		out = append(out, all[i])
	}
	return out
}

// SyncProjects syncs the projects at indices. It fails only when another
// batch holds the sync lock; every per-project failure is reported in the
// sequence instead. The lock is released when the sequence finishes, so
// the caller must range over it.
func (m *Manager) SyncProjects(ctx context.Context, indices ...int) (iter.Seq[engine.Progress], error) {
	return m.syncRecords(ctx, m.Select(indices...))
}

// SyncAll syncs every registered project.
func (m *Manager) SyncAll(ctx context.Context) (iter.Seq[engine.Progress], error) {
	return m.syncRecords(ctx, m.store.List())
}

func (m *Manager) syncRecords(ctx context.Context, records []project.Record) (iter.Seq[engine.Progress], error) {
	if !m.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	locked, err := m.syncLock.TryLock()
	if err != nil {
		m.running.Unlock()
		return nil, fmt.Errorf("acquiring sync lock: %w", err)
	}
	if !locked {
		m.running.Unlock()
		return nil, ErrSyncInProgress
	}

	release := func() {
		_ = m.syncLock.Unlock()
		m.running.Unlock()
	}

	var once sync.Once
	return func(yield func(engine.Progress) bool) {
		once.Do(func() {
			defer release()
			m.runBatch(ctx, records, yield)
		})
	}, nil
}

func (m *Manager) runBatch(ctx context.Context, records []project.Record, yield func(engine.Progress) bool) {
	total := len(records)
	summary := engine.Summary{Total: total}
	runID := m.beginRun(total)

	m.logger.Printf("sync started: %d projects", total)
	for p := range m.engine.Sync(ctx, records) {
		summary.Add(p)
		m.recordResult(runID, p)
		if !yield(p) {
			break
		}
	}

	if summary.Canceled() && ctx.Err() != nil {
		m.log.Warnf("sync canceled after %d/%d", summary.Completed, total)
	}
	m.finishRun(runID, summary)
	m.logger.Printf("sync finished: %d/%d completed, %d updated, %d failed",
		summary.Completed, total, summary.Updated, summary.Failed)
}

func (m *Manager) beginRun(total int) int64 {
	if m.history == nil || total == 0 {
		return 0
	}
	id, err := m.history.BeginRun(context.Background(), total)
	if err != nil {
		m.logger.Printf("WARN: %v", err)
		return 0
	}
	return id
}

func (m *Manager) recordResult(runID int64, p engine.Progress) {
	if m.history == nil || runID == 0 {
		return
	}
	branch := p.Record.BranchOr(m.engine.Branch())
	if err := m.history.RecordResult(context.Background(), runID, p, branch); err != nil {
		m.logger.Printf("WARN: %v", err)
	}
}

func (m *Manager) finishRun(runID int64, s engine.Summary) {
	if m.history == nil || runID == 0 {
		return
	}
	if err := m.history.FinishRun(context.Background(), runID, s); err != nil {
		m.logger.Printf("WARN: %v", err)
	}
}

// Close persists the project list and closes the history database.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		if perr := m.store.Persist(); perr != nil {
			err = perr
		}
		if m.history != nil {
			if herr := m.history.Close(); herr != nil && err == nil {
				err = herr
			}
		}
	})
	return err
}
