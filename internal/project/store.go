package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// DefaultFileName is the store file name used when no path is configured.
const DefaultFileName = "github_project_manager.json"

// Sink receives store warnings and errors, typically the in-app log buffer.
type Sink interface {
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Store is the ordered, persisted collection of Records.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	path    string
	records []Record

	// persistMu orders snapshot and write so the file always holds the
	// latest snapshot.
	persistMu sync.Mutex

	validator Validator
	logger    *log.Logger
	sink      Sink

	// lastWritten holds the bytes of our most recent write so Watch can
	// tell our own rewrites from another process's.
	lastWritten []byte
}

// Option configures a Store.
type Option func(*Store)

// WithValidator replaces the go-git repository check used by Register.
func WithValidator(v Validator) Option {
	return func(s *Store) { s.validator = v }
}

// WithLogger sets the process logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithSink sets where load warnings and persistence errors are reported.
func WithSink(sink Sink) Option {
	return func(s *Store) { s.sink = sink }
}

// Open creates a Store backed by path and loads it. A missing or unparsable
// file yields an empty store; Open only fails for an empty path.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	s := &Store{
		path:      path,
		validator: RepoValidator{},
		logger:    log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}

	records, err := s.Load()
	if err != nil {
		s.warnf("ignoring project list %s: %v", path, err)
		records = nil
	}
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return s, nil
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the store file without changing the in-memory list.
// A missing file is an empty list, not an error.
func (s *Store) Load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Decode(data)
}

// Decode parses a store file image.
func Decode(data []byte) ([]Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []Record{}, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Encode renders records in the store file format.
func Encode(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Register validates candidate and appends it. On rejection the store is
// unchanged and a *RegistrationError is returned. A persistence failure
// after a successful append is reported to the sink, not returned.
func (s *Store) Register(candidate Record) error {
	if err := candidate.Validate(); err != nil {
		return err
	}
	if err := s.validator.Validate(candidate); err != nil {
		if IsRegistrationError(err) {
			return err
		}
		return &RegistrationError{Kind: ErrNotARepository, Record: candidate, Err: err}
	}

	s.mu.Lock()
	s.records = append(s.records, candidate)
	s.mu.Unlock()

	s.logger.Printf("registered %s", candidate)
	_ = s.Persist()
	return nil
}

// Remove deletes the records at the given positions and returns how many
// were removed. Out-of-range and repeated indices are ignored.
func (s *Store) Remove(indices ...int) int {
	s.mu.Lock()
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(s.records) {
			drop[i] = true
		}
	}
	if len(drop) == 0 {
		s.mu.Unlock()
		return 0
	}

	kept := make([]Record, 0, len(s.records)-len(drop))
	for i, r := range s.records {
		if drop[i] {
			s.logger.Printf("removed %s", r)
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	s.mu.Unlock()

	_ = s.Persist()
	return len(drop)
}

// Update applies patch to the record at index. The path is immutable.
func (s *Store) Update(index int, patch Patch) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.records) {
		n := len(s.records)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, n)
	}
	updated := patch.Apply(s.records[index])
	if updated.Name == "" {
		s.mu.Unlock()
		return &RegistrationError{Kind: ErrEmptyField, Record: updated}
	}
	s.records[index] = updated
	s.mu.Unlock()

	_ = s.Persist()
	return nil
}

// List returns a copy of the records in insertion order.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record at index.
func (s *Store) Get(index int) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.records) {
		return Record{}, false
	}
	return s.records[index], true
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Replace swaps the in-memory list for records without validation or
// persistence. Used when the file changed underneath us.
func (s *Store) Replace(records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]Record(nil), records...)
}

// Persist writes the whole collection to disk atomically. A failure is
// reported to the sink and the process logger and returned as a
// *PersistenceError; the in-memory list is kept either way.
func (s *Store) Persist() error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	data, err := Encode(s.records)
	s.mu.RUnlock()
	if err == nil {
		err = s.writeLocked(data)
	}
	if err != nil {
		perr := &PersistenceError{Path: s.path, Err: err}
		s.logger.Printf("ERROR: %v", perr)
		if s.sink != nil {
			s.sink.Errorf("%v", perr)
		}
		return perr
	}
	return nil
}

// writeLocked replaces the store file with data while holding the
// advisory write lock.
func (s *Store) writeLocked(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquiring store lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	tempFile, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	var writeErr error
	defer func() {
		_ = tempFile.Close()
		if writeErr != nil {
			_ = os.Remove(tempPath)
		}
	}()

	if _, writeErr = tempFile.Write(data); writeErr != nil {
		writeErr = fmt.Errorf("failed to write temp file: %w", writeErr)
		return writeErr
	}
	if writeErr = tempFile.Close(); writeErr != nil {
		writeErr = fmt.Errorf("failed to close temp file: %w", writeErr)
		return writeErr
	}

	s.mu.Lock()
	s.lastWritten = data
	s.mu.Unlock()

	if writeErr = os.Rename(tempPath, s.path); writeErr != nil {
		writeErr = fmt.Errorf("failed to rename temp file: %w", writeErr)
		return writeErr
	}
	return nil
}

// isOwnWrite reports whether data is what this store last wrote.
func (s *Store) isOwnWrite(data []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastWritten != nil && bytes.Equal(s.lastWritten, data)
}

func (s *Store) warnf(format string, args ...any) {
	s.logger.Printf("WARN: "+format, args...)
	if s.sink != nil {
		s.sink.Warnf(format, args...)
	}
}
