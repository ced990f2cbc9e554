package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses the burst of events produced by one rewrite.
const watchDebounce = 100 * time.Millisecond

// Watch reloads the store whenever another process rewrites the store file
// and calls onChange with the new list. Our own writes are ignored.
// It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func([]Record)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// The file is replaced by rename, so watch its directory.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	timer := time.NewTimer(watchDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				timer.Reset(watchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Printf("WARN: store watch: %v", err)

		case <-timer.C:
			s.reload(onChange)
		}
	}
}

func (s *Store) reload(onChange func([]Record)) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.warnf("failed to reload project list %s: %v", s.path, err)
		}
		return
	}
	if s.isOwnWrite(data) {
		return
	}

	records, err := Decode(data)
	if err != nil {
		s.warnf("ignoring changed project list %s: %v", s.path, err)
		return
	}

	s.Replace(records)
	s.mu.Lock()
	s.lastWritten = data
	s.mu.Unlock()
	s.logger.Printf("reloaded %d projects from %s", len(records), s.path)

	if onChange != nil {
		onChange(s.List())
	}
}
