package settings

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor produces on save.
const DefaultDebounce = 100 * time.Millisecond

// Watch calls onChange whenever the document is edited by someone other than
// this store. It blocks until ctx is cancelled.
//
// The directory is watched rather than the file, because atomic writers
// (including Save) replace the inode.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onChange func(Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	s.mu.Lock()
	if s.last == nil {
		if current, err := s.loadLocked(); err != nil {
			s.logger.WithError(err).Warn("Failed to read settings before watching")
		} else {
			s.remember(current)
		}
	}
	s.mu.Unlock()

	name := filepath.Base(s.path)
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	s.logger.WithField("path", s.path).Debug("Watching settings file")
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Errorf("Watcher error: %v", err)
		case <-timer.C:
			if changed, ok := s.reloadIfChanged(); ok {
				s.logger.WithField(KeyDetectWeapons, changed.DetectWeapons).Info("Settings changed on disk")
				onChange(changed)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// reloadIfChanged reads the document and reports whether it differs from
// the last record this store saw.
func (s *Store) reloadIfChanged() (Settings, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var previous *Settings
	if s.last != nil {
		cp := *s.last
		previous = &cp
	}
	current, err := s.loadLocked()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to reload settings")
		return Settings{}, false
	}
	s.remember(current)
	if previous != nil && previous.DetectWeapons == current.DetectWeapons {
		return current, false
	}
	return current, true
}
