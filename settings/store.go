package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/grovetools/watchpost/logging"
	"github.com/sirupsen/logrus"
)

// Store reads and writes the settings document at a fixed path.
//
// Concurrent writers are last-writer-wins: Update serializes writers within
// this process only, and the file is replaced atomically so readers never see
// a partial document.
type Store struct {
	path   string
	logger *logrus.Entry

	mu sync.Mutex
	// last is the record this store last wrote or the watcher last
	// reported. Plain reads leave it alone so an edit seen by Load is
	// still reported by Watch.
	last *Settings
}

// NewStore returns a store for the document at path.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		logger: logging.NewLogger("settings"),
	}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document. A missing file yields Default. A corrupt file
// also yields Default; the parse error is logged, not returned.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("read settings file: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		s.logger.WithError(err).WithField("path", s.path).Error("Settings file is corrupt, using defaults")
		return Default(), nil
	}
	return settings, nil
}

// Save writes the whole record, replacing the previous document.
func (s *Store) Save(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(settings)
}

func (s *Store) saveLocked(settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}

	s.remember(settings)
	s.logger.WithField(KeyDetectWeapons, settings.DetectWeapons).Debug("Settings saved")
	return nil
}

// Update loads the record, applies fn, and saves the result.
func (s *Store) Update(fn func(*Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.loadLocked()
	if err != nil {
		return settings, err
	}
	fn(&settings)
	if err := s.saveLocked(settings); err != nil {
		return settings, err
	}
	return settings, nil
}

func (s *Store) remember(settings Settings) {
	cp := settings
	s.last = &cp
}
