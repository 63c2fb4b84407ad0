package status

import (
	"sync"
)

// Store is the in-memory status store.
// It is thread-safe and supports pub/sub for real-time updates.
type Store struct {
	mu          sync.RWMutex
	state       Snapshot
	subscribers map[chan Update]struct{}
}

// New creates a new Store instance.
func New() *Store {
	return &Store{
		state:       Snapshot{Views: map[string]string{}},
		subscribers: make(map[chan Update]struct{}),
	}
}

// Get returns a copy of the current snapshot.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySnapshot(s.state)
}

// Set replaces the snapshot and notifies subscribers of what changed.
// Setting an identical snapshot notifies nobody.
func (s *Store) Set(next Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	types := diff(s.state, next)
	s.state = copySnapshot(next)
	if len(types) == 0 {
		return
	}

	update := Update{Types: types, Snapshot: copySnapshot(next)}
	for ch := range s.subscribers {
		select {
		case ch <- update:
		default:
			// Non-blocking send to prevent slow clients from stalling the station
		}
	}
}

// Subscribe creates a new subscription channel for updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 32)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}

func diff(prev, next Snapshot) []UpdateType {
	var types []UpdateType
	if prev.Session != next.Session || prev.Role != next.Role || prev.Mode != next.Mode {
		types = append(types, UpdateSession)
	}
	if !sameViews(prev.Views, next.Views) {
		types = append(types, UpdateViews)
	}
	if prev.WorkerRunning != next.WorkerRunning {
		types = append(types, UpdateWorker)
	}
	if prev.DetectWeapons != next.DetectWeapons {
		types = append(types, UpdateSettings)
	}
	if prev.CameraPanel != next.CameraPanel {
		types = append(types, UpdateCamera)
	}
	return types
}

func sameViews(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func copySnapshot(s Snapshot) Snapshot {
	views := make(map[string]string, len(s.Views))
	for k, v := range s.Views {
		views[k] = v
	}
	s.Views = views
	return s
}
