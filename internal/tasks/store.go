package tasks

import (
	"sync"
)

// Store is an ordered, keyed collection of tracked uploads safe for concurrent use.
//
// Every mutation goes through [Transition] under the store lock, so transitions on one entry are
// serialized while other entries stay independent.
type Store struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*storeEntry
}

type storeEntry struct {
	upload  TrackedUpload
	polling bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*storeEntry)}
}

// Add inserts u at the end of the collection.
func (s *Store) Add(u TrackedUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[u.Key]; ok {
		return ErrDuplicateKey
	}
	s.entries[u.Key] = &storeEntry{upload: u}
	s.order = append(s.order, u.Key)
	return nil
}

// Get returns a copy of the entry for key.
func (s *Store) Get(key string) (TrackedUpload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return TrackedUpload{}, false
	}
	return e.upload, true
}

// Snapshot copies every entry in insertion order.
func (s *Store) Snapshot() []TrackedUpload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TrackedUpload, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.entries[key].upload)
	}
	return out
}

// Len is the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Apply runs [Transition] on the entry for key and stores the result.
//
// It returns the entry before and after the event; on error both are the unchanged entry.
func (s *Store) Apply(key string, ev Event) (before, after TrackedUpload, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return TrackedUpload{}, TrackedUpload{}, ErrUnknownUpload
	}

	next, err := Transition(e.upload, ev)
	if err != nil {
		return e.upload, e.upload, err
	}
	before = e.upload
	e.upload = next
	return before, next, nil
}

// Remove deletes key unconditionally and reports whether it existed.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(key)
}

// RemoveTerminal deletes key only if it is Completed or Failed.
func (s *Store) RemoveTerminal(key string) (TrackedUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return TrackedUpload{}, ErrUnknownUpload
	}
	if !e.upload.State.Terminal() {
		return e.upload, ErrNotTerminal
	}
	u := e.upload
	s.removeLocked(key)
	return u, nil
}

// RemoveIfState deletes key when its state is st.
func (s *Store) RemoveIfState(key string, st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.upload.State != st {
		return false
	}
	return s.removeLocked(key)
}

// ClaimPoll marks key as being polled. A second claim fails with [ErrAlreadyPolling] until
// [Store.ReleasePoll].
func (s *Store) ClaimPoll(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return ErrUnknownUpload
	}
	if e.polling {
		return ErrAlreadyPolling
	}
	e.polling = true
	return nil
}

// ReleasePoll clears the polling claim.
func (s *Store) ReleasePoll(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.polling = false
	}
}

func (s *Store) removeLocked(key string) bool {
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}
