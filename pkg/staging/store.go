package staging

import (
	"sync"
	"time"
)

type storeEntry struct {
	composer *Composer
	lastUsed time.Time
}

// Store keeps one Composer per session id.
type Store struct {
	editor ConfigEditor
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*storeEntry
}

// NewStore creates an empty session store.
func NewStore(editor ConfigEditor) *Store {
	return &Store{
		editor:  editor,
		now:     time.Now,
		entries: make(map[string]*storeEntry),
	}
}

// Get returns the composer for a session, creating it on first use.
func (s *Store) Get(sessionID string) *Composer {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		e = &storeEntry{composer: NewComposer(s.editor)}
		s.entries[sessionID] = e
	}
	e.lastUsed = s.now()
	return e.composer
}

// Drop forgets a session's composer.
func (s *Store) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops composers unused for longer than idle and returns how many
// were removed.
func (s *Store) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	removed := 0
	for id, e := range s.entries {
		if e.lastUsed.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
