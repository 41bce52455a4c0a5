package recorder

import (
	"sort"
	"sync"
)

// Registry maps target message ids to their active session. A key is
// present only while its session is active.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Insert registers s under its target message id, failing with
// ErrDuplicateSession if the key is taken.
func (r *Registry) Insert(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := s.Target.MessageID
	if _, ok := r.sessions[key]; ok {
		return ErrDuplicateSession
	}
	r.sessions[key] = s
	return nil
}

// Get returns the session registered for key.
func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Remove deletes key only if it still maps to s, so a late finisher can
// never evict a newer session for the same message.
func (r *Registry) Remove(key string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[key]; ok && cur == s {
		delete(r.sessions, key)
		return true
	}
	return false
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// List returns the active sessions ordered by start time.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].Target.MessageID < out[j].Target.MessageID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
