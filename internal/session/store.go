package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store owns every live session. Lookups take a short store-wide lock;
// per-session work serializes on the State's own mutex, so distinct sessions
// never contend beyond the map access.
type Store struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*State
}

// NewStore creates an empty session store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		logger:   logger,
		sessions: make(map[string]*State),
	}
}

// GetOrCreate returns the session for id, creating it on first use. Unknown
// ids are new conversations, never errors.
func (s *Store) GetOrCreate(id string) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.sessions[id]; ok {
		return st
	}
	st := &State{ID: id, lastActive: time.Now()}
	s.sessions[id] = st
	s.logger.Debug("session created", "session_id", id)
	return st
}

// Reset discards the conversation for id. Idempotent: resetting an unknown
// session is a no-op.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	st, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if ok {
		st.Clear()
		s.logger.Debug("session reset", "session_id", id)
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle removes sessions idle for at least ttl and returns how many were
// evicted. An in-flight request on an evicted session keeps its State
// pointer and simply commits to a detached conversation; the next request
// with that id starts fresh.
func (s *Store) EvictIdle(ttl time.Duration) int {
	now := time.Now()

	s.mu.Lock()
	var evicted []string
	for id, st := range s.sessions {
		if st.idleSince(now) >= ttl {
			evicted = append(evicted, id)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	if len(evicted) > 0 {
		s.logger.Info("evicted idle sessions", "count", len(evicted), "ttl", ttl)
	}
	return len(evicted)
}

// StartJanitor runs EvictIdle on a timer until ctx is canceled.
func (s *Store) StartJanitor(ctx context.Context, interval, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.EvictIdle(ttl)
			}
		}
	}()
}
