// Package session holds per-conversation state: an append-only turn history
// with a bounded window for prompt assembly, and a process-wide store keyed
// by session ID.
//
// Sessions live for the process lifetime only. There is no cross-restart
// persistence; a restart starts every conversation fresh.
package session

import (
	"sync"
	"time"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// History is an append-only sequence of turns. The full log is retained for
// the session's lifetime; Window bounds only what is handed to the prompt.
// History is not safe for concurrent use; State's lock guards it.
type History struct {
	turns []Turn
}

// Append adds a turn to the end of the log.
func (h *History) Append(t Turn) {
	h.turns = append(h.turns, t)
}

// Window returns the most recent maxTurns turns, oldest first. maxTurns <= 0
// returns an empty slice. The returned slice is a copy.
func (h *History) Window(maxTurns int) []Turn {
	if maxTurns <= 0 {
		return []Turn{}
	}
	start := len(h.turns) - maxTurns
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(h.turns)-start)
	copy(out, h.turns[start:])
	return out
}

// Len returns the total number of turns in the log.
func (h *History) Len() int { return len(h.turns) }

// Clear discards all turns.
func (h *History) Clear() { h.turns = nil }

// State is one session's conversation. All mutation goes through its
// methods, which serialize on the per-session mutex; the lock is never held
// across model calls.
type State struct {
	ID string

	mu         sync.Mutex
	history    History
	lastActive time.Time
}

// Window snapshots the most recent maxTurns turns, oldest first, and marks
// the session active.
func (s *State) Window(maxTurns int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	return s.history.Window(maxTurns)
}

// AppendExchange commits a user/assistant turn pair atomically. Callers
// commit only after generation succeeded, so a failed request leaves no
// orphaned user turn.
func (s *State) AppendExchange(user, assistant Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Append(user)
	s.history.Append(assistant)
	s.lastActive = time.Now()
}

// Len returns the total number of turns.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

// Clear discards the conversation.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
}

func (s *State) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive)
}
