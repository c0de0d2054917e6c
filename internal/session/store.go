// Package session keeps short per-session chat histories in memory.
// Ownership is external: handlers pass a session id in, the store never
// invents one.
package session

import (
	"sync"

	"github.com/poorman/SynapseStrike/models"
)

// maxHistory bounds how many messages a session retains.
const maxHistory = 10

// Store is a concurrency-safe in-memory session history map.
type Store struct {
	mu       sync.Mutex
	sessions map[string][]models.ChatMessage
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string][]models.ChatMessage)}
}

// History returns a copy of the session's messages, oldest first.
func (s *Store) History(sessionID string) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.sessions[sessionID]
	out := make([]models.ChatMessage, len(history))
	copy(out, history)
	return out
}

// Append adds messages to the session, trimming to the most recent
// maxHistory entries.
func (s *Store) Append(sessionID string, messages ...models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[sessionID], messages...)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	s.sessions[sessionID] = history
}

// Clear removes a session entirely.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
