package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oraculum/oraculum/internal/observability"
)

var (
	// ErrSessionExists is returned by Create when the id is already present.
	ErrSessionExists = errors.New("session already exists")

	// ErrSessionNotFound is returned when an operation targets an absent id.
	ErrSessionNotFound = errors.New("session not found")
)

// Store is an in-memory mapping from session id to Session, scoped to the
// process lifetime. It is safe for concurrent use; callers that need ordering
// across a read-call-write sequence must coordinate above the store (see
// pkg/chat).
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	systemPrompt string
}

// NewStore creates a store whose sessions are seeded with the given system
// prompt as their leading turn.
func NewStore(systemPrompt string) *Store {
	observability.EnsureRegistered()

	return &Store{
		sessions:     make(map[string]*Session),
		systemPrompt: systemPrompt,
	}
}

func (s *Store) newSession(id string) *Session {
	return &Session{
		ID:         id,
		History:    []Turn{{Role: RoleSystem, Content: s.systemPrompt}},
		LastActive: time.Now(),
	}
}

// Create inserts a new session seeded with the system turn. It fails with
// ErrSessionExists if the id is already present.
func (s *Store) Create(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; exists {
		return nil, ErrSessionExists
	}

	sess := s.newSession(id)
	s.sessions[id] = sess

	observability.RecordSessionCreated()
	observability.SetActiveSessions(len(s.sessions))
	log.Debug().Str("session_id", id).Msg("Session created")

	return sess, nil
}

// Get returns the session for id, or ErrSessionNotFound. It never creates.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// GetOrCreate returns the existing session for id or creates a fresh one.
// This is the operation the request handler uses.
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, exists := s.sessions[id]; exists {
		return sess
	}

	sess := s.newSession(id)
	s.sessions[id] = sess

	observability.RecordSessionCreated()
	observability.SetActiveSessions(len(s.sessions))
	log.Debug().Str("session_id", id).Msg("Session created")

	return sess
}

// Append adds turns to the session's history in the given order and bumps
// LastActive. It fails with ErrSessionNotFound if the id is absent.
func (s *Store) Append(id string, turns ...Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[id]
	if !exists {
		return ErrSessionNotFound
	}

	sess.History = append(sess.History, turns...)
	sess.LastActive = time.Now()

	return nil
}

// Truncate bounds the session's history to maxLen turns, retaining the
// leading system turn plus the most recent maxLen-1 turns. Applying it twice
// in a row yields the same result as once.
func (s *Store) Truncate(id string, maxLen int) error {
	if maxLen < 1 {
		maxLen = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[id]
	if !exists {
		return ErrSessionNotFound
	}

	if len(sess.History) <= maxLen {
		return nil
	}

	system := sess.History[0]
	recent := sess.History[len(sess.History)-(maxLen-1):]

	history := make([]Turn, 0, maxLen)
	history = append(history, system)
	history = append(history, recent...)
	sess.History = history

	log.Debug().
		Str("session_id", id).
		Int("max_len", maxLen).
		Msg("Session history truncated")

	return nil
}

// End removes the session entirely. Ending an absent session is not an error.
func (s *Store) End(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; !exists {
		return
	}

	delete(s.sessions, id)

	observability.SetActiveSessions(len(s.sessions))
	log.Debug().Str("session_id", id).Msg("Session ended")
}

// Sweep removes every session whose LastActive is older than now minus
// idleThreshold and returns the count removed.
func (s *Store) Sweep(idleThreshold time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-idleThreshold)
	removed := 0

	for id, sess := range s.sessions {
		if sess.LastActive.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}

	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
