// Package chat orchestrates one inbound chat request: validate input, resolve
// the session, call the completion gateway, and record both turns.
//
// Requests for the same session id are serialized: the per-session lock is
// held across append-user, truncate, the gateway call, and append-assistant,
// and released on every exit path. Without it, two overlapping requests for
// one session would interleave their gateway calls and record assistant
// replies in a non-deterministic order.
//
// When the gateway fails, the just-appended user turn stays in history so a
// retry with the same message does not duplicate it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/oraculum/oraculum/pkg/completion"
	"github.com/oraculum/oraculum/pkg/conversation"
)

const (
	DefaultMaxHistory    = 15
	DefaultMaxMessageLen = 2000
)

// ErrInvalidInput marks request validation failures. Terminal for the
// request; callers map it to a 400.
var ErrInvalidInput = errors.New("invalid input")

// Options configures the manager's validation and retention policy.
type Options struct {
	// MaxHistory bounds a session's history length, system turn included.
	MaxHistory int

	// MaxMessageLen caps the user message; content beyond it is silently
	// discarded, not rejected.
	MaxMessageLen int
}

// Manager turns a chat request into a store mutation plus one gateway call.
type Manager struct {
	store   *conversation.Store
	gateway completion.Gateway
	opts    Options

	sessionLocks map[string]*sync.Mutex
	locksMu      sync.Mutex
}

// NewManager creates a chat manager. Zero option values fall back to the
// defaults above.
func NewManager(store *conversation.Store, gateway completion.Gateway, opts Options) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("completion gateway is required")
	}
	if opts.MaxHistory == 0 {
		opts.MaxHistory = DefaultMaxHistory
	}
	if opts.MaxMessageLen == 0 {
		opts.MaxMessageLen = DefaultMaxMessageLen
	}

	return &Manager{
		store:        store,
		gateway:      gateway,
		opts:         opts,
		sessionLocks: make(map[string]*sync.Mutex),
	}, nil
}

// sessionLock gets or creates the lock for a session id.
func (m *Manager) sessionLock(sessionID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	if lock, exists := m.sessionLocks[sessionID]; exists {
		return lock
	}

	lock := &sync.Mutex{}
	m.sessionLocks[sessionID] = lock
	return lock
}

// releaseSessionLock drops the lock entry for an ended session.
func (m *Manager) releaseSessionLock(sessionID string) {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	delete(m.sessionLocks, sessionID)
}

// HandleChat processes one user message for the given session and returns
// the assistant reply.
func (m *Manager) HandleChat(ctx context.Context, sessionID, message string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("%w: sessionId is required", ErrInvalidInput)
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if len(message) > m.opts.MaxMessageLen {
		message = message[:m.opts.MaxMessageLen]
	}

	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess := m.store.GetOrCreate(sessionID)

	if err := m.store.Append(sessionID, conversation.Turn{Role: conversation.RoleUser, Content: message}); err != nil {
		return "", fmt.Errorf("failed to append user turn: %w", err)
	}
	if err := m.store.Truncate(sessionID, m.opts.MaxHistory); err != nil {
		return "", fmt.Errorf("failed to truncate history: %w", err)
	}

	reply, err := m.gateway.Complete(ctx, sess.History)
	if err != nil {
		// The user turn stays in history; a retry reuses it as context.
		log.Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("Completion gateway call failed")
		return "", err
	}

	if err := m.store.Append(sessionID, conversation.Turn{Role: conversation.RoleAssistant, Content: reply}); err != nil {
		return "", fmt.Errorf("failed to append assistant turn: %w", err)
	}

	log.Debug().
		Str("session_id", sessionID).
		Int("history_len", len(sess.History)).
		Msg("Chat turn completed")

	return reply, nil
}

// EndSession removes the session. Ending an absent session succeeds; the
// completion gateway is never consulted.
func (m *Manager) EndSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: sessionId is required", ErrInvalidInput)
	}

	lock := m.sessionLock(sessionID)
	lock.Lock()
	m.store.End(sessionID)
	lock.Unlock()

	m.releaseSessionLock(sessionID)

	return nil
}
