package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraculum/oraculum/pkg/conversation"
)

// stubGateway records calls and returns a canned reply or error.
type stubGateway struct {
	reply     string
	err       error
	calls     int
	histories [][]conversation.Turn
}

func (g *stubGateway) Complete(_ context.Context, turns []conversation.Turn) (string, error) {
	g.calls++
	g.histories = append(g.histories, append([]conversation.Turn(nil), turns...))
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *stubGateway) Provider() string {
	return "stub"
}

func setupManager(t *testing.T, gw *stubGateway, opts Options) (*Manager, *conversation.Store) {
	store := conversation.NewStore("You are a mystical tarot advisor.")
	mgr, err := NewManager(store, gw, opts)
	require.NoError(t, err)
	return mgr, store
}

func TestNewManager_RequiredDependencies(t *testing.T) {
	store := conversation.NewStore("prompt")

	_, err := NewManager(nil, &stubGateway{}, Options{})
	assert.Error(t, err)

	_, err = NewManager(store, nil, Options{})
	assert.Error(t, err)
}

func TestHandleChat_AppendsBothTurns(t *testing.T) {
	gw := &stubGateway{reply: "Greetings, traveler."}
	mgr, store := setupManager(t, gw, Options{})

	reply, err := mgr.HandleChat(context.Background(), "s1", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Greetings, traveler.", reply)
	assert.Equal(t, 1, gw.calls)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	require.Len(t, sess.History, 3)
	assert.Equal(t, conversation.RoleSystem, sess.History[0].Role)
	assert.Equal(t, conversation.RoleUser, sess.History[1].Role)
	assert.Equal(t, "Hello", sess.History[1].Content)
	assert.Equal(t, conversation.RoleAssistant, sess.History[2].Role)
}

func TestHandleChat_FollowUpSendsFullHistory(t *testing.T) {
	gw := &stubGateway{reply: "Greetings, traveler."}
	mgr, _ := setupManager(t, gw, Options{})

	_, err := mgr.HandleChat(context.Background(), "s1", "Hello")
	require.NoError(t, err)

	_, err = mgr.HandleChat(context.Background(), "s1", "What now?")
	require.NoError(t, err)

	require.Equal(t, 2, gw.calls)
	second := gw.histories[1]
	require.Len(t, second, 4)
	assert.Equal(t, conversation.RoleSystem, second[0].Role)
	assert.Equal(t, "Hello", second[1].Content)
	assert.Equal(t, "Greetings, traveler.", second[2].Content)
	assert.Equal(t, "What now?", second[3].Content)
}

func TestHandleChat_InvalidInput(t *testing.T) {
	gw := &stubGateway{reply: "unused"}
	mgr, _ := setupManager(t, gw, Options{})

	tests := []struct {
		name      string
		sessionID string
		message   string
	}{
		{"empty session id", "", "Hello"},
		{"blank session id", "   ", "Hello"},
		{"empty message", "s1", ""},
		{"blank message", "s1", "  \n "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mgr.HandleChat(context.Background(), tt.sessionID, tt.message)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	// No gateway call was made for any invalid request
	assert.Equal(t, 0, gw.calls)
}

func TestHandleChat_CapsMessageLength(t *testing.T) {
	gw := &stubGateway{reply: "ok"}
	mgr, store := setupManager(t, gw, Options{MaxMessageLen: 10})

	_, err := mgr.HandleChat(context.Background(), "s1", strings.Repeat("x", 100))
	require.NoError(t, err)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Len(t, sess.History[1].Content, 10)
}

func TestHandleChat_BoundsHistory(t *testing.T) {
	gw := &stubGateway{reply: "ok"}
	mgr, store := setupManager(t, gw, Options{MaxHistory: 5})

	for i := 0; i < 10; i++ {
		_, err := mgr.HandleChat(context.Background(), "s1", "again")
		require.NoError(t, err)
	}

	sess, err := store.Get("s1")
	require.NoError(t, err)
	// Truncation runs before the assistant append, so the bound can be
	// exceeded by at most the assistant turn itself.
	assert.LessOrEqual(t, len(sess.History), 6)
	assert.Equal(t, conversation.RoleSystem, sess.History[0].Role)
}

func TestHandleChat_GatewayFailureKeepsUserTurn(t *testing.T) {
	gw := &stubGateway{err: errors.New("upstream exploded")}
	mgr, store := setupManager(t, gw, Options{})

	_, err := mgr.HandleChat(context.Background(), "s1", "Hello")
	require.Error(t, err)

	// Rollback policy: the speculative user turn remains for retries
	sess, err := store.Get("s1")
	require.NoError(t, err)
	require.Len(t, sess.History, 2)
	assert.Equal(t, conversation.RoleUser, sess.History[1].Role)

	// The policy holds across repeated failures: the retry appends its
	// own user turn but still no assistant turn.
	_, err = mgr.HandleChat(context.Background(), "s1", "Hello")
	require.Error(t, err)
	sess, err = store.Get("s1")
	require.NoError(t, err)
	assert.Len(t, sess.History, 3)
}

func TestEndSession_ThenFreshStart(t *testing.T) {
	gw := &stubGateway{reply: "ok"}
	mgr, store := setupManager(t, gw, Options{})

	_, err := mgr.HandleChat(context.Background(), "s1", "Hello")
	require.NoError(t, err)

	require.NoError(t, mgr.EndSession("s1"))

	sess := store.GetOrCreate("s1")
	assert.Len(t, sess.History, 1)
}

func TestEndSession_Validation(t *testing.T) {
	gw := &stubGateway{}
	mgr, _ := setupManager(t, gw, Options{})

	assert.ErrorIs(t, mgr.EndSession(""), ErrInvalidInput)

	// Ending an absent session is not an error
	assert.NoError(t, mgr.EndSession("never-existed"))
	assert.Equal(t, 0, gw.calls)
}
