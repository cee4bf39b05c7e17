// Package conversation holds in-memory multi-turn conversation state keyed by
// session id.
//
// Invariants:
// - A session's history is never empty: it always starts with the system turn
//   seeded at creation, at index 0.
// - Truncation discards older turns between the system turn and the most
//   recent window, never the system turn itself.
// - Sessions live for the process lifetime only; the sweeper evicts sessions
//   idle past a threshold.
//
// Usage:
//
//	store := conversation.NewStore("You are a mystical tarot advisor.")
//	sess := store.GetOrCreate("session:1")
//	_ = store.Append(sess.ID, conversation.Turn{Role: conversation.RoleUser, Content: "hello"})
package conversation
