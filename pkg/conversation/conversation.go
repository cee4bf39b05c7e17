package conversation

import "time"

// Role identifies who produced a turn. Only the three values below are valid;
// anything else is rejected before it reaches the store.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the three known tags.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is a single message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is a client-identified conversation with accumulated history.
// History always starts with the system turn seeded at creation; it is never
// empty and the system turn is never removed or reordered.
type Session struct {
	ID         string    `json:"id"`
	History    []Turn    `json:"history"`
	LastActive time.Time `json:"lastActive"`
}
