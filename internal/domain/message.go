package domain

import "fmt"

// Role identifies the author of a transcript message.
type Role string

const (
	// RoleSystem is the fixed persona instruction at the head of a transcript.
	RoleSystem Role = "system"
	// RoleUser is a question typed by the visitor.
	RoleUser Role = "user"
	// RoleAssistant is a model reply, or the error text that replaced it.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is one immutable transcript entry. The JSON shape matches the
// {role, content} objects exchanged with chat-completion APIs.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func (m Message) String() string {
	return fmt.Sprintf("%s: %s", m.Role, m.Content)
}

// Phase records whether a session has completed its first turn.
type Phase string

const (
	// PhaseNotStarted is the phase before the first question is answered.
	PhaseNotStarted Phase = "not_started"
	// PhaseActive is the phase after the first turn; it never reverts.
	PhaseActive Phase = "active"
)
