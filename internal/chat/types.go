// Package chat runs conversation turns: it composes a session's transcript
// with a completion backend and announces every updated transcript.
package chat

import (
	"context"
	"errors"

	"github.com/ashureev/realestate-assistant/internal/completion"
	"github.com/ashureev/realestate-assistant/internal/conversation"
	"github.com/ashureev/realestate-assistant/internal/domain"
)

var (
	// ErrBlankInput is returned when the submitted text is empty or whitespace.
	ErrBlankInput = errors.New("message is required")
	// ErrTurnInProgress is returned when the session is already waiting on a reply.
	ErrTurnInProgress = errors.New("a reply is already in progress for this session")
)

// Completer produces the assistant reply for a transcript.
type Completer interface {
	CompleteResult(ctx context.Context, transcript []domain.Message) completion.Result
}

// Notifier receives the transcript after each completed turn.
type Notifier interface {
	TranscriptUpdated(visitorID, sessionID string, snap conversation.Snapshot)
}

// Presenter is the display side of a conversation.
type Presenter interface {
	// CollectUserText returns the next candidate question, trimmed. An empty
	// string means nothing was submitted. io.EOF ends the conversation.
	CollectUserText() (string, error)
	// Render displays the full transcript.
	Render(snap conversation.Snapshot)
}

// Outcome describes one finished turn.
type Outcome struct {
	Reply     string                `json:"reply"`
	Failed    bool                  `json:"failed"`
	FirstTurn bool                  `json:"first_turn"`
	Snapshot  conversation.Snapshot `json:"-"`
}

type noopNotifier struct{}

func (noopNotifier) TranscriptUpdated(string, string, conversation.Snapshot) {}
