package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/realestate-assistant/internal/domain"
	"github.com/ashureev/realestate-assistant/internal/session"
)

// Service runs turns against a completion backend.
type Service struct {
	completer Completer
	notifier  Notifier
	logger    *slog.Logger
}

// NewService creates a chat service. notifier may be nil.
func NewService(completer Completer, notifier Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		completer: completer,
		notifier:  notifier,
		logger:    logger,
	}
}

// Ask runs one turn: the question is appended, the transcript is sent for
// completion, and the reply (or error text) is appended as the assistant
// message. The first turn moves the session into the active phase.
func (s *Service) Ask(ctx context.Context, sess *session.Session, text string) (Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return Outcome{}, ErrBlankInput
	}
	if !sess.TryBeginTurn() {
		return Outcome{}, ErrTurnInProgress
	}
	defer sess.EndTurn()

	store := sess.Conversation
	store.Initialize()
	firstTurn := store.Phase() == domain.PhaseNotStarted

	if err := store.Append(domain.RoleUser, text); err != nil {
		return Outcome{}, fmt.Errorf("append question: %w", err)
	}

	// The request runs to completion even if the caller goes away.
	start := time.Now()
	res := s.completer.CompleteResult(context.WithoutCancel(ctx), store.Snapshot().Messages)
	reply := res.Text()

	if err := store.Append(domain.RoleAssistant, reply); err != nil {
		return Outcome{}, fmt.Errorf("append reply: %w", err)
	}
	if firstTurn {
		store.Activate()
	}
	sess.Touch(time.Now())

	snap := store.Snapshot()
	s.notifier.TranscriptUpdated(sess.VisitorID, sess.SessionID, snap)

	s.logger.InfoContext(ctx, "Chat turn completed",
		"user_id", sess.VisitorID,
		"session_id", sess.SessionID,
		"message_length", len(text),
		"reply_length", len(reply),
		"failed", res.Failed(),
		"first_turn", firstTurn,
		"transcript_len", len(snap.Messages),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Outcome{
		Reply:     reply,
		Failed:    res.Failed(),
		FirstTurn: firstTurn,
		Snapshot:  snap,
	}, nil
}

// Run drives a Presenter until it reports io.EOF or ctx is done. Blank
// submissions are ignored without touching the transcript.
func (s *Service) Run(ctx context.Context, sess *session.Session, p Presenter) error {
	sess.Conversation.Initialize()
	p.Render(sess.Conversation.Snapshot())

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		text, err := p.CollectUserText()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("collect user text: %w", err)
		}

		out, err := s.Ask(ctx, sess, text)
		if errors.Is(err, ErrBlankInput) {
			continue
		}
		if err != nil {
			return err
		}
		p.Render(out.Snapshot)
	}
}
