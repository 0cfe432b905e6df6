// Package conversation owns the ordered transcript of a single chat session.
package conversation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ashureev/realestate-assistant/internal/domain"
)

// SystemPrompt is the persona instruction placed at the head of every transcript.
const SystemPrompt = "You are an expert Real Estate Assistant. Provide helpful, factual, and clear responses about real estate, property investment, pricing, and market trends."

var (
	// ErrInvalidArgument is returned when Append receives a disallowed role or blank content.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotInitialized is returned when Append is called before Initialize.
	ErrNotInitialized = errors.New("conversation not initialized")
)

// Snapshot is a point-in-time copy of a transcript and its phase.
type Snapshot struct {
	Messages []domain.Message `json:"messages"`
	Phase    domain.Phase     `json:"phase"`
}

// History returns the messages a reader should see: everything after the
// system prompt.
func (s Snapshot) History() []domain.Message {
	if len(s.Messages) == 0 {
		return []domain.Message{}
	}
	out := make([]domain.Message, 0, len(s.Messages)-1)
	for _, m := range s.Messages[1:] {
		if m.Role == domain.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Store holds the transcript and phase for one session. The zero value is
// usable once Initialize has been called. Store is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	transcript []domain.Message
	phase      domain.Phase
}

// NewStore returns an initialized store.
func NewStore() *Store {
	s := &Store{}
	s.Initialize()
	return s
}

// Initialize seeds the transcript with the system prompt. Calling it again
// leaves an existing conversation untouched.
func (s *Store) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transcript == nil {
		s.transcript = []domain.Message{{Role: domain.RoleSystem, Content: SystemPrompt}}
	}
	if s.phase == "" {
		s.phase = domain.PhaseNotStarted
	}
}

// Append adds a user or assistant message to the end of the transcript.
func (s *Store) Append(role domain.Role, content string) error {
	if role != domain.RoleUser && role != domain.RoleAssistant {
		return fmt.Errorf("%w: role %q cannot be appended", ErrInvalidArgument, role)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: %s content is blank", ErrInvalidArgument, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transcript == nil {
		return ErrNotInitialized
	}
	s.transcript = append(s.transcript, domain.Message{Role: role, Content: content})
	return nil
}

// Activate moves the session into the active phase. It is idempotent.
func (s *Store) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = domain.PhaseActive
}

// Phase returns the current phase.
func (s *Store) Phase() domain.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Len returns the number of messages, system prompt included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcript)
}

// Snapshot copies the transcript so callers can read it without holding the lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]domain.Message, len(s.transcript))
	copy(msgs, s.transcript)
	return Snapshot{Messages: msgs, Phase: s.phase}
}
