// Package session keeps one isolated conversation per browser session.
package session

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/realestate-assistant/internal/conversation"
)

// Session is the explicit per-browser state handed to the chat service.
type Session struct {
	VisitorID string
	SessionID string
	CreatedAt time.Time

	Conversation *conversation.Store

	turnMu     sync.Mutex
	inTurn     atomic.Bool
	mu         sync.Mutex
	lastActive time.Time
}

// New creates a session with an initialized conversation.
func New(visitorID, sessionID string) *Session {
	now := time.Now()
	return &Session{
		VisitorID:    visitorID,
		SessionID:    sessionID,
		CreatedAt:    now,
		Conversation: conversation.NewStore(),
		lastActive:   now,
	}
}

// Key returns the registry key for this session.
func (s *Session) Key() string {
	return Key(s.VisitorID, s.SessionID)
}

// TryBeginTurn claims the session for one turn. It returns false when a turn
// is already running.
func (s *Session) TryBeginTurn() bool {
	if !s.turnMu.TryLock() {
		return false
	}
	s.inTurn.Store(true)
	return true
}

// EndTurn releases the claim taken by TryBeginTurn.
func (s *Session) EndTurn() {
	s.inTurn.Store(false)
	s.turnMu.Unlock()
}

// InTurn reports whether a turn currently holds the session.
func (s *Session) InTurn() bool {
	return s.inTurn.Load()
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

// LastActive returns the time of the most recent activity.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Key joins a visitor and tab session into a registry key.
func Key(visitorID, sessionID string) string {
	return visitorID + ":" + sessionID
}

// Registry maps visitors and their tab sessions to live sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Session
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session for visitor/session, or nil.
func (r *Registry) Get(visitorID, sessionID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sessions, ok := r.sessions[visitorID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// GetOrCreate returns the existing session or starts a new one, and marks it active.
func (r *Registry) GetOrCreate(visitorID, sessionID string) *Session {
	if s := r.Get(visitorID, sessionID); s != nil {
		s.Touch(r.now())
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[visitorID]; !exists {
		r.sessions[visitorID] = make(map[string]*Session)
	}
	if s, exists := r.sessions[visitorID][sessionID]; exists {
		s.Touch(r.now())
		return s
	}

	s := New(visitorID, sessionID)
	s.Touch(r.now())
	r.sessions[visitorID][sessionID] = s
	slog.Info("Conversation session started", "user_id", visitorID, "session_id", sessionID)
	return s
}

// Drop discards a single session.
func (r *Registry) Drop(visitorID, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.sessions[visitorID]
	if !ok {
		return false
	}
	if _, exists := sessions[sessionID]; !exists {
		return false
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(r.sessions, visitorID)
	}
	slog.Info("Conversation session discarded", "user_id", visitorID, "session_id", sessionID)
	return true
}

// DropVisitor discards every session belonging to a visitor and returns how many were removed.
func (r *Registry) DropVisitor(visitorID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.sessions[visitorID]
	if !ok {
		return 0
	}
	delete(r.sessions, visitorID)
	slog.Info("Visitor sessions discarded", "user_id", visitorID, "count", len(sessions))
	return len(sessions)
}

// Idle returns sessions whose last activity is older than ttl.
func (r *Registry) Idle(ttl time.Duration) []*Session {
	cutoff := r.now().Add(-ttl)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var idle []*Session
	for _, sessions := range r.sessions {
		for _, s := range sessions {
			if s.LastActive().Before(cutoff) {
				idle = append(idle, s)
			}
		}
	}
	return idle
}

// ActiveSince reports whether any session of the visitor was active at or
// after cutoff, or is in the middle of a turn.
func (r *Registry) ActiveSince(visitorID string, cutoff time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions[visitorID] {
		if s.InTurn() || !s.LastActive().Before(cutoff) {
			return true
		}
	}
	return false
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, sessions := range r.sessions {
		n += len(sessions)
	}
	return n
}
