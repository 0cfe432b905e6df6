// Package notify pushes transcript updates to browsers over WebSocket.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/realestate-assistant/internal/conversation"
	"github.com/ashureev/realestate-assistant/internal/domain"
	"github.com/coder/websocket"
)

const (
	// EventTranscriptUpdated is sent after every completed turn and on connect.
	EventTranscriptUpdated = "transcript.updated"

	writeTimeout = 5 * time.Second
)

// Event is the JSON frame written to subscribers.
type Event struct {
	Type     string           `json:"type"`
	Phase    domain.Phase     `json:"phase"`
	Messages []domain.Message `json:"messages"`
}

// NewTranscriptEvent builds the frame for a snapshot. The system prompt is
// not sent to browsers.
func NewTranscriptEvent(snap conversation.Snapshot) Event {
	return Event{
		Type:     EventTranscriptUpdated,
		Phase:    snap.Phase,
		Messages: snap.History(),
	}
}

// Hub tracks one WebSocket subscriber per visitor and tab session.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// GetActive returns the subscriber for a visitor and session.
func (h *Hub) GetActive(visitorID, sessionID string) *websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if sessions, ok := h.active[visitorID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register adds a subscriber, closing any previous one for the same session.
func (h *Hub) Register(visitorID, sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	if _, exists := h.active[visitorID]; !exists {
		h.active[visitorID] = make(map[string]*websocket.Conn)
	}
	existing := h.active[visitorID][sessionID]
	h.active[visitorID][sessionID] = conn
	h.mu.Unlock()

	if existing != nil && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "subscriber replaced")
	}
	slog.Info("Transcript subscriber registered", "user_id", visitorID, "session_id", sessionID)
}

// Unregister removes conn if it is still the current subscriber.
func (h *Hub) Unregister(visitorID, sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessions, ok := h.active[visitorID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(h.active, visitorID)
			}
			slog.Info("Transcript subscriber unregistered", "user_id", visitorID, "session_id", sessionID)
		}
	}
}

// CloseSession closes the subscriber of one tab session.
func (h *Hub) CloseSession(visitorID, sessionID string) {
	h.mu.Lock()
	var conn *websocket.Conn
	if sessions, ok := h.active[visitorID]; ok {
		conn = sessions[sessionID]
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(h.active, visitorID)
		}
	}
	h.mu.Unlock()

	// The close handshake can block; never hold the hub lock through it.
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "session ended")
		slog.Info("Transcript subscriber closed", "user_id", visitorID, "session_id", sessionID)
	}
}

// CloseVisitor closes every subscriber belonging to a visitor.
func (h *Hub) CloseVisitor(visitorID string) {
	h.mu.Lock()
	sessions := h.active[visitorID]
	delete(h.active, visitorID)
	h.mu.Unlock()

	for sid, conn := range sessions {
		_ = conn.Close(websocket.StatusNormalClosure, "session ended")
		slog.Info("Transcript subscriber closed", "user_id", visitorID, "session_id", sid)
	}
}

// TranscriptUpdated sends the snapshot to the session's subscriber, if any.
func (h *Hub) TranscriptUpdated(visitorID, sessionID string, snap conversation.Snapshot) {
	conn := h.GetActive(visitorID, sessionID)
	if conn == nil {
		return
	}
	if err := writeEvent(context.Background(), conn, NewTranscriptEvent(snap)); err != nil {
		slog.Debug("Failed to push transcript update", "error", err, "user_id", visitorID, "session_id", sessionID)
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
