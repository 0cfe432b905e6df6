package notify

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ashureev/realestate-assistant/internal/identity"
	"github.com/ashureev/realestate-assistant/internal/session"
	"github.com/coder/websocket"
)

// DefaultKeepAliveInterval is how often an open subscription marks its
// session and visitor as active.
const DefaultKeepAliveInterval = time.Minute

// LastSeenRecorder records visitor activity.
type LastSeenRecorder interface {
	UpdateLastSeen(ctx context.Context, visitorID string, lastSeen time.Time) error
}

// Handler upgrades /ws/transcript requests and keeps the subscription open
// until the browser goes away.
type Handler struct {
	hub           *Hub
	sessions      *session.Registry
	seen          LastSeenRecorder
	allowedOrigin string
	isDev         bool
	keepAlive     time.Duration
}

// NewHandler creates a WebSocket handler. seen may be nil.
func NewHandler(hub *Hub, sessions *session.Registry, seen LastSeenRecorder, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		hub:           hub,
		sessions:      sessions,
		seen:          seen,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		keepAlive:     DefaultKeepAliveInterval,
	}
}

// markActive touches the session and refreshes the visitor record so an open
// tab is never swept.
func (h *Handler) markActive(ctx context.Context, sess *session.Session) {
	now := time.Now()
	sess.Touch(now)
	if h.seen == nil {
		return
	}
	if err := h.seen.UpdateLastSeen(ctx, sess.VisitorID, now); err != nil {
		slog.Warn("Failed to update visitor last_seen", "error", err, "user_id", sess.VisitorID)
	}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if visitorID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", visitorID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "subscription ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", visitorID)
		}
	}()

	h.hub.Register(visitorID, sessionID, ws)
	defer h.hub.Unregister(visitorID, sessionID, ws)

	// Browsers only listen; CloseRead discards inbound frames and cancels
	// ctx once the peer closes.
	ctx := ws.CloseRead(r.Context())

	sess := h.sessions.GetOrCreate(visitorID, sessionID)
	sess.Conversation.Initialize()
	h.markActive(ctx, sess)
	if err := writeEvent(ctx, ws, NewTranscriptEvent(sess.Conversation.Snapshot())); err != nil {
		slog.Debug("Failed to send initial transcript", "error", err, "user_id", visitorID)
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Transcript subscriber disconnected", "user_id", visitorID, "session_id", sessionID)
			return
		case <-ticker.C:
			h.markActive(ctx, sess)
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.isDev || h.allowedOrigin == "" {
		return true
	}
	want, err := url.Parse(h.allowedOrigin)
	if err != nil {
		return false
	}
	got, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return got.Scheme == want.Scheme && got.Host == want.Host
}
