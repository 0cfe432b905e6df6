package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/realestate-assistant/internal/chat"
	"github.com/ashureev/realestate-assistant/internal/conversation"
	"github.com/ashureev/realestate-assistant/internal/domain"
	"github.com/ashureev/realestate-assistant/internal/identity"
	"github.com/ashureev/realestate-assistant/internal/session"
	"github.com/go-chi/chi/v5"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// TranscriptResponse is the visible state of one browser session.
type TranscriptResponse struct {
	Phase    domain.Phase     `json:"phase"`
	Messages []domain.Message `json:"messages"`
}

// ChatResponse is returned after a completed turn.
type ChatResponse struct {
	Reply  string `json:"reply"`
	Failed bool   `json:"failed"`
	TranscriptResponse
}

// ChatHandler serves the conversation endpoints.
type ChatHandler struct {
	*Handler
	svc         *chat.Service
	limiter     *RateLimiter
	maxBodySize int64
}

// NewChatHandler creates a chat handler. A nil limiter disables throttling.
func NewChatHandler(base *Handler, svc *chat.Service, limiter *RateLimiter, maxBodySize int64) *ChatHandler {
	if maxBodySize <= 0 {
		maxBodySize = 1 << 20
	}
	return &ChatHandler{
		Handler:     base,
		svc:         svc,
		limiter:     limiter,
		maxBodySize: maxBodySize,
	}
}

// RegisterRoutes registers conversation routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/session", h.GetSession)
		r.Post("/chat", h.PostChat)
		r.Get("/config", h.GetConfig)
	})
}

func newTranscriptResponse(snap conversation.Snapshot) TranscriptResponse {
	history := snap.History()
	if history == nil {
		history = []domain.Message{}
	}
	return TranscriptResponse{Phase: snap.Phase, Messages: history}
}

// markActive touches the session and refreshes the visitor record, so a
// reload keeps the conversation alive past the sweeper.
func (h *ChatHandler) markActive(ctx context.Context, sess *session.Session) {
	now := time.Now()
	sess.Touch(now)
	if err := h.repo.UpdateLastSeen(ctx, sess.VisitorID, now); err != nil {
		slog.Warn("Failed to update visitor last_seen", "error", err, "user_id", sess.VisitorID)
	}
}

// GetSession initializes the caller's conversation if needed and returns it.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.UserIDFromContext(r.Context())
	if visitorID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessionID := identity.SessionIDFromContext(r.Context())

	sess := h.sessions.GetOrCreate(visitorID, sessionID)
	sess.Conversation.Initialize()
	h.markActive(r.Context(), sess)

	JSON(w, http.StatusOK, newTranscriptResponse(sess.Conversation.Snapshot()))
}

// PostChat runs one conversation turn for the caller's session.
func (h *ChatHandler) PostChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	visitorID := identity.UserIDFromContext(ctx)
	if visitorID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessionID := identity.SessionIDFromContext(ctx)

	if h.limiter != nil && !h.limiter.Allow(visitorID) {
		slog.Warn("Chat rate limit exceeded",
			"user_id", visitorID,
			"username", identity.UsernameFromContext(ctx),
			"session_id", sessionID,
			"ip", identity.IPFromRequest(r),
		)
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess := h.sessions.GetOrCreate(visitorID, sessionID)
	outcome, err := h.svc.Ask(ctx, sess, req.Message)
	switch {
	case errors.Is(err, chat.ErrBlankInput):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, chat.ErrTurnInProgress):
		Error(w, http.StatusConflict, "turn_in_progress")
		return
	case err != nil:
		slog.Error("Chat turn failed", "error", err, "user_id", visitorID, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	h.markActive(ctx, sess)

	JSON(w, http.StatusOK, ChatResponse{
		Reply:              outcome.Reply,
		Failed:             outcome.Failed,
		TranscriptResponse: newTranscriptResponse(outcome.Snapshot),
	})
}
