package api

import (
	"net/http"

	"github.com/ashureev/realestate-assistant/internal/chat"
)

// GetConfig returns the frontend presentation text.
func (h *ChatHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, chat.DefaultUIConfig())
}
