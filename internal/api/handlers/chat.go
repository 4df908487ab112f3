// HTTP handler for the public widget chat endpoint.
// POST /widget/chat runs one conversational turn. No JWT: the widget key
// in the body identifies the tenant.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/clariohq/clario/internal/domain/chat"
	"github.com/clariohq/clario/internal/domain/widget"
)

// ChatHandler handles widget chat HTTP requests.
type ChatHandler struct {
	orchestrator *chat.Orchestrator
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(orch *chat.Orchestrator) *ChatHandler {
	return &ChatHandler{orchestrator: orch}
}

// chatRequest is the JSON request body for POST /widget/chat.
type chatRequest struct {
	WidgetKey      string `json:"widgetKey"`
	Message        string `json:"message"`
	VisitorID      string `json:"visitorId"`
	ConversationID string `json:"conversationId,omitempty"`
}

// chatResponse is the JSON response body for a completed turn.
type chatResponse struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp"`
}

// HandleChat handles POST /widget/chat.
//
// Response codes:
//   - 200 OK: turn completed
//   - 400 Bad Request: invalid JSON or missing required fields
//   - 404 Not Found: unknown widget key, or conversation not owned by the widget
//   - 429 Too Many Requests: conversation message budget exhausted
//   - 502 Bad Gateway: LLM generation failed (the visitor message is already stored)
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}

	out, err := h.orchestrator.HandleTurn(r.Context(), chat.TurnInput{
		WidgetKey:      req.WidgetKey,
		Message:        req.Message,
		VisitorID:      req.VisitorID,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		writeTurnError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: out.ConversationID,
		Message:        out.Message,
		Timestamp:      out.Timestamp.UTC().Format(time.RFC3339),
	})
}

// writeTurnError maps orchestrator errors to HTTP codes.
func writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, widget.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown widget key")
	case errors.Is(err, chat.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, chat.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "message limit reached, please try again later")
	case errors.Is(err, chat.ErrGeneration):
		writeError(w, http.StatusBadGateway, "response generation failed")
	default:
		writeError(w, http.StatusInternalServerError, "chat turn failed")
	}
}
