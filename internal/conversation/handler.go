// ABOUTME: HTTP handler for the conversation transfer endpoint
// ABOUTME: Maps service errors onto the 400/401/405/500 wire contract

package conversation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler serves the conversation HTTP surface
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates the conversation handler. Pass nil logger for default.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		logger:  logger.With("component", "conversation_http"),
	}
}

// Routes mounts the conversation endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/conversations/transfer", h.handleTransfer)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})
}

// transferBody is the POST wire format
type transferBody struct {
	ConversationID string `json:"conversationId"`
	ToAgentID      string `json:"toAgentId,omitempty"`
	ToQueueID      string `json:"toQueueId,omitempty"`
	Note           string `json:"note,omitempty"`
	TenantID       string `json:"tenantId,omitempty"`
}

// transferResponse is the success wire format
type transferResponse struct {
	OK             bool           `json:"ok"`
	ConversationID string         `json:"conversationId"`
	TransferredTo  transferTarget `json:"transferredTo"`
	Note           string         `json:"note,omitempty"`
	TenantID       string         `json:"tenantId,omitempty"`
	Actor          string         `json:"actor,omitempty"`
}

type transferTarget struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var body transferBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", err.Error())
		return
	}

	record, err := h.service.Transfer(r.Context(), &TransferRequest{
		ConversationID: body.ConversationID,
		ToAgentID:      body.ToAgentID,
		ToQueueID:      body.ToQueueID,
		Note:           body.Note,
		TenantID:       body.TenantID,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transferResponse{
		OK:             true,
		ConversationID: record.ConversationID,
		TransferredTo:  transferTarget{Type: record.ToTarget.Type, ID: record.ToTarget.ID},
		Note:           record.Note,
		TenantID:       record.TenantID,
		Actor:          record.Actor,
	})
}

// writeServiceError maps service errors onto the HTTP taxonomy. Unexpected
// failures are logged with full detail and returned as an opaque message.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid transfer request", err.Error())
	case errors.Is(err, ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "not authenticated", "")
	default:
		h.logger.Error("transfer failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "internal error",
			"message": "transfer could not be completed",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	body := map[string]string{"error": msg}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}
