package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jdai-labs/marketbot/internal/rag"
)

// maxChatBodyBytes bounds request bodies; chat messages are short.
const maxChatBodyBytes = 64 * 1024

// chatRequest is the POST /api/v1/chat body. SessionID is optional: a blank
// one starts a new conversation and the generated ID comes back in the
// response for the client to reuse.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// chatResponse is the POST /api/v1/chat reply.
type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type chatHandler struct {
	engine Engine
	logger *slog.Logger
}

// send answers one chat message.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	answer, err := h.engine.Answer(r.Context(), sessionID, req.Message)
	if err != nil {
		h.writeAnswerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: answer, SessionID: sessionID})
}

// writeAnswerError maps the engine's error taxonomy to HTTP status codes.
func (h *chatHandler) writeAnswerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rag.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", "message must not be empty", h.logger)
	case errors.Is(err, rag.ErrIndexNotReady):
		writeError(w, http.StatusServiceUnavailable, "index_not_ready", "index build in progress, retry shortly", h.logger)
	case errors.Is(err, rag.ErrEmbedding):
		h.logger.Error("retrieval failed", "error", err, "request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusBadGateway, "retrieval_failed", "failed to retrieve context", h.logger)
	case errors.Is(err, rag.ErrGeneration):
		h.logger.Error("generation failed", "error", err, "request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusBadGateway, "generation_failed", "model failed to generate a response", h.logger)
	default:
		h.logger.Error("chat failed", "error", err, "request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
	}
}

// resetRequest is the POST /api/v1/reset body.
type resetRequest struct {
	SessionID string `json:"session_id"`
}

// reset discards a conversation. Idempotent: unknown sessions still 204.
func (h *chatHandler) reset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id", "session_id is required", h.logger)
		return
	}

	h.engine.Reset(req.SessionID)
	w.WriteHeader(http.StatusNoContent)
}
