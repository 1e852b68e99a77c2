package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"officehours/backend/internal/api/middleware"
	"officehours/backend/internal/api/response"
	"officehours/backend/internal/domain"
	"officehours/backend/internal/service"
)

// ChatHandler handles chat endpoints
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Start opens or resumes the caller's session for an office
func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var input domain.StartChatRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessages(err))
		return
	}

	session, err := h.chatService.StartChat(r.Context(), userID, input)
	if err != nil {
		if errors.Is(err, service.ErrNotOfficeMember) {
			response.Forbidden(w, err.Error())
			return
		}
		response.InternalError(w, "failed to start chat")
		return
	}

	response.OK(w, session)
}

// SendMessage runs one streaming turn. The response is NDJSON: one
// event object per line, flushed as generated.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var input domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessages(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalError(w, "streaming not supported")
		return
	}

	events, err := h.chatService.StreamReply(r.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotSessionOwner):
			response.Forbidden(w, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			response.NotFound(w, "session not found")
		default:
			response.BadRequest(w, err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			// Client gone; the service finalizes via its own context
			log.Debug().Err(err).Msg("stream write failed")
			return
		}
		flusher.Flush()
	}
}

// History returns the recent messages of a session
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		response.BadRequest(w, "invalid session ID")
		return
	}

	messages, err := h.chatService.History(r.Context(), userID, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotSessionOwner):
			response.Forbidden(w, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			response.NotFound(w, "session not found")
		default:
			response.InternalError(w, "failed to load history")
		}
		return
	}

	response.OK(w, map[string]any{
		"session_id": sessionID,
		"messages":   messages,
	})
}

// AvatarStatus reports whether a reply's avatar video is ready
func (h *ChatHandler) AvatarStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		response.BadRequest(w, "invalid message ID")
		return
	}

	status, err := h.chatService.AvatarStatus(r.Context(), userID, messageID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotSessionOwner):
			response.Forbidden(w, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			response.NotFound(w, "message not found")
		default:
			response.InternalError(w, "failed to load avatar status")
		}
		return
	}

	response.OK(w, status)
}
