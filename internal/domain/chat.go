package domain

import "github.com/google/uuid"

// StartChatRequest opens (or resumes) a session for an office
type StartChatRequest struct {
	OfficeID uuid.UUID `json:"office_id" validate:"required"`
}

// ChatRequest starts one turn: a user message, optionally with a
// data-URL-encoded camera frame, streamed back as text/audio events.
type ChatRequest struct {
	SessionID  uuid.UUID `json:"session_id" validate:"required"`
	Message    string    `json:"message" validate:"required,max=4000"`
	VideoFrame string    `json:"video_frame,omitempty"`
	UseAvatar  bool      `json:"use_avatar,omitempty"`
}

// AvatarStatus reports whether a message's avatar video is ready
type AvatarStatus struct {
	VideoReady bool    `json:"video_ready"`
	VideoURL   *string `json:"video_url"`
	Status     string  `json:"status"` // "done" or "generating"
}
