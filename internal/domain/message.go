package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Message senders
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// ChatMessage is one utterance in a session. An "ai" message is created
// with empty text (placeholder) and updated exactly once when generation
// completes or is aborted. VideoURL is set at most once, asynchronously.
type ChatMessage struct {
	ID        uuid.UUID `json:"message_id"`
	SessionID uuid.UUID `json:"-"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	VideoURL  *string   `json:"video_url,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

// HistoryEntry is a role/content pair reconstructed from ChatMessage
// rows, in the shape the language model expects.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageRepository defines the interface for message storage
type MessageRepository interface {
	Create(ctx context.Context, message *ChatMessage) error
	Get(ctx context.Context, id uuid.UUID) (*ChatMessage, error)
	// UpdateContent sets the text of a placeholder message. Returns
	// ErrNotFound if the row does not exist.
	UpdateContent(ctx context.Context, id uuid.UUID, content string) error
	// SetVideoURL stores the avatar video URL for a finalized message.
	SetVideoURL(ctx context.Context, id uuid.UUID, videoURL string) error
	// ListBySession returns up to limit most recent messages in
	// chronological order (oldest first).
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]ChatMessage, error)
}
