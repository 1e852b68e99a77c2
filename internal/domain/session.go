package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChatSession identifies a (user, office) conversation context. It is
// created on the first exchange and immutable thereafter.
type ChatSession struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	OfficeID  uuid.UUID `json:"office_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRepository defines the interface for session storage
type SessionRepository interface {
	Create(ctx context.Context, session *ChatSession) error
	Get(ctx context.Context, id uuid.UUID) (*ChatSession, error)
	GetByUserAndOffice(ctx context.Context, userID, officeID uuid.UUID) (*ChatSession, error)
}
