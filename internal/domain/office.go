package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Office is a teacher's virtual office hours room. Creation and
// join-code handling live outside this service; chat only reads them.
type Office struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Resource is an uploaded course material with its extracted text.
// The extracted text feeds the tutoring system prompt.
type Resource struct {
	ID            uuid.UUID `json:"id"`
	OfficeID      uuid.UUID `json:"office_id"`
	FileName      string    `json:"file_name"`
	ExtractedText string    `json:"extracted_text"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// OfficeRepository defines read access to offices
type OfficeRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*Office, error)
	IsMember(ctx context.Context, officeID, userID uuid.UUID) (bool, error)
}

// ResourceRepository defines read access to office resources
type ResourceRepository interface {
	// CombinedText returns the extracted text of every resource in an
	// office, joined oldest first, for use as tutoring context.
	CombinedText(ctx context.Context, officeID uuid.UUID) (string, error)
}
