package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"officehours/backend/internal/domain"
)

// OfficeRepository implements domain.OfficeRepository
type OfficeRepository struct {
	pool *pgxpool.Pool
}

// NewOfficeRepository creates a new office repository
func NewOfficeRepository(pool *pgxpool.Pool) *OfficeRepository {
	return &OfficeRepository{pool: pool}
}

// Get retrieves an office by ID
func (r *OfficeRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Office, error) {
	query := `
		SELECT id, name, owner_id, created_at
		FROM offices
		WHERE id = $1
	`

	var o domain.Office
	err := r.pool.QueryRow(ctx, query, id).Scan(&o.ID, &o.Name, &o.OwnerID, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get office: %w", err)
	}

	return &o, nil
}

// IsMember reports whether a user may chat in an office. The owning
// teacher is always a member.
func (r *OfficeRepository) IsMember(ctx context.Context, officeID, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM offices WHERE id = $1 AND owner_id = $2
			UNION
			SELECT 1 FROM office_members WHERE office_id = $1 AND user_id = $2
		)
	`

	var member bool
	if err := r.pool.QueryRow(ctx, query, officeID, userID).Scan(&member); err != nil {
		return false, fmt.Errorf("failed to check office membership: %w", err)
	}

	return member, nil
}

// ResourceRepository implements domain.ResourceRepository
type ResourceRepository struct {
	pool *pgxpool.Pool
}

// NewResourceRepository creates a new resource repository
func NewResourceRepository(pool *pgxpool.Pool) *ResourceRepository {
	return &ResourceRepository{pool: pool}
}

// CombinedText returns the extracted text of every resource in an
// office, oldest first, joined into one tutoring context block
func (r *ResourceRepository) CombinedText(ctx context.Context, officeID uuid.UUID) (string, error) {
	query := `
		SELECT extracted_text
		FROM office_resources
		WHERE office_id = $1 AND extracted_text <> ''
		ORDER BY uploaded_at ASC
	`

	rows, err := r.pool.Query(ctx, query, officeID)
	if err != nil {
		return "", fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return "", fmt.Errorf("failed to scan resource: %w", err)
		}
		parts = append(parts, text)
	}

	return strings.Join(parts, "\n\n"), nil
}
