package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"officehours/backend/internal/domain"
)

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create inserts a new chat session
func (r *SessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	query := `
		INSERT INTO chat_sessions (id, user_id, office_id, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.OfficeID,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	query := `
		SELECT id, user_id, office_id, created_at
		FROM chat_sessions
		WHERE id = $1
	`

	var s domain.ChatSession
	err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.UserID, &s.OfficeID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &s, nil
}

// GetByUserAndOffice retrieves the most recent session a user has in an office
func (r *SessionRepository) GetByUserAndOffice(ctx context.Context, userID, officeID uuid.UUID) (*domain.ChatSession, error) {
	query := `
		SELECT id, user_id, office_id, created_at
		FROM chat_sessions
		WHERE user_id = $1 AND office_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	var s domain.ChatSession
	err := r.pool.QueryRow(ctx, query, userID, officeID).Scan(&s.ID, &s.UserID, &s.OfficeID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &s, nil
}
