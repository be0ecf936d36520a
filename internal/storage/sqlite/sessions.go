package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/pocketledger/internal/models"
	"github.com/mmynk/pocketledger/internal/storage"
)

// CreateSession persists a new session to the database.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session.CreatedAt == 0 {
		session.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, revoked, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.ExpiresAt, session.Revoked, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session := &models.Session{}

	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, revoked, created_at FROM sessions WHERE id = ?`,
		sessionID,
	).Scan(&session.ID, &session.UserID, &session.ExpiresAt, &session.Revoked, &session.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// RevokeSession marks a session as signed out.
func (s *SQLiteStore) RevokeSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE sessions SET revoked = 1 WHERE id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check revoked session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, storage.ErrNotFound)
	}

	return nil
}
