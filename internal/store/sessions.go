// ABOUTME: Operator session store methods
// ABOUTME: Sessions have a fixed lifetime; lookup filters expired rows in SQL

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateSession persists the fingerprint of a new operator session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *OperatorSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operator_sessions (id, token_hash, operator_id, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.TokenHash, session.OperatorID,
		fmtTime(session.ExpiresAt), fmtTime(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "id", session.ID, "operator_id", session.OperatorID)
	return nil
}

// GetSessionByHash retrieves a valid (non-expired) session by fingerprint.
func (s *SQLiteStore) GetSessionByHash(ctx context.Context, tokenHash string) (*OperatorSession, error) {
	var session OperatorSession
	var expiresAtStr, createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, token_hash, operator_id, expires_at, created_at
		FROM operator_sessions
		WHERE token_hash = ? AND expires_at > ?`,
		tokenHash, fmtTime(time.Now())).
		Scan(&session.ID, &session.TokenHash, &session.OperatorID, &expiresAtStr, &createdAtStr)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	session.ExpiresAt, err = parseTime(expiresAtStr)
	if err != nil {
		return nil, err
	}
	session.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSessionsByHash deletes every session matching the fingerprint.
// Deleting zero rows is not an error; logout is idempotent.
func (s *SQLiteStore) DeleteSessionsByHash(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM operator_sessions WHERE token_hash = ?", tokenHash)
	if err != nil {
		return fmt.Errorf("deleting sessions: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all expired sessions.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM operator_sessions WHERE expires_at <= ?", fmtTime(time.Now()))
	if err != nil {
		return fmt.Errorf("deleting expired sessions: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		s.logger.Debug("deleted expired sessions", "count", rows)
	}
	return nil
}
