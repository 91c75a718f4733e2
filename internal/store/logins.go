// ABOUTME: Magic-link login token store methods
// ABOUTME: Tokens are single-use; consumption is a conditional one-way update

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateLoginToken persists the fingerprint of a freshly minted magic-link token.
func (s *SQLiteStore) CreateLoginToken(ctx context.Context, tok *LoginToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO login_tokens (id, token_hash, operator_id, expires_at, used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tok.ID, tok.TokenHash, tok.OperatorID,
		fmtTime(tok.ExpiresAt), fmtTimePtr(tok.UsedAt), fmtTime(tok.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting login token: %w", err)
	}

	s.logger.Debug("created login token", "id", tok.ID, "operator_id", tok.OperatorID)
	return nil
}

// GetLoginTokenByHash retrieves a login token by fingerprint regardless of
// its validity; callers collapse used/expired/missing into one outcome.
func (s *SQLiteStore) GetLoginTokenByHash(ctx context.Context, tokenHash string) (*LoginToken, error) {
	var tok LoginToken
	var usedAtStr sql.NullString
	var expiresAtStr, createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, token_hash, operator_id, expires_at, used_at, created_at
		FROM login_tokens
		WHERE token_hash = ?`, tokenHash).
		Scan(&tok.ID, &tok.TokenHash, &tok.OperatorID, &expiresAtStr, &usedAtStr, &createdAtStr)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying login token: %w", err)
	}

	tok.ExpiresAt, err = parseTime(expiresAtStr)
	if err != nil {
		return nil, err
	}
	tok.UsedAt, err = parseTimePtr(usedAtStr)
	if err != nil {
		return nil, err
	}
	tok.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// ConsumeLoginToken atomically marks a login token used. The conditional
// update succeeds only while the token is unused and unexpired, so a
// concurrent second redemption loses with ErrNotFound.
func (s *SQLiteStore) ConsumeLoginToken(ctx context.Context, id string) error {
	now := fmtTime(time.Now())

	result, err := s.db.ExecContext(ctx, `
		UPDATE login_tokens
		SET used_at = ?
		WHERE id = ?
		  AND used_at IS NULL
		  AND expires_at > ?`,
		now, id, now,
	)
	if err != nil {
		return fmt.Errorf("consuming login token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.logger.Debug("consumed login token", "id", id)
	return nil
}

// DeleteExpiredLoginTokens removes stale login tokens.
func (s *SQLiteStore) DeleteExpiredLoginTokens(ctx context.Context) error {
	now := fmtTime(time.Now())
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM login_tokens WHERE expires_at <= ? OR used_at IS NOT NULL", now)
	if err != nil {
		return fmt.Errorf("deleting expired login tokens: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		s.logger.Debug("deleted expired login tokens", "count", rows)
	}
	return nil
}
