// ABOUTME: Agent credential store methods: creation, lookup, revocation, last-used
// ABOUTME: Revocation is irreversible and idempotent; ownership checks collapse to ErrNotFound

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const credentialColumns = "id, operator_id, label, key_hash, scopes, status, created_at, last_used_at, revoked_at"

func scanCredential(scan func(...any) error) (*AgentCredential, error) {
	var cred AgentCredential
	var status, createdAtStr string
	var lastUsedStr, revokedStr sql.NullString

	err := scan(&cred.ID, &cred.OperatorID, &cred.Label, &cred.KeyHash, &cred.Scopes,
		&status, &createdAtStr, &lastUsedStr, &revokedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning agent credential: %w", err)
	}

	cred.Status = CredentialStatus(status)
	cred.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	cred.LastUsedAt, err = parseTimePtr(lastUsedStr)
	if err != nil {
		return nil, err
	}
	cred.RevokedAt, err = parseTimePtr(revokedStr)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// CreateAgentCredential persists a new agent credential. Only the key
// fingerprint is stored; the plaintext never reaches this layer.
func (s *SQLiteStore) CreateAgentCredential(ctx context.Context, cred *AgentCredential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_credentials (id, operator_id, label, key_hash, scopes, status, created_at, last_used_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cred.ID, cred.OperatorID, cred.Label, cred.KeyHash, cred.Scopes,
		string(cred.Status), fmtTime(cred.CreatedAt), fmtTimePtr(cred.LastUsedAt), fmtTimePtr(cred.RevokedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting agent credential: %w", err)
	}

	s.logger.Info("created agent credential", "id", cred.ID, "operator_id", cred.OperatorID, "label", cred.Label)
	return nil
}

// GetAgentCredentialByKeyHash retrieves a credential by key fingerprint.
func (s *SQLiteStore) GetAgentCredentialByKeyHash(ctx context.Context, keyHash string) (*AgentCredential, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+credentialColumns+" FROM agent_credentials WHERE key_hash = ?", keyHash)
	return scanCredential(row.Scan)
}

// GetAgentCredential retrieves a credential by ID.
func (s *SQLiteStore) GetAgentCredential(ctx context.Context, id string) (*AgentCredential, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+credentialColumns+" FROM agent_credentials WHERE id = ?", id)
	return scanCredential(row.Scan)
}

// ListAgentCredentials returns an operator's credentials, newest first.
func (s *SQLiteStore) ListAgentCredentials(ctx context.Context, operatorID string) ([]*AgentCredential, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+credentialColumns+" FROM agent_credentials WHERE operator_id = ? ORDER BY created_at DESC",
		operatorID)
	if err != nil {
		return nil, fmt.Errorf("querying agent credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var creds []*AgentCredential
	for rows.Next() {
		cred, err := scanCredential(rows.Scan)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agent credentials: %w", err)
	}
	return creds, nil
}

// RevokeAgentCredential revokes a credential owned by the requesting
// operator. Revoking an already-revoked credential succeeds silently.
// A credential that doesn't exist, or belongs to someone else, returns
// ErrNotFound so existence never leaks.
func (s *SQLiteStore) RevokeAgentCredential(ctx context.Context, id, requestingOperatorID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE agent_credentials
		SET status = ?, revoked_at = ?
		WHERE id = ? AND operator_id = ? AND status = ?`,
		string(CredentialRevoked), fmtTime(time.Now()), id, requestingOperatorID, string(CredentialActive),
	)
	if err != nil {
		return fmt.Errorf("revoking agent credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows > 0 {
		s.logger.Info("revoked agent credential", "id", id, "operator_id", requestingOperatorID)
		return nil
	}

	// Zero rows: distinguish already-revoked (idempotent success) from
	// absent-or-not-owned (ErrNotFound).
	cred, err := s.GetAgentCredential(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if cred.OperatorID != requestingOperatorID {
		return ErrNotFound
	}
	return nil
}

// TouchAgentCredential records the last time a credential authenticated.
// Failures are the caller's to ignore; this write is best-effort.
func (s *SQLiteStore) TouchAgentCredential(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE agent_credentials SET last_used_at = ? WHERE id = ?", fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("touching agent credential: %w", err)
	}
	return nil
}
