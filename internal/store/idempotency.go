// ABOUTME: Idempotency record store methods backing the dedupe ledger
// ABOUTME: Records are upserted with a fresh TTL and reaped when expired

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetIdempotencyRecord retrieves an idempotency record by key, expired or not.
// The ledger decides what expiry means.
func (s *SQLiteStore) GetIdempotencyRecord(ctx context.Context, key string) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var expiresAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT key, operator_id, endpoint, result_ref, expires_at
		FROM idempotency_keys
		WHERE key = ?`, key).
		Scan(&rec.Key, &rec.OperatorID, &rec.Endpoint, &rec.ResultRef, &expiresAtStr)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying idempotency record: %w", err)
	}

	rec.ExpiresAt, err = parseTime(expiresAtStr)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertIdempotencyRecord writes a record, replacing any existing row for
// the key and refreshing its expiry.
func (s *SQLiteStore) UpsertIdempotencyRecord(ctx context.Context, rec *IdempotencyRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, operator_id, endpoint, result_ref, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			operator_id = excluded.operator_id,
			endpoint = excluded.endpoint,
			result_ref = excluded.result_ref,
			expires_at = excluded.expires_at`,
		rec.Key, rec.OperatorID, rec.Endpoint, rec.ResultRef, fmtTime(rec.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("upserting idempotency record: %w", err)
	}
	return nil
}

// DeleteIdempotencyRecord removes a record. Missing keys are not an error.
func (s *SQLiteStore) DeleteIdempotencyRecord(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM idempotency_keys WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("deleting idempotency record: %w", err)
	}
	return nil
}
