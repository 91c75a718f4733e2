// ABOUTME: Operator store methods: lookup, counting, and status transitions
// ABOUTME: Operator creation happens only inside the invite claim transaction

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const operatorColumns = "id, email, is_admin, status, invite_code_used, created_at"

// scanOperator scans a single operator row.
func scanOperator(row *sql.Row) (*Operator, error) {
	var op Operator
	var isAdmin int
	var status, createdAtStr string

	err := row.Scan(&op.ID, &op.Email, &isAdmin, &status, &op.InviteCodeUsed, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning operator: %w", err)
	}

	op.IsAdmin = isAdmin != 0
	op.Status = OperatorStatus(status)
	op.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// GetOperator retrieves an operator by ID.
func (s *SQLiteStore) GetOperator(ctx context.Context, id string) (*Operator, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+operatorColumns+" FROM operators WHERE id = ?", id)
	return scanOperator(row)
}

// GetOperatorByEmail retrieves an operator by its (lowercase) email.
func (s *SQLiteStore) GetOperatorByEmail(ctx context.Context, email string) (*Operator, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+operatorColumns+" FROM operators WHERE email = ?", email)
	return scanOperator(row)
}

// GetOperatorWithProfile retrieves an operator and its profile in one query.
// The profile is nil when the operator has not configured one.
func (s *SQLiteStore) GetOperatorWithProfile(ctx context.Context, id string) (*Operator, *Profile, error) {
	query := `
		SELECT o.id, o.email, o.is_admin, o.status, o.invite_code_used, o.created_at,
		       p.display_name, p.bio, p.avatar_url, p.persona_notes, p.updated_at
		FROM operators o
		LEFT JOIN profiles p ON p.operator_id = o.id
		WHERE o.id = ?
	`

	var op Operator
	var isAdmin int
	var status, createdAtStr string
	var displayName, bio, avatarURL, personaNotes, updatedAtStr sql.NullString

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&op.ID, &op.Email, &isAdmin, &status, &op.InviteCodeUsed, &createdAtStr,
		&displayName, &bio, &avatarURL, &personaNotes, &updatedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying operator with profile: %w", err)
	}

	op.IsAdmin = isAdmin != 0
	op.Status = OperatorStatus(status)
	op.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, nil, err
	}

	if !displayName.Valid {
		return &op, nil, nil
	}

	profile := &Profile{
		OperatorID:   op.ID,
		DisplayName:  displayName.String,
		Bio:          bio.String,
		AvatarURL:    strPtr(avatarURL),
		PersonaNotes: strPtr(personaNotes),
	}
	profile.UpdatedAt, err = parseTime(updatedAtStr.String)
	if err != nil {
		return nil, nil, err
	}
	return &op, profile, nil
}

// CountOperators returns the total number of operators ever created.
func (s *SQLiteStore) CountOperators(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM operators").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting operators: %w", err)
	}
	return count, nil
}

// UpdateOperatorStatus flips an operator's status. Suspension invalidates
// sessions and agent keys at authentication time rather than by deletion.
func (s *SQLiteStore) UpdateOperatorStatus(ctx context.Context, id string, status OperatorStatus) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE operators SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("updating operator status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.logger.Info("updated operator status", "id", id, "status", status)
	return nil
}

// insertOperator inserts an operator row inside an existing transaction.
func insertOperator(ctx context.Context, tx *sql.Tx, op *Operator) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO operators (id, email, is_admin, status, invite_code_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		op.ID, op.Email, boolInt(op.IsAdmin), string(op.Status), op.InviteCodeUsed, fmtTime(op.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting operator: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
