// ABOUTME: Invite code store methods including the atomic claim transaction
// ABOUTME: Claiming an invite and creating its operator commit together or not at all

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateInviteCode creates a new, active invite code.
func (s *SQLiteStore) CreateInviteCode(ctx context.Context, invite *InviteCode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invite_codes (id, code, is_active, claimed_by_operator_id, claimed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		invite.ID, invite.Code, boolInt(invite.IsActive),
		nullStr(invite.ClaimedByOperatorID), fmtTimePtr(invite.ClaimedAt), fmtTime(invite.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateInviteCode
		}
		return fmt.Errorf("inserting invite code: %w", err)
	}

	s.logger.Info("created invite code", "id", invite.ID, "code", invite.Code)
	return nil
}

// GetInviteCode retrieves an invite by its code string.
func (s *SQLiteStore) GetInviteCode(ctx context.Context, code string) (*InviteCode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, is_active, claimed_by_operator_id, claimed_at, created_at
		FROM invite_codes
		WHERE code = ?`, code)
	return scanInvite(row.Scan)
}

func scanInvite(scan func(...any) error) (*InviteCode, error) {
	var inv InviteCode
	var isActive int
	var claimedBy, claimedAtStr sql.NullString
	var createdAtStr string

	err := scan(&inv.ID, &inv.Code, &isActive, &claimedBy, &claimedAtStr, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning invite code: %w", err)
	}

	inv.IsActive = isActive != 0
	inv.ClaimedByOperatorID = strPtr(claimedBy)
	inv.ClaimedAt, err = parseTimePtr(claimedAtStr)
	if err != nil {
		return nil, err
	}
	inv.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ClaimInvite validates an invite code for an email and, for a new email,
// creates the operator and marks the invite claimed in one transaction.
//
// The sequence:
//  1. The invite must exist and be active, else ErrInviteInvalid.
//  2. An existing operator for the email is re-authenticated, not
//     re-registered: it must be ACTIVE (else ErrOperatorSuspended) and its
//     stored invite must equal this code (else ErrInviteMismatch).
//  3. Otherwise the invite must be unclaimed (else ErrInviteAlreadyUsed);
//     a new operator is created and the invite flipped to claimed. The very
//     first operator ever created is granted admin; the count is taken
//     inside the transaction so concurrent first registrations cannot both
//     win the bootstrap.
//
// Claiming never touches is_active: single use is enforced by the
// claimed_by_operator_id guard (and the code must stay readable so its
// owner can keep re-authenticating), while is_active remains a separate
// administrative kill switch.
func (s *SQLiteStore) ClaimInvite(ctx context.Context, code, email string) (*Operator, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, code, is_active, claimed_by_operator_id, claimed_at, created_at
		FROM invite_codes
		WHERE code = ?`, code)
	invite, err := scanInvite(row.Scan)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInviteInvalid
	}
	if err != nil {
		return nil, err
	}
	if !invite.IsActive {
		return nil, ErrInviteInvalid
	}

	var existing Operator
	var isAdmin int
	var status, createdAtStr string
	err = tx.QueryRowContext(ctx,
		"SELECT "+operatorColumns+" FROM operators WHERE email = ?", email).
		Scan(&existing.ID, &existing.Email, &isAdmin, &status, &existing.InviteCodeUsed, &createdAtStr)
	switch {
	case err == nil:
		existing.IsAdmin = isAdmin != 0
		existing.Status = OperatorStatus(status)
		existing.CreatedAt, err = parseTime(createdAtStr)
		if err != nil {
			return nil, err
		}
		if existing.Status != OperatorActive {
			return nil, ErrOperatorSuspended
		}
		if existing.InviteCodeUsed != code {
			return nil, ErrInviteMismatch
		}
		// Re-authentication path: nothing to mutate.
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing claim transaction: %w", err)
		}
		return &existing, nil

	case errors.Is(err, sql.ErrNoRows):
		// New registration, handled below.

	default:
		return nil, fmt.Errorf("querying operator by email: %w", err)
	}

	if invite.ClaimedByOperatorID != nil {
		return nil, ErrInviteAlreadyUsed
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM operators").Scan(&count); err != nil {
		return nil, fmt.Errorf("counting operators: %w", err)
	}

	now := time.Now().UTC()
	op := &Operator{
		ID:             uuid.NewString(),
		Email:          email,
		IsAdmin:        count == 0,
		Status:         OperatorActive,
		InviteCodeUsed: code,
		CreatedAt:      now,
	}
	if err := insertOperator(ctx, tx, op); err != nil {
		return nil, err
	}

	// The claimed_by IS NULL guard makes concurrent claims of the same
	// code lose here with zero rows affected.
	result, err := tx.ExecContext(ctx, `
		UPDATE invite_codes
		SET claimed_by_operator_id = ?, claimed_at = ?
		WHERE id = ? AND claimed_by_operator_id IS NULL`,
		op.ID, fmtTime(now), invite.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming invite code: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return nil, ErrInviteAlreadyUsed
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim transaction: %w", err)
	}

	s.logger.Info("invite claimed", "code", code, "operator_id", op.ID, "admin", op.IsAdmin)
	return op, nil
}
