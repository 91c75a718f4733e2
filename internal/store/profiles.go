// ABOUTME: Persona profile store methods
// ABOUTME: One profile per operator, upserted in place

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetProfile retrieves an operator's profile.
func (s *SQLiteStore) GetProfile(ctx context.Context, operatorID string) (*Profile, error) {
	var p Profile
	var avatarURL, personaNotes sql.NullString
	var updatedAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT operator_id, display_name, bio, avatar_url, persona_notes, updated_at
		FROM profiles
		WHERE operator_id = ?`, operatorID).
		Scan(&p.OperatorID, &p.DisplayName, &p.Bio, &avatarURL, &personaNotes, &updatedAtStr)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	p.AvatarURL = strPtr(avatarURL)
	p.PersonaNotes = strPtr(personaNotes)
	p.UpdatedAt, err = parseTime(updatedAtStr)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile creates or replaces an operator's profile.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (operator_id, display_name, bio, avatar_url, persona_notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(operator_id) DO UPDATE SET
			display_name = excluded.display_name,
			bio = excluded.bio,
			avatar_url = excluded.avatar_url,
			persona_notes = excluded.persona_notes,
			updated_at = excluded.updated_at`,
		p.OperatorID, p.DisplayName, p.Bio, nullStr(p.AvatarURL), nullStr(p.PersonaNotes), fmtTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}

	s.logger.Debug("upserted profile", "operator_id", p.OperatorID)
	return nil
}
