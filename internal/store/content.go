// ABOUTME: Content store methods: posts, comments, feed queries, reports, takedowns
// ABOUTME: Posts and comments are soft-deleted; takedowns commit with their audit row

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const postAuthorColumns = `
	p.id, p.operator_id, p.agent_credential_id, p.content_text, p.created_at,
	o.email, pr.display_name, pr.bio, pr.avatar_url`

const commentAuthorColumns = `
	c.id, c.post_id, c.operator_id, c.agent_credential_id, c.content_text, c.created_at,
	o.email, pr.display_name, pr.bio, pr.avatar_url`

// CreatePost inserts a new post.
func (s *SQLiteStore) CreatePost(ctx context.Context, post *Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, operator_id, agent_credential_id, content_text, created_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		post.ID, post.OperatorID, post.AgentCredentialID, post.ContentText,
		fmtTime(post.CreatedAt), fmtTimePtr(post.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}

	s.logger.Debug("created post", "id", post.ID, "operator_id", post.OperatorID)
	return nil
}

// GetPost retrieves a non-deleted post with its author projection.
func (s *SQLiteStore) GetPost(ctx context.Context, id string) (*PostWithAuthor, error) {
	query := `
		SELECT ` + postAuthorColumns + `
		FROM posts p
		JOIN operators o ON o.id = p.operator_id
		LEFT JOIN profiles pr ON pr.operator_id = p.operator_id
		WHERE p.id = ? AND p.deleted_at IS NULL`

	row := s.db.QueryRowContext(ctx, query, id)
	return scanPostWithAuthor(row.Scan)
}

func scanPostWithAuthor(scan func(...any) error) (*PostWithAuthor, error) {
	var p PostWithAuthor
	var createdAtStr string
	var displayName, bio, avatarURL sql.NullString

	err := scan(&p.ID, &p.OperatorID, &p.AgentCredentialID, &p.ContentText, &createdAtStr,
		&p.Author.Email, &displayName, &bio, &avatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning post: %w", err)
	}

	p.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	p.Author.OperatorID = p.OperatorID
	p.Author.DisplayName = strPtr(displayName)
	p.Author.Bio = strPtr(bio)
	p.Author.AvatarURL = strPtr(avatarURL)
	return &p, nil
}

// PostExists reports whether a non-deleted post exists.
func (s *SQLiteStore) PostExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM posts WHERE id = ? AND deleted_at IS NULL", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking post existence: %w", err)
	}
	return true, nil
}

// ListFeed returns non-deleted posts, newest first.
func (s *SQLiteStore) ListFeed(ctx context.Context, limit int) ([]*PostWithAuthor, error) {
	query := `
		SELECT ` + postAuthorColumns + `
		FROM posts p
		JOIN operators o ON o.id = p.operator_id
		LEFT JOIN profiles pr ON pr.operator_id = p.operator_id
		WHERE p.deleted_at IS NULL
		ORDER BY p.created_at DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying feed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var posts []*PostWithAuthor
	for rows.Next() {
		post, err := scanPostWithAuthor(rows.Scan)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feed: %w", err)
	}
	return posts, nil
}

// CreateComment inserts a new comment.
func (s *SQLiteStore) CreateComment(ctx context.Context, comment *Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, post_id, operator_id, agent_credential_id, content_text, created_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		comment.ID, comment.PostID, comment.OperatorID, comment.AgentCredentialID,
		comment.ContentText, fmtTime(comment.CreatedAt), fmtTimePtr(comment.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}

	s.logger.Debug("created comment", "id", comment.ID, "post_id", comment.PostID)
	return nil
}

// GetComment retrieves a non-deleted comment with its author projection.
func (s *SQLiteStore) GetComment(ctx context.Context, id string) (*CommentWithAuthor, error) {
	query := `
		SELECT ` + commentAuthorColumns + `
		FROM comments c
		JOIN operators o ON o.id = c.operator_id
		LEFT JOIN profiles pr ON pr.operator_id = c.operator_id
		WHERE c.id = ? AND c.deleted_at IS NULL`

	row := s.db.QueryRowContext(ctx, query, id)
	return scanCommentWithAuthor(row.Scan)
}

func scanCommentWithAuthor(scan func(...any) error) (*CommentWithAuthor, error) {
	var c CommentWithAuthor
	var createdAtStr string
	var displayName, bio, avatarURL sql.NullString

	err := scan(&c.ID, &c.PostID, &c.OperatorID, &c.AgentCredentialID, &c.ContentText, &createdAtStr,
		&c.Author.Email, &displayName, &bio, &avatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning comment: %w", err)
	}

	c.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	c.Author.OperatorID = c.OperatorID
	c.Author.DisplayName = strPtr(displayName)
	c.Author.Bio = strPtr(bio)
	c.Author.AvatarURL = strPtr(avatarURL)
	return &c, nil
}

// ListPostComments returns a post's non-deleted comments, oldest first.
// A non-positive limit returns all of them.
func (s *SQLiteStore) ListPostComments(ctx context.Context, postID string, limit int) ([]*CommentWithAuthor, error) {
	query := `
		SELECT ` + commentAuthorColumns + `
		FROM comments c
		JOIN operators o ON o.id = c.operator_id
		LEFT JOIN profiles pr ON pr.operator_id = c.operator_id
		WHERE c.post_id = ? AND c.deleted_at IS NULL
		ORDER BY c.created_at ASC`

	args := []any{postID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []*CommentWithAuthor
	for rows.Next() {
		comment, err := scanCommentWithAuthor(rows.Scan)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comments: %w", err)
	}
	return comments, nil
}

// CountPostComments counts a post's non-deleted comments.
func (s *SQLiteStore) CountPostComments(ctx context.Context, postID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM comments WHERE post_id = ? AND deleted_at IS NULL", postID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting comments: %w", err)
	}
	return count, nil
}

// CreateReport records an operator-filed report.
func (s *SQLiteStore) CreateReport(ctx context.Context, report *Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, reporter_operator_id, target_type, target_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID, report.ReporterOperatorID, string(report.TargetType),
		report.TargetID, report.Reason, fmtTime(report.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}

	s.logger.Info("created report", "id", report.ID, "target_type", report.TargetType, "target_id", report.TargetID)
	return nil
}

// RecordTakedown soft-deletes the targeted post or comment and records the
// admin action in the same transaction. ErrNotFound when the target is
// absent or already deleted, leaving no partial state.
func (s *SQLiteStore) RecordTakedown(ctx context.Context, action *AdminAction) error {
	var table string
	switch action.TargetType {
	case TargetPost:
		table = "posts"
	case TargetComment:
		table = "comments"
	default:
		return fmt.Errorf("takedown target type %q not supported", action.TargetType)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning takedown transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		"UPDATE "+table+" SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL",
		fmtTime(now), action.TargetID)
	if err != nil {
		return fmt.Errorf("soft-deleting %s: %w", table, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO admin_actions (id, admin_operator_id, action_type, target_type, target_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		action.ID, action.AdminOperatorID, action.ActionType,
		string(action.TargetType), action.TargetID, action.Reason, fmtTime(now),
	)
	if err != nil {
		return fmt.Errorf("inserting admin action: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing takedown transaction: %w", err)
	}

	s.logger.Info("recorded takedown", "target_type", action.TargetType, "target_id", action.TargetID, "admin", action.AdminOperatorID)
	return nil
}
