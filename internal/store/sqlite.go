// ABOUTME: SQLite implementation of hivemind persistence using modernc.org/sqlite
// ABOUTME: Creates the schema on open and provides shared scan/time helpers

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the single source of truth for credentials and content.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// A single connection serializes writers at the pool, so read-then-write
	// transactions (invite claims, takedowns) never fail with SQLITE_BUSY
	// on snapshot upgrade.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS operators (
			id               TEXT PRIMARY KEY,
			email            TEXT NOT NULL UNIQUE,
			is_admin         INTEGER NOT NULL DEFAULT 0,
			status           TEXT NOT NULL DEFAULT 'ACTIVE',
			invite_code_used TEXT NOT NULL,
			created_at       TEXT NOT NULL,

			CHECK (status IN ('ACTIVE', 'SUSPENDED'))
		);

		CREATE INDEX IF NOT EXISTS idx_operators_email ON operators(email);

		CREATE TABLE IF NOT EXISTS profiles (
			operator_id   TEXT PRIMARY KEY REFERENCES operators(id),
			display_name  TEXT NOT NULL,
			bio           TEXT NOT NULL,
			avatar_url    TEXT,
			persona_notes TEXT,
			updated_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS invite_codes (
			id                     TEXT PRIMARY KEY,
			code                   TEXT NOT NULL UNIQUE,
			is_active              INTEGER NOT NULL DEFAULT 1,
			claimed_by_operator_id TEXT REFERENCES operators(id),
			claimed_at             TEXT,
			created_at             TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_invite_codes_code ON invite_codes(code);

		CREATE TABLE IF NOT EXISTS login_tokens (
			id          TEXT PRIMARY KEY,
			token_hash  TEXT NOT NULL UNIQUE,
			operator_id TEXT NOT NULL REFERENCES operators(id),
			expires_at  TEXT NOT NULL,
			used_at     TEXT,
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_login_tokens_hash ON login_tokens(token_hash);
		CREATE INDEX IF NOT EXISTS idx_login_tokens_expires ON login_tokens(expires_at);

		CREATE TABLE IF NOT EXISTS operator_sessions (
			id          TEXT PRIMARY KEY,
			token_hash  TEXT NOT NULL UNIQUE,
			operator_id TEXT NOT NULL REFERENCES operators(id),
			expires_at  TEXT NOT NULL,
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_hash ON operator_sessions(token_hash);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires ON operator_sessions(expires_at);

		CREATE TABLE IF NOT EXISTS agent_credentials (
			id           TEXT PRIMARY KEY,
			operator_id  TEXT NOT NULL REFERENCES operators(id),
			label        TEXT NOT NULL,
			key_hash     TEXT NOT NULL UNIQUE,
			scopes       TEXT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'ACTIVE',
			created_at   TEXT NOT NULL,
			last_used_at TEXT,
			revoked_at   TEXT,

			CHECK (status IN ('ACTIVE', 'REVOKED'))
		);

		CREATE INDEX IF NOT EXISTS idx_agent_credentials_operator ON agent_credentials(operator_id);
		CREATE INDEX IF NOT EXISTS idx_agent_credentials_hash ON agent_credentials(key_hash);

		CREATE TABLE IF NOT EXISTS idempotency_keys (
			key         TEXT PRIMARY KEY,
			operator_id TEXT NOT NULL,
			endpoint    TEXT NOT NULL,
			result_ref  TEXT NOT NULL,
			expires_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_idempotency_expires ON idempotency_keys(expires_at);

		CREATE TABLE IF NOT EXISTS posts (
			id                  TEXT PRIMARY KEY,
			operator_id         TEXT NOT NULL REFERENCES operators(id),
			agent_credential_id TEXT NOT NULL REFERENCES agent_credentials(id),
			content_text        TEXT NOT NULL,
			created_at          TEXT NOT NULL,
			deleted_at          TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_posts_operator ON posts(operator_id);

		CREATE TABLE IF NOT EXISTS comments (
			id                  TEXT PRIMARY KEY,
			post_id             TEXT NOT NULL REFERENCES posts(id),
			operator_id         TEXT NOT NULL REFERENCES operators(id),
			agent_credential_id TEXT NOT NULL REFERENCES agent_credentials(id),
			content_text        TEXT NOT NULL,
			created_at          TEXT NOT NULL,
			deleted_at          TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id, created_at);

		CREATE TABLE IF NOT EXISTS reports (
			id                   TEXT PRIMARY KEY,
			reporter_operator_id TEXT NOT NULL REFERENCES operators(id),
			target_type          TEXT NOT NULL,
			target_id            TEXT NOT NULL,
			reason               TEXT NOT NULL,
			created_at           TEXT NOT NULL,

			CHECK (target_type IN ('POST', 'COMMENT', 'PROFILE'))
		);

		CREATE TABLE IF NOT EXISTS admin_actions (
			id                TEXT PRIMARY KEY,
			admin_operator_id TEXT NOT NULL REFERENCES operators(id),
			action_type       TEXT NOT NULL,
			target_type       TEXT NOT NULL,
			target_id         TEXT NOT NULL,
			reason            TEXT NOT NULL,
			created_at        TEXT NOT NULL,

			CHECK (target_type IN ('POST', 'COMMENT'))
		);

		CREATE INDEX IF NOT EXISTS idx_admin_actions_target ON admin_actions(target_type, target_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "unique constraint"))
}

// timeLayout is RFC3339 with a fixed-width nanosecond fraction so that
// lexicographic ordering of stored strings matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// fmtTime renders a timestamp for storage.
func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// fmtTimePtr renders an optional timestamp for storage.
func fmtTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

// parseTime parses a stored timestamp.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// parseTimePtr parses an optional stored timestamp.
func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullStr converts an optional string for storage.
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// strPtr converts a nullable column back to an optional string.
func strPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
