// ABOUTME: Operator session lifecycle: minting, cookie authentication, logout
// ABOUTME: Sessions are fixed-expiry bearer secrets stored only as fingerprints

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hivemind-ai/hivemind/internal/store"
	"github.com/hivemind-ai/hivemind/internal/token"
)

// DefaultSessionTTL is how long an operator session lives. Sessions do
// not extend on use; after the TTL the operator logs in again.
const DefaultSessionTTL = 14 * 24 * time.Hour

// Identity is a fully resolved operator session: the operator plus
// their profile, when one exists.
type Identity struct {
	Operator *store.Operator
	Profile  *store.Profile
}

// Sessions manages operator browser sessions.
type Sessions struct {
	store  *store.SQLiteStore
	logger *slog.Logger
	ttl    time.Duration
}

// NewSessions creates a session manager. A zero ttl means DefaultSessionTTL.
func NewSessions(s *store.SQLiteStore, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		store:  s,
		logger: slog.Default().With("component", "sessions"),
		ttl:    ttl,
	}
}

// Create mints a new session for the operator and returns the plaintext
// token and its expiry. The plaintext exists only in the return value.
func (s *Sessions) Create(ctx context.Context, operatorID string) (string, time.Time, error) {
	plaintext, err := token.Generate(token.SessionBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generating session token: %w", err)
	}

	expiresAt := time.Now().UTC().Add(s.ttl)
	session := &store.OperatorSession{
		ID:         uuid.NewString(),
		TokenHash:  token.Fingerprint(plaintext),
		OperatorID: operatorID,
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return "", time.Time{}, fmt.Errorf("storing session: %w", err)
	}

	s.logger.Info("session created", "operator_id", operatorID, "expires_at", expiresAt)
	return plaintext, expiresAt, nil
}

// Authenticate resolves a plaintext session token to an operator identity.
// Unknown, expired, and suspended-operator sessions all return (nil, nil);
// a non-nil error means storage failed, not that the session is bad.
func (s *Sessions) Authenticate(ctx context.Context, plaintext string) (*Identity, error) {
	if plaintext == "" {
		return nil, nil
	}

	session, err := s.store.GetSessionByHash(ctx, token.Fingerprint(plaintext))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	op, profile, err := s.store.GetOperatorWithProfile(ctx, session.OperatorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session operator: %w", err)
	}
	if op.Status != store.OperatorActive {
		return nil, nil
	}

	return &Identity{Operator: op, Profile: profile}, nil
}

// Logout destroys the session behind a plaintext token. Unknown tokens
// are a no-op; logout never tells the caller whether a session existed.
func (s *Sessions) Logout(ctx context.Context, plaintext string) error {
	if plaintext == "" {
		return nil
	}
	if err := s.store.DeleteSessionsByHash(ctx, token.Fingerprint(plaintext)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
