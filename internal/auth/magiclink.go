// ABOUTME: Magic-link login: invite claim, single-use link minting, redemption
// ABOUTME: Every login failure after claim collapses into ErrInvalidLink

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hivemind-ai/hivemind/internal/store"
	"github.com/hivemind-ai/hivemind/internal/token"
)

// DefaultLoginTokenTTL is how long a magic link stays redeemable.
const DefaultLoginTokenTTL = 15 * time.Minute

// ErrInvalidLink is returned for every unredeemable magic link: unknown,
// expired, already used, or lost a redemption race. The reasons are
// deliberately indistinguishable so the response leaks nothing about
// which tokens exist. Suspension is the one distinct failure; a valid
// link held by a suspended operator fails as store.ErrOperatorSuspended.
var ErrInvalidLink = errors.New("magic link is invalid or has expired")

// LinkGrant is the result of a successful magic-link request. MagicLink
// is the full clickable URL; in production it goes out by email and is
// never returned to the HTTP caller.
type LinkGrant struct {
	Operator  *store.Operator
	MagicLink string
	ExpiresAt time.Time
}

// SessionGrant is the result of redeeming a magic link: a fresh operator
// session as plaintext, plus the operator it belongs to.
type SessionGrant struct {
	Operator     *store.Operator
	SessionToken string
	ExpiresAt    time.Time
}

// MagicLinks issues and redeems single-use login links.
type MagicLinks struct {
	store    *store.SQLiteStore
	sessions *Sessions
	logger   *slog.Logger
	baseURL  string
	ttl      time.Duration
}

// NewMagicLinks creates a magic-link issuer. baseURL is the externally
// visible origin links are built against. A zero ttl means
// DefaultLoginTokenTTL.
func NewMagicLinks(s *store.SQLiteStore, sessions *Sessions, baseURL string, ttl time.Duration) *MagicLinks {
	if ttl <= 0 {
		ttl = DefaultLoginTokenTTL
	}
	return &MagicLinks{
		store:    s,
		sessions: sessions,
		logger:   slog.Default().With("component", "magiclinks"),
		baseURL:  strings.TrimRight(baseURL, "/"),
		ttl:      ttl,
	}
}

// RequestLink claims the invite for the email (registering the operator
// on first contact, re-authenticating on later ones) and mints a fresh
// single-use login link. Invite errors pass through untouched so callers
// can report why the claim failed; that is the one phase where failure
// detail is allowed, because the caller already holds the invite code.
func (m *MagicLinks) RequestLink(ctx context.Context, email, inviteCode string) (*LinkGrant, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	inviteCode = strings.TrimSpace(inviteCode)

	op, err := m.store.ClaimInvite(ctx, inviteCode, email)
	if err != nil {
		return nil, err
	}

	plaintext, err := token.Generate(token.SessionBytes)
	if err != nil {
		return nil, fmt.Errorf("generating login token: %w", err)
	}

	expiresAt := time.Now().UTC().Add(m.ttl)
	tok := &store.LoginToken{
		ID:         uuid.NewString(),
		TokenHash:  token.Fingerprint(plaintext),
		OperatorID: op.ID,
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.store.CreateLoginToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("storing login token: %w", err)
	}

	m.logger.Info("magic link issued", "operator_id", op.ID, "expires_at", expiresAt)
	return &LinkGrant{
		Operator:  op,
		MagicLink: m.baseURL + "/api/v1/auth/verify-magic-link?token=" + url.QueryEscape(plaintext),
		ExpiresAt: expiresAt,
	}, nil
}

// Redeem exchanges a plaintext login token for an operator session.
// The token is consumed atomically: under concurrent redemption exactly
// one caller gets a session and the rest get ErrInvalidLink.
func (m *MagicLinks) Redeem(ctx context.Context, plaintext string) (*SessionGrant, error) {
	if plaintext == "" {
		return nil, ErrInvalidLink
	}

	tok, err := m.store.GetLoginTokenByHash(ctx, token.Fingerprint(plaintext))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidLink
	}
	if err != nil {
		return nil, fmt.Errorf("looking up login token: %w", err)
	}
	if tok.UsedAt != nil || !time.Now().Before(tok.ExpiresAt) {
		return nil, ErrInvalidLink
	}

	op, err := m.store.GetOperator(ctx, tok.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("looking up operator: %w", err)
	}
	if op.Status != store.OperatorActive {
		return nil, store.ErrOperatorSuspended
	}

	// The conditional consume is the real single-use gate; the checks
	// above only exist to short-circuit obviously dead tokens.
	if err := m.store.ConsumeLoginToken(ctx, tok.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidLink
		}
		return nil, fmt.Errorf("consuming login token: %w", err)
	}

	sessionToken, expiresAt, err := m.sessions.Create(ctx, op.ID)
	if err != nil {
		return nil, err
	}

	m.logger.Info("magic link redeemed", "operator_id", op.ID)
	return &SessionGrant{
		Operator:     op,
		SessionToken: sessionToken,
		ExpiresAt:    expiresAt,
	}, nil
}
