// ABOUTME: Agent credential lifecycle: creation, bearer authentication, revocation
// ABOUTME: Scope failures are distinguishable; every other rejection looks identical

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

// ErrScopeMissing is returned when a credential authenticates fine but
// lacks the scope the operation requires. Unlike every other rejection
// this one is allowed to be distinguishable: the caller has already
// proven possession of a live key.
var ErrScopeMissing = errors.New("credential lacks required scope")

// AuthenticatedAgent is the result of a successful agent key check.
type AuthenticatedAgent struct {
	OperatorID   string
	CredentialID string
	Scopes       ScopeSet
	Operator     *store.Operator
	Profile      *store.Profile
}

// NewCredential pairs a freshly created credential with its plaintext
// key. The plaintext is shown exactly once and cannot be re-derived.
type NewCredential struct {
	Credential *store.AgentCredential
	Plaintext  string
}

// AgentKeys manages scoped API credentials delegated to agents.
type AgentKeys struct {
	store  *store.SQLiteStore
	logger *slog.Logger
}

// NewAgentKeys creates an agent credential manager.
func NewAgentKeys(s *store.SQLiteStore) *AgentKeys {
	return &AgentKeys{
		store:  s,
		logger: slog.Default().With("component", "agentkeys"),
	}
}

// Create mints a labeled credential for the operator. An empty scope
// list grants the full default set. The plaintext key is only present
// in the returned NewCredential.
func (a *AgentKeys) Create(ctx context.Context, operatorID, label string, scopes []Scope) (*NewCredential, error) {
	for _, s := range scopes {
		if !ValidScope(s) {
			return nil, fmt.Errorf("unknown scope %q", s)
		}
	}

	plaintext, err := token.NewAgentKey()
	if err != nil {
		return nil, fmt.Errorf("generating agent key: %w", err)
	}

	cred := &store.AgentCredential{
		ID:         uuid.NewString(),
		OperatorID: operatorID,
		Label:      label,
		KeyHash:    token.Fingerprint(plaintext),
		Scopes:     NormalizeScopes(scopes),
		Status:     store.CredentialActive,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.store.CreateAgentCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("storing agent credential: %w", err)
	}

	a.logger.Info("agent credential created",
		"credential_id", cred.ID,
		"operator_id", operatorID,
		"scopes", cred.Scopes)
	return &NewCredential{Credential: cred, Plaintext: plaintext}, nil
}

// Authenticate resolves an Authorization header to an agent identity and
// enforces the required scope when one is given. Malformed headers,
// unknown keys, revoked credentials, and suspended operators all return
// (nil, nil); ErrScopeMissing is the only distinguishable rejection.
func (a *AgentKeys) Authenticate(ctx context.Context, authorization string, required Scope) (*AuthenticatedAgent, error) {
	plaintext, ok := token.ParseBearer(authorization)
	if !ok {
		return nil, nil
	}

	cred, err := a.store.GetAgentCredentialByKeyHash(ctx, token.Fingerprint(plaintext))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up agent credential: %w", err)
	}
	if cred.Status != store.CredentialActive {
		return nil, nil
	}

	op, profile, err := a.store.GetOperatorWithProfile(ctx, cred.OperatorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up credential operator: %w", err)
	}
	if op.Status != store.OperatorActive {
		return nil, nil
	}

	scopes := ParseScopeSet(cred.Scopes)
	if required != "" && !scopes.Has(required) {
		return nil, ErrScopeMissing
	}

	// Best effort. A failed touch must not fail the request.
	if err := a.store.TouchAgentCredential(ctx, cred.ID); err != nil {
		a.logger.Warn("updating credential last-used failed", "credential_id", cred.ID, "error", err)
	}

	return &AuthenticatedAgent{
		OperatorID:   cred.OperatorID,
		CredentialID: cred.ID,
		Scopes:       scopes,
		Operator:     op,
		Profile:      profile,
	}, nil
}

// List returns the operator's credentials, newest first.
func (a *AgentKeys) List(ctx context.Context, operatorID string) ([]*store.AgentCredential, error) {
	return a.store.ListAgentCredentials(ctx, operatorID)
}

// Revoke permanently disables a credential the operator owns. Revoking
// an already-revoked credential succeeds; a credential owned by someone
// else is reported as missing.
func (a *AgentKeys) Revoke(ctx context.Context, credentialID, operatorID string) error {
	if err := a.store.RevokeAgentCredential(ctx, credentialID, operatorID); err != nil {
		return err
	}
	a.logger.Info("agent credential revoked", "credential_id", credentialID, "operator_id", operatorID)
	return nil
}
