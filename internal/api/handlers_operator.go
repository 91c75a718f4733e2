// ABOUTME: Operator console routes: profile management and agent credentials
// ABOUTME: Plaintext agent keys appear exactly once, in the creation response

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hivemind-ai/hivemind/internal/auth"
	"github.com/hivemind-ai/hivemind/internal/store"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := s.operatorFromRequest(r)
	if err != nil {
		s.internalError(w, "resolving session", err)
		return
	}
	if identity == nil {
		s.writeError(w, http.StatusUnauthorized, "Not authenticated.", nil)
		return
	}

	s.writeData(w, http.StatusOK, map[string]any{"profile": presentProfile(identity.Profile)})
}

func (s *Server) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := s.operatorFromRequest(r)
	if err != nil {
		s.internalError(w, "resolving session", err)
		return
	}
	if identity == nil {
		s.writeError(w, http.StatusUnauthorized, "Not authenticated.", nil)
		return
	}

	var payload profileUpsertPayload
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	if errs := payload.validate(); errs != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "Invalid profile payload.", errs)
		return
	}

	profile := &store.Profile{
		OperatorID:   identity.Operator.ID,
		DisplayName:  payload.DisplayName,
		Bio:          payload.Bio,
		AvatarURL:    payload.AvatarURL,
		PersonaNotes: payload.PersonaNotes,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.store.UpsertProfile(r.Context(), profile); err != nil {
		s.internalError(w, "saving profile", err)
		return
	}

	s.writeData(w, http.StatusOK, map[string]any{"profile": presentProfile(profile)})
}

func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	identity, err := s.operatorFromRequest(r)
	if err != nil {
		s.internalError(w, "resolving session", err)
		return
	}
	if identity == nil {
		s.writeError(w, http.StatusUnauthorized, "Not authenticated.", nil)
		return
	}

	creds, err := s.keys.List(r.Context(), identity.Operator.ID)
	if err != nil {
		s.internalError(w, "listing credentials", err)
		return
	}

	out := make([]credentialJSON, len(creds))
	for i, c := range creds {
		out[i] = presentCredential(c)
	}
	s.writeData(w, http.StatusOK, map[string]any{"credentials": out})
}

func (s *Server) handleCreateCredential(w http.ResponseWriter, r *http.Request) {
	identity, err := s.operatorFromRequest(r)
	if err != nil {
		s.internalError(w, "resolving session", err)
		return
	}
	if identity == nil {
		s.writeError(w, http.StatusUnauthorized, "Not authenticated.", nil)
		return
	}

	var payload credentialCreatePayload
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	if errs := payload.validate(); errs != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "Invalid credential payload.", errs)
		return
	}

	created, err := s.keys.Create(r.Context(), identity.Operator.ID, payload.Label, payload.Scopes)
	if err != nil {
		s.internalError(w, "creating credential", err)
		return
	}

	s.writeData(w, http.StatusCreated, map[string]any{
		"credential":   presentCredential(created.Credential),
		"plaintextKey": created.Plaintext,
		"warning":      "Store this key now; it will never be shown again.",
	})
}

func (s *Server) handleRevokeCredential(w http.ResponseWriter, r *http.Request) {
	identity, err := s.operatorFromRequest(r)
	if err != nil {
		s.internalError(w, "resolving session", err)
		return
	}
	if identity == nil {
		s.writeError(w, http.StatusUnauthorized, "Not authenticated.", nil)
		return
	}

	err = s.keys.Revoke(r.Context(), r.PathValue("id"), identity.Operator.ID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Credential not found.", nil)
		return
	}
	if err != nil {
		s.internalError(w, "revoking credential", err)
		return
	}

	s.writeData(w, http.StatusOK, map[string]any{"revoked": true})
}

// agentFromRequest authenticates the Authorization header, writing the
// appropriate error response when authentication fails. Callers proceed
// only when the returned agent is non-nil.
func (s *Server) agentFromRequest(w http.ResponseWriter, r *http.Request, required auth.Scope) *auth.AuthenticatedAgent {
	agent, err := s.keys.Authenticate(r.Context(), r.Header.Get("Authorization"), required)
	if errors.Is(err, auth.ErrScopeMissing) {
		s.writeError(w, http.StatusForbidden, "Credential lacks the required scope.", nil)
		return nil
	}
	if err != nil {
		s.internalError(w, "authenticating agent", err)
		return nil
	}
	if agent == nil {
		s.writeError(w, http.StatusUnauthorized, "Missing or invalid AI agent credential.", nil)
		return nil
	}
	return agent
}

func (s *Server) handleAgentContext(w http.ResponseWriter, r *http.Request) {
	agent := s.agentFromRequest(w, r, "")
	if agent == nil {
		return
	}

	scopes := agent.Scopes.List()
	names := make([]string, len(scopes))
	for i, scope := range scopes {
		names[i] = string(scope)
	}

	s.writeData(w, http.StatusOK, map[string]any{
		"operatorId":   agent.OperatorID,
		"credentialId": agent.CredentialID,
		"scopes":       names,
		"profile":      presentProfile(agent.Profile),
	})
}
