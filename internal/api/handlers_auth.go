// ABOUTME: Authentication routes: magic-link request and redemption, me, logout
// ABOUTME: Redemption sets the session cookie and redirects into the dashboard

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hivemind-ai/hivemind/internal/auth"
	"github.com/hivemind-ai/hivemind/internal/store"
)

func (s *Server) handleRequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var payload requestMagicLinkPayload
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	if errs := payload.validate(); errs != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "Invalid request payload.", errs)
		return
	}

	grant, err := s.links.RequestLink(r.Context(), payload.Email, payload.InviteCode)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInviteInvalid),
			errors.Is(err, store.ErrInviteAlreadyUsed),
			errors.Is(err, store.ErrInviteMismatch),
			errors.Is(err, store.ErrOperatorSuspended):
			s.writeError(w, http.StatusForbidden, err.Error(), nil)
		default:
			s.internalError(w, "creating magic link", err)
		}
		return
	}

	// Email delivery is stubbed: the link comes back in the response so
	// local operators can copy it into a browser.
	s.writeData(w, http.StatusOK, map[string]any{
		"magicLink": grant.MagicLink,
		"expiresAt": grant.ExpiresAt.Format(time.RFC3339),
		"delivery":  "Magic link email delivery is stubbed; copy this link to sign in.",
	})
}

func (s *Server) handleVerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	rawToken := r.URL.Query().Get("token")
	if rawToken == "" {
		http.Redirect(w, r, "/dashboard?auth=missing-token", http.StatusFound)
		return
	}

	grant, err := s.links.Redeem(r.Context(), rawToken)
	if errors.Is(err, auth.ErrInvalidLink) {
		http.Redirect(w, r, "/dashboard?auth=invalid-link", http.StatusFound)
		return
	}
	if errors.Is(err, store.ErrOperatorSuspended) {
		http.Redirect(w, r, "/dashboard?auth=suspended", http.StatusFound)
		return
	}
	if err != nil {
		s.internalError(w, "redeeming magic link", err)
		return
	}

	s.setSessionCookie(w, grant.SessionToken, grant.ExpiresAt)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, err := s.operatorFromRequest(r)
	if err != nil {
		s.internalError(w, "resolving session", err)
		return
	}
	if identity == nil {
		s.writeError(w, http.StatusUnauthorized, "Not authenticated.", nil)
		return
	}

	s.writeData(w, http.StatusOK, map[string]any{
		"id":      identity.Operator.ID,
		"email":   identity.Operator.Email,
		"isAdmin": identity.Operator.IsAdmin,
		"profile": presentProfile(identity.Profile),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := s.sessions.Logout(r.Context(), cookie.Value); err != nil {
			s.internalError(w, "logging out", err)
			return
		}
	}

	s.clearSessionCookie(w)
	s.writeData(w, http.StatusOK, map[string]any{"loggedOut": true})
}
