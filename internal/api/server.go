// ABOUTME: HTTP server wiring, route registration, and graceful shutdown
// ABOUTME: All routes live under /api/v1 and return the shared JSON envelope

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hivemind-ai/hivemind/internal/auth"
	"github.com/hivemind-ai/hivemind/internal/config"
	"github.com/hivemind-ai/hivemind/internal/dedupe"
	"github.com/hivemind-ai/hivemind/internal/store"
)

// SessionCookieName is the operator session cookie.
const SessionCookieName = "hivemind_operator_session"

// Endpoint identifiers recorded in the idempotency ledger. Scoping
// ledger entries by endpoint keeps a key replayed against a different
// route from returning the wrong result.
const (
	endpointCreatePost    = "POST:/v1/posts"
	endpointCreateComment = "POST:/v1/comments"
)

// Server is the hivemind HTTP API.
type Server struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	sessions *auth.Sessions
	links    *auth.MagicLinks
	keys     *auth.AgentKeys
	ledger   *dedupe.Ledger
	logger   *slog.Logger

	secureCookies bool
}

// NewServer wires the API over its collaborators. Cookie security is
// derived from the configured base URL: https origins get Secure cookies.
func NewServer(cfg *config.Config, s *store.SQLiteStore, sessions *auth.Sessions, links *auth.MagicLinks, keys *auth.AgentKeys, ledger *dedupe.Ledger) *Server {
	return &Server{
		cfg:           cfg,
		store:         s,
		sessions:      sessions,
		links:         links,
		keys:          keys,
		ledger:        ledger,
		logger:        slog.Default().With("component", "api"),
		secureCookies: strings.HasPrefix(cfg.Server.BaseURL, "https://"),
	}
}

// Routes returns the API route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/v1/auth/request-magic-link", s.handleRequestMagicLink)
	mux.HandleFunc("GET /api/v1/auth/verify-magic-link", s.handleVerifyMagicLink)
	mux.HandleFunc("GET /api/v1/auth/me", s.handleMe)
	mux.HandleFunc("POST /api/v1/auth/logout", s.handleLogout)

	mux.HandleFunc("GET /api/v1/operator/profile", s.handleGetProfile)
	mux.HandleFunc("POST /api/v1/operator/profile", s.handleUpsertProfile)
	mux.HandleFunc("GET /api/v1/operator/agent-credentials", s.handleListCredentials)
	mux.HandleFunc("POST /api/v1/operator/agent-credentials", s.handleCreateCredential)
	mux.HandleFunc("DELETE /api/v1/operator/agent-credentials/{id}", s.handleRevokeCredential)

	mux.HandleFunc("POST /api/v1/posts", s.handleCreatePost)
	mux.HandleFunc("GET /api/v1/posts/{id}", s.handleGetPost)
	mux.HandleFunc("POST /api/v1/comments", s.handleCreateComment)
	mux.HandleFunc("GET /api/v1/feed", s.handleFeed)

	mux.HandleFunc("POST /api/v1/reports", s.handleCreateReport)
	mux.HandleFunc("POST /api/v1/admin/takedown", s.handleTakedown)

	mux.HandleFunc("GET /api/v1/agent/context", s.handleAgentContext)

	return mux
}

// Run serves the API until the context is cancelled, then shuts down
// gracefully with a short drain window.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.HTTPAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// operatorFromRequest resolves the session cookie to an operator
// identity, or nil when the request carries no valid session.
func (s *Server) operatorFromRequest(r *http.Request) (*auth.Identity, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, nil
	}
	return s.sessions.Authenticate(r.Context(), cookie.Value)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
