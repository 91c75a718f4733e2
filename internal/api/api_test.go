package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivemind-ai/hivemind/internal/auth"
	"github.com/hivemind-ai/hivemind/internal/config"
	"github.com/hivemind-ai/hivemind/internal/dedupe"
	"github.com/hivemind-ai/hivemind/internal/store"
)

type testEnv struct {
	t       *testing.T
	server  *Server
	handler http.Handler
	store   *store.SQLiteStore
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Server.BaseURL = "http://hivemind.test"
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sessions := auth.NewSessions(st, 0)
	links := auth.NewMagicLinks(st, sessions, cfg.Server.BaseURL, 0)
	keys := auth.NewAgentKeys(st)
	ledger := dedupe.NewLedger(st, 0)

	server := NewServer(cfg, st, sessions, links, keys, ledger)
	return &testEnv{t: t, server: server, handler: server.Routes(), store: st}
}

type reqOpt func(*http.Request)

func withSession(token string) reqOpt {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	}
}

func withBearer(key string) reqOpt {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+key)
	}
}

func withIdempotencyKey(key string) reqOpt {
	return func(r *http.Request) {
		r.Header.Set("Idempotency-Key", key)
	}
}

func (e *testEnv) do(method, path string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data, "expected a data envelope, got: %s", rec.Body.String())
	return envelope.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error, "expected an error envelope, got: %s", rec.Body.String())
	return envelope.Error.Message
}

func (e *testEnv) seedInvite(code string) {
	e.t.Helper()
	require.NoError(e.t, e.store.CreateInviteCode(context.Background(), &store.InviteCode{
		ID:        uuid.NewString(),
		Code:      code,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}))
}

// register runs the whole login flow and returns the session token.
func (e *testEnv) register(email, code string) string {
	e.t.Helper()
	e.seedInvite(code)

	rec := e.do("POST", "/api/v1/auth/request-magic-link", map[string]string{
		"email":      email,
		"inviteCode": code,
	})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	link := decodeData(e.t, rec)["magicLink"].(string)

	u, err := url.Parse(link)
	require.NoError(e.t, err)

	rec = e.do("GET", u.RequestURI(), nil)
	require.Equal(e.t, http.StatusFound, rec.Code)
	require.Equal(e.t, "/dashboard", rec.Result().Header.Get("Location"))

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			return cookie.Value
		}
	}
	e.t.Fatal("no session cookie set")
	return ""
}

func (e *testEnv) configureProfile(session, displayName string) {
	e.t.Helper()
	rec := e.do("POST", "/api/v1/operator/profile", map[string]any{
		"displayName": displayName,
		"bio":         "an operator",
	}, withSession(session))
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
}

func (e *testEnv) createAgentKey(session string, scopes []string) string {
	e.t.Helper()
	body := map[string]any{"label": "test agent"}
	if scopes != nil {
		body["scopes"] = scopes
	}
	rec := e.do("POST", "/api/v1/operator/agent-credentials", body, withSession(session))
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData(e.t, rec)["plaintextKey"].(string)
}

func TestHealth(t *testing.T) {
	e := setupTestEnv(t)
	rec := e.do("GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeData(t, rec)["status"])
}

func TestRequestMagicLink_Validation(t *testing.T) {
	e := setupTestEnv(t)

	rec := e.do("POST", "/api/v1/auth/request-magic-link", map[string]string{
		"email":      "not-an-email",
		"inviteCode": "WELCOME-1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do("POST", "/api/v1/auth/request-magic-link", map[string]string{
		"email":      "alice@example.com",
		"inviteCode": "short",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRequestMagicLink_InviteRejections(t *testing.T) {
	e := setupTestEnv(t)
	e.seedInvite("WELCOME-1")

	rec := e.do("POST", "/api/v1/auth/request-magic-link", map[string]string{
		"email":      "alice@example.com",
		"inviteCode": "NO-SUCH-CODE",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do("POST", "/api/v1/auth/request-magic-link", map[string]string{
		"email":      "alice@example.com",
		"inviteCode": "WELCOME-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Someone else trying the claimed code.
	rec = e.do("POST", "/api/v1/auth/request-magic-link", map[string]string{
		"email":      "bob@example.com",
		"inviteCode": "WELCOME-1",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, decodeError(t, rec), "already been used")
}

func TestVerifyMagicLink_SingleUse(t *testing.T) {
	e := setupTestEnv(t)
	e.seedInvite("WELCOME-1")

	rec := e.do("POST", "/api/v1/auth/request-magic-link", map[string]string{
		"email":      "alice@example.com",
		"inviteCode": "WELCOME-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	link := decodeData(t, rec)["magicLink"].(string)
	u, err := url.Parse(link)
	require.NoError(t, err)

	rec = e.do("GET", u.RequestURI(), nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Result().Header.Get("Location"))

	// The link is dead after first use.
	rec = e.do("GET", u.RequestURI(), nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard?auth=invalid-link", rec.Result().Header.Get("Location"))
}

func TestVerifyMagicLink_MissingToken(t *testing.T) {
	e := setupTestEnv(t)
	rec := e.do("GET", "/api/v1/auth/verify-magic-link", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard?auth=missing-token", rec.Result().Header.Get("Location"))
}

func TestMe(t *testing.T) {
	e := setupTestEnv(t)

	rec := e.do("GET", "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	session := e.register("alice@example.com", "WELCOME-1")
	rec = e.do("GET", "/api/v1/auth/me", nil, withSession(session))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "alice@example.com", data["email"])
	assert.Equal(t, true, data["isAdmin"], "first operator is admin")
	assert.Nil(t, data["profile"])
}

func TestLogout(t *testing.T) {
	e := setupTestEnv(t)
	session := e.register("alice@example.com", "WELCOME-1")

	rec := e.do("POST", "/api/v1/auth/logout", nil, withSession(session))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeData(t, rec)["loggedOut"])

	rec = e.do("GET", "/api/v1/auth/me", nil, withSession(session))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logging out without a session still succeeds.
	rec = e.do("POST", "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfile_UpsertAndGet(t *testing.T) {
	e := setupTestEnv(t)
	session := e.register("alice@example.com", "WELCOME-1")

	rec := e.do("GET", "/api/v1/operator/profile", nil, withSession(session))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeData(t, rec)["profile"])

	rec = e.do("POST", "/api/v1/operator/profile", map[string]any{
		"displayName":  "Alice",
		"bio":          "agent wrangler",
		"avatarUrl":    "https://example.com/alice.png",
		"personaNotes": "be kind",
	}, withSession(session))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do("GET", "/api/v1/operator/profile", nil, withSession(session))
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeData(t, rec)["profile"].(map[string]any)
	assert.Equal(t, "Alice", profile["displayName"])
	assert.Equal(t, "agent wrangler", profile["bio"])
}

func TestProfile_Validation(t *testing.T) {
	e := setupTestEnv(t)
	session := e.register("alice@example.com", "WELCOME-1")

	rec := e.do("POST", "/api/v1/operator/profile", map[string]any{
		"displayName": "",
		"bio":         "bio",
	}, withSession(session))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do("POST", "/api/v1/operator/profile", map[string]any{
		"displayName": "Alice",
		"bio":         "bio",
		"avatarUrl":   "not a url",
	}, withSession(session))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do("POST", "/api/v1/operator/profile", map[string]any{
		"displayName": strings.Repeat("x", 41),
		"bio":         "bio",
	}, withSession(session))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCredentials_Lifecycle(t *testing.T) {
	e := setupTestEnv(t)
	session := e.register("alice@example.com", "WELCOME-1")

	rec := e.do("POST", "/api/v1/operator/agent-credentials", map[string]any{
		"label":  "drafting bot",
		"scopes": []string{"post:create"},
	}, withSession(session))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	plaintext := data["plaintextKey"].(string)
	assert.True(t, strings.HasPrefix(plaintext, "hm_"))

	credential := data["credential"].(map[string]any)
	credentialID := credential["id"].(string)
	assert.Equal(t, "ACTIVE", credential["status"])

	rec = e.do("GET", "/api/v1/operator/agent-credentials", nil, withSession(session))
	require.Equal(t, http.StatusOK, rec.Code)
	creds := decodeData(t, rec)["credentials"].([]any)
	require.Len(t, creds, 1)
	_, hasPlaintext := creds[0].(map[string]any)["plaintextKey"]
	assert.False(t, hasPlaintext, "listing never exposes key material")

	rec = e.do("DELETE", "/api/v1/operator/agent-credentials/"+credentialID, nil, withSession(session))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeData(t, rec)["revoked"])

	// Revoking twice is idempotent.
	rec = e.do("DELETE", "/api/v1/operator/agent-credentials/"+credentialID, nil, withSession(session))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCredentials_RevokeNotOwned(t *testing.T) {
	e := setupTestEnv(t)
	alice := e.register("alice@example.com", "WELCOME-1")
	bob := e.register("bob@example.com", "WELCOME-2")

	rec := e.do("POST", "/api/v1/operator/agent-credentials", map[string]any{
		"label": "alice bot",
	}, withSession(alice))
	require.Equal(t, http.StatusCreated, rec.Code)
	credentialID := decodeData(t, rec)["credential"].(map[string]any)["id"].(string)

	rec = e.do("DELETE", "/api/v1/operator/agent-credentials/"+credentialID, nil, withSession(bob))
	assert.Equal(t, http.StatusNotFound, rec.Code, "foreign credentials look missing")
}

func TestCredentials_RequireSession(t *testing.T) {
	e := setupTestEnv(t)
	session := e.register("alice@example.com", "WELCOME-1")
	key := e.createAgentKey(session, nil)

	// Agent keys are not session credentials.
	rec := e.do("GET", "/api/v1/operator/agent-credentials", nil, withBearer(key))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAgentContext(t *testing.T) {
	e := setupTestEnv(t)
	session := e.register("alice@example.com", "WELCOME-1")
	e.configureProfile(session, "Alice")
	key := e.createAgentKey(session, []string{"post:create"})

	rec := e.do("GET", "/api/v1/agent/context", nil, withBearer(key))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	assert.Equal(t, []any{"post:create"}, data["scopes"].([]any))
	assert.Equal(t, "Alice", data["profile"].(map[string]any)["displayName"])

	rec = e.do("GET", "/api/v1/agent/context", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
