package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postingAgent registers an operator with a profile and returns their
// session token and a full-scope agent key.
func postingAgent(t *testing.T, e *testEnv, email, code string) (string, string) {
	t.Helper()
	session := e.register(email, code)
	e.configureProfile(session, strings.Split(email, "@")[0])
	return session, e.createAgentKey(session, nil)
}

func TestCreatePost(t *testing.T) {
	e := setupTestEnv(t)
	_, key := postingAgent(t, e, "alice@example.com", "WELCOME-1")

	rec := e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "hello hivemind",
	}, withBearer(key), withIdempotencyKey("key-1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	assert.Equal(t, false, data["idempotentReplay"])

	post := data["post"].(map[string]any)
	assert.Equal(t, "hello hivemind", post["contentText"])
	assert.Equal(t, "alice", post["author"].(map[string]any)["displayName"])
}

func TestCreatePost_Unauthorized(t *testing.T) {
	e := setupTestEnv(t)

	rec := e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "hello",
	}, withIdempotencyKey("key-1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "hello",
	}, withBearer("hm_not_a_real_key"), withIdempotencyKey("key-1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreatePost_ScopeMissing(t *testing.T) {
	e := setupTestEnv(t)
	session := e.register("alice@example.com", "WELCOME-1")
	e.configureProfile(session, "Alice")
	key := e.createAgentKey(session, []string{"comment:create"})

	rec := e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "hello",
	}, withBearer(key), withIdempotencyKey("key-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreatePost_RequiresProfile(t *testing.T) {
	e := setupTestEnv(t)
	session := e.register("alice@example.com", "WELCOME-1")
	key := e.createAgentKey(session, nil)

	rec := e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "hello",
	}, withBearer(key), withIdempotencyKey("key-1"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec), "Profile")
}

func TestCreatePost_RequiresIdempotencyKey(t *testing.T) {
	e := setupTestEnv(t)
	_, key := postingAgent(t, e, "alice@example.com", "WELCOME-1")

	rec := e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "hello",
	}, withBearer(key))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "Idempotency-Key")
}

func TestCreatePost_Replay(t *testing.T) {
	e := setupTestEnv(t)
	_, key := postingAgent(t, e, "alice@example.com", "WELCOME-1")

	rec := e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "only once",
	}, withBearer(key), withIdempotencyKey("key-1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	firstID := decodeData(t, rec)["post"].(map[string]any)["id"].(string)

	// Same key replays the recorded result, even with a different body.
	rec = e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "something else entirely",
	}, withBearer(key), withIdempotencyKey("key-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, true, data["idempotentReplay"])
	assert.Equal(t, firstID, data["post"].(map[string]any)["id"])
	assert.Equal(t, "only once", data["post"].(map[string]any)["contentText"])

	// A fresh key creates a fresh post.
	rec = e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "second post",
	}, withBearer(key), withIdempotencyKey("key-2"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEqual(t, firstID, decodeData(t, rec)["post"].(map[string]any)["id"])
}

func TestCreatePost_ReplayIsolatedPerOperator(t *testing.T) {
	e := setupTestEnv(t)
	_, aliceKey := postingAgent(t, e, "alice@example.com", "WELCOME-1")
	_, bobKey := postingAgent(t, e, "bob@example.com", "WELCOME-2")

	rec := e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "alice's post",
	}, withBearer(aliceKey), withIdempotencyKey("shared-key"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "bob's post",
	}, withBearer(bobKey), withIdempotencyKey("shared-key"))
	require.Equal(t, http.StatusCreated, rec.Code, "another operator's key is not a replay")
	assert.Equal(t, false, decodeData(t, rec)["idempotentReplay"])
}

func TestCreateComment(t *testing.T) {
	e := setupTestEnv(t)
	_, key := postingAgent(t, e, "alice@example.com", "WELCOME-1")

	rec := e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "parent post",
	}, withBearer(key), withIdempotencyKey("post-1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	postID := decodeData(t, rec)["post"].(map[string]any)["id"].(string)

	rec = e.do("POST", "/api/v1/comments", map[string]string{
		"postId":      postID,
		"contentText": "a reply",
	}, withBearer(key), withIdempotencyKey("comment-1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	comment := decodeData(t, rec)["comment"].(map[string]any)
	assert.Equal(t, postID, comment["postId"])

	// Replay returns the same comment.
	rec = e.do("POST", "/api/v1/comments", map[string]string{
		"postId":      postID,
		"contentText": "a reply",
	}, withBearer(key), withIdempotencyKey("comment-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeData(t, rec)["idempotentReplay"])
}

func TestCreateComment_MissingPost(t *testing.T) {
	e := setupTestEnv(t)
	_, key := postingAgent(t, e, "alice@example.com", "WELCOME-1")

	rec := e.do("POST", "/api/v1/comments", map[string]string{
		"postId":      "no-such-post",
		"contentText": "orphan reply",
	}, withBearer(key), withIdempotencyKey("comment-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeed(t *testing.T) {
	e := setupTestEnv(t)
	_, key := postingAgent(t, e, "alice@example.com", "WELCOME-1")

	var lastPostID string
	for _, text := range []string{"first", "second", "third"} {
		rec := e.do("POST", "/api/v1/posts", map[string]string{
			"contentText": text,
		}, withBearer(key), withIdempotencyKey("post-"+text))
		require.Equal(t, http.StatusCreated, rec.Code)
		lastPostID = decodeData(t, rec)["post"].(map[string]any)["id"].(string)
	}

	for i, text := range []string{"c1", "c2", "c3", "c4"} {
		rec := e.do("POST", "/api/v1/comments", map[string]string{
			"postId":      lastPostID,
			"contentText": text,
		}, withBearer(key), withIdempotencyKey("comment-"+text))
		require.Equal(t, http.StatusCreated, rec.Code, "comment %d", i)
	}

	rec := e.do("GET", "/api/v1/feed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	posts := decodeData(t, rec)["posts"].([]any)
	require.Len(t, posts, 3)

	newest := posts[0].(map[string]any)
	assert.Equal(t, "third", newest["contentText"], "feed is newest first")
	assert.Equal(t, float64(4), newest["commentCount"])
	preview := newest["previewComments"].([]any)
	require.Len(t, preview, 3, "preview is capped")
	assert.Equal(t, "c1", preview[0].(map[string]any)["contentText"], "preview is oldest first")

	rec = e.do("GET", "/api/v1/feed?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData(t, rec)["posts"].([]any), 2)

	// Out-of-range and garbage limits clamp to sane values.
	rec = e.do("GET", "/api/v1/feed?limit=9999", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do("GET", "/api/v1/feed?limit=banana", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData(t, rec)["posts"].([]any), 3)
}

func TestGetPost(t *testing.T) {
	e := setupTestEnv(t)
	_, key := postingAgent(t, e, "alice@example.com", "WELCOME-1")

	rec := e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "a post",
	}, withBearer(key), withIdempotencyKey("post-1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	postID := decodeData(t, rec)["post"].(map[string]any)["id"].(string)

	rec = e.do("POST", "/api/v1/comments", map[string]string{
		"postId":      postID,
		"contentText": "a comment",
	}, withBearer(key), withIdempotencyKey("comment-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do("GET", "/api/v1/posts/"+postID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	post := decodeData(t, rec)["post"].(map[string]any)
	assert.Equal(t, "a post", post["contentText"])
	assert.Len(t, post["comments"].([]any), 1)

	rec = e.do("GET", "/api/v1/posts/no-such-post", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReports(t *testing.T) {
	e := setupTestEnv(t)
	session := e.register("alice@example.com", "WELCOME-1")

	rec := e.do("POST", "/api/v1/reports", map[string]string{
		"targetType": "PROFILE",
		"targetId":   "someone",
		"reason":     "impersonation",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do("POST", "/api/v1/reports", map[string]string{
		"targetType": "PROFILE",
		"targetId":   "someone",
		"reason":     "impersonation",
	}, withSession(session))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do("POST", "/api/v1/reports", map[string]string{
		"targetType": "GALAXY",
		"targetId":   "someone",
		"reason":     "reason",
	}, withSession(session))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTakedown(t *testing.T) {
	e := setupTestEnv(t)
	// First registrant is the admin; second is a regular operator.
	adminSession, adminKey := postingAgent(t, e, "admin@example.com", "WELCOME-1")
	memberSession := e.register("member@example.com", "WELCOME-2")

	rec := e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "offending post",
	}, withBearer(adminKey), withIdempotencyKey("post-1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	postID := decodeData(t, rec)["post"].(map[string]any)["id"].(string)

	rec = e.do("POST", "/api/v1/admin/takedown", map[string]string{
		"targetType": "POST",
		"targetId":   postID,
		"reason":     "spam",
	}, withSession(memberSession))
	assert.Equal(t, http.StatusForbidden, rec.Code, "non-admins cannot take down content")

	rec = e.do("POST", "/api/v1/admin/takedown", map[string]string{
		"targetType": "POST",
		"targetId":   postID,
		"reason":     "spam",
	}, withSession(adminSession))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeData(t, rec)["removed"])

	rec = e.do("GET", "/api/v1/posts/"+postID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "taken-down posts vanish")

	rec = e.do("GET", "/api/v1/feed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData(t, rec)["posts"])

	// Taking down the same post again reports a missing target.
	rec = e.do("POST", "/api/v1/admin/takedown", map[string]string{
		"targetType": "POST",
		"targetId":   postID,
		"reason":     "spam",
	}, withSession(adminSession))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestOperatorJourney walks the whole lifecycle: register, configure a
// persona, delegate a key, post, comment, replay, revoke, and verify the
// revoked key is dead.
func TestOperatorJourney(t *testing.T) {
	e := setupTestEnv(t)

	session := e.register("alice@example.com", "WELCOME-1")
	e.configureProfile(session, "Alice")

	rec := e.do("POST", "/api/v1/operator/agent-credentials", map[string]any{
		"label": "alice's agent",
	}, withSession(session))
	require.Equal(t, http.StatusCreated, rec.Code)
	data := decodeData(t, rec)
	key := data["plaintextKey"].(string)
	credentialID := data["credential"].(map[string]any)["id"].(string)

	rec = e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "first transmission",
	}, withBearer(key), withIdempotencyKey("journey-post"))
	require.Equal(t, http.StatusCreated, rec.Code)
	postID := decodeData(t, rec)["post"].(map[string]any)["id"].(string)

	rec = e.do("POST", "/api/v1/comments", map[string]string{
		"postId":      postID,
		"contentText": "replying to myself",
	}, withBearer(key), withIdempotencyKey("journey-comment"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "retry after timeout",
	}, withBearer(key), withIdempotencyKey("journey-post"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeData(t, rec)["idempotentReplay"])

	rec = e.do("DELETE", "/api/v1/operator/agent-credentials/"+credentialID, nil, withSession(session))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do("POST", "/api/v1/posts", map[string]string{
		"contentText": "should be rejected",
	}, withBearer(key), withIdempotencyKey("journey-post-2"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "revoked keys stop working immediately")

	rec = e.do("GET", "/api/v1/feed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	posts := decodeData(t, rec)["posts"].([]any)
	require.Len(t, posts, 1)
	assert.Equal(t, "Alice", posts[0].(map[string]any)["author"].(map[string]any)["displayName"])
}
