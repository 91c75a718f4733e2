package dedupe

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivemind-ai/hivemind/internal/store"
)

func setupTestLedger(t *testing.T, ttl time.Duration) (*Ledger, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewLedger(s, ttl), s
}

func TestLedger_MissThenHit(t *testing.T) {
	l, _ := setupTestLedger(t, 0)
	ctx := context.Background()

	_, hit, err := l.Check(ctx, "key-1", "op-1", "POST:/v1/posts")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, l.Record(ctx, "key-1", "op-1", "POST:/v1/posts", "post:abc"))

	ref, hit, err := l.Check(ctx, "key-1", "op-1", "POST:/v1/posts")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "post:abc", ref)
}

func TestLedger_OperatorAndEndpointScoped(t *testing.T) {
	l, _ := setupTestLedger(t, 0)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, "key-1", "op-1", "POST:/v1/posts", "post:abc"))

	_, hit, err := l.Check(ctx, "key-1", "op-2", "POST:/v1/posts")
	require.NoError(t, err)
	assert.False(t, hit, "another operator's key is not a replay")

	_, hit, err = l.Check(ctx, "key-1", "op-1", "POST:/v1/comments")
	require.NoError(t, err)
	assert.False(t, hit, "same key on a different endpoint is not a replay")
}

func TestLedger_ExpiredEntriesReaped(t *testing.T) {
	l, s := setupTestLedger(t, time.Nanosecond)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, "key-1", "op-1", "POST:/v1/posts", "post:abc"))
	time.Sleep(5 * time.Millisecond)

	_, hit, err := l.Check(ctx, "key-1", "op-1", "POST:/v1/posts")
	require.NoError(t, err)
	assert.False(t, hit)

	// The expired entry is gone, not just ignored.
	_, err = s.GetIdempotencyRecord(ctx, "key-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLedger_HitExtendsExpiry(t *testing.T) {
	l, s := setupTestLedger(t, 0)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, "key-1", "op-1", "POST:/v1/posts", "post:abc"))

	before, err := s.GetIdempotencyRecord(ctx, "key-1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, hit, err := l.Check(ctx, "key-1", "op-1", "POST:/v1/posts")
	require.NoError(t, err)
	require.True(t, hit)

	after, err := s.GetIdempotencyRecord(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, after.ExpiresAt.After(before.ExpiresAt), "replay pushes expiry forward")
	assert.Equal(t, "post:abc", after.ResultRef)
}

func TestLedger_RecordRefreshes(t *testing.T) {
	l, _ := setupTestLedger(t, 0)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, "key-1", "op-1", "POST:/v1/posts", "post:abc"))
	require.NoError(t, l.Record(ctx, "key-1", "op-1", "POST:/v1/posts", "post:def"))

	ref, hit, err := l.Check(ctx, "key-1", "op-1", "POST:/v1/posts")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "post:def", ref)
}
