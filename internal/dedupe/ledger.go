// ABOUTME: Idempotency ledger mapping caller-supplied keys to prior results
// ABOUTME: Entries live for a fixed TTL and are reaped lazily on lookup

package dedupe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hivemind-ai/hivemind/internal/store"
)

// DefaultTTL is how long a recorded result answers replays.
const DefaultTTL = 24 * time.Hour

// Ledger records the results of mutating requests keyed by a
// caller-supplied idempotency key. A replay within the TTL, by the same
// operator against the same endpoint, gets the recorded result instead
// of a second execution.
type Ledger struct {
	store  *store.SQLiteStore
	logger *slog.Logger
	ttl    time.Duration
}

// NewLedger creates a ledger over the store. A zero ttl means DefaultTTL.
func NewLedger(s *store.SQLiteStore, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ledger{
		store:  s,
		logger: slog.Default().With("component", "dedupe"),
		ttl:    ttl,
	}
}

// Check looks up a key and reports whether it is a replay. Expired
// entries are reaped and report a miss. An entry recorded by a
// different operator or against a different endpoint is also a miss:
// the key is simply treated as new, never as someone else's replay.
func (l *Ledger) Check(ctx context.Context, key, operatorID, endpoint string) (string, bool, error) {
	rec, err := l.store.GetIdempotencyRecord(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up idempotency key: %w", err)
	}

	if !time.Now().Before(rec.ExpiresAt) {
		if err := l.store.DeleteIdempotencyRecord(ctx, key); err != nil {
			l.logger.Warn("reaping expired idempotency record failed", "key", key, "error", err)
		}
		return "", false, nil
	}

	if rec.OperatorID != operatorID || rec.Endpoint != endpoint {
		return "", false, nil
	}

	// A replay extends the record's life; the result stays as recorded
	// on first success.
	rec.ExpiresAt = time.Now().UTC().Add(l.ttl)
	if err := l.store.UpsertIdempotencyRecord(ctx, rec); err != nil {
		l.logger.Warn("refreshing idempotency record failed", "key", key, "error", err)
	}

	l.logger.Info("idempotent replay", "key", key, "endpoint", endpoint, "result", rec.ResultRef)
	return rec.ResultRef, true, nil
}

// Record stores the result of a completed request under the key with a
// fresh TTL, replacing any prior entry for the key.
func (l *Ledger) Record(ctx context.Context, key, operatorID, endpoint, resultRef string) error {
	rec := &store.IdempotencyRecord{
		Key:        key,
		OperatorID: operatorID,
		Endpoint:   endpoint,
		ResultRef:  resultRef,
		ExpiresAt:  time.Now().UTC().Add(l.ttl),
	}
	if err := l.store.UpsertIdempotencyRecord(ctx, rec); err != nil {
		return fmt.Errorf("recording idempotency result: %w", err)
	}
	return nil
}
