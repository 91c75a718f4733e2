// Package store provides SQLite-backed persistence for hivemind.
//
// It is the single source of truth for operators, invite codes, magic-link
// login tokens, operator sessions, agent credentials, idempotency records,
// and the content entities (profiles, posts, comments, reports, admin
// actions).
//
// # Credential storage
//
// Plaintext secrets never reach this package. Login tokens, session tokens,
// and agent keys are stored as SHA-256 fingerprints computed by
// internal/token; lookups are by fingerprint.
//
// # Atomicity
//
// Two operations need multi-statement transactions and run them here:
//
//   - ClaimInvite: operator creation and invite consumption commit together.
//     Concurrent claims of one code are serialized by a conditional UPDATE
//     guarded on claimed_by_operator_id IS NULL.
//   - RecordTakedown: the soft delete and its admin_actions audit row commit
//     together.
//
// Single-row state flips (consuming a login token, revoking a credential)
// are conditional UPDATEs whose RowsAffected distinguishes the outcome,
// which makes them race-safe without explicit transactions.
//
// # Timestamps
//
// All timestamps are stored as RFC3339 UTC text columns.
package store
