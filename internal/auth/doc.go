// Package auth implements the three credential flows of the service:
// invite-gated magic-link login, operator browser sessions, and scoped
// agent API keys.
//
// All three credential kinds share the same storage discipline: the
// plaintext secret is generated from crypto/rand, handed to its owner
// exactly once, and persisted only as a SHA-256 fingerprint. Lookups
// hash the presented secret and match on the fingerprint, so a database
// leak yields no usable credentials.
//
// Rejections are deliberately uniform. Authenticators return an absent
// identity, not an error, for every bad credential; magic-link
// redemption collapses unknown, expired, used, and raced tokens into a
// single ErrInvalidLink. The one exception is ErrScopeMissing, which is
// only reachable after the caller has proven possession of a live key.
package auth
