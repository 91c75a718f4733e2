// ABOUTME: Opaque token generation and one-way fingerprinting for credentials
// ABOUTME: Plaintext tokens are never persisted; only SHA-256 fingerprints are stored

package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// Byte lengths for generated tokens. Agent keys use 24 random bytes;
// sessions and login tokens use 32.
const (
	AgentKeyBytes = 24
	SessionBytes  = 32
)

// AgentKeyPrefix marks plaintext agent API keys so they are recognizable
// in logs and paste buffers without revealing anything about the secret.
const AgentKeyPrefix = "hm_"

// Generate returns n cryptographically random bytes rendered as hex.
func Generate(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewAgentKey generates a prefixed plaintext agent API key.
func NewAgentKey() (string, error) {
	raw, err := Generate(AgentKeyBytes)
	if err != nil {
		return "", err
	}
	return AgentKeyPrefix + raw, nil
}

// Fingerprint returns the hex-encoded SHA-256 digest of a plaintext token.
// Fingerprints are stored in place of secrets; given only the fingerprint,
// recovering the token is computationally infeasible.
func Fingerprint(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// ParseBearer extracts a bearer token from an Authorization header value.
// Missing headers, non-bearer schemes, and empty tokens all fail closed.
func ParseBearer(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(rest)
	if tok == "" {
		return "", false
	}
	return tok, true
}

// SafeEqual compares two plaintext secrets in constant time.
// Comparisons of stored fingerprints may use ordinary equality; this is
// for the places where two plaintext secrets meet.
func SafeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
