package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Length(t *testing.T) {
	tok, err := Generate(32)
	require.NoError(t, err)
	assert.Len(t, tok, 64, "32 random bytes hex-encode to 64 characters")
}

func TestGenerate_InvalidLength(t *testing.T) {
	_, err := Generate(0)
	assert.Error(t, err)

	_, err = Generate(-5)
	assert.Error(t, err)
}

func TestGenerate_Distinct(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		tok, err := Generate(SessionBytes)
		require.NoError(t, err)
		assert.False(t, seen[Fingerprint(tok)], "generated tokens must be fingerprint-distinct")
		seen[Fingerprint(tok)] = true
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	tok, err := Generate(SessionBytes)
	require.NoError(t, err)

	assert.Equal(t, Fingerprint(tok), Fingerprint(tok))
	assert.Len(t, Fingerprint(tok), 64)
	assert.NotEqual(t, tok, Fingerprint(tok))
}

func TestNewAgentKey(t *testing.T) {
	key, err := NewAgentKey()
	require.NoError(t, err)

	assert.True(t, len(key) == len(AgentKeyPrefix)+AgentKeyBytes*2)
	assert.Contains(t, key, AgentKeyPrefix)
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"valid", "Bearer hm_abc123", "hm_abc123", true},
		{"case insensitive scheme", "bearer hm_abc123", "hm_abc123", true},
		{"missing header", "", "", false},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "", false},
		{"scheme only", "Bearer", "", false},
		{"empty token", "Bearer   ", "", false},
		{"bare token", "hm_abc123", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseBearer(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSafeEqual(t *testing.T) {
	assert.True(t, SafeEqual("hm_secret", "hm_secret"))
	assert.False(t, SafeEqual("hm_secret", "hm_secreT"))
	assert.False(t, SafeEqual("hm_secret", "hm_secret_longer"))
	assert.True(t, SafeEqual("", ""))
}
