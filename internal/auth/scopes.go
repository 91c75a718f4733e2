// ABOUTME: Scope enumeration and normalization for agent credentials
// ABOUTME: Scopes are fixed at creation and stored as a canonical comma-joined set

package auth

import "strings"

// Scope is a named permission an agent credential may hold.
type Scope string

// The full scope enumeration. There is no wildcard.
const (
	ScopePostCreate    Scope = "post:create"
	ScopeCommentCreate Scope = "comment:create"
)

// DefaultScopes is granted when credential creation names no scopes.
var DefaultScopes = []Scope{ScopePostCreate, ScopeCommentCreate}

// ValidScope reports whether s is a member of the scope enumeration.
func ValidScope(s Scope) bool {
	switch s {
	case ScopePostCreate, ScopeCommentCreate:
		return true
	}
	return false
}

// NormalizeScopes deduplicates scopes preserving first-seen order and joins
// them into the canonical stored form. An empty input gets DefaultScopes.
func NormalizeScopes(scopes []Scope) string {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	seen := make(map[Scope]bool, len(scopes))
	parts := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if seen[s] {
			continue
		}
		seen[s] = true
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ",")
}

// ScopeSet is a parsed scope collection supporting membership checks.
type ScopeSet map[Scope]struct{}

// ParseScopeSet splits a stored scope string into a set, dropping blanks.
func ParseScopeSet(stored string) ScopeSet {
	set := make(ScopeSet)
	for _, part := range strings.Split(stored, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		set[Scope(part)] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the scope.
func (s ScopeSet) Has(scope Scope) bool {
	_, ok := s[scope]
	return ok
}

// List returns the scopes as a sorted-stable slice for presentation.
func (s ScopeSet) List() []Scope {
	out := make([]Scope, 0, len(s))
	for _, candidate := range []Scope{ScopePostCreate, ScopeCommentCreate} {
		if s.Has(candidate) {
			out = append(out, candidate)
		}
	}
	return out
}
