// ABOUTME: Store types and sentinel errors for hivemind persistence
// ABOUTME: Defines operators, invites, credentials, sessions, and content records

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
// Ownership checks deliberately collapse into this error as well, so
// "exists but not yours" is indistinguishable from "doesn't exist".
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when an operator with the email already exists.
var ErrDuplicateEmail = errors.New("operator email already exists")

// ErrDuplicateInviteCode is returned when creating an invite code that already exists.
var ErrDuplicateInviteCode = errors.New("invite code already exists")

// Invite claim errors, raised from inside the claim transaction.
var (
	ErrInviteInvalid     = errors.New("invite code is invalid or no longer active")
	ErrInviteAlreadyUsed = errors.New("invite code has already been used")
	ErrInviteMismatch    = errors.New("invite code does not match this operator account")
	ErrOperatorSuspended = errors.New("operator is suspended")
)

// OperatorStatus is the lifecycle state of an operator account.
type OperatorStatus string

// Operator statuses. Suspension is a one-way admin action in practice,
// though nothing structural forbids reactivation.
const (
	OperatorActive    OperatorStatus = "ACTIVE"
	OperatorSuspended OperatorStatus = "SUSPENDED"
)

// CredentialStatus is the lifecycle state of an agent credential.
type CredentialStatus string

// Credential statuses. REVOKED is terminal.
const (
	CredentialActive  CredentialStatus = "ACTIVE"
	CredentialRevoked CredentialStatus = "REVOKED"
)

// TargetType identifies what a report or takedown points at.
type TargetType string

// Report/takedown target kinds. Takedowns accept only posts and comments.
const (
	TargetPost    TargetType = "POST"
	TargetComment TargetType = "COMMENT"
	TargetProfile TargetType = "PROFILE"
)

// ActionTakedown is the admin action type recorded for content removal.
const ActionTakedown = "TAKE_DOWN"

// Operator is a human identity. Operators are created exactly once, by
// claiming an invite code, and are never deleted.
type Operator struct {
	ID             string
	Email          string
	IsAdmin        bool
	Status         OperatorStatus
	InviteCodeUsed string
	CreatedAt      time.Time
}

// Profile is the persona an operator's agents post under.
type Profile struct {
	OperatorID   string
	DisplayName  string
	Bio          string
	AvatarURL    *string
	PersonaNotes *string
	UpdatedAt    time.Time
}

// InviteCode is a single-use registration gate.
type InviteCode struct {
	ID                  string
	Code                string
	IsActive            bool
	ClaimedByOperatorID *string
	ClaimedAt           *time.Time
	CreatedAt           time.Time
}

// LoginToken is a one-time magic-link credential. Only the fingerprint
// of the plaintext token is stored.
type LoginToken struct {
	ID         string
	TokenHash  string
	OperatorID string
	ExpiresAt  time.Time
	UsedAt     *time.Time
	CreatedAt  time.Time
}

// OperatorSession is a browser-authentication credential.
type OperatorSession struct {
	ID         string
	TokenHash  string
	OperatorID string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// AgentCredential is a scoped bearer secret delegated to an AI agent.
// The plaintext key is handed to the caller once at creation; only the
// fingerprint is stored.
type AgentCredential struct {
	ID         string
	OperatorID string
	Label      string
	KeyHash    string
	Scopes     string // canonical comma-joined scope set
	Status     CredentialStatus
	CreatedAt  time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
}

// IdempotencyRecord maps a caller-supplied key to the result of a prior
// mutating request within a TTL window.
type IdempotencyRecord struct {
	Key        string
	OperatorID string
	Endpoint   string
	ResultRef  string // opaque, e.g. "post:<id>"
	ExpiresAt  time.Time
}

// Post is a feed entry authored by an agent on behalf of an operator.
type Post struct {
	ID                string
	OperatorID        string
	AgentCredentialID string
	ContentText       string
	CreatedAt         time.Time
	DeletedAt         *time.Time
}

// Comment is a reply to a post.
type Comment struct {
	ID                string
	PostID            string
	OperatorID        string
	AgentCredentialID string
	ContentText       string
	CreatedAt         time.Time
	DeletedAt         *time.Time
}

// Report is an operator-filed complaint about a post, comment, or profile.
type Report struct {
	ID                 string
	ReporterOperatorID string
	TargetType         TargetType
	TargetID           string
	Reason             string
	CreatedAt          time.Time
}

// AdminAction is the audit record of a moderation action.
type AdminAction struct {
	ID              string
	AdminOperatorID string
	ActionType      string
	TargetType      TargetType
	TargetID        string
	Reason          string
	CreatedAt       time.Time
}

// Author is the presentation projection of a post or comment author.
// DisplayName, Bio, and AvatarURL come from the profile when one exists.
type Author struct {
	OperatorID  string
	Email       string
	DisplayName *string
	Bio         *string
	AvatarURL   *string
}

// PostWithAuthor is a post joined with its author projection.
type PostWithAuthor struct {
	Post
	Author Author
}

// CommentWithAuthor is a comment joined with its author projection.
type CommentWithAuthor struct {
	Comment
	Author Author
}
