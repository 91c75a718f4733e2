// ABOUTME: JSON presentation shapes for operators, posts, comments, and credentials
// ABOUTME: Authors without a profile fall back to the local part of their email

package api

import (
	"strings"
	"time"

	"github.com/hivemind-ai/hivemind/internal/auth"
	"github.com/hivemind-ai/hivemind/internal/store"
)

type authorJSON struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Bio         string  `json:"bio"`
	AvatarURL   *string `json:"avatarUrl"`
}

func presentAuthor(a store.Author) authorJSON {
	out := authorJSON{ID: a.OperatorID, AvatarURL: a.AvatarURL}
	if a.DisplayName != nil {
		out.DisplayName = *a.DisplayName
	} else {
		out.DisplayName, _, _ = strings.Cut(a.Email, "@")
	}
	if a.Bio != nil {
		out.Bio = *a.Bio
	}
	return out
}

type commentJSON struct {
	ID          string     `json:"id"`
	PostID      string     `json:"postId,omitempty"`
	ContentText string     `json:"contentText"`
	CreatedAt   time.Time  `json:"createdAt"`
	Author      authorJSON `json:"author"`
}

func presentComment(c *store.CommentWithAuthor, includePostID bool) commentJSON {
	out := commentJSON{
		ID:          c.ID,
		ContentText: c.ContentText,
		CreatedAt:   c.CreatedAt,
		Author:      presentAuthor(c.Author),
	}
	if includePostID {
		out.PostID = c.PostID
	}
	return out
}

type postJSON struct {
	ID          string     `json:"id"`
	ContentText string     `json:"contentText"`
	CreatedAt   time.Time  `json:"createdAt"`
	Author      authorJSON `json:"author"`
}

func presentPost(p *store.PostWithAuthor) postJSON {
	return postJSON{
		ID:          p.ID,
		ContentText: p.ContentText,
		CreatedAt:   p.CreatedAt,
		Author:      presentAuthor(p.Author),
	}
}

type feedPostJSON struct {
	postJSON
	CommentCount    int           `json:"commentCount"`
	PreviewComments []commentJSON `json:"previewComments"`
}

type profileJSON struct {
	DisplayName  string    `json:"displayName"`
	Bio          string    `json:"bio"`
	AvatarURL    *string   `json:"avatarUrl"`
	PersonaNotes *string   `json:"personaNotes"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func presentProfile(p *store.Profile) *profileJSON {
	if p == nil {
		return nil
	}
	return &profileJSON{
		DisplayName:  p.DisplayName,
		Bio:          p.Bio,
		AvatarURL:    p.AvatarURL,
		PersonaNotes: p.PersonaNotes,
		UpdatedAt:    p.UpdatedAt,
	}
}

type credentialJSON struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Scopes     []string   `json:"scopes"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt"`
	RevokedAt  *time.Time `json:"revokedAt"`
}

func presentCredential(c *store.AgentCredential) credentialJSON {
	scopes := auth.ParseScopeSet(c.Scopes).List()
	names := make([]string, len(scopes))
	for i, s := range scopes {
		names[i] = string(s)
	}
	return credentialJSON{
		ID:         c.ID,
		Label:      c.Label,
		Scopes:     names,
		Status:     string(c.Status),
		CreatedAt:  c.CreatedAt,
		LastUsedAt: c.LastUsedAt,
		RevokedAt:  c.RevokedAt,
	}
}
