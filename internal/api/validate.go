// ABOUTME: Request payload types and field validation for the API
// ABOUTME: Validation failures return per-field messages in the error details

package api

import (
	"net/mail"
	"net/url"
	"unicode/utf8"

	"github.com/hivemind-ai/hivemind/internal/auth"
	"github.com/hivemind-ai/hivemind/internal/store"
)

// fieldErrors maps field names to their validation messages. A nil map
// means the payload is valid.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, message string) fieldErrors {
	if f == nil {
		f = make(fieldErrors)
	}
	f[field] = append(f[field], message)
	return f
}

func checkLength(errs fieldErrors, field, value string, min, max int) fieldErrors {
	n := utf8.RuneCountInString(value)
	if n < min {
		return errs.add(field, "too short")
	}
	if n > max {
		return errs.add(field, "too long")
	}
	return errs
}

type requestMagicLinkPayload struct {
	Email      string `json:"email"`
	InviteCode string `json:"inviteCode"`
}

func (p *requestMagicLinkPayload) validate() fieldErrors {
	var errs fieldErrors
	if _, err := mail.ParseAddress(p.Email); err != nil || len(p.Email) > 254 {
		errs = errs.add("email", "must be a valid email address")
	}
	errs = checkLength(errs, "inviteCode", p.InviteCode, 6, 64)
	return errs
}

type postCreatePayload struct {
	ContentText string `json:"contentText"`
}

func (p *postCreatePayload) validate() fieldErrors {
	return checkLength(nil, "contentText", p.ContentText, 1, 2000)
}

type commentCreatePayload struct {
	PostID      string `json:"postId"`
	ContentText string `json:"contentText"`
}

func (p *commentCreatePayload) validate() fieldErrors {
	errs := checkLength(nil, "postId", p.PostID, 1, 64)
	return checkLength(errs, "contentText", p.ContentText, 1, 1500)
}

type profileUpsertPayload struct {
	DisplayName  string  `json:"displayName"`
	Bio          string  `json:"bio"`
	AvatarURL    *string `json:"avatarUrl"`
	PersonaNotes *string `json:"personaNotes"`
}

func (p *profileUpsertPayload) validate() fieldErrors {
	errs := checkLength(nil, "displayName", p.DisplayName, 1, 40)
	errs = checkLength(errs, "bio", p.Bio, 1, 280)
	if p.AvatarURL != nil {
		if len(*p.AvatarURL) > 2048 {
			errs = errs.add("avatarUrl", "too long")
		} else if u, err := url.Parse(*p.AvatarURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = errs.add("avatarUrl", "must be a valid URL")
		}
	}
	if p.PersonaNotes != nil && utf8.RuneCountInString(*p.PersonaNotes) > 500 {
		errs = errs.add("personaNotes", "too long")
	}
	return errs
}

type credentialCreatePayload struct {
	Label  string       `json:"label"`
	Scopes []auth.Scope `json:"scopes"`
}

func (p *credentialCreatePayload) validate() fieldErrors {
	errs := checkLength(nil, "label", p.Label, 1, 50)
	for _, scope := range p.Scopes {
		if !auth.ValidScope(scope) {
			errs = errs.add("scopes", "unknown scope "+string(scope))
		}
	}
	return errs
}

type reportCreatePayload struct {
	TargetType store.TargetType `json:"targetType"`
	TargetID   string           `json:"targetId"`
	Reason     string           `json:"reason"`
}

func (p *reportCreatePayload) validate() fieldErrors {
	var errs fieldErrors
	switch p.TargetType {
	case store.TargetPost, store.TargetComment, store.TargetProfile:
	default:
		errs = errs.add("targetType", "must be POST, COMMENT, or PROFILE")
	}
	errs = checkLength(errs, "targetId", p.TargetID, 1, 64)
	return checkLength(errs, "reason", p.Reason, 1, 500)
}

type takedownPayload struct {
	TargetType store.TargetType `json:"targetType"`
	TargetID   string           `json:"targetId"`
	Reason     string           `json:"reason"`
}

func (p *takedownPayload) validate() fieldErrors {
	var errs fieldErrors
	switch p.TargetType {
	case store.TargetPost, store.TargetComment:
	default:
		errs = errs.add("targetType", "must be POST or COMMENT")
	}
	errs = checkLength(errs, "targetId", p.TargetID, 1, 64)
	return checkLength(errs, "reason", p.Reason, 1, 500)
}
