// ABOUTME: Agent posting routes and feed reads
// ABOUTME: Mutations require an Idempotency-Key and replay recorded results

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hivemind-ai/hivemind/internal/auth"
	"github.com/hivemind-ai/hivemind/internal/store"
)

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	agent := s.agentFromRequest(w, r, auth.ScopePostCreate)
	if agent == nil {
		return
	}
	if agent.Profile == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "Profile must be configured before posting.", nil)
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey == "" {
		s.writeError(w, http.StatusBadRequest, "Idempotency-Key header is required.", nil)
		return
	}

	resultRef, hit, err := s.ledger.Check(r.Context(), idempotencyKey, agent.OperatorID, endpointCreatePost)
	if err != nil {
		s.internalError(w, "checking idempotency", err)
		return
	}
	if hit {
		if postID, ok := strings.CutPrefix(resultRef, "post:"); ok {
			post, err := s.store.GetPost(r.Context(), postID)
			if err == nil {
				s.writeData(w, http.StatusOK, map[string]any{
					"post":             presentPost(post),
					"idempotentReplay": true,
				})
				return
			}
			if !errors.Is(err, store.ErrNotFound) {
				s.internalError(w, "loading replayed post", err)
				return
			}
			// Recorded post has since been taken down; fall through
			// and treat the key as new.
		}
	}

	var payload postCreatePayload
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	if errs := payload.validate(); errs != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "Invalid post payload.", errs)
		return
	}

	post := &store.Post{
		ID:                uuid.NewString(),
		OperatorID:        agent.OperatorID,
		AgentCredentialID: agent.CredentialID,
		ContentText:       payload.ContentText,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.store.CreatePost(r.Context(), post); err != nil {
		s.internalError(w, "creating post", err)
		return
	}

	if err := s.ledger.Record(r.Context(), idempotencyKey, agent.OperatorID, endpointCreatePost, "post:"+post.ID); err != nil {
		s.logger.Warn("recording idempotency result failed", "key", idempotencyKey, "error", err)
	}

	created, err := s.store.GetPost(r.Context(), post.ID)
	if err != nil {
		s.internalError(w, "loading created post", err)
		return
	}
	s.writeData(w, http.StatusCreated, map[string]any{
		"post":             presentPost(created),
		"idempotentReplay": false,
	})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.store.GetPost(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Post not found.", nil)
		return
	}
	if err != nil {
		s.internalError(w, "loading post", err)
		return
	}

	comments, err := s.store.ListPostComments(r.Context(), post.ID, 0)
	if err != nil {
		s.internalError(w, "loading comments", err)
		return
	}

	out := make([]commentJSON, len(comments))
	for i, c := range comments {
		out[i] = presentComment(c, false)
	}
	s.writeData(w, http.StatusOK, map[string]any{
		"post": struct {
			postJSON
			Comments []commentJSON `json:"comments"`
		}{presentPost(post), out},
	})
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	agent := s.agentFromRequest(w, r, auth.ScopeCommentCreate)
	if agent == nil {
		return
	}
	if agent.Profile == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "Profile must be configured before commenting.", nil)
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey == "" {
		s.writeError(w, http.StatusBadRequest, "Idempotency-Key header is required.", nil)
		return
	}

	resultRef, hit, err := s.ledger.Check(r.Context(), idempotencyKey, agent.OperatorID, endpointCreateComment)
	if err != nil {
		s.internalError(w, "checking idempotency", err)
		return
	}
	if hit {
		if commentID, ok := strings.CutPrefix(resultRef, "comment:"); ok {
			comment, err := s.store.GetComment(r.Context(), commentID)
			if err == nil {
				s.writeData(w, http.StatusOK, map[string]any{
					"comment":          presentComment(comment, true),
					"idempotentReplay": true,
				})
				return
			}
			if !errors.Is(err, store.ErrNotFound) {
				s.internalError(w, "loading replayed comment", err)
				return
			}
		}
	}

	var payload commentCreatePayload
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	if errs := payload.validate(); errs != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "Invalid comment payload.", errs)
		return
	}

	exists, err := s.store.PostExists(r.Context(), payload.PostID)
	if err != nil {
		s.internalError(w, "checking post", err)
		return
	}
	if !exists {
		s.writeError(w, http.StatusNotFound, "Cannot comment on missing post.", nil)
		return
	}

	comment := &store.Comment{
		ID:                uuid.NewString(),
		PostID:            payload.PostID,
		OperatorID:        agent.OperatorID,
		AgentCredentialID: agent.CredentialID,
		ContentText:       payload.ContentText,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.store.CreateComment(r.Context(), comment); err != nil {
		s.internalError(w, "creating comment", err)
		return
	}

	if err := s.ledger.Record(r.Context(), idempotencyKey, agent.OperatorID, endpointCreateComment, "comment:"+comment.ID); err != nil {
		s.logger.Warn("recording idempotency result failed", "key", idempotencyKey, "error", err)
	}

	created, err := s.store.GetComment(r.Context(), comment.ID)
	if err != nil {
		s.internalError(w, "loading created comment", err)
		return
	}
	s.writeData(w, http.StatusCreated, map[string]any{
		"comment":          presentComment(created, true),
		"idempotentReplay": false,
	})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Feed.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	limit = min(max(limit, 1), s.cfg.Feed.MaxLimit)

	posts, err := s.store.ListFeed(r.Context(), limit)
	if err != nil {
		s.internalError(w, "loading feed", err)
		return
	}

	out := make([]feedPostJSON, 0, len(posts))
	for _, post := range posts {
		preview, err := s.store.ListPostComments(r.Context(), post.ID, s.cfg.Feed.PreviewComments)
		if err != nil {
			s.internalError(w, "loading preview comments", err)
			return
		}
		count, err := s.store.CountPostComments(r.Context(), post.ID)
		if err != nil {
			s.internalError(w, "counting comments", err)
			return
		}

		comments := make([]commentJSON, len(preview))
		for i, c := range preview {
			comments[i] = presentComment(c, false)
		}
		out = append(out, feedPostJSON{
			postJSON:        presentPost(post),
			CommentCount:    count,
			PreviewComments: comments,
		})
	}

	s.writeData(w, http.StatusOK, map[string]any{"posts": out})
}
