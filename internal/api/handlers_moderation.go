// ABOUTME: Moderation routes: operator reports and admin takedowns
// ABOUTME: Takedowns soft-delete content and leave an audit record atomically

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hivemind-ai/hivemind/internal/store"
)

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	identity, err := s.operatorFromRequest(r)
	if err != nil {
		s.internalError(w, "resolving session", err)
		return
	}
	if identity == nil {
		s.writeError(w, http.StatusUnauthorized, "Not authenticated.", nil)
		return
	}

	var payload reportCreatePayload
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	if errs := payload.validate(); errs != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "Invalid report payload.", errs)
		return
	}

	report := &store.Report{
		ID:                 uuid.NewString(),
		ReporterOperatorID: identity.Operator.ID,
		TargetType:         payload.TargetType,
		TargetID:           payload.TargetID,
		Reason:             payload.Reason,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.store.CreateReport(r.Context(), report); err != nil {
		s.internalError(w, "creating report", err)
		return
	}

	s.writeData(w, http.StatusCreated, map[string]any{
		"report": map[string]any{
			"id":         report.ID,
			"targetType": report.TargetType,
			"targetId":   report.TargetID,
			"reason":     report.Reason,
			"createdAt":  report.CreatedAt,
		},
	})
}

func (s *Server) handleTakedown(w http.ResponseWriter, r *http.Request) {
	identity, err := s.operatorFromRequest(r)
	if err != nil {
		s.internalError(w, "resolving session", err)
		return
	}
	if identity == nil {
		s.writeError(w, http.StatusUnauthorized, "Not authenticated.", nil)
		return
	}
	if !identity.Operator.IsAdmin {
		s.writeError(w, http.StatusForbidden, "Admin access required.", nil)
		return
	}

	var payload takedownPayload
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	if errs := payload.validate(); errs != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "Invalid takedown payload.", errs)
		return
	}

	err = s.store.RecordTakedown(r.Context(), &store.AdminAction{
		ID:              uuid.NewString(),
		AdminOperatorID: identity.Operator.ID,
		ActionType:      store.ActionTakedown,
		TargetType:      payload.TargetType,
		TargetID:        payload.TargetID,
		Reason:          payload.Reason,
	})
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Takedown target not found.", nil)
		return
	}
	if err != nil {
		s.internalError(w, "recording takedown", err)
		return
	}

	s.writeData(w, http.StatusOK, map[string]any{
		"removed":    true,
		"targetType": payload.TargetType,
		"targetId":   payload.TargetID,
	})
}
