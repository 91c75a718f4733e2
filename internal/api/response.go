// ABOUTME: JSON envelope helpers shared by every route
// ABOUTME: Success is {"data": ...}; failure is {"error": {"message", "details"}}

package api

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Message string `json:"message"`
	Details any    `json:"details"`
}

func (s *Server) writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{"data": data}); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"error": errorBody{Message: message, Details: details},
	}); err != nil {
		s.logger.Error("encoding error response", "error", err)
	}
}

// internalError logs the real failure and returns an opaque 500.
func (s *Server) internalError(w http.ResponseWriter, what string, err error) {
	s.logger.Error(what, "error", err)
	s.writeError(w, http.StatusInternalServerError, "Internal server error.", nil)
}

// decodeJSON parses the request body, writing a 400 on malformed input.
// The boolean reports whether the handler may proceed.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "Request body must be valid JSON.", nil)
		return false
	}
	return true
}
