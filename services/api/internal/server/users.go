package server

import (
	"net/http"

	"termfolio/services/api/internal/app"
)

type profileUpdateRequest struct {
	Nickname string `json:"nickname"`
	Timezone string `json:"timezone"`
}

// handleUserBySession serves /api/users/{sessionId}/profile and
// DELETE /api/users/{sessionId}.
func (s *Server) handleUserBySession(w http.ResponseWriter, r *http.Request) {
	parts, ok := pathSegments(r, "/api/users/")
	if !ok || len(parts) == 0 || parts[0] == "" {
		s.handleNotFound(w, r)
		return
	}
	sessionID := parts[0]
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r)
			return
		}
		if err := s.app.DeleteUser(r.Context(), sessionID); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		s.audit(r, "api.user.delete", "success", "session_id", sessionID)
		writeMessage(w, "All user data has been permanently deleted")
	case len(parts) == 2 && parts[1] == "profile":
		switch r.Method {
		case http.MethodGet:
			profile, err := s.app.Profile(r.Context(), sessionID)
			if err != nil {
				s.writeAppError(w, r, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"user": profile})
		case http.MethodPut:
			var req profileUpdateRequest
			if err := decodeJSON(r, &req); err != nil {
				writeFail(w, r, http.StatusBadRequest, "invalid JSON body")
				return
			}
			profile, err := s.app.UpdateProfile(r.Context(), sessionID, app.ProfileUpdateRequest{
				Nickname: req.Nickname,
				Timezone: req.Timezone,
			})
			if err != nil {
				s.writeAppError(w, r, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"user": profile})
		default:
			methodNotAllowed(w, r)
		}
	default:
		s.handleNotFound(w, r)
	}
}
