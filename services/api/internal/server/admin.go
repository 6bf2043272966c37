package server

import (
	"errors"
	"net/http"
	"strconv"

	"termfolio/services/api/internal/app"
)

type adminLoginRequest struct {
	Password string `json:"password"`
}

type adminCommandRequest struct {
	Description  string `json:"description"`
	Category     string `json:"category"`
	ResponseType string `json:"responseType"`
	IsActive     *bool  `json:"isActive"`
}

type adminResponseRequest struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
	IsActive    *bool  `json:"isActive"`
}

type adminHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) adminOnly(next adminHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "api.admin.authorize", "fail", "reason", "missing_token")
			writeFail(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		tokenID, err := s.app.VerifyAdmin(r.Context(), token)
		if err != nil {
			s.audit(r, "api.admin.authorize", "fail", "reason", err.Error())
			s.writeAppError(w, r, err)
			return
		}
		s.audit(r, "api.admin.authorize", "success", "token_id", tokenID)
		next(w, r, tokenID)
	})
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if !s.allowRate(w, r, "admin-login") {
		s.audit(r, "api.admin.login", "rate_limited")
		return
	}
	var req adminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, "api.admin.login", "fail", "reason", "invalid_json")
		writeFail(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	session, err := s.app.AdminLogin(r.Context(), req.Password)
	if err != nil {
		s.audit(r, "api.admin.login", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.admin.login", "success")
	writeData(w, http.StatusOK, session)
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "api.admin.logout", "fail", "reason", "missing_token")
		writeFail(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.AdminLogout(r.Context(), token); err != nil {
		s.audit(r, "api.admin.logout", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.admin.logout", "success")
	writeMessage(w, "Logged out")
}

// handleAdminCommand serves PUT /api/admin/commands/{name} and
// POST /api/admin/commands/{name}/responses.
func (s *Server) handleAdminCommand(w http.ResponseWriter, r *http.Request, tokenID string) {
	parts, ok := pathSegments(r, "/api/admin/commands/")
	if !ok || len(parts) == 0 || len(parts) > 2 {
		s.handleNotFound(w, r)
		return
	}
	name := parts[0]
	if len(parts) == 1 {
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r)
			return
		}
		var req adminCommandRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFail(w, r, http.StatusBadRequest, "invalid JSON body")
			return
		}
		cmd, err := s.app.UpsertCommand(r.Context(), name, app.UpsertCommandRequest{
			Description:  req.Description,
			Category:     req.Category,
			ResponseKind: req.ResponseType,
			Active:       req.IsActive,
		})
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		s.audit(r, "api.admin.command.upsert", "success", "token_id", tokenID, "command", cmd.Name)
		writeData(w, http.StatusOK, map[string]any{"command": cmd})
		return
	}
	if parts[1] != "responses" {
		s.handleNotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var req adminResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	resp, err := s.app.AddResponse(r.Context(), name, app.AddResponseRequest{
		Content:     req.Content,
		ContentType: req.ContentType,
		Active:      req.IsActive,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.admin.response.add", "success", "token_id", tokenID, "command", resp.CommandName, "version", resp.Version)
	writeData(w, http.StatusCreated, map[string]any{"response": resp})
}

// handleAdminAsset serves PUT /api/admin/assets/{fileType} with the raw file
// as the request body.
func (s *Server) handleAdminAsset(w http.ResponseWriter, r *http.Request, tokenID string) {
	parts, ok := pathSegments(r, "/api/admin/assets/")
	if !ok || len(parts) != 1 {
		s.handleNotFound(w, r)
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r)
		return
	}
	if r.ContentLength > s.maxUploadBytes {
		writeFail(w, r, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	body := http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	meta, err := s.app.UploadAsset(r.Context(), parts[0], body, r.ContentLength)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFail(w, r, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.admin.asset.upload", "success", "token_id", tokenID, "file_type", parts[0], "size", meta.Size)
	writeData(w, http.StatusOK, map[string]any{"fileType": parts[0], "sizeBytes": meta.Size, "pages": meta.Pages})
}

func (s *Server) handleAdminJobs(w http.ResponseWriter, r *http.Request, _ string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	if s.scheduler == nil {
		writeData(w, http.StatusOK, map[string]any{"jobs": []any{}})
		return
	}
	writeData(w, http.StatusOK, map[string]any{"jobs": s.scheduler.Status()})
}

// handleAdminJobByName serves POST /api/admin/jobs/{name}/{run|start|stop}.
func (s *Server) handleAdminJobByName(w http.ResponseWriter, r *http.Request, tokenID string) {
	parts, ok := pathSegments(r, "/api/admin/jobs/")
	if !ok || len(parts) != 2 {
		s.handleNotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if s.scheduler == nil {
		writeFail(w, r, http.StatusServiceUnavailable, "scheduler disabled")
		return
	}
	name, action := parts[0], parts[1]
	var err error
	switch action {
	case "run":
		err = s.scheduler.RunNow(r.Context(), name)
	case "start":
		err = s.scheduler.Start(name)
	case "stop":
		err = s.scheduler.Stop(name)
	default:
		s.handleNotFound(w, r)
		return
	}
	if err != nil {
		s.audit(r, "api.admin.job."+action, "fail", "token_id", tokenID, "job", name, "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.admin.job."+action, "success", "token_id", tokenID, "job", name)
	writeData(w, http.StatusOK, map[string]any{"job": name, "action": action})
}

// handleDeadLetters serves GET /api/admin/retries/dead?limit=N.
func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request, _ string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	if s.deadLetters == nil {
		writeFail(w, r, http.StatusServiceUnavailable, "retry queue disabled")
		return
	}
	limit := int64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > 500 {
			writeFail(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	jobs, err := s.deadLetters.DeadLetters(r.Context(), limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}
