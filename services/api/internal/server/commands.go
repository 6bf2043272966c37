package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"termfolio/internal/util"
	"termfolio/services/api/internal/app"
)

type executeRequest struct {
	Command   string `json:"command"`
	SessionID string `json:"sessionId"`
	Nickname  string `json:"nickname"`
	Timezone  string `json:"timezone"`
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	cmds, err := s.app.ListCommands(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"commands": cmds})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.Execute(r.Context(), app.ExecuteRequest{
		Command:   req.Command,
		SessionID: firstNonEmpty(req.SessionID, r.Header.Get("X-Session-ID")),
		Nickname:  firstNonEmpty(req.Nickname, r.Header.Get("X-User-Nickname")),
		Timezone:  firstNonEmpty(req.Timezone, r.Header.Get("X-User-Timezone")),
		Country:   util.VisitorCountry(r),
		IPAddress: s.clientIP(r),
		UserAgent: util.UserAgent(r),
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// handleCommandByName serves /api/commands/{name}/response and
// /api/commands/download/{fileType}.
func (s *Server) handleCommandByName(w http.ResponseWriter, r *http.Request) {
	parts, ok := pathSegments(r, "/api/commands/")
	if !ok || len(parts) != 2 {
		s.handleNotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	switch {
	case parts[0] == "download":
		s.handleDownload(w, r, parts[1])
	case parts[1] == "response":
		resp, err := s.app.GetResponse(r.Context(), parts[0])
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, resp)
	default:
		s.handleNotFound(w, r)
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, fileType string) {
	sessionID := firstNonEmpty(r.URL.Query().Get("sessionId"), r.Header.Get("X-Session-ID"))
	rc, file, err := s.app.Download(r.Context(), app.DownloadRequest{
		FileType:  fileType,
		SessionID: sessionID,
		IPAddress: s.clientIP(r),
		UserAgent: util.UserAgent(r),
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	if file.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		util.LoggerFromContext(r.Context()).Warn("download_stream_interrupted", "file", file.FileName, "err", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
