package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"termfolio/internal/scheduler"
	"termfolio/internal/util"
	"termfolio/pkg/commands"
	"termfolio/services/api/internal/app"
)

const genericErrorMessage = "Something went wrong!"

type successEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorEnvelope struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Code      int               `json:"code"`
	RequestID string            `json:"requestId,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{Status: "success", Data: data})
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, successEnvelope{Status: "success", Message: msg})
}

// writeFail reports a client error (4xx).
func writeFail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorEnvelope{
		Status:    "fail",
		Message:   msg,
		Code:      status,
		RequestID: util.RequestIDFromRequest(r),
	})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeFail(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// writeAppError maps app errors onto the envelope. Unexpected errors are
// logged in full; production responses carry a generic message.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *app.ValidationError
	var notFound *app.CommandNotFoundError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorEnvelope{
			Status:    "fail",
			Message:   verr.Error(),
			Code:      http.StatusBadRequest,
			RequestID: util.RequestIDFromRequest(r),
			Errors:    verr.Fields,
		})
	case errors.As(err, &notFound):
		writeFail(w, r, http.StatusNotFound, notFound.Error())
	case errors.Is(err, app.ErrUserNotFound),
		errors.Is(err, app.ErrSessionNotFound),
		errors.Is(err, app.ErrFileNotFound):
		writeFail(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, commands.ErrResponseMissing):
		writeFail(w, r, http.StatusNotFound, "Command response not found")
	case errors.Is(err, scheduler.ErrUnknownJob):
		writeFail(w, r, http.StatusNotFound, "Job not found")
	case errors.Is(err, app.ErrInvalidCredentials):
		writeFail(w, r, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, app.ErrAdminDisabled), errors.Is(err, app.ErrStorageDisabled):
		writeFail(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request_failed",
			"path", r.URL.Path,
			"method", r.Method,
			"err", err,
		)
		msg := err.Error()
		if s.app.Production() {
			msg = genericErrorMessage
		}
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{
			Status:    "error",
			Message:   msg,
			Code:      http.StatusInternalServerError,
			RequestID: util.RequestIDFromRequest(r),
		})
	}
}
