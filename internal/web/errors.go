package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls writeError(w, r, err, status), or respondError to derive status
//  3. Error is mapped via core.MapError to get a user-friendly message
//  4. Technical error and context are logged with the request ID
//  5. User message is rendered as JSON for API routes, HTML otherwise

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/JonMunkholm/printshelf/internal/core"
	"github.com/JonMunkholm/printshelf/internal/logging"
	"github.com/JonMunkholm/printshelf/internal/store"
	"github.com/JonMunkholm/printshelf/internal/web/templates"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError picks the status from the error and writes it.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, err, statusFor(err))
}

// writeError logs the technical error and writes the user-facing message.
func writeError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Info("request rejected", attrs...)
	}

	if wantsJSON(r) {
		writeJSON(w, status, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Page("Error", templates.ErrorAlert(msg.Message, msg.Action, msg.Code)).Render(r.Context(), w)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, core.ErrInvalidID), errors.Is(err, core.ErrInvalidFileName):
		return http.StatusNotFound
	case errors.Is(err, core.ErrFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrInvalidPackage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNoFile), errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrInvalidField), errors.Is(err, store.ErrUnknownColumn),
		errors.Is(err, store.ErrNoFields), errors.Is(err, store.ErrUnknownStat):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyUploads), errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrExtractTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// wantsJSON reports whether the client should get a JSON error body.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// clientIP returns the host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
