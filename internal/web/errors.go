package web

// errors.go provides unified error response handling for the web layer.
//
// Technical errors are logged with the request ID; clients receive the
// mapped user message with its code.

import (
	"net/http"

	"github.com/JonMunkholm/tidy/internal/apperr"
	"github.com/JonMunkholm/tidy/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message as JSON.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := apperr.MapError(err)

	logger := logging.WithFields(r.Context(),
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error")
	} else {
		logger.Warn("request rejected")
	}

	// Only errors with a known meaning expose their technical text.
	detail := userMsg.Message
	if apperr.IsUserFacing(err) {
		detail = err.Error()
	}
	writeJSON(w, statusCode, ErrorResponse{
		Error:   detail,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}
