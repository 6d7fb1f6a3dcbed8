// Package apperr maps technical errors to user-facing messages with codes
// for support reference.
//
// # Error Codes Reference
//
// # Filesystem Errors (IO001-IO099)
//
//	IO001 - Not found: A file or directory does not exist
//	        Action: Check the configured input path
//	IO002 - Permission denied: A file or directory cannot be accessed
//	        Action: Check file permissions for the user running tidy
//	IO003 - Filesystem error: A read, write or move failed
//	        Action: Check free disk space and the path in the message
//
// # Data Errors (SCH001-SCH099, CSV001-CSV099)
//
//	SCH001 - Duplicate column: Two headers normalize to the same name
//	         Action: Rename one of the columns in the source file
//	CSV001 - No header: The CSV input is empty
//	         Action: Provide a file with a header row
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Invalid configuration: A setting or rule is invalid
//	         Action: Fix the setting named in the message
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Too large: The request body exceeds the size limit
//	REQ002 - Busy: Too many normalizations in progress
//	REQ003 - Cancelled: The request was cancelled or timed out
//	REQ004 - History disabled: No run ledger is configured
//
// # Default Error (UNK001)
//
// Fallback when nothing matches. Check the logs for the technical error.
//
// Typed errors are matched with errors.Is and errors.As first. Messages of
// untyped errors are then matched case-insensitively against known patterns;
// the first match wins.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/JonMunkholm/tidy/internal/effects"
	"github.com/JonMunkholm/tidy/internal/tabular"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	notFound = UserMessage{
		Message: "File or directory not found",
		Action:  "Check the configured input path",
		Code:    "IO001",
	}
	permission = UserMessage{
		Message: "Permission denied",
		Action:  "Check file permissions for the user running tidy",
		Code:    "IO002",
	}
	filesystem = UserMessage{
		Message: "A filesystem operation failed",
		Action:  "Check free disk space and the path in the error",
		Code:    "IO003",
	}
	duplicateColumn = UserMessage{
		Message: "Two columns normalize to the same name",
		Action:  "Rename one of the columns in the source file",
		Code:    "SCH001",
	}
	noHeader = UserMessage{
		Message: "The CSV input is empty",
		Action:  "Provide a file with a header row",
		Code:    "CSV001",
	}
	invalidConfig = UserMessage{
		Message: "The configuration is invalid",
		Action:  "Fix the setting named in the error",
		Code:    "CFG001",
	}
	tooLarge = UserMessage{
		Message: "The request body is too large",
		Action:  "Split the file into smaller parts",
		Code:    "REQ001",
	}
	busy = UserMessage{
		Message: "Too many normalizations in progress",
		Action:  "Please wait a moment and try again",
		Code:    "REQ002",
	}
	cancelled = UserMessage{
		Message: "The request was cancelled or timed out",
		Action:  "Please try again",
		Code:    "REQ003",
	}
	historyDisabled = UserMessage{
		Message: "Run history is not enabled",
		Action:  "Set HISTORY_DB to record runs",
		Code:    "REQ004",
	}
)

// defaultMessage is returned when nothing matches (UNK001).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for details",
	Code:    "UNK001",
}

// ErrInvalidConfig marks configuration and rule file errors.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrBusy is returned when a concurrency slot could not be acquired in time.
var ErrBusy = errors.New("too many normalizations in progress")

// ErrTooLarge is returned when an input exceeds its size limit.
var ErrTooLarge = errors.New("request body too large")

// ErrHistoryDisabled is returned when runs are listed without a ledger.
var ErrHistoryDisabled = errors.New("run history is disabled")

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is consulted for errors that carry no type. Specific
// patterns come before general ones.
var errorPatterns = []errorPattern{
	{pattern: "invalid rules", msg: invalidConfig},
	{pattern: "invalid scan options", msg: invalidConfig},
	{pattern: "invalid input delimiter", msg: invalidConfig},
	{pattern: "invalid output delimiter", msg: invalidConfig},
	{pattern: "invalid encoding", msg: invalidConfig},
	{pattern: "unsupported encoding", msg: invalidConfig},
	{pattern: "request body too large", msg: tooLarge},
}

// MapError converts a technical error to a user-friendly message. A nil
// error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var schemaErr *tabular.SchemaError
	var ioErr *effects.IOError
	switch {
	case errors.Is(err, ErrInvalidConfig):
		return invalidConfig
	case errors.Is(err, ErrBusy):
		return busy
	case errors.Is(err, ErrTooLarge):
		return tooLarge
	case errors.Is(err, ErrHistoryDisabled):
		return historyDisabled
	case errors.Is(err, tabular.ErrNoHeader):
		return noHeader
	case errors.As(err, &schemaErr):
		return duplicateColumn
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return cancelled
	case errors.Is(err, fs.ErrNotExist):
		return notFound
	case errors.Is(err, fs.ErrPermission):
		return permission
	case errors.As(err, &ioErr):
		return filesystem
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matched something more specific than UNK001.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
