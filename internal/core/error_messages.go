package core

// error_messages.go maps technical errors to user-facing messages with codes
// for support reference. Codes are grouped by category:
//
//	PKG001-PKG099   package validation and extraction
//	FILE001-FILE099 upload file handling
//	UPL001-UPL099   upload slots and request lifetime
//	VAL001-VAL099   model field edits
//	DB001-DB099     database operations
//	RATE001         request throttling
//	ERR000          fallback when nothing matches
//
// Patterns are matched case-insensitively with strings.Contains against the
// full error chain text. The first matching pattern wins, so more specific
// patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Package validation. Reasons come from profile.Validate.
	{
		pattern: "must have .3mf extension",
		msg: UserMessage{
			Message: "Only .3mf project files are accepted",
			Action:  "Export the project from your slicer as a 3MF file",
			Code:    "PKG001",
		},
	},
	{
		pattern: "not a valid zip archive",
		msg: UserMessage{
			Message: "The file is not a valid 3MF package",
			Action:  "Re-export the project; the file may be truncated or renamed",
			Code:    "PKG002",
		},
	},
	{
		pattern: "missing [content_types].xml",
		msg: UserMessage{
			Message: "The 3MF package is missing its content type manifest",
			Action:  "Re-export the project from your slicer",
			Code:    "PKG003",
		},
	},
	{
		pattern: "missing .model file",
		msg: UserMessage{
			Message: "The 3MF package contains no model",
			Action:  "Make sure the project contains at least one object before exporting",
			Code:    "PKG004",
		},
	},
	{
		pattern: "extraction timed out",
		msg: UserMessage{
			Message: "Reading the print profile took too long",
			Action:  "Try again, or upload a smaller project",
			Code:    "PKG005",
		},
	},
	{
		pattern: "invalid package",
		msg: UserMessage{
			Message: "The 3MF package could not be read",
			Action:  "Re-export the project and try again",
			Code:    "PKG006",
		},
	},

	// Upload files.
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Remove unused plates or embedded G-code and export again",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a .3mf file to upload",
			Code:    "FILE002",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a non-empty .3mf file",
			Code:    "FILE003",
		},
	},
	{
		pattern: "invalid file name",
		msg: UserMessage{
			Message: "File not found",
			Action:  "Check the link and try again",
			Code:    "FILE004",
		},
	},

	// Upload slots and request lifetime.
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try uploading a smaller file or check your connection",
			Code:    "UPL003",
		},
	},

	// Model edits.
	{
		pattern: "invalid model id",
		msg: UserMessage{
			Message: "Model not found",
			Action:  "Check the link and try again",
			Code:    "VAL001",
		},
	},
	{
		pattern: "unknown or read-only column",
		msg: UserMessage{
			Message: "That field cannot be changed",
			Action:  "Edit only title, description, category, tags, license or featured",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid field value",
		msg: UserMessage{
			Message: "A field has the wrong type",
			Action:  "Text fields take strings, tags take a list of strings and featured takes true or false",
			Code:    "VAL003",
		},
	},
	{
		pattern: "no fields to update",
		msg: UserMessage{
			Message: "Nothing to update",
			Action:  "Include at least one field to change",
			Code:    "VAL004",
		},
	},
	{
		pattern: "unknown stat",
		msg: UserMessage{
			Message: "Unknown counter",
			Action:  "Use downloads, likes or views",
			Code:    "VAL005",
		},
	},

	// Database.
	{
		pattern: "model not found",
		msg: UserMessage{
			Message: "Model not found",
			Action:  "It may have been deleted",
			Code:    "DB001",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A model with this ID already exists",
			Action:  "Please try the upload again",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000). Support staff
// should check the application logs for the technical error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A nil error
// maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matched a specific pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err and keeps the original for logging. Returns nil if
// err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
