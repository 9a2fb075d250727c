package core

// error_messages.go maps technical errors to coded, user-facing messages.
//
// Codes are grouped by category so support staff can tell at a glance where
// a failure came from:
//
//	TPL001-TPL099  template and schema problems
//	VAL001-VAL099  record validation
//	STO001-STO099  storage and database
//	IMP001-IMP099  imports and uploaded files
//	REQ001         malformed requests
//	RATE001        request throttling
//	ERR000         anything unrecognised
//
// Sentinel errors are matched first with errors.Is. Remaining errors fall
// back to case-insensitive substring patterns, first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// sentinelMessages is checked before the pattern table.
var sentinelMessages = []sentinelMessage{
	{
		err: ErrInvalidSpecification,
		msg: UserMessage{
			Message: "The template definition is not valid",
			Action:  "Check that every column has a unique label and a supported data type",
			Code:    "TPL001",
		},
	},
	{
		err: ErrNotFound,
		msg: UserMessage{
			Message: "The requested item was not found",
			Action:  "Refresh the page and verify the identifier",
			Code:    "TPL002",
		},
	},
	{
		err: ErrTooManyImports,
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP002",
		},
	},
	{
		err: ErrTimeout,
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "STO003",
		},
	},
	{
		err: ErrStorageUnavailable,
		msg: UserMessage{
			Message: "Storage is temporarily unavailable",
			Action:  "Please try again in a few moments",
			Code:    "STO001",
		},
	},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages. More specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate column label",
		msg: UserMessage{
			Message: "Two columns share the same label",
			Action:  "Rename one of the columns",
			Code:    "TPL003",
		},
	},
	{
		pattern: "unknown data type",
		msg: UserMessage{
			Message: "A column uses an unsupported data type",
			Action:  "Use Number, Text, Date, Boolean or Email",
			Code:    "TPL004",
		},
	},
	{
		pattern: "date format",
		msg: UserMessage{
			Message: "The template date format is not recognised",
			Action:  "Use tokens such as YYYY, MM and DD, for example YYYY-MM-DD",
			Code:    "TPL005",
		},
	},
	{
		pattern: "base template",
		msg: UserMessage{
			Message: "The base template could not be used",
			Action:  "Verify the base template still exists",
			Code:    "TPL006",
		},
	},
	{
		pattern: "unknown column",
		msg: UserMessage{
			Message: "The column is not part of this template",
			Action:  "Check the column label against the template",
			Code:    "VAL001",
		},
	},
	{
		pattern: "missing fields",
		msg: UserMessage{
			Message: "The record has no fields",
			Action:  "Send the record as a JSON object of label to value",
			Code:    "VAL002",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Retry the operation to generate a new ID",
			Code:    "STO002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to storage",
			Action:  "Please try again in a few moments",
			Code:    "STO001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Storage connection was interrupted",
			Action:  "Please try again",
			Code:    "STO004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "STO003",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Storage was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "STO005",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "IMP001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated with consistent columns",
			Code:    "IMP003",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "File is not a valid Excel workbook",
			Action:  "Save the file as .xlsx or export it to CSV",
			Code:    "IMP004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file to import",
			Code:    "IMP005",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header row and data rows",
			Code:    "IMP006",
		},
	},
	{
		pattern: "no matching columns",
		msg: UserMessage{
			Message: "None of the file's headers match the template",
			Action:  "Verify the header row uses the template's column labels",
			Code:    "IMP007",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP008",
		},
	},
	{
		pattern: "bad request",
		msg: UserMessage{
			Message: "The request could not be understood",
			Action:  "Check the request body and parameters",
			Code:    "REQ001",
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

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Sentinels win over text patterns; unmatched errors get ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	// Specific text beats the generic invalid-specification sentinel.
	if errors.Is(err, ErrInvalidSpecification) {
		for _, ep := range errorPatterns {
			if isRequestCode(ep.msg.Code) && strings.Contains(errStr, ep.pattern) {
				return ep.msg
			}
		}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// isRequestCode reports whether code describes a problem with the caller's
// input rather than with the service.
func isRequestCode(code string) bool {
	for _, prefix := range []string{"TPL", "VAL", "IMP"} {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
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

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
