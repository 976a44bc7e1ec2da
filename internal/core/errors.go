package core

// errors.go defines the error taxonomy for the catalog core and maps errors to
// user-friendly messages with codes for support reference.
//
// Sentinels are matched with errors.Is, so callers wrap them with %w and the
// transports can pick status codes without parsing strings:
//
//	CAT001 - Not found: referenced product or admin is absent
//	CAT002 - Degraded value: a cell failed to parse and fell back to its default
//	CAT003 - Upstream unavailable: store or document fetch failed after retries
//	CAT004 - Malformed input: structurally broken tabular data
//	CAT005 - Permission denied: caller is not an administrator
//	CAT006 - Invalid input: request arguments failed validation
//	CAT007 - System busy: too many imports in progress
//	CAT008 - Timeout: the operation or request deadline expired
//
// ERR000 is the fallback when nothing matches; check the logs for the
// original technical error.

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidationDegraded  = errors.New("value degraded to default")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedInput      = errors.New("malformed input")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInvalidInput        = errors.New("invalid input")
	ErrTooManyImports      = errors.New("too many concurrent imports, please try again later")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorMapping ties a sentinel to its user message. Order matters: the first
// sentinel found in the chain wins.
type errorMapping struct {
	target error
	msg    UserMessage
}

var errorMappings = []errorMapping{
	{
		target: ErrPermissionDenied,
		msg: UserMessage{
			Message: "Access denied",
			Action:  "This operation is available to catalog administrators only",
			Code:    "CAT005",
		},
	},
	{
		target: ErrNotFound,
		msg: UserMessage{
			Message: "The requested record does not exist",
			Action:  "Check the identifier and try again",
			Code:    "CAT001",
		},
	},
	{
		target: ErrMalformedInput,
		msg: UserMessage{
			Message: "The file is not a valid table",
			Action:  "Save it as comma-separated UTF-8 with balanced quotes",
			Code:    "CAT004",
		},
	},
	{
		target: ErrInvalidInput,
		msg: UserMessage{
			Message: "The request contains invalid values",
			Action:  "Review the submitted fields",
			Code:    "CAT006",
		},
	},
	{
		target: ErrTooManyImports,
		msg: UserMessage{
			Message: "Too many imports in progress",
			Action:  "Please wait a moment and try again",
			Code:    "CAT007",
		},
	},
	{
		target: context.DeadlineExceeded,
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "CAT008",
		},
	},
	{
		target: ErrUpstreamUnavailable,
		msg: UserMessage{
			Message: "The catalog store is temporarily unavailable",
			Action:  "Please try again in a few moments",
			Code:    "CAT003",
		},
	},
	{
		target: ErrValidationDegraded,
		msg: UserMessage{
			Message: "Some values could not be read and were replaced with defaults",
			Action:  "Check numeric columns such as price and stock",
			Code:    "CAT002",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message.
// Returns the zero UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.msg
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

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// invalidf builds an ErrInvalidInput error with detail.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
