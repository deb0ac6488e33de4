package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Snippet outcomes. Every rejected or failed snippet wraps exactly one of
// these so callers can branch with errors.Is.
var (
	ErrSyntax          = errors.New("syntax error")
	ErrPolicyViolation = errors.New("policy violation")
	ErrRuntime         = errors.New("runtime error")
	ErrTimeout         = errors.New("timeout")
	ErrResourceLimit   = errors.New("resource limit")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when credentials are missing or wrong.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// SyntaxInvalid reports snippet source that does not parse.
func SyntaxInvalid(message string) *AppError {
	return &AppError{
		Err:     ErrSyntax,
		Message: message,
		Field:   "syntax",
	}
}

// PolicyViolation reports snippet source that parses but breaks a policy
// rule. rule is one of "import", "identifier" or "attribute".
func PolicyViolation(rule, message string) *AppError {
	return &AppError{
		Err:     ErrPolicyViolation,
		Message: message,
		Field:   rule,
	}
}

// RuntimeFailed wraps the repr of an exception raised by a snippet.
func RuntimeFailed(message string) *AppError {
	return &AppError{
		Err:     ErrRuntime,
		Message: message,
	}
}

func Timeout(message string) *AppError {
	return &AppError{
		Err:     ErrTimeout,
		Message: message,
	}
}

func ResourceLimit(message string) *AppError {
	return &AppError{
		Err:     ErrResourceLimit,
		Message: message,
	}
}
