package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{"NotFound wraps ErrNotFound", NotFound("run", "abc123"), ErrNotFound, true},
		{"ValidationFailed wraps ErrValidation", ValidationFailed("code", "code cannot be empty"), ErrValidation, true},
		{"Conflict wraps ErrConflict", Conflict("snippet", "abc123"), ErrConflict, true},
		{"NotFound is not ErrValidation", NotFound("run", "abc123"), ErrValidation, false},
		{"Forbidden wraps ErrForbidden", Forbidden("you do not own this snippet"), ErrForbidden, true},
		{"Unauthorized wraps ErrUnauthorized", Unauthorized("invalid client credentials"), ErrUnauthorized, true},
		{"SyntaxInvalid wraps ErrSyntax", SyntaxInvalid("invalid syntax (line 1, column 3)"), ErrSyntax, true},
		{"PolicyViolation wraps ErrPolicyViolation", PolicyViolation("identifier", "Use of 'eval' is not allowed"), ErrPolicyViolation, true},
		{"PolicyViolation is not ErrSyntax", PolicyViolation("import", "Import 'os' is not allowed"), ErrSyntax, false},
		{"RuntimeFailed wraps ErrRuntime", RuntimeFailed("ZeroDivisionError('division by zero')"), ErrRuntime, true},
		{"Timeout wraps ErrTimeout", Timeout("execution exceeded 5s"), ErrTimeout, true},
		{"ResourceLimit wraps ErrResourceLimit", ResourceLimit("output exceeded 64 KiB"), ErrResourceLimit, true},
		{"wrapped twice still matches", fmt.Errorf("service: %w", NotFound("run", "x")), ErrNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{"NotFound names resource and id", NotFound("artifact", "r1/chart.pdf"), "artifact not found with id r1/chart.pdf"},
		{"ValidationFailed keeps message", ValidationFailed("name", "name is required"), "name is required"},
		{"Conflict names resource and id", Conflict("snippet", "abc123"), "snippet conflict with id abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	if got := NotFound("run", "abc123").Unwrap(); got != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", got, ErrNotFound)
	}
}

func TestField(t *testing.T) {
	tests := []struct {
		err       *AppError
		wantField string
	}{
		{ValidationFailed("limit", "limit must be a number"), "limit"},
		{SyntaxInvalid("bad"), "syntax"},
		{PolicyViolation("import", "Import 'os' is not allowed"), "import"},
		{PolicyViolation("attribute", "Dunder attribute access is not allowed"), "attribute"},
		{RuntimeFailed("ValueError('x')"), ""},
	}
	for _, tt := range tests {
		if tt.err.Field != tt.wantField {
			t.Errorf("%q: Field = %q, want %q", tt.err.Message, tt.err.Field, tt.wantField)
		}
	}
}
