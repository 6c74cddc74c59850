package interfaces

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every component. Package errors wrap one of these
// so callers can classify with errors.Is.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrFailed          = errors.New("failed")
)

// Store-level errors.
var (
	ErrSessionNotFound      = fmt.Errorf("attendance session %w", ErrNotFound)
	ErrSessionAlreadyActive = fmt.Errorf("attendance session already active: %w", ErrConflict)
)

// Wire codes for the taxonomy.
const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeFailed          = "FAILED"
)

// ErrorCode classifies err into a wire code. Errors outside the taxonomy are
// reported as FAILED.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	default:
		return CodeFailed
	}
}
