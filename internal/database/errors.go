package database

import (
	"fmt"

	"rollcall/pkg/interfaces"
)

var (
	ErrManagerClosed = fmt.Errorf("database manager is closed: %w", interfaces.ErrFailed)
	ErrWriteTimeout  = fmt.Errorf("database write timed out: %w", interfaces.ErrFailed)

	ErrUserNotFound    = fmt.Errorf("user %w", interfaces.ErrNotFound)
	ErrClassNotFound   = fmt.Errorf("class %w", interfaces.ErrNotFound)
	ErrEmailTaken      = fmt.Errorf("email already registered: %w", interfaces.ErrConflict)
	ErrAlreadyEnrolled = fmt.Errorf("student already enrolled: %w", interfaces.ErrConflict)
	ErrNotAStudent     = fmt.Errorf("user is not a student: %w", interfaces.ErrInvalidArgument)
)
