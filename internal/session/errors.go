package session

import (
	"fmt"

	"rollcall/pkg/interfaces"
)

var (
	ErrTeacherOnly      = fmt.Errorf("only teachers can do this: %w", interfaces.ErrForbidden)
	ErrStudentOnly      = fmt.Errorf("only students can do this: %w", interfaces.ErrForbidden)
	ErrNotClassOwner    = fmt.Errorf("class belongs to another teacher: %w", interfaces.ErrForbidden)
	ErrOtherStudent     = fmt.Errorf("students may only read their own attendance: %w", interfaces.ErrForbidden)
	ErrInvalidClassID   = fmt.Errorf("invalid class id: %w", interfaces.ErrInvalidArgument)
	ErrInvalidMark      = fmt.Errorf("invalid mark: %w", interfaces.ErrInvalidArgument)
	ErrNoActiveSession  = fmt.Errorf("no active attendance session: %w", interfaces.ErrNotFound)
	ErrNotEnrolled      = fmt.Errorf("student is not enrolled in this class: %w", interfaces.ErrNotFound)
	ErrAlreadyActive    = fmt.Errorf("attendance session already active: %w", interfaces.ErrConflict)
)
