package api

import (
	"fmt"

	"rollcall/pkg/interfaces"
)

var (
	ErrInvalidBody     = fmt.Errorf("request body is not valid JSON: %w", interfaces.ErrInvalidArgument)
	ErrTeacherOnly     = fmt.Errorf("only teachers can do this: %w", interfaces.ErrForbidden)
	ErrStudentOnly     = fmt.Errorf("only students can do this: %w", interfaces.ErrForbidden)
	ErrNotClassMember  = fmt.Errorf("not a member of this class: %w", interfaces.ErrForbidden)
	ErrInvalidClassID  = fmt.Errorf("invalid class id: %w", interfaces.ErrInvalidArgument)
	ErrMissingIdentity = fmt.Errorf("request is not authenticated: %w", interfaces.ErrUnauthorized)
)
