package types

import (
	"net/mail"
	"regexp"
	"strings"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidID checks the shape of user, class and session ids.
func IsValidID(id string) bool {
	if len(id) < 1 || len(id) > 64 {
		return false
	}
	return idRegex.MatchString(id)
}

// ParseStatus accepts "present" or "absent" in any letter case.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPresent:
		return StatusPresent, nil
	case StatusAbsent:
		return StatusAbsent, nil
	default:
		return "", ErrInvalidStatus
	}
}

// ParseRole accepts "teacher" or "student" in any letter case.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleTeacher:
		return RoleTeacher, nil
	case RoleStudent:
		return RoleStudent, nil
	default:
		return "", ErrInvalidRole
	}
}

// Validate checks the shape of a mark before any lookup happens.
func (p *MarkPayload) Validate() error {
	if !IsValidID(p.ClassID) || !IsValidID(p.StudentID) {
		return ErrInvalidID
	}
	_, err := ParseStatus(p.Status)
	return err
}

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Validate normalises the email and role and checks field lengths.
func (r *SignupRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if len(r.Name) < 4 || len(r.Name) > 20 {
		return ErrInvalidName
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if len(r.Password) < 6 || len(r.Password) > 64 {
		return ErrInvalidPassword
	}
	role, err := ParseRole(r.Role)
	if err != nil {
		return err
	}
	r.Role = string(role)
	return nil
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if len(r.Password) < 6 || len(r.Password) > 64 {
		return ErrInvalidPassword
	}
	return nil
}

// CreateClassRequest is the body of POST /api/classes.
type CreateClassRequest struct {
	ClassName string `json:"className"`
}

func (r *CreateClassRequest) Validate() error {
	r.ClassName = strings.TrimSpace(r.ClassName)
	if len(r.ClassName) < 3 || len(r.ClassName) > 100 {
		return ErrInvalidClassName
	}
	return nil
}

// AddStudentRequest is the body of POST /api/classes/{classId}/students.
type AddStudentRequest struct {
	StudentID string `json:"studentId"`
}

func (r *AddStudentRequest) Validate() error {
	if !IsValidID(r.StudentID) {
		return ErrInvalidID
	}
	return nil
}

// StartSessionRequest is the body of POST /api/attendance/start.
type StartSessionRequest struct {
	ClassID string `json:"classId"`
}

func (r *StartSessionRequest) Validate() error {
	if !IsValidID(r.ClassID) {
		return ErrInvalidID
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return ErrInvalidEmail
	}
	return nil
}
