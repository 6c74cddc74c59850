package types

import (
	"time"
)

// Role is the role bound to a connection at handshake.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Status is a student's attendance status.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"

	// StatusNotMarked is reported to a student who has no mark yet in the
	// live session. It is never stored.
	StatusNotMarked Status = "not_marked"
)

// SessionState tracks whether a live session still accepts marks.
type SessionState string

const (
	SessionActive  SessionState = "active"
	SessionClosing SessionState = "closing"
)

// CloseOutcome reports how a session close went.
type CloseOutcome string

const (
	CloseOutcomeClosed           CloseOutcome = "closed"
	CloseOutcomeClosedWithErrors CloseOutcome = "closed_with_errors"
)

// Identity is the (userId, role) pair established when a connection or
// request is authenticated. It is passed by value and never mutated.
type Identity struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// IsTeacher reports whether the identity carries the teacher role.
func (i Identity) IsTeacher() bool { return i.Role == RoleTeacher }

// IsStudent reports whether the identity carries the student role.
func (i Identity) IsStudent() bool { return i.Role == RoleStudent }

// Session is the live attendance session for a class. At most one exists per
// class at any time and it lives only in the session store.
type Session struct {
	ID        string        `json:"sessionId"`
	ClassID   string        `json:"classId"`
	TeacherID string        `json:"teacherId"`
	StartedAt time.Time     `json:"startedAt"`
	TTL       time.Duration `json:"-"`
	State     SessionState  `json:"state"`
}

// ExpiresAt returns when the session lapses if nobody closes it.
func (s *Session) ExpiresAt() time.Time {
	return s.StartedAt.Add(s.TTL)
}

// IsActive reports whether the session still accepts marks.
func (s *Session) IsActive() bool {
	return s.State == SessionActive
}

// AttendanceRecord is the durable per-student result written when a session
// closes. One record exists per (session, student).
type AttendanceRecord struct {
	ID         string    `json:"id" db:"id"`
	SessionID  string    `json:"sessionId" db:"session_id"`
	ClassID    string    `json:"classId" db:"class_id"`
	StudentID  string    `json:"studentId" db:"student_id"`
	Status     Status    `json:"status" db:"status"`
	RecordedAt time.Time `json:"recordedAt" db:"recorded_at"`
}

// Summary is the live tally of marks recorded so far.
type Summary struct {
	ClassID string `json:"classId"`
	Total   int    `json:"total"`
	Present int    `json:"present"`
	Absent  int    `json:"absent"`
}

// MarkRecorded describes an accepted attendance mark.
type MarkRecorded struct {
	ClassID   string `json:"classId"`
	StudentID string `json:"studentId"`
	Status    Status `json:"status"`
}

// PersonalStatus is a single student's view of their own mark.
type PersonalStatus struct {
	ClassID   string `json:"classId"`
	StudentID string `json:"studentId"`
	Status    Status `json:"status"`
	Marked    bool   `json:"marked"`
}

// CloseResult is broadcast when a session closes. Counts come from durable
// storage, so Total is the enrollment size.
type CloseResult struct {
	ClassID        string       `json:"classId"`
	SessionID      string       `json:"sessionId"`
	Total          int          `json:"total"`
	Present        int          `json:"present"`
	Absent         int          `json:"absent"`
	Outcome        CloseOutcome `json:"outcome"`
	FailedStudents []string     `json:"failedStudents,omitempty"`
	Errors         []string     `json:"errors,omitempty"`
}

// User is an account that can sign in as a teacher or a student.
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Class is owned by one teacher and has an enrolled set of students.
type Class struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"className" db:"name"`
	TeacherID  string    `json:"teacherId" db:"teacher_id"`
	StudentIDs []string  `json:"studentIds"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// IsOwnedBy reports whether userID is the class's teacher.
func (c *Class) IsOwnedBy(userID string) bool {
	return c.TeacherID == userID
}
