package interfaces

import (
	"context"

	"rollcall/pkg/types"
)

// EnrollmentRepository owns classes and their enrolled students.
type EnrollmentRepository interface {
	CreateClass(ctx context.Context, class *types.Class) error
	GetClass(ctx context.Context, classID string) (*types.Class, error)
	AddStudent(ctx context.Context, classID, studentID string) error
	ListEnrolled(ctx context.Context, classID string) ([]string, error)
	IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
}

// PersistenceSink records final attendance when a session closes.
type PersistenceSink interface {
	// WriteRecord upserts one record keyed by (session, student). Writing the
	// same record twice leaves one row.
	WriteRecord(ctx context.Context, record *types.AttendanceRecord) error

	// CountByStatus counts durable records of one close event.
	CountByStatus(ctx context.Context, classID, sessionID string, status types.Status) (int, error)
}

// UserRepository owns accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, userID string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	ListStudents(ctx context.Context) ([]*types.User, error)
}

// DatabaseManager is the durable store behind all three repositories.
type DatabaseManager interface {
	EnrollmentRepository
	PersistenceSink
	UserRepository

	// ListStudentRecords returns a student's closed records for a class,
	// newest first.
	ListStudentRecords(ctx context.Context, classID, studentID string) ([]*types.AttendanceRecord, error)

	HealthCheck(ctx context.Context) error
	Close() error
}
