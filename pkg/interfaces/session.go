package interfaces

import (
	"context"
	"time"

	"rollcall/pkg/types"
)

// SessionStore holds live session state outside the process. Every mutating
// method is atomic in the backing store.
type SessionStore interface {
	// Create opens a session for classID unless one exists. It returns
	// ErrSessionAlreadyActive when the slot is taken.
	Create(ctx context.Context, classID, teacherID string, ttl time.Duration) (*types.Session, error)

	// Get returns the session for classID or ErrSessionNotFound.
	Get(ctx context.Context, classID string) (*types.Session, error)

	// SetMark upserts a mark. It returns false when no active session exists.
	// The mark set expires together with the session.
	SetMark(ctx context.Context, classID, studentID string, status types.Status) (bool, error)

	// GetMark returns one student's mark and whether it exists.
	GetMark(ctx context.Context, classID, studentID string) (types.Status, bool, error)

	// AllMarks returns every mark recorded for classID.
	AllMarks(ctx context.Context, classID string) (map[string]types.Status, error)

	// BeginClose moves an active session to closing and returns it. Only one
	// caller can win; the rest get ErrSessionNotFound.
	BeginClose(ctx context.Context, classID string) (*types.Session, error)

	// Close removes the session and its marks.
	Close(ctx context.Context, classID string) error

	HealthCheck(ctx context.Context) error
}

// Coordinator runs the per-class attendance state machine. Every operation
// takes the caller's identity and checks role before touching state.
type Coordinator interface {
	StartSession(ctx context.Context, caller types.Identity, classID string) (*types.Session, error)
	MarkAttendance(ctx context.Context, caller types.Identity, classID, studentID, status string) (*types.MarkRecorded, error)
	GetSummary(ctx context.Context, caller types.Identity, classID string) (*types.Summary, error)
	GetPersonalStatus(ctx context.Context, caller types.Identity, classID, studentID string) (*types.PersonalStatus, error)
	CloseSession(ctx context.Context, caller types.Identity, classID string) (*types.CloseResult, error)
}
