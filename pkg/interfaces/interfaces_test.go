package interfaces_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"rollcall/pkg/interfaces"
	"rollcall/pkg/types"
)

// Mock implementations for testing

type mockConnection struct{}

func (m *mockConnection) WriteJSON(v interface{}) error { return nil }
func (m *mockConnection) Close() error                  { return nil }
func (m *mockConnection) ID() string                    { return "" }
func (m *mockConnection) Identity() types.Identity      { return types.Identity{} }

type mockStore struct{}

func (m *mockStore) Create(ctx context.Context, classID, teacherID string, ttl time.Duration) (*types.Session, error) {
	return nil, nil
}
func (m *mockStore) Get(ctx context.Context, classID string) (*types.Session, error) { return nil, nil }
func (m *mockStore) SetMark(ctx context.Context, classID, studentID string, status types.Status) (bool, error) {
	return false, nil
}
func (m *mockStore) GetMark(ctx context.Context, classID, studentID string) (types.Status, bool, error) {
	return "", false, nil
}
func (m *mockStore) AllMarks(ctx context.Context, classID string) (map[string]types.Status, error) {
	return nil, nil
}
func (m *mockStore) BeginClose(ctx context.Context, classID string) (*types.Session, error) {
	return nil, nil
}
func (m *mockStore) Close(ctx context.Context, classID string) error { return nil }
func (m *mockStore) HealthCheck(ctx context.Context) error          { return nil }

type mockRouter struct{}

func (m *mockRouter) Route(ctx context.Context, caller types.Identity, data []byte) types.Delivery {
	return types.Delivery{}
}

type mockDB struct{}

func (m *mockDB) CreateClass(ctx context.Context, class *types.Class) error { return nil }
func (m *mockDB) GetClass(ctx context.Context, classID string) (*types.Class, error) {
	return nil, nil
}
func (m *mockDB) AddStudent(ctx context.Context, classID, studentID string) error { return nil }
func (m *mockDB) ListEnrolled(ctx context.Context, classID string) ([]string, error) {
	return nil, nil
}
func (m *mockDB) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	return false, nil
}
func (m *mockDB) WriteRecord(ctx context.Context, record *types.AttendanceRecord) error { return nil }
func (m *mockDB) CountByStatus(ctx context.Context, classID, sessionID string, status types.Status) (int, error) {
	return 0, nil
}
func (m *mockDB) CreateUser(ctx context.Context, user *types.User) error { return nil }
func (m *mockDB) GetUser(ctx context.Context, userID string) (*types.User, error) {
	return nil, nil
}
func (m *mockDB) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	return nil, nil
}
func (m *mockDB) ListStudents(ctx context.Context) ([]*types.User, error) { return nil, nil }
func (m *mockDB) ListStudentRecords(ctx context.Context, classID, studentID string) ([]*types.AttendanceRecord, error) {
	return nil, nil
}
func (m *mockDB) HealthCheck(ctx context.Context) error { return nil }
func (m *mockDB) Close() error                          { return nil }

func TestInterfaces_Compliance(t *testing.T) {
	var _ interfaces.Connection = &mockConnection{}
	var _ interfaces.SessionStore = &mockStore{}
	var _ interfaces.EventRouter = &mockRouter{}
	var _ interfaces.DatabaseManager = &mockDB{}
	var _ interfaces.PersistenceSink = &mockDB{}
	var _ interfaces.EnrollmentRepository = &mockDB{}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unauthorized", interfaces.ErrUnauthorized, interfaces.CodeUnauthorized},
		{"wrapped forbidden", fmt.Errorf("only teachers: %w", interfaces.ErrForbidden), interfaces.CodeForbidden},
		{"session already active", interfaces.ErrSessionAlreadyActive, interfaces.CodeConflict},
		{"session not found", interfaces.ErrSessionNotFound, interfaces.CodeNotFound},
		{"invalid argument", fmt.Errorf("status: %w", interfaces.ErrInvalidArgument), interfaces.CodeInvalidArgument},
		{"unclassified", errors.New("disk on fire"), interfaces.CodeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := interfaces.ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestStoreErrors_WrapTaxonomy(t *testing.T) {
	if !errors.Is(interfaces.ErrSessionNotFound, interfaces.ErrNotFound) {
		t.Error("ErrSessionNotFound should wrap ErrNotFound")
	}
	if !errors.Is(interfaces.ErrSessionAlreadyActive, interfaces.ErrConflict) {
		t.Error("ErrSessionAlreadyActive should wrap ErrConflict")
	}
	if errors.Is(interfaces.ErrSessionNotFound, interfaces.ErrConflict) {
		t.Error("ErrSessionNotFound must not classify as conflict")
	}
}
