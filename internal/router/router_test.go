package router

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tj/assert"

	"rollcall/pkg/interfaces"
	"rollcall/pkg/types"
)

type call struct {
	op        string
	classID   string
	studentID string
	status    string
}

type mockCoordinator struct {
	calls []call
	err   error
}

func (m *mockCoordinator) StartSession(ctx context.Context, caller types.Identity, classID string) (*types.Session, error) {
	m.calls = append(m.calls, call{op: "start", classID: classID})
	return &types.Session{ClassID: classID}, m.err
}

func (m *mockCoordinator) MarkAttendance(ctx context.Context, caller types.Identity, classID, studentID, status string) (*types.MarkRecorded, error) {
	m.calls = append(m.calls, call{op: "mark", classID: classID, studentID: studentID, status: status})
	if m.err != nil {
		return nil, m.err
	}
	return &types.MarkRecorded{ClassID: classID, StudentID: studentID, Status: types.Status(status)}, nil
}

func (m *mockCoordinator) GetSummary(ctx context.Context, caller types.Identity, classID string) (*types.Summary, error) {
	m.calls = append(m.calls, call{op: "summary", classID: classID})
	if m.err != nil {
		return nil, m.err
	}
	return &types.Summary{ClassID: classID, Total: 5, Present: 3, Absent: 2}, nil
}

func (m *mockCoordinator) GetPersonalStatus(ctx context.Context, caller types.Identity, classID, studentID string) (*types.PersonalStatus, error) {
	m.calls = append(m.calls, call{op: "personal", classID: classID, studentID: studentID})
	if m.err != nil {
		return nil, m.err
	}
	return &types.PersonalStatus{ClassID: classID, StudentID: studentID, Status: types.StatusNotMarked}, nil
}

func (m *mockCoordinator) CloseSession(ctx context.Context, caller types.Identity, classID string) (*types.CloseResult, error) {
	m.calls = append(m.calls, call{op: "close", classID: classID})
	if m.err != nil {
		return nil, m.err
	}
	return &types.CloseResult{ClassID: classID, Outcome: types.CloseOutcomeClosed}, nil
}

var (
	teacher = types.Identity{UserID: "jack", Role: types.RoleTeacher}
	student = types.Identity{UserID: "amy", Role: types.RoleStudent}
)

func newTestRouter() (*Router, *mockCoordinator) {
	coordinator := &mockCoordinator{}
	return NewRouter(coordinator, 100, zerolog.Nop()), coordinator
}

func TestRouter_ImplementsEventRouter(t *testing.T) {
	var _ interfaces.EventRouter = &Router{}
}

func TestRouter_Dispatch(t *testing.T) {
	tests := []struct {
		name      string
		caller    types.Identity
		frame     string
		wantScope types.DeliveryScope
		wantEvent string
		wantCall  call
	}{
		{
			name:      "mark broadcasts",
			caller:    teacher,
			frame:     `{"event":"ATTENDANCE_MARKED","data":{"classId":"math","studentId":"amy","status":"present"}}`,
			wantScope: types.DeliverBroadcast,
			wantEvent: types.EventAttendanceMarked,
			wantCall:  call{op: "mark", classID: "math", studentID: "amy", status: "present"},
		},
		{
			name:      "summary broadcasts",
			caller:    teacher,
			frame:     `{"event":"TODAY_SUMMARY","data":{"classId":"math"}}`,
			wantScope: types.DeliverBroadcast,
			wantEvent: types.EventTodaySummary,
			wantCall:  call{op: "summary", classID: "math"},
		},
		{
			name:      "personal status goes to sender",
			caller:    student,
			frame:     `{"event":"MY_ATTENDANCE","data":{"classId":"math"}}`,
			wantScope: types.DeliverSender,
			wantEvent: types.EventMyAttendance,
			wantCall:  call{op: "personal", classID: "math", studentID: "amy"},
		},
		{
			name:      "personal status keeps explicit student",
			caller:    student,
			frame:     `{"event":"MY_ATTENDANCE","data":{"classId":"math","studentId":"bob"}}`,
			wantScope: types.DeliverSender,
			wantEvent: types.EventMyAttendance,
			wantCall:  call{op: "personal", classID: "math", studentID: "bob"},
		},
		{
			name:      "done broadcasts",
			caller:    teacher,
			frame:     `{"event":"DONE","data":{"classId":"math"}}`,
			wantScope: types.DeliverBroadcast,
			wantEvent: types.EventDone,
			wantCall:  call{op: "close", classID: "math"},
		},
		{
			name:      "missing data still reaches coordinator",
			caller:    teacher,
			frame:     `{"event":"DONE"}`,
			wantScope: types.DeliverBroadcast,
			wantEvent: types.EventDone,
			wantCall:  call{op: "close"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, coordinator := newTestRouter()

			delivery := r.Route(context.Background(), tt.caller, []byte(tt.frame))

			assert.Equal(t, tt.wantScope, delivery.Scope)
			assert.Equal(t, tt.wantEvent, delivery.Notification.Event)
			assert.Equal(t, []call{tt.wantCall}, coordinator.calls)
		})
	}
}

func TestRouter_UnknownEventIsAcknowledged(t *testing.T) {
	r, coordinator := newTestRouter()

	delivery := r.Route(context.Background(), student, []byte(`{"event":"WAVE","data":{"hello":true}}`))

	assert.Equal(t, types.DeliverSender, delivery.Scope)
	assert.Equal(t, types.EventAck, delivery.Notification.Event)
	ack, ok := delivery.Notification.Data.(types.AckPayload)
	assert.True(t, ok)
	assert.Equal(t, "WAVE", ack.Event)
	assert.Equal(t, 0, len(coordinator.calls))
}

func TestRouter_MalformedFramesAreIgnored(t *testing.T) {
	frames := []string{
		`not json`,
		`{"event":`,
		`[]`,
		`{"data":{"classId":"math"}}`,
		`{"event":"ATTENDANCE_MARKED","data":"a string"}`,
		`{"event":"ATTENDANCE_MARKED","data":{"classId":42}}`,
		`{"event":"DONE","data":[1,2]}`,
	}

	for _, frame := range frames {
		t.Run(frame, func(t *testing.T) {
			r, coordinator := newTestRouter()
			delivery := r.Route(context.Background(), teacher, []byte(frame))
			assert.Equal(t, types.DeliverNone, delivery.Scope)
			assert.Nil(t, delivery.Notification)
			assert.Equal(t, 0, len(coordinator.calls))
		})
	}
}

func TestRouter_ErrorsGoToSenderOnly(t *testing.T) {
	r, coordinator := newTestRouter()
	coordinator.err = fmt.Errorf("only teachers: %w", interfaces.ErrForbidden)

	delivery := r.Route(context.Background(), student, []byte(`{"event":"DONE","data":{"classId":"math"}}`))

	assert.Equal(t, types.DeliverSender, delivery.Scope)
	assert.Equal(t, types.EventError, delivery.Notification.Event)
	payload, ok := delivery.Notification.Data.(types.ErrorPayload)
	assert.True(t, ok)
	assert.Equal(t, types.EventDone, payload.Event)
	assert.Equal(t, interfaces.CodeForbidden, payload.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	r := NewRouter(&mockCoordinator{}, 3, zerolog.Nop())
	frame := []byte(`{"event":"TODAY_SUMMARY","data":{"classId":"math"}}`)

	for i := 0; i < 3; i++ {
		delivery := r.Route(context.Background(), teacher, frame)
		assert.Equal(t, types.EventTodaySummary, delivery.Notification.Event)
	}

	delivery := r.Route(context.Background(), teacher, frame)
	assert.Equal(t, types.DeliverSender, delivery.Scope)
	payload := delivery.Notification.Data.(types.ErrorPayload)
	assert.Equal(t, interfaces.CodeFailed, payload.Code)

	// Other users have their own budget.
	delivery = r.Route(context.Background(), student, frame)
	assert.Equal(t, types.EventTodaySummary, delivery.Notification.Event)
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := NewRateLimiter(2)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("u"))
	assert.True(t, rl.Allow("u"))
	assert.False(t, rl.Allow("u"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("u"))
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0)
	for i := 0; i < 1000; i++ {
		if !rl.Allow("u") {
			t.Fatal("disabled limiter rejected an event")
		}
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(10)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(4 * time.Minute)
	rl.Allow("recent")
	now = now.Add(2 * time.Minute)

	rl.Cleanup()
	assert.Equal(t, 1, rl.tracked())
}
