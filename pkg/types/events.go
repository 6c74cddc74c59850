package types

import (
	"encoding/json"
	"time"
)

// Realtime event names. The first four are accepted inbound; every name may
// appear outbound.
const (
	EventAttendanceMarked = "ATTENDANCE_MARKED"
	EventTodaySummary     = "TODAY_SUMMARY"
	EventMyAttendance     = "MY_ATTENDANCE"
	EventDone             = "DONE"

	EventSessionStarted = "SESSION_STARTED"
	EventConnected      = "CONNECTED"
	EventAck            = "ACK"
	EventError          = "ERROR"
)

// Envelope is the inbound wire shape. Data is decoded once the event name is
// known.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Notification is the outbound wire shape.
type Notification struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewNotification stamps an outbound event with the current time.
func NewNotification(event string, data interface{}) *Notification {
	return &Notification{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// DeliveryScope says who receives a routed notification.
type DeliveryScope int

const (
	// DeliverNone drops the inbound event without a reply.
	DeliverNone DeliveryScope = iota
	// DeliverSender replies to the originating connection only.
	DeliverSender
	// DeliverBroadcast fans out to every connection.
	DeliverBroadcast
)

func (s DeliveryScope) String() string {
	switch s {
	case DeliverSender:
		return "sender"
	case DeliverBroadcast:
		return "broadcast"
	default:
		return "none"
	}
}

// Delivery is the router's decision for one inbound event.
type Delivery struct {
	Scope        DeliveryScope
	Notification *Notification
}

// MarkPayload is the data of an inbound ATTENDANCE_MARKED event.
type MarkPayload struct {
	ClassID   string `json:"classId"`
	StudentID string `json:"studentId"`
	Status    string `json:"status"`
}

// ClassPayload is the data of inbound TODAY_SUMMARY and DONE events.
type ClassPayload struct {
	ClassID string `json:"classId"`
}

// PersonalPayload is the data of an inbound MY_ATTENDANCE event. StudentID
// defaults to the caller.
type PersonalPayload struct {
	ClassID   string `json:"classId"`
	StudentID string `json:"studentId,omitempty"`
}

// SessionStarted is broadcast when a teacher opens a session.
type SessionStarted struct {
	ClassID   string    `json:"classId"`
	SessionID string    `json:"sessionId"`
	TeacherID string    `json:"teacherId"`
	StartedAt time.Time `json:"startedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AckPayload answers events the server does not recognise.
type AckPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// ErrorPayload reports a failed inbound event to its sender.
type ErrorPayload struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
