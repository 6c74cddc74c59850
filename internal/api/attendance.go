package api

import (
	"errors"
	"net/http"

	"rollcall/pkg/interfaces"
	"rollcall/pkg/types"
)

// MyAttendance is a student's closed records for a class plus their mark in
// the live session, if one is running.
type MyAttendance struct {
	ClassID   string                    `json:"classId"`
	StudentID string                    `json:"studentId"`
	Live      *types.PersonalStatus     `json:"live"`
	Records   []*types.AttendanceRecord `json:"records"`
}

// startAttendance opens a session and announces it to every connected
// client.
func (s *Server) startAttendance(w http.ResponseWriter, r *http.Request) {
	identity, err := mustIdentity(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	var req types.StartSessionRequest
	if err := decode(r, &req); err != nil {
		s.sendError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.sendError(w, r, invalid(err))
		return
	}

	session, err := s.deps.Coordinator.StartSession(r.Context(), identity, req.ClassID)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	announcement := types.NewNotification(types.EventSessionStarted, types.SessionStarted{
		ClassID:   session.ClassID,
		SessionID: session.ID,
		TeacherID: session.TeacherID,
		StartedAt: session.StartedAt,
		ExpiresAt: session.ExpiresAt(),
	})
	s.deps.Broadcaster.Publish(announcement)

	s.send(w, http.StatusCreated, session)
}

func (s *Server) myAttendance(w http.ResponseWriter, r *http.Request) {
	identity, err := mustIdentity(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	if !identity.IsStudent() {
		s.sendError(w, r, ErrStudentOnly)
		return
	}
	class, err := s.loadClass(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	if !canView(identity, class) {
		s.sendError(w, r, ErrNotClassMember)
		return
	}

	result := MyAttendance{ClassID: class.ID, StudentID: identity.UserID}

	live, err := s.deps.Coordinator.GetPersonalStatus(r.Context(), identity, class.ID, identity.UserID)
	switch {
	case err == nil:
		result.Live = live
	case errors.Is(err, interfaces.ErrNotFound):
		// no session running
	default:
		s.sendError(w, r, err)
		return
	}

	result.Records, err = s.deps.Database.ListStudentRecords(r.Context(), class.ID, identity.UserID)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	s.send(w, http.StatusOK, result)
}
