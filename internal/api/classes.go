package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"rollcall/pkg/types"
)

// ClassDetail is a class with its enrolled students resolved.
type ClassDetail struct {
	*types.Class
	Students []*types.User `json:"students"`
}

func (s *Server) createClass(w http.ResponseWriter, r *http.Request) {
	identity, err := mustIdentity(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	if !identity.IsTeacher() {
		s.sendError(w, r, ErrTeacherOnly)
		return
	}

	var req types.CreateClassRequest
	if err := decode(r, &req); err != nil {
		s.sendError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.sendError(w, r, invalid(err))
		return
	}

	class := &types.Class{
		ID:         uuid.NewString(),
		Name:       req.ClassName,
		TeacherID:  identity.UserID,
		StudentIDs: []string{},
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.deps.Database.CreateClass(r.Context(), class); err != nil {
		s.sendError(w, r, err)
		return
	}

	s.logger.Info().Str("class_id", class.ID).Str("teacher_id", identity.UserID).Msg("class created")
	s.send(w, http.StatusCreated, class)
}

// getClass is visible to the owning teacher and enrolled students.
func (s *Server) getClass(w http.ResponseWriter, r *http.Request) {
	identity, err := mustIdentity(r)
	if err != nil {
		s.sendError(w, r, err)
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

	detail, err := s.classDetail(r.Context(), class)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.send(w, http.StatusOK, detail)
}

func (s *Server) addStudent(w http.ResponseWriter, r *http.Request) {
	identity, err := mustIdentity(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	if !identity.IsTeacher() {
		s.sendError(w, r, ErrTeacherOnly)
		return
	}
	class, err := s.loadClass(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	if !class.IsOwnedBy(identity.UserID) {
		s.sendError(w, r, ErrNotClassMember)
		return
	}

	var req types.AddStudentRequest
	if err := decode(r, &req); err != nil {
		s.sendError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.sendError(w, r, invalid(err))
		return
	}

	if err := s.deps.Database.AddStudent(r.Context(), class.ID, req.StudentID); err != nil {
		s.sendError(w, r, err)
		return
	}

	class, err = s.deps.Database.GetClass(r.Context(), class.ID)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	detail, err := s.classDetail(r.Context(), class)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.send(w, http.StatusOK, detail)
}

func (s *Server) loadClass(r *http.Request) (*types.Class, error) {
	classID := chi.URLParam(r, "classID")
	if !types.IsValidID(classID) {
		return nil, ErrInvalidClassID
	}
	return s.deps.Database.GetClass(r.Context(), classID)
}

func (s *Server) classDetail(ctx context.Context, class *types.Class) (*ClassDetail, error) {
	detail := &ClassDetail{Class: class, Students: make([]*types.User, 0, len(class.StudentIDs))}
	for _, id := range class.StudentIDs {
		user, err := s.deps.Database.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		detail.Students = append(detail.Students, user)
	}
	return detail, nil
}

func canView(identity types.Identity, class *types.Class) bool {
	if identity.IsTeacher() {
		return class.IsOwnedBy(identity.UserID)
	}
	for _, id := range class.StudentIDs {
		if id == identity.UserID {
			return true
		}
	}
	return false
}
