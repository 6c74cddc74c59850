package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/auth"
	"rollcall/pkg/interfaces"
	"rollcall/pkg/types"
)

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token string      `json:"token"`
	User  *types.User `json:"user"`
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req types.SignupRequest
	if err := decode(r, &req); err != nil {
		s.sendError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.sendError(w, r, invalid(err))
		return
	}

	hash, err := auth.HashPassword(req.Password, s.deps.BcryptCost)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	user := &types.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         types.Role(req.Role),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.deps.Database.CreateUser(r.Context(), user); err != nil {
		s.sendError(w, r, err)
		return
	}

	token, err := s.deps.Tokens.Issue(user)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("account created")
	s.send(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decode(r, &req); err != nil {
		s.sendError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.sendError(w, r, invalid(err))
		return
	}

	// Unknown email and wrong password are indistinguishable to the client.
	user, err := s.deps.Database.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, interfaces.ErrNotFound) {
		s.sendError(w, r, auth.ErrInvalidCredentials)
		return
	}
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		s.sendError(w, r, err)
		return
	}

	token, err := s.deps.Tokens.Issue(user)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.send(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	identity, err := mustIdentity(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	user, err := s.deps.Database.GetUser(r.Context(), identity.UserID)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.send(w, http.StatusOK, user)
}

func (s *Server) listStudents(w http.ResponseWriter, r *http.Request) {
	identity, err := mustIdentity(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	if !identity.IsTeacher() {
		s.sendError(w, r, ErrTeacherOnly)
		return
	}

	students, err := s.deps.Database.ListStudents(r.Context())
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	if students == nil {
		students = []*types.User{}
	}
	s.send(w, http.StatusOK, students)
}
