package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"rollcall/internal/auth"
	"rollcall/pkg/interfaces"
	"rollcall/pkg/types"
)

// Tokens issues and verifies bearer tokens.
type Tokens interface {
	interfaces.IdentityVerifier
	Issue(user *types.User) (string, error)
}

// Stats reports live connection counts.
type Stats interface {
	GetStats() map[string]int
}

// Dependencies are the components the HTTP API drives.
type Dependencies struct {
	Database    interfaces.DatabaseManager
	Store       interfaces.SessionStore
	Coordinator interfaces.Coordinator
	Broadcaster interfaces.Broadcaster
	Tokens      Tokens
	Stats       Stats
	BcryptCost  int
}

// Server is the REST surface: accounts, classes and session start. It holds
// no business rules beyond request validation and role gating.
type Server struct {
	deps   Dependencies
	logger zerolog.Logger
	routes chi.Router
}

// NewServer builds the router.
func NewServer(deps Dependencies, logger zerolog.Logger) *Server {
	s := &Server{
		deps:   deps,
		logger: logger.With().Str("component", "api").Logger(),
	}
	s.routes = s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		withCORS(),
		withLogger(s.logger),
		middleware.Recoverer,
		withJSON,
	)

	r.Get("/health", s.healthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", s.signup)
		r.Post("/auth/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/auth/me", s.me)
			r.Get("/students", s.listStudents)

			r.Post("/classes", s.createClass)
			r.Get("/classes/{classID}", s.getClass)
			r.Post("/classes/{classID}/students", s.addStudent)
			r.Get("/classes/{classID}/my-attendance", s.myAttendance)

			r.Post("/attendance/start", s.startAttendance)
		})
	})

	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.routes.ServeHTTP(w, r)
}

func withCORS() func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         86400,
	})
}

func withLogger(logger zerolog.Logger) func(handler http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := logger.WithContext(req.Context())
			handler.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

func withJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type identityKey struct{}

// authenticate verifies the bearer token and stores the identity on the
// request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.deps.Tokens.Verify(auth.BearerToken(r))
		if err != nil {
			s.sendError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom returns the identity placed on ctx by the auth middleware.
func IdentityFrom(ctx context.Context) (types.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(types.Identity)
	return identity, ok
}

func mustIdentity(r *http.Request) (types.Identity, error) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		return types.Identity{}, ErrMissingIdentity
	}
	return identity, nil
}

// Response is the body of every API reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

func (s *Server) send(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{Success: true, Data: data}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode response")
	}
}

// sendError maps err onto an HTTP status through the error taxonomy.
// Unclassified errors are logged and reported without detail.
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		message = http.StatusText(status)
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   message,
		Code:    interfaces.ErrorCode(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, interfaces.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// invalid tags request validation failures from pkg/types, which sit
// outside the taxonomy.
func invalid(err error) error {
	return &validationError{err: err}
}

type validationError struct {
	err error
}

func (e *validationError) Error() string { return e.err.Error() }

func (e *validationError) Unwrap() []error {
	return []error{e.err, interfaces.ErrInvalidArgument}
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return ErrInvalidBody
	}
	return nil
}
