package websocket

import (
	"sync"

	"github.com/rs/zerolog"

	"rollcall/pkg/types"
)

// Registry tracks one live connection per user, indexed by role for
// targeted delivery.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	teachers    map[string]*Connection
	students    map[string]*Connection
	logger      zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		teachers:    make(map[string]*Connection),
		students:    make(map[string]*Connection),
		logger:      logger.With().Str("component", "registry").Logger(),
	}
}

// RegisterConnection makes conn the user's current connection. A previous
// connection for the same user is closed asynchronously.
func (r *Registry) RegisterConnection(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	identity := conn.Identity()
	if identity.UserID == "" {
		return ErrAnonymousClient
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.connections[identity.UserID]; ok && existing != conn {
		r.logger.Info().Str("user_id", identity.UserID).Str("replaced", existing.ID()).Msg("replacing connection")
		go func() {
			if err := existing.Close(); err != nil {
				r.logger.Debug().Err(err).Str("connection_id", existing.ID()).Msg("error closing replaced connection")
			}
		}()
		delete(r.teachers, identity.UserID)
		delete(r.students, identity.UserID)
	}

	r.connections[identity.UserID] = conn
	switch identity.Role {
	case types.RoleTeacher:
		r.teachers[identity.UserID] = conn
	case types.RoleStudent:
		r.students[identity.UserID] = conn
	}

	return nil
}

// UnregisterConnection removes conn if it is still the user's current
// connection. Stale connections are ignored.
func (r *Registry) UnregisterConnection(conn *Connection) {
	if conn == nil {
		return
	}
	userID := conn.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if registered, ok := r.connections[userID]; !ok || registered != conn {
		return
	}
	delete(r.connections, userID)
	delete(r.teachers, userID)
	delete(r.students, userID)
}

// GetUserConnection returns the user's current connection.
func (r *Registry) GetUserConnection(userID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[userID]
	return conn, ok
}

// GetAllConnections returns a snapshot of every live connection.
func (r *Registry) GetAllConnections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.connections)
}

// GetStats reports connection counts by role.
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections":   len(r.connections),
		"teacher_connections": len(r.teachers),
		"student_connections": len(r.students),
	}
}

func snapshot(m map[string]*Connection) []*Connection {
	out := make([]*Connection, 0, len(m))
	for _, conn := range m {
		out = append(out, conn)
	}
	return out
}
