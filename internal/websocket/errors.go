package websocket

import (
	"errors"
	"fmt"

	"rollcall/pkg/interfaces"
)

// Connection errors
var (
	ErrConnectionClosed = fmt.Errorf("connection closed: %w", interfaces.ErrFailed)
	ErrWriteTimeout     = fmt.Errorf("write timeout: %w", interfaces.ErrFailed)
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Registry errors
var (
	ErrNilConnection   = errors.New("connection cannot be nil")
	ErrAnonymousClient = errors.New("connection has no user identity")
)
