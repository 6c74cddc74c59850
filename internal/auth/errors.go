package auth

import (
	"errors"
	"fmt"

	"rollcall/pkg/interfaces"
)

var (
	ErrMissingSecret = errors.New("jwt secret must be configured")

	ErrMissingToken       = fmt.Errorf("missing token: %w", interfaces.ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("invalid token: %w", interfaces.ErrUnauthorized)
	ErrTokenExpired       = fmt.Errorf("token expired: %w", interfaces.ErrUnauthorized)
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", interfaces.ErrUnauthorized)
)
