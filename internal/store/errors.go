package store

import (
	"errors"
	"fmt"

	"rollcall/pkg/interfaces"
)

var (
	ErrConnectionFailed = fmt.Errorf("session store unreachable: %w", interfaces.ErrFailed)
	ErrCorruptSession   = errors.New("corrupt session record")
	ErrInvalidTTL       = fmt.Errorf("session ttl must be positive: %w", interfaces.ErrInvalidArgument)
)
