package router

import (
	"fmt"

	"rollcall/pkg/interfaces"
)

var ErrRateLimitExceeded = fmt.Errorf("rate limit exceeded: %w", interfaces.ErrFailed)
