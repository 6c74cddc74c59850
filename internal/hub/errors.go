package hub

import (
	"errors"
	"fmt"

	"rollcall/pkg/interfaces"
)

var (
	ErrHubAlreadyRunning    = errors.New("hub is already running")
	ErrHubStopped           = errors.New("hub was stopped and cannot be restarted")
	ErrHubNotRunning        = fmt.Errorf("hub is not running: %w", interfaces.ErrFailed)
	ErrBroadcastChannelFull = fmt.Errorf("broadcast channel is full: %w", interfaces.ErrFailed)
)
