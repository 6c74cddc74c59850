package hub

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"rollcall/internal/websocket"
	"rollcall/pkg/interfaces"
	"rollcall/pkg/types"
)

const broadcastBufferSize = 1000

// Hub connects the websocket layer to the event router. Inbound frames are
// routed on the sender's read goroutine; broadcasts are fanned out by a
// single hub goroutine so every client sees them in the same order.
type Hub struct {
	broadcastChannel chan *types.Notification
	shutdownChannel  chan struct{}

	registry *websocket.Registry
	router   interfaces.EventRouter
	logger   zerolog.Logger

	running bool
	stopped bool
	mu      sync.RWMutex
}

// NewHub creates a stopped hub.
func NewHub(registry *websocket.Registry, router interfaces.EventRouter, logger zerolog.Logger) *Hub {
	return &Hub{
		broadcastChannel: make(chan *types.Notification, broadcastBufferSize),
		shutdownChannel:  make(chan struct{}),
		registry:         registry,
		router:           router,
		logger:           logger.With().Str("component", "hub").Logger(),
	}
}

// Start launches the fan-out goroutine. It stops when ctx is cancelled or
// Stop is called.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	if h.stopped {
		h.mu.Unlock()
		return ErrHubStopped
	}
	h.running = true
	h.mu.Unlock()

	h.logger.Info().Msg("starting hub")
	go h.run(ctx)

	return nil
}

// Stop signals the fan-out goroutine to exit. A stopped hub cannot be
// restarted.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false
	h.stopped = true

	h.logger.Info().Msg("stopping hub")
	select {
	case <-h.shutdownChannel:
	default:
		close(h.shutdownChannel)
	}

	return nil
}

// IsRunning reports whether the hub accepts broadcasts.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Broadcast queues n for every connected client.
func (h *Hub) Broadcast(n *types.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.running {
		return ErrHubNotRunning
	}

	select {
	case h.broadcastChannel <- n:
		return nil
	default:
		return ErrBroadcastChannelFull
	}
}

// Dispatch routes one inbound frame from conn and delivers the result. It
// implements websocket.Dispatcher.
func (h *Hub) Dispatch(ctx context.Context, conn *websocket.Connection, data []byte) {
	delivery := h.router.Route(ctx, conn.Identity(), data)

	switch delivery.Scope {
	case types.DeliverNone:
		return
	case types.DeliverSender:
		if err := conn.WriteJSON(delivery.Notification); err != nil {
			h.logger.Warn().Err(err).Str("user_id", conn.UserID()).Str("event", delivery.Notification.Event).Msg("failed to reply to sender")
		}
	case types.DeliverBroadcast:
		h.Publish(delivery.Notification)
	}
}

// Publish broadcasts n, writing it to every client inline when the queue is
// stopped or full. It implements interfaces.Broadcaster.
func (h *Hub) Publish(n *types.Notification) {
	if err := h.Broadcast(n); err != nil {
		h.logger.Warn().Err(err).Str("event", n.Event).Msg("broadcast queue unavailable, delivering inline")
		h.fanOut(n)
	}
}

func (h *Hub) run(ctx context.Context) {
	defer h.logger.Info().Msg("hub stopped")

	for {
		select {
		case n := <-h.broadcastChannel:
			h.fanOut(n)
		case <-h.shutdownChannel:
			return
		case <-ctx.Done():
			return
		}
	}
}

// fanOut writes n to every registered connection. A slow or dead client
// does not stop delivery to the others.
func (h *Hub) fanOut(n *types.Notification) {
	connections := h.registry.GetAllConnections()
	delivered := 0
	for _, conn := range connections {
		if err := conn.WriteJSON(n); err != nil {
			h.logger.Debug().Err(err).Str("user_id", conn.UserID()).Str("event", n.Event).Msg("broadcast delivery failed")
			continue
		}
		delivered++
	}
	h.logger.Debug().Str("event", n.Event).Int("recipients", delivered).Int("connections", len(connections)).Msg("broadcast")
}
