package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rollcall/internal/auth"
	"rollcall/pkg/interfaces"
	"rollcall/pkg/types"
)

var upgrader = websocket.Upgrader{
	// Browser clients are served from other origins; the token is the gate.
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
}

// Dispatcher receives every text frame read from a connection. Dispatch runs
// on the connection's read goroutine, so frames from one client are handled
// in order.
type Dispatcher interface {
	Dispatch(ctx context.Context, conn *Connection, data []byte)
}

// HandlerConfig tunes connection liveness.
type HandlerConfig struct {
	// ReadTimeout is how long a client may stay silent, pongs included.
	ReadTimeout time.Duration
	// PingInterval must be shorter than ReadTimeout.
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

// DefaultHandlerConfig returns the production liveness settings.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		WriteTimeout:   5 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
}

// Handler authenticates websocket upgrades and pumps frames to a Dispatcher.
type Handler struct {
	registry   *Registry
	verifier   interfaces.IdentityVerifier
	dispatcher Dispatcher
	config     HandlerConfig
	logger     zerolog.Logger
}

// NewHandler creates a websocket handler. Zero fields in cfg take defaults.
func NewHandler(registry *Registry, verifier interfaces.IdentityVerifier, dispatcher Dispatcher, cfg HandlerConfig, logger zerolog.Logger) *Handler {
	defaults := DefaultHandlerConfig()
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.ReadTimeout {
		cfg.PingInterval = cfg.ReadTimeout / 2
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	return &Handler{
		registry:   registry,
		verifier:   verifier,
		dispatcher: dispatcher,
		config:     cfg,
		logger:     logger.With().Str("component", "websocket").Logger(),
	}
}

// HandleWebSocket verifies the bearer token and upgrades the request. Bad
// credentials are rejected with 401 before any upgrade happens.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := h.verifier.Verify(auth.BearerToken(r))
	if err != nil {
		h.logger.Info().Err(err).Str("remote", r.RemoteAddr).Msg("rejected websocket handshake")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", identity.UserID).Msg("websocket upgrade failed")
		return
	}

	wsConn := NewConnection(conn, identity, h.config.WriteTimeout)
	if err := h.registry.RegisterConnection(wsConn); err != nil {
		h.logger.Error().Err(err).Str("user_id", identity.UserID).Msg("failed to register connection")
		_ = wsConn.Close()
		return
	}

	h.logger.Info().
		Str("user_id", identity.UserID).
		Str("role", string(identity.Role)).
		Str("connection_id", wsConn.ID()).
		Msg("client connected")

	if err := wsConn.WriteJSON(types.NewNotification(types.EventConnected, identity)); err != nil {
		h.logger.Warn().Err(err).Str("connection_id", wsConn.ID()).Msg("failed to send hello")
	}

	go h.handleConnection(wsConn)
}

// handleConnection runs the read pump and heartbeat until the client goes
// away, then unregisters the connection.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.registry.UnregisterConnection(conn)
		_ = conn.Close()
		h.logger.Info().Str("user_id", conn.UserID()).Str("connection_id", conn.ID()).Msg("client disconnected")
	}()

	conn.conn.SetReadLimit(h.config.MaxMessageSize)
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})

	go h.heartbeat(conn)

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("user_id", conn.UserID()).Msg("websocket read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.dispatcher.Dispatch(conn.Context(), conn, data)
	}
}

func (h *Handler) heartbeat(conn *Connection) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(h.config.WriteTimeout)
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = conn.Close()
				return
			}
		case <-conn.Done():
			return
		}
	}
}
