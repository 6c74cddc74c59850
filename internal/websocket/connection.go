package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"rollcall/pkg/types"
)

const (
	sendBufferSize      = 100
	defaultWriteTimeout = 5 * time.Second
)

// Connection wraps a websocket with a single writer goroutine. The identity is
// bound when the connection is created and never changes. It implements
// interfaces.Connection.
type Connection struct {
	id           string
	conn         *websocket.Conn
	identity     types.Identity
	writeCh      chan []byte
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

// NewConnection starts the writer for conn. A non-positive writeTimeout
// falls back to five seconds.
func NewConnection(conn *websocket.Conn, identity types.Identity, writeTimeout time.Duration) *Connection {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:           uuid.NewString(),
		conn:         conn,
		identity:     identity,
		writeCh:      make(chan []byte, sendBufferSize),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

// writeLoop is the only goroutine that writes data frames to the socket.
// writeCh is never closed so WriteJSON cannot send on a closed channel.
func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				_ = c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON marshals v and queues it for the writer.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	timer := time.NewTimer(c.writeTimeout)
	defer timer.Stop()

	select {
	case c.writeCh <- data:
		return nil
	case <-timer.C:
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close stops the writer and closes the socket. Safe to call repeatedly.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// ID is a random identifier unique to this connection.
func (c *Connection) ID() string {
	return c.id
}

// Identity returns the user bound at handshake.
func (c *Connection) Identity() types.Identity {
	return c.identity
}

// UserID is shorthand for Identity().UserID.
func (c *Connection) UserID() string {
	return c.identity.UserID
}

// Context is cancelled when the connection closes.
func (c *Connection) Context() context.Context {
	return c.ctx
}

// Done is closed when the connection closes.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}
