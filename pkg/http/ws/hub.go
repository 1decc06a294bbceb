package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	sendQueueSize = 256
	readTimeout   = 60 * time.Second
	writeTimeout  = 10 * time.Second
	pingInterval  = 25 * time.Second
	maxFrameBytes = 64 << 10
)

// Hub tracks live WebSocket connections by connection ID and delivers messages to them.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		logger:      logger.With().Str("component", "ws_hub").Logger(),
	}
}

// RegisterConnection adds a connection under its ID.
func (h *Hub) RegisterConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if old, exists := h.connections[conn.ID()]; exists {
		old.Close()
	}

	h.connections[conn.ID()] = conn
	h.logger.Debug().Str("conn_id", conn.ID()).Msg("connection registered")
}

// UnregisterConnection removes and closes a connection.
func (h *Hub) UnregisterConnection(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[connID]; exists {
		conn.Close()
		delete(h.connections, connID)
		h.logger.Debug().Str("conn_id", connID).Msg("connection unregistered")
	}
}

// Send delivers a message to a specific connection.
func (h *Hub) Send(connID string, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[connID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}

	return conn.Send(msg)
}

// Count reports the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Connection represents a WebSocket connection with send queue.
type Connection struct {
	id     string
	conn   *websocket.Conn
	sendCh chan Message
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection and assigns it a fresh ID.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:     id,
		conn:   conn,
		sendCh: make(chan Message, sendQueueSize),
		logger: logger.With().Str("conn_id", id).Logger(),
	}
}

// ID returns the connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.sendCh)
	if c.conn != nil {
		c.conn.Close()
	}
}

// WritePump sends messages from the send queue and keeps the peer alive with pings.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump receives messages and calls the handler.
func (c *Connection) ReadPump(handler func(Message) error) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "Connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
