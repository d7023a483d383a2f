package ws

import (
	"chat-relay/errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client adapts one gorilla connection to contract.Conn. Outbound frames go
// through a buffered channel drained by a dedicated write pump, so Send
// never blocks on a slow peer: a full buffer or a closed connection is a
// delivery failure, not a stall.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	log  *slog.Logger
	addr string

	closeOnce sync.Once
	closed    chan struct{}

	writeTimeout time.Duration
	pingInterval time.Duration
}

func NewClient(conn *websocket.Conn, log *slog.Logger, cfg Config) *Client {
	return &Client{
		conn:         conn,
		send:         make(chan []byte, cfg.SendBufferSize),
		log:          log,
		addr:         conn.RemoteAddr().String(),
		closed:       make(chan struct{}),
		writeTimeout: cfg.WriteTimeout,
		pingInterval: cfg.PingInterval,
	}
}

// Send queues a frame for delivery.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.closed:
		return errors.ErrConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return errors.ErrSendBufferFull
	}
}

// Close signals teardown. Safe to call multiple times and from any
// goroutine. The write pump flushes already-queued frames, emits the close
// frame, and closes the underlying connection, which in turn unblocks the
// read loop.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// writePump drains the send channel and keeps the connection alive with
// periodic pings. It owns all writes and the connection teardown.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.flush()
			deadline := time.Now().Add(c.writeTimeout)
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		case message := <-c.send:
			if !c.write(message) {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("ping failed", "addr", c.addr, "error", err)
				return
			}
		}
	}
}

// flush writes whatever was queued before the close was requested.
func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			if !c.write(message) {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.log.Warn("failed to set write deadline", "addr", c.addr, "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.log.Debug("write failed", "addr", c.addr, "error", err)
		return false
	}
	return true
}
