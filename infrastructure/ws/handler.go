// Package ws exposes the chat relay over WebSocket. Each accepted
// connection gets a read loop (this goroutine) and a write pump; the
// handshake's userId attribute decides whether the session is bound to an
// identity or stays anonymous.
package ws

import (
	"chat-relay/domain"
	"chat-relay/services"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// Config carries the per-connection transport tunables.
type Config struct {
	SendBufferSize int
	MaxMessageSize int64
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration
}

// ChatHandler upgrades HTTP requests and hands the connection lifecycle to
// the relay service.
type ChatHandler struct {
	log      *slog.Logger
	relay    services.IRelayService
	cfg      Config
	upgrader websocket.Upgrader
}

func NewChatHandler(log *slog.Logger, relay services.IRelayService, cfg Config) *ChatHandler {
	return &ChatHandler{
		log:   log,
		relay: relay,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The original service accepted any origin; authentication is
			// out of scope for the relay.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(h.log, r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, h.log, h.cfg)
	go client.writePump()

	if err := h.relay.Connect(client, identity); err != nil {
		h.log.Warn("connect rejected", "remote", r.RemoteAddr, "error", err)
		_ = client.Close()
		return
	}

	h.readLoop(client)

	// Transport errors and orderly closes clean up the same way.
	h.relay.Disconnect(client)
	_ = client.Close()
}

// readLoop consumes inbound frames until the connection dies. Frames are
// handled in order, one at a time, preserving per-sender ordering.
func (h *ChatHandler) readLoop(client *Client) {
	conn := client.conn
	conn.SetReadLimit(h.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				h.log.Warn("unexpected connection error", "addr", client.addr, "error", err)
			} else {
				h.log.Debug("client disconnected", "addr", client.addr, "error", err)
			}
			return
		}
		h.relay.HandleFrame(client, payload)
	}
}

// identityFromRequest extracts the optional userId handshake attribute,
// checking the header first and falling back to the query string for
// clients that cannot set headers. A missing or unparseable value leaves
// the connection anonymous.
func identityFromRequest(log *slog.Logger, r *http.Request) *domain.UserID {
	raw := r.Header.Get("userId")
	if raw == "" {
		raw = r.URL.Query().Get("userId")
	}
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Warn("ignoring malformed userId attribute", "value", raw, "remote", r.RemoteAddr)
		return nil
	}
	identity := domain.UserID(id)
	return &identity
}
