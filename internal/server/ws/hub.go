// Package ws pushes signal bus events to websocket viewers.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evbets/evboard/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Channels bridged to viewers, keyed by the envelope type they are sent as.
var bridged = map[string]string{
	domain.ChannelFeed:      "feed",
	domain.ChannelBookmarks: "bookmarks",
	domain.ChannelAlerts:    "alert",
}

// Envelope is the frame sent to viewers.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// controlMsg lets a viewer narrow the event types it receives, e.g.
// {"action":"unsubscribe","types":["alert"]}.
type controlMsg struct {
	Action string   `json:"action"`
	Types  []string `json:"types"`
}

// Hub fans signal bus events out to connected viewers. Every viewer starts
// subscribed to all event types.
type Hub struct {
	bus      domain.SignalBus
	logger   *slog.Logger
	upgrader websocket.Upgrader
	hello    func() any

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu    sync.RWMutex
	muted map[string]bool
}

// NewHub creates a Hub. allowedOrigins restricts websocket origins; an empty
// list allows any. hello, when set, supplies the payload of the "status"
// frame each viewer receives on connect.
func NewHub(bus domain.SignalBus, allowedOrigins []string, hello func() any, logger *slog.Logger) *Hub {
	h := &Hub{
		bus:     bus,
		logger:  logger.With(slog.String("component", "ws_hub")),
		hello:   hello,
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			for _, o := range allowedOrigins {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
	}
	return h
}

// Run subscribes to the bridged channels and forwards events until ctx is
// cancelled, then disconnects every viewer.
func (h *Hub) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for channel, typ := range bridged {
		msgs, err := h.bus.Subscribe(ctx, channel)
		if err != nil {
			h.logger.ErrorContext(ctx, "subscribe failed",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for payload := range msgs {
				h.Broadcast(typ, payload)
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()

	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	return ctx.Err()
}

// Broadcast sends payload as an event of typ to every viewer that has not
// muted it. Slow viewers miss the event.
func (h *Hub) Broadcast(typ string, payload []byte) {
	frame, err := json.Marshal(Envelope{Type: typ, Payload: payload})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.isMuted(typ) {
			continue
		}
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("dropping event for slow viewer", slog.String("type", typ))
		}
	}
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the request and registers the viewer.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "upgrade failed", slog.String("error", err.Error()))
		return
	}
	c := &client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		muted: make(map[string]bool),
	}

	if h.hello != nil {
		if payload, err := json.Marshal(h.hello()); err == nil {
			if frame, err := json.Marshal(Envelope{Type: "status", Payload: payload}); err == nil {
				c.send <- frame
			}
		}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("viewer connected", slog.Int("viewers", n))

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("viewer disconnected", slog.Int("viewers", n))
}

func (c *client) isMuted(typ string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted[typ]
}

func (c *client) apply(msg controlMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range msg.Types {
		switch msg.Action {
		case "subscribe":
			delete(c.muted, t)
		case "unsubscribe":
			c.muted[t] = true
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var msg controlMsg
		if json.Unmarshal(data, &msg) == nil && msg.Action != "" {
			c.apply(msg)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
