package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"exchange_go/internal/domain"
	"exchange_go/internal/infra"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

// Frames are encoded once per publish and copied to every subscriber.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// EventOrderMatched is the event name of a settlement push.
	EventOrderMatched = "OrderMatched"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// Message is one frame pushed to a client.
type Message struct {
	Op      string `json:"op"`
	Channel string `json:"channel,omitempty"`
	Event   string `json:"event,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Request is a frame sent by a client.
type Request struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// Hub tracks websocket clients and delivers settlements on private
// per-account channels. A client may only subscribe to the channel of the
// account it authenticated as.
type Hub struct {
	clients map[*Client]struct{}
	closed  bool
	mu      sync.RWMutex

	upgrader websocket.Upgrader
}

// NewHub creates a hub. An empty allowedOrigins accepts any origin.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		},
	}
	return h
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.Close()
	slog.Info("WS_HUB_STOPPED")
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		infra.GlobalMetrics.DecrementConnections()
	}
}

func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	infra.GlobalMetrics.IncrementConnections()
	slog.Debug("WS_CLIENT_CONNECTED", slog.Uint64("account_id", c.accountID), slog.Int("total", len(h.clients)))
	return true
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		infra.GlobalMetrics.DecrementConnections()
		slog.Debug("WS_CLIENT_DISCONNECTED", slog.Uint64("account_id", c.accountID), slog.Int("total", len(h.clients)))
	}
}

// Notify pushes the settlement to the private channel of both parties.
// Clients whose send buffer is full miss the message; that is reported as an error.
func (h *Hub) Notify(_ context.Context, s domain.Settlement) error {
	var errs []error
	for _, channel := range s.Channels() {
		if err := h.Publish(channel, EventOrderMatched, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publish sends data to every client subscribed to channel.
func (h *Hub) Publish(channel, event string, data any) error {
	frame, err := json.Marshal(Message{Op: "event", Channel: channel, Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.clients {
		if !c.IsSubscribed(channel) {
			continue
		}
		select {
		case c.send <- frame:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("channel %s: %d client(s) too slow, message dropped", channel, dropped)
	}
	return nil
}

// SubscriberCount returns the number of clients subscribed to channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.clients {
		if c.IsSubscribed(channel) {
			n++
		}
	}
	return n
}

// ServeWS upgrades the request and attaches the connection to accountID.
// Authentication happened upstream.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, accountID uint64) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WS_UPGRADE_FAILED", slog.Any("error", err))
		return
	}

	c := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		accountID:     accountID,
		subscriptions: make(map[string]bool),
	}

	if !h.add(c) {
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// Client is one websocket connection of an authenticated account.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	accountID uint64

	subscriptions map[string]bool
	subsMu        sync.RWMutex
}

// IsSubscribed checks if client is subscribed to a channel
func (c *Client) IsSubscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subscriptions[channel]
}

// Subscribe adds a channel subscription. Only the client's own account
// channel is allowed.
func (c *Client) Subscribe(channel string) error {
	if channel != domain.AccountChannel(c.accountID) {
		return fmt.Errorf("channel %s: %w", channel, domain.ErrForbidden)
	}
	c.subsMu.Lock()
	c.subscriptions[channel] = true
	c.subsMu.Unlock()
	return nil
}

// Unsubscribe removes a channel subscription
func (c *Client) Unsubscribe(channel string) {
	c.subsMu.Lock()
	delete(c.subscriptions, channel)
	c.subsMu.Unlock()
}

// reply queues a control frame without blocking the read loop.
func (c *Client) reply(m Message) {
	frame, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (c *Client) handle(req Request) {
	switch req.Op {
	case "subscribe":
		for _, channel := range req.Channels {
			if err := c.Subscribe(channel); err != nil {
				c.reply(Message{Op: "error", Channel: channel, Error: err.Error()})
				continue
			}
			c.reply(Message{Op: "subscribed", Channel: channel})
		}
	case "unsubscribe":
		for _, channel := range req.Channels {
			c.Unsubscribe(channel)
			c.reply(Message{Op: "unsubscribed", Channel: channel})
		}
	default:
		c.reply(Message{Op: "error", Error: fmt.Sprintf("unknown op %q", req.Op)})
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("WS_READ_ERROR", slog.Any("error", err))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			c.reply(Message{Op: "error", Error: "invalid message"})
			continue
		}
		c.handle(req)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
