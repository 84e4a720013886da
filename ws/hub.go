package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sitaraServer/config"
	"sitaraServer/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Channels
const (
	ChannelAdmin   = "admin"
	ChannelResults = "results"
	ChannelMarkets = "markets"
)

// Event types
const (
	EventBetPlaced           = "bet_placed"
	EventWithdrawalRequested = "withdrawal_requested"
	EventWithdrawalDecided   = "withdrawal_decided"
	EventPaymentSubmitted    = "payment_submitted"
	EventPaymentDecided      = "payment_decided"
	EventResultDeclared      = "result_declared"
	EventResultReverted      = "result_reverted"
	EventMarketStatus        = "market_status"
	EventSnapshot            = "snapshot"
)

// Event is the envelope for every server push
type Event struct {
	Type      string    `json:"type"`
	Channel   string    `json:"channel"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is what clients send: subscribe, unsubscribe or ping
type ClientMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// ClientConnection represents a connected client with their subscriptions
type ClientConnection struct {
	ID            string
	Conn          *websocket.Conn
	Subscriptions map[string]bool
	allowed       map[string]bool
	mu            sync.RWMutex
	Send          chan []byte
}

type outbound struct {
	channel string
	data    []byte
}

// Hub fans events out to subscribed clients. Slow clients miss messages
// rather than block the hub.
type Hub struct {
	clients    map[*ClientConnection]bool
	clientsMu  sync.RWMutex
	stopped    bool
	unregister chan *ClientConnection
	broadcast  chan outbound
	done       chan struct{}

	snapshotsMu sync.RWMutex
	snapshots   map[string]func() any

	// browser origins trusted besides the serving host; "*" admits any
	// origin to the public channels only
	origins []string

	idCounter int64
}

func NewHub(origins []string) *Hub {
	return &Hub{
		origins:    origins,
		clients:    make(map[*ClientConnection]bool),
		unregister: make(chan *ClientConnection),
		broadcast:  make(chan outbound, config.BroadcastBuffer),
		done:       make(chan struct{}),
		snapshots:  make(map[string]func() any),
	}
}

// SetSnapshot registers the state sent to a client right after it
// subscribes to channel.
func (h *Hub) SetSnapshot(channel string, fn func() any) {
	h.snapshotsMu.Lock()
	defer h.snapshotsMu.Unlock()
	h.snapshots[channel] = fn
}

// Run is the central message dispatcher. It returns when ctx is done,
// after disconnecting every client.
func (h *Hub) Run(ctx context.Context) error {
	zap.S().Info("🚀 Event hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.clientsMu.Lock()
			h.stopped = true
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.clientsMu.Unlock()
			metrics.WSClients.Set(0)
			zap.S().Info("🛑 Event hub stopped")
			return nil

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			total := len(h.clients)
			h.clientsMu.Unlock()
			metrics.WSClients.Set(float64(total))
			zap.S().Debugf("👋 Client unregistered: %s (Total: %d)", client.ID, total)

		case msg := <-h.broadcast:
			h.broadcastToSubscribers(msg.channel, msg.data)
		}
	}
}

// Publish queues an event for every subscriber of channel. It never
// blocks; when the queue is full the event is dropped.
func (h *Hub) Publish(channel, eventType string, data any) {
	payload, err := json.Marshal(Event{
		Type:      eventType,
		Channel:   channel,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		zap.S().Errorf("❌ Failed to marshal %s event for %s: %v", eventType, channel, err)
		return
	}

	select {
	case h.broadcast <- outbound{channel: channel, data: payload}:
	case <-h.done:
	default:
		zap.S().Warnf("⚠️  Broadcast queue full, dropping %s event", eventType)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// broadcastToSubscribers sends message to all clients subscribed to a channel
func (h *Hub) broadcastToSubscribers(channel string, data []byte) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for client := range h.clients {
		if !client.subscribed(channel) {
			continue
		}
		select {
		case client.Send <- data:
		default:
			zap.S().Warnf("⚠️  Client %s send buffer full, skipping message", client.ID)
		}
	}
}

// ServeWS upgrades the request and attaches the client to the hub. The
// client may subscribe only to allowed channels; autoSubscribe channels
// are joined immediately.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, allowed []string, autoSubscribe ...string) {
	admin := false
	for _, ch := range allowed {
		admin = admin || ch == ChannelAdmin
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return h.originAllowed(r, admin) },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	client := &ClientConnection{
		ID:            h.generateClientID(),
		Conn:          conn,
		Subscriptions: make(map[string]bool),
		allowed:       make(map[string]bool, len(allowed)),
		Send:          make(chan []byte, config.ClientSendBuffer),
	}
	for _, ch := range allowed {
		client.allowed[ch] = true
	}

	var joined []string
	for _, ch := range autoSubscribe {
		if client.allowed[ch] {
			client.Subscriptions[ch] = true
			joined = append(joined, ch)
		}
	}

	if !h.addClient(client) {
		conn.Close()
		return
	}

	for _, ch := range joined {
		h.sendSnapshot(client, ch)
	}

	go h.writePump(client)
	go h.readPump(client)
}

// originAllowed reports whether the page that opened r may connect.
// Requests without an Origin header do not come from a browser. The admin
// channel rides on the session cookie, so it needs the serving host or an
// explicitly listed origin.
func (h *Hub) originAllowed(r *http.Request, admin bool) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, o := range h.origins {
		if o == "*" {
			if !admin {
				return true
			}
			continue
		}
		if strings.EqualFold(strings.TrimSuffix(o, "/"), origin) {
			return true
		}
	}
	zap.S().Warnf("🚫 WebSocket origin %s rejected", origin)
	return false
}

// addClient registers a client unless the hub has stopped.
func (h *Hub) addClient(c *ClientConnection) bool {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if h.stopped {
		return false
	}
	h.clients[c] = true
	metrics.WSClients.Set(float64(len(h.clients)))
	zap.S().Debugf("✅ Client registered: %s (Total: %d)", c.ID, len(h.clients))
	return true
}

func (c *ClientConnection) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Subscriptions[channel]
}

// queue sends data to the client without blocking. The hub may already
// have closed Send, so the send is guarded.
func (h *Hub) queue(c *ClientConnection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (h *Hub) subscribe(c *ClientConnection, channel string) {
	if !c.allowed[channel] {
		h.queue(c, Event{Type: "error", Channel: channel, Data: "channel not allowed", Timestamp: time.Now().UTC()})
		return
	}

	c.mu.Lock()
	c.Subscriptions[channel] = true
	c.mu.Unlock()

	h.sendSnapshot(c, channel)
}

func (h *Hub) sendSnapshot(c *ClientConnection, channel string) {
	h.snapshotsMu.RLock()
	snapshot := h.snapshots[channel]
	h.snapshotsMu.RUnlock()

	if snapshot != nil {
		h.queue(c, Event{Type: EventSnapshot, Channel: channel, Data: snapshot(), Timestamp: time.Now().UTC()})
	}
}

// writePump sends messages from the Send channel to the WebSocket and
// keeps the connection alive with pings.
func (h *Hub) writePump(c *ClientConnection) {
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				zap.S().Debugf("❌ Write error for client %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads subscription requests until the connection drops
func (h *Hub) readPump(c *ClientConnection) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.S().Debugf("❌ Read error for client %s: %v", c.ID, err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			zap.S().Debugf("❌ Failed to parse message from client %s: %v", c.ID, err)
			continue
		}

		h.handleMessage(c, msg)
	}
}

// handleMessage processes incoming client messages
func (h *Hub) handleMessage(c *ClientConnection, msg ClientMessage) {
	channel, _ := msg.Data["channel"].(string)

	switch msg.Type {
	case "subscribe":
		h.subscribe(c, channel)

	case "unsubscribe":
		c.mu.Lock()
		delete(c.Subscriptions, channel)
		c.mu.Unlock()

	case "ping":
		h.queue(c, Event{Type: "pong", Timestamp: time.Now().UTC()})

	default:
		zap.S().Debugf("⚠️  Unknown message type from client %s: %s", c.ID, msg.Type)
	}
}

// generateClientID creates a unique client ID
func (h *Hub) generateClientID() string {
	id := atomic.AddInt64(&h.idCounter, 1)
	return fmt.Sprintf("%d-%d", time.Now().Unix(), id)
}
