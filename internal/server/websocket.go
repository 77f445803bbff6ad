package server

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/conneroisu/cjsbundle/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period. A ping that is not answered
	// within writeWait disconnects the client.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Messages buffered per client before it is dropped.
	sendBuffer = 16
)

// Client represents a WebSocket client
type Client struct {
	conn *websocket.Conn
	send chan UpdateMessage
	hub  *Hub
}

// Hub fans reload messages out to every connected client.
type Hub struct {
	clients    map[*Client]bool
	mutex      sync.RWMutex
	register   chan *Client
	unregister chan *Client
	broadcast  chan UpdateMessage
	done       chan struct{}
	logger     logging.Logger
}

// NewHub creates a hub. Run must be called before clients connect.
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan UpdateMessage, sendBuffer),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client. It never blocks; messages are
// dropped once the hub has stopped or its queue is full.
func (h *Hub) Broadcast(msg UpdateMessage) {
	select {
	case <-h.done:
	case h.broadcast <- msg:
	default:
		h.logger.Debug(context.Background(), "Dropped broadcast", "type", msg.Type)
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mutex.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.mutex.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug(ctx, "Client connected", "clients", count)

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Debug(ctx, "Client disconnected", "clients", h.ClientCount())

		case msg := <-h.broadcast:
			h.mutex.RLock()
			var failed []*Client
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					failed = append(failed, client)
				}
			}
			h.mutex.RUnlock()

			for _, client := range failed {
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.clients[client] {
		delete(h.clients, client)
		close(client.send)
	}
}

// ServeWS returns the handler that upgrades reload channel connections.
// Browsers must send an Origin of the page itself or of one of the hosts
// returned by allowed.
func (h *Hub) ServeWS(allowed func() []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patterns := append([]string{r.Host}, allowed()...)
		if !checkOrigin(r, patterns) {
			http.Error(w, "Origin not allowed", http.StatusForbidden)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: patterns,
		})
		if err != nil {
			h.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
			return
		}
		conn.SetReadLimit(maxMessageSize)

		client := &Client{
			conn: conn,
			send: make(chan UpdateMessage, sendBuffer),
			hub:  h,
		}

		select {
		case h.register <- client:
		case <-h.done:
			conn.Close(websocket.StatusGoingAway, "server stopped")
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// checkOrigin requires an http(s) Origin whose host is one of hosts.
func checkOrigin(r *http.Request, hosts []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	for _, host := range hosts {
		if originURL.Host == host {
			return true
		}
	}
	return false
}

// readPump drains the connection until the peer goes away. Browsers never
// send anything meaningful; reading is needed to process control frames.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()
	for {
		_, _, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				c.hub.logger.Debug(ctx, "WebSocket read ended", "error", err.Error())
			}
			return
		}
	}
}

// writePump writes queued messages and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := wsjson.Write(writeCtx, c.conn, msg)
			cancel()
			if err != nil {
				c.hub.logger.Debug(ctx, "WebSocket write failed", "error", err.Error())
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
