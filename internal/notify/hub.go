package notify

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/kimhsiao/homeinv/backend/internal/logging"
	"github.com/kimhsiao/homeinv/backend/internal/uuid"
)

const (
	sendBuffer  = 256
	pongWait    = 60 * time.Second
	pingPeriod  = 30 * time.Second
	writeWait   = 10 * time.Second
	ownerHeader = "X-Owner-ID"
)

type client struct {
	id      string
	ownerID string
	conn    *websocket.Conn
	send    chan []byte // closed by the hub
	control chan []byte // written by readPump only
	hub     *Hub

	mu            sync.Mutex
	subscriptions map[string]bool
}

// wants reports whether the client should receive eventType. A client
// without subscriptions receives everything.
func (c *client) wants(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions) == 0 || c.subscriptions[eventType]
}

type message struct {
	ownerID   string
	eventType string
	payload   []byte
}

// Hub keeps WebSocket clients grouped by owner and fans events out to them.
type Hub struct {
	upgrader websocket.Upgrader

	clients    map[string]map[*client]bool
	publish    chan message
	register   chan *client
	unregister chan *client
	stopCh     chan struct{}
	done       chan struct{}
	closeOnce  sync.Once

	mu     sync.RWMutex
	counts map[string]int
}

// NewHub creates a hub and starts its dispatch loop. allowedOrigins
// restricts upgrades by Origin header; empty allows same-host origins only.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		clients:    make(map[string]map[*client]bool),
		publish:    make(chan message, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		counts:     make(map[string]int),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	go h.run()
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.stopCh:
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = map[string]map[*client]bool{}
			h.setCounts()
			return

		case c := <-h.register:
			set, ok := h.clients[c.ownerID]
			if !ok {
				set = make(map[*client]bool)
				h.clients[c.ownerID] = set
			}
			set[c] = true
			h.setCounts()
			logging.Debug("websocket client connected", map[string]interface{}{
				"client_id": c.id,
				"owner_id":  c.ownerID,
			})

		case c := <-h.unregister:
			h.drop(c)

		case m := <-h.publish:
			for c := range h.clients[m.ownerID] {
				if !c.wants(m.eventType) {
					continue
				}
				select {
				case c.send <- m.payload:
				default:
					// slow client
					h.drop(c)
				}
			}
		}
	}
}

// drop must only be called from run.
func (h *Hub) drop(c *client) {
	set := h.clients[c.ownerID]
	if !set[c] {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.ownerID)
	}
	close(c.send)
	h.setCounts()
	logging.Debug("websocket client disconnected", map[string]interface{}{
		"client_id": c.id,
		"owner_id":  c.ownerID,
	})
}

func (h *Hub) setCounts() {
	counts := make(map[string]int, len(h.clients))
	for owner, set := range h.clients {
		counts[owner] = len(set)
	}
	h.mu.Lock()
	h.counts = counts
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients for ownerID.
func (h *Hub) ClientCount(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.counts[ownerID]
}

// Publish sends an event to every client of ownerID. Events published after
// Close are dropped.
func (h *Hub) Publish(ownerID, eventType string, data map[string]interface{}) {
	payload, err := json.Marshal(newEnvelope(ownerID, eventType, data))
	if err != nil {
		logging.Error("failed to encode websocket event", err, map[string]interface{}{"type": eventType})
		return
	}
	select {
	case h.publish <- message{ownerID: ownerID, eventType: eventType, payload: payload}:
	case <-h.stopCh:
	}
}

// Close disconnects every client and stops the dispatch loop.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.stopCh)
		<-h.done
	})
}

// ServeHTTP upgrades the request and attaches the connection to the owner
// named by the X-Owner-ID header or the owner query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.Header.Get(ownerHeader))
	if ownerID == "" {
		ownerID = strings.TrimSpace(r.URL.Query().Get("owner"))
	}
	if ownerID == "" {
		http.Error(w, "owner is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	c := &client{
		id:            uuid.New(),
		ownerID:       ownerID,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		control:       make(chan []byte, 16),
		hub:           h,
		subscriptions: make(map[string]bool),
	}
	select {
	case h.register <- c:
	case <-h.stopCh:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

type clientMessage struct {
	Action string   `json:"action"`
	Events []string `json:"events"`
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopCh:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("websocket read error", map[string]interface{}{"client_id": c.id, "error": err.Error()})
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Action {
		case "subscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				c.subscriptions[e] = true
			}
			c.mu.Unlock()
			c.reply("subscribe_ack", msg.Events)
		case "unsubscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				delete(c.subscriptions, e)
			}
			c.mu.Unlock()
			c.reply("unsubscribe_ack", msg.Events)
		case "ping":
			c.reply("pong", nil)
		}
	}
}

// reply queues a control response, dropping it when the queue is full.
func (c *client) reply(action string, events []string) {
	payload, err := json.Marshal(map[string]interface{}{
		"action":    action,
		"events":    events,
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		return
	}
	select {
	case c.control <- payload:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case payload := <-c.control:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
