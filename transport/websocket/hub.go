package websocket

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/cardduel/server/auth"
	"github.com/cardduel/server/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// Outbound messages buffered per client before it is dropped.
	sendBufferSize = 256

	// Out-of-order batches held per session before the gap is skipped.
	maxPendingBatches = 64
)

// Client is one authenticated connection
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	identity auth.Identity
	ctx      context.Context
	handle   func(c *Client, data []byte)

	// owned by the hub's event loop
	sessionID string
	seen      int64
}

// UserID returns the authenticated user behind the connection
func (c *Client) UserID() string { return c.identity.UserID }

// Batch is the set of events caused by one committed change. Version is
// the record version the change produced.
type Batch struct {
	SessionID string
	Version   int64
	Events    []Event
}

type joinRequest struct {
	client    *Client
	sessionID string
	version   int64
	events    []Event
}

type directMessage struct {
	client *Client
	event  Event
}

// group is the subscribers of one session. cursor is the last version
// delivered to the group.
type group struct {
	clients map[*Client]bool
	cursor  int64
	pending map[int64]*Batch
}

// Hub maintains the set of active clients and routes events to them
type Hub struct {
	clients  map[*Client]bool
	sessions map[string]*group

	register   chan *Client
	unregister chan *Client
	join       chan *joinRequest
	broadcast  chan *Batch
	direct     chan *directMessage

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		sessions:   make(map[string]*group),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan *joinRequest),
		broadcast:  make(chan *Batch),
		direct:     make(chan *directMessage),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			logger.Debug(client.ctx).Int("clients", len(h.clients)).Msg("Client registered")

		case client := <-h.unregister:
			h.unregisterClient(client)

		case req := <-h.join:
			h.joinSession(req)

		case batch := <-h.broadcast:
			h.deliverBatch(batch)

		case msg := <-h.direct:
			if h.clients[msg.client] {
				h.sendTo(msg.client, msg.event)
			}

		case <-h.done:
			for client := range h.clients {
				h.unregisterClient(client)
			}
			return
		}
	}
}

// Stop ends the event loop and closes every connection
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds an authenticated client. Call before starting its pumps.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Join moves c into sessionID's group and sends it events, normally the
// snapshot read at version.
func (h *Hub) Join(c *Client, sessionID string, version int64, events ...Event) {
	select {
	case h.join <- &joinRequest{client: c, sessionID: sessionID, version: version, events: events}:
	case <-h.done:
	}
}

// Publish fans a batch out to the session's subscribers
func (h *Hub) Publish(b *Batch) {
	select {
	case h.broadcast <- b:
	case <-h.done:
	}
}

// SendTo delivers an event to a single client
func (h *Hub) SendTo(c *Client, e Event) {
	select {
	case h.direct <- &directMessage{client: c, event: e}:
	case <-h.done:
	}
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	h.leaveSession(client)
	delete(h.clients, client)
	close(client.send)

	logger.Info(client.ctx).
		Int("remaining_clients", len(h.clients)).
		Msg("Client disconnected")
}

func (h *Hub) leaveSession(client *Client) {
	if client.sessionID == "" {
		return
	}
	if g, ok := h.sessions[client.sessionID]; ok {
		delete(g.clients, client)
		if len(g.clients) == 0 {
			delete(h.sessions, client.sessionID)
		}
	}
	client.sessionID = ""
	client.seen = 0
}

func (h *Hub) joinSession(req *joinRequest) {
	client := req.client
	if !h.clients[client] {
		return
	}
	if client.sessionID != req.sessionID {
		h.leaveSession(client)
	}

	g, ok := h.sessions[req.sessionID]
	if !ok {
		g = &group{clients: make(map[*Client]bool), cursor: req.version, pending: make(map[int64]*Batch)}
		h.sessions[req.sessionID] = g
	}
	g.clients[client] = true
	client.sessionID = req.sessionID
	client.seen = req.version

	for _, e := range req.events {
		h.sendTo(client, e)
	}

	logger.Debug(client.ctx).
		Str("session_id", req.sessionID).
		Int("subscribers", len(g.clients)).
		Msg("Client joined session")
}

// deliverBatch releases b and any held batches that now follow the cursor.
func (h *Hub) deliverBatch(b *Batch) {
	g, ok := h.sessions[b.SessionID]
	if !ok || b.Version <= g.cursor {
		return
	}
	g.pending[b.Version] = b

	if len(g.pending) > maxPendingBatches {
		// a commit never produced a batch; skip to the oldest held one
		versions := lo.Keys(g.pending)
		sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
		g.cursor = versions[0] - 1
	}

	for {
		next, ok := g.pending[g.cursor+1]
		if !ok {
			return
		}
		delete(g.pending, next.Version)
		g.cursor = next.Version

		for client := range g.clients {
			if next.Version <= client.seen {
				continue
			}
			client.seen = next.Version
			for _, e := range next.Events {
				h.sendTo(client, e)
			}
		}
	}
}

// sendTo encodes e for client and queues it. A client whose buffer is full
// is dropped.
func (h *Hub) sendTo(client *Client, e Event) {
	if !h.clients[client] {
		return
	}
	data, err := e.encode(client.UserID())
	if err != nil {
		logger.Error(client.ctx).Err(err).Str("event", e.Type).Msg("Failed to marshal event")
		return
	}
	select {
	case client.send <- data:
	default:
		logger.Warn(client.ctx).Msg("Send buffer full, dropping client")
		h.unregisterClient(client)
	}
}

func newClient(h *Hub, conn *websocket.Conn, id auth.Identity, ctx context.Context, handle func(*Client, []byte)) *Client {
	return &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		identity: id,
		ctx:      ctx,
		handle:   handle,
	}
}

// readPump reads frames and hands each to the client's handler in order
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn(c.ctx).Err(err).Msg("WebSocket read error")
			}
			return
		}
		c.handle(c, data)
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
				// The hub closed the channel
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

func newUpgrader(allowedOrigin string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		},
	}
}
