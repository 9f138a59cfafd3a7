package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks are left to the deployment's reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// command is a client request on the socket: subscribe to a change feed or
// drop an existing subscription.
type command struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	Filter
}

// frame is a server-to-client message.
type frame struct {
	Type         string      `json:"type"`
	Subscription string      `json:"subscription,omitempty"`
	Table        string      `json:"table,omitempty"`
	Event        string      `json:"event,omitempty"`
	Doc          interface{} `json:"doc,omitempty"`
	Error        string      `json:"error,omitempty"`
}

// Client is one authenticated WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string

	mu   sync.Mutex
	subs map[string]*Subscription

	// sendMu guards send against the forward goroutines, which may still be
	// draining buffered subscription events while the hub tears the client
	// down.
	sendMu sync.Mutex
	closed bool
}

// Hub tracks connected clients by user so the notification gate can address
// a specific actor's open views.
type Hub struct {
	broker     *Broker
	clients    map[*Client]bool
	byUser     map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	notify     chan userFrame
}

type userFrame struct {
	userID string
	data   []byte
}

func NewHub(broker *Broker) *Hub {
	return &Hub{
		broker:     broker,
		clients:    make(map[*Client]bool),
		byUser:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notify:     make(chan userFrame, sendBuffer),
	}
}

// Run starts the hub event loop. Must be run in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			if h.byUser[client.userID] == nil {
				h.byUser[client.userID] = make(map[*Client]bool)
			}
			h.byUser[client.userID][client] = true
			log.Println("[REALTIME] [INFO] ws client connected, total:", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				delete(h.byUser[client.userID], client)
				if len(h.byUser[client.userID]) == 0 {
					delete(h.byUser, client.userID)
				}
				client.closeSend()
				log.Println("[REALTIME] [INFO] ws client disconnected, total:", len(h.clients))
			}

		case uf := <-h.notify:
			for client := range h.byUser[uf.userID] {
				client.enqueue(uf.data)
			}
		}
	}
}

// Notify delivers a raw frame to every open connection of the given user.
// Users without an open view receive nothing.
func (h *Hub) Notify(userID string, data []byte) {
	select {
	case h.notify <- userFrame{userID: userID, data: data}:
	default:
		log.Println("[REALTIME] [WARN] notify queue full, dropping frame for", userID)
	}
}

// ServeWS authenticates the request and upgrades it to a WebSocket. The
// access token is read from the "token" query parameter (browsers cannot set
// headers on WebSocket dials) or the Authorization header.
func ServeWS(hub *Hub, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := wsUserID(c, jwtSecret)
		if err != nil {
			log.Println("[REALTIME] [ERROR] ws auth failed:", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Println("[REALTIME] [ERROR] ws upgrade failed:", err)
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			send:   make(chan []byte, sendBuffer),
			userID: userID,
			subs:   make(map[string]*Subscription),
		}
		hub.register <- client
		go client.writePump()
		go client.readPump()
	}
}

func wsUserID(c *gin.Context, secret string) (string, error) {
	raw := strings.TrimSpace(c.Query("token"))
	if raw == "" {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.Split(header, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			raw = parts[1]
		}
	}
	if raw == "" {
		return "", jwt.ErrTokenMalformed
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenInvalidClaims
	}
	sub, _ := claims["sub"].(string)
	if strings.TrimSpace(sub) == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return sub, nil
}

// readPump handles subscribe/unsubscribe commands until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.dropSubscriptions()
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Println("[REALTIME] [WARN] ws unexpected close:", err)
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			c.sendFrame(frame{Type: "error", Error: "invalid command"})
			continue
		}
		c.handle(cmd)
	}
}

func (c *Client) handle(cmd command) {
	switch cmd.Action {
	case "subscribe":
		if cmd.Table != TableOrders && cmd.Table != TableChat {
			c.sendFrame(frame{Type: "error", Error: "unknown table"})
			return
		}
		if cmd.Event == "" {
			cmd.Event = EventAll
		}
		sub := c.hub.broker.Subscribe(cmd.Filter)
		c.mu.Lock()
		c.subs[sub.ID] = sub
		c.mu.Unlock()
		go c.forward(sub)
		c.sendFrame(frame{Type: "subscribed", Subscription: sub.ID, Table: cmd.Table, Event: cmd.Event})

	case "unsubscribe":
		c.mu.Lock()
		_, ok := c.subs[cmd.ID]
		delete(c.subs, cmd.ID)
		c.mu.Unlock()
		if ok {
			c.hub.broker.Unsubscribe(cmd.ID)
		}

	default:
		c.sendFrame(frame{Type: "error", Error: "unknown action"})
	}
}

// forward relays a subscription's events onto the socket until the
// subscription is dropped.
func (c *Client) forward(sub *Subscription) {
	for evt := range sub.C {
		c.sendFrame(frame{
			Type:         "change",
			Subscription: sub.ID,
			Table:        evt.Table,
			Event:        evt.Event,
			Doc:          evt.Doc,
		})
	}
}

func (c *Client) dropSubscriptions() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]*Subscription)
	c.mu.Unlock()

	for id := range subs {
		c.hub.broker.Unsubscribe(id)
	}
}

func (c *Client) sendFrame(f frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// enqueue queues data for the write pump, dropping it if the buffer is full
// or the client is already torn down.
func (c *Client) enqueue(data []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// closeSend closes the write queue exactly once. Late enqueues become no-ops.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump pumps queued frames to the connection and keeps it alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
