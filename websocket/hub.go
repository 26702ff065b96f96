package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex
}

type Client struct {
	Hub            *Hub
	Conn           *websocket.Conn
	Send           chan []byte
	UserID         string
	Path           string // last path the client reported navigating to
	MessageHandler func(*Client, []byte)
	mu             sync.RWMutex
}

// Message is the client-to-server frame. Navigate frames update the client's
// current path so route decisions can be pushed back.
type Message struct {
	Type string `json:"type"` // "navigate", "ping"
	Path string `json:"path,omitempty"`
}

// SessionPush is the server-to-client frame carrying a session snapshot or a
// route decision.
type SessionPush struct {
	Type     string      `json:"type"` // "session", "redirect"
	Session  interface{} `json:"session,omitempty"`
	Target   string      `json:"target,omitempty"`
	Redirect bool        `json:"redirect,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "user_id", client.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			slog.Info("Client unregistered", "user_id", client.UserID)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID string) *Client {
	client := &Client{
		Hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		UserID: userID,
	}

	h.register <- client
	return client
}

// SendToUser pushes a message to every connection held by the given user.
func (h *Hub) SendToUser(userID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.UserID != userID {
			continue
		}
		select {
		case client.Send <- message:
		default:
			slog.Warn("Dropping message for slow client", "user_id", userID)
		}
	}
}

func (c *Client) SetPath(path string) {
	c.mu.Lock()
	c.Path = path
	c.mu.Unlock()
}

func (c *Client) GetPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Path
}

// SendPush marshals and queues a push frame for this client.
func (c *Client) SendPush(push SessionPush) {
	data, err := json.Marshal(push)
	if err != nil {
		slog.Error("Failed to marshal push message", "error", err)
		return
	}
	select {
	case c.Send <- data:
	default:
		slog.Warn("Dropping push for slow client", "user_id", c.UserID)
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Error("Failed to unmarshal message", "error", err)
			continue
		}

		if c.MessageHandler != nil {
			go c.MessageHandler(c, messageBytes)
			continue
		}

		switch msg.Type {
		case "navigate":
			c.SetPath(msg.Path)
		case "ping":
			// keepalive only
		default:
			slog.Warn("Unknown message type", "type", msg.Type)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
