package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/yuchen-w/CampusMarketBack/internal/models"
	"github.com/yuchen-w/CampusMarketBack/internal/services"
)

// Hub owns the broadcast groups: one group of live connections per
// conversation. All registry mutations and deliveries funnel through the
// Run goroutine, so delivery order for one conversation is the order
// events were enqueued.
type Hub struct {
	rooms      map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Event

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// Client is one websocket connection, bound to a single conversation for
// its whole lifetime. A reconnect is a new Client.
//
// The send channel is written by the hub's Run goroutine and by the
// client's own read goroutine (error events), so closing it is guarded by
// sendMu+sendClosed rather than done bare.
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	userID         int64
	conversationID int64
	send           chan []byte

	sendMu     sync.Mutex
	sendClosed bool
}

type sender interface {
	SendMessage(
		ctx context.Context,
		actorID int64,
		conversationID int64,
		body string,
	) (*models.Message, error)
}

type Event struct {
	Type           string `json:"type"`
	ID             int64  `json:"id,omitempty"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	SenderID       int64  `json:"sender_id,omitempty"`
	Text           string `json:"text,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	Error          string `json:"error,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Event, 64),
		locks:      make(map[int64]*sync.Mutex),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, conversationID int64) *Client {
	return &Client{
		hub:            hub,
		conn:           conn,
		userID:         userID,
		conversationID: conversationID,
		send:           make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			room, ok := h.rooms[client.conversationID]
			if !ok {
				room = make(map[*Client]struct{})
				h.rooms[client.conversationID] = room
			}
			room[client] = struct{}{}
		case client := <-h.unregister:
			room, ok := h.rooms[client.conversationID]
			if !ok {
				continue
			}
			if _, exists := room[client]; exists {
				delete(room, client)
				client.closeSend()
			}
			if len(room) == 0 {
				delete(h.rooms, client.conversationID)
				h.dropConversationLock(client.conversationID)
			}
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) deliver(event *Event) {
	room, ok := h.rooms[event.ConversationID]
	if !ok {
		return
	}

	encoded, err := json.Marshal(event)
	if err != nil {
		log.Printf("chat hub encode event: %v", err)
		return
	}

	for client := range room {
		if !client.trySend(encoded) {
			// Slow consumer: drop it rather than stall the whole group.
			delete(room, client)
			client.closeSend()
		}
	}
	if len(room) == 0 {
		delete(h.rooms, event.ConversationID)
		h.dropConversationLock(event.ConversationID)
	}
}

// conversationLock serializes persist+enqueue per conversation so that
// broadcast order always matches insertion order, even when senders race.
func (h *Hub) conversationLock(conversationID int64) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()

	lock, ok := h.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		h.locks[conversationID] = lock
	}
	return lock
}

// dropConversationLock evicts the ordering lock once its room is gone,
// keeping the locks map bounded by the number of live rooms.
func (h *Hub) dropConversationLock(conversationID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.locks, conversationID)
}

// trySend enqueues payload unless the channel is full or already closed.
func (c *Client) trySend(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend shuts the send channel exactly once. Safe to call from the
// hub and from the connection goroutines in any order.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

func (c *Client) ReadPump(service sender) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil {
			writeError(c, "invalid message payload")
			continue
		}
		if incoming.Type != "message.send" {
			writeError(c, "unsupported event type")
			continue
		}

		lock := c.hub.conversationLock(c.conversationID)
		lock.Lock()
		message, err := service.SendMessage(
			context.Background(),
			c.userID,
			c.conversationID,
			incoming.Text,
		)
		if err != nil {
			lock.Unlock()
			writeError(c, sendFailureReason(err))
			continue
		}

		c.hub.broadcast <- &Event{
			Type:           "chat.message",
			ID:             message.ID,
			ConversationID: message.ConversationID,
			SenderID:       message.SenderID,
			Text:           message.Body,
			CreatedAt:      services.FormatChatTimestamp(message.CreatedAt),
		}
		lock.Unlock()
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func sendFailureReason(err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return "message text must not be empty"
	case errors.Is(err, services.ErrNotParticipant):
		return "not a conversation member"
	default:
		return "failed to send message"
	}
}

// writeError reports a failure to the originating connection only. It
// never touches the rest of the group and never closes the connection.
// A client the hub already dropped is a silent no-op.
func writeError(client *Client, message string) {
	payload, err := json.Marshal(Event{
		Type:      "error",
		Error:     message,
		CreatedAt: services.FormatChatTimestamp(time.Now().UTC()),
	})
	if err != nil {
		return
	}
	client.trySend(payload)
}
