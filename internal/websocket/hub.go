package chatws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/antonykinuthia/luxliving/internal/models"
	"github.com/antonykinuthia/luxliving/internal/realtime"
	"github.com/antonykinuthia/luxliving/internal/repository"
	"github.com/antonykinuthia/luxliving/internal/services"
	websocket "github.com/gofiber/contrib/websocket"
)

// Hub keeps the websocket connections of currently online users and
// fans broker events out to the participants they concern. A user may
// hold several connections (phone and tablet) at once.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	deliveries chan *delivery
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

type delivery struct {
	recipients []string
	payload    []byte
}

type sender interface {
	SendMessage(
		ctx context.Context,
		senderID string,
		receiverID string,
		text string,
		imageID string,
		attachment *services.Attachment,
	) (*models.Message, error)
}

// Envelope is the frame pushed to websocket clients.
type Envelope struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Error      string          `json:"error,omitempty"`
	Timestamp  string          `json:"timestamp"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliveries: make(chan *delivery, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.userID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.clients, client.userID)
			}
		case d := <-h.deliveries:
			for _, userID := range d.recipients {
				h.sendToUser(userID, d.payload)
			}
		}
	}
}

// Bridge subscribes the hub to document change events and forwards
// each one to the users it concerns. It returns after the subscription
// is up, or once the broker refuses it.
func (h *Hub) Bridge(ctx context.Context, broker realtime.Broker) (realtime.Unsubscribe, error) {
	return broker.Subscribe(ctx, repository.CollectionMessages, func(event realtime.Event) {
		var scope struct {
			SenderID     string   `json:"senderId"`
			ReceiverID   string   `json:"receiverId"`
			Participants []string `json:"participantIds"`
		}
		if err := json.Unmarshal(event.Payload, &scope); err != nil {
			log.Printf("chat hub: drop unscoped event: %v", err)
			return
		}

		recipients := scope.Participants
		if scope.SenderID != "" {
			recipients = append(recipients, scope.SenderID)
		}
		if scope.ReceiverID != "" && scope.ReceiverID != scope.SenderID {
			recipients = append(recipients, scope.ReceiverID)
		}
		if len(recipients) == 0 {
			return
		}

		payload, err := json.Marshal(Envelope{
			Type:       "event",
			Collection: event.Collection,
			Kind:       event.Kind,
			Payload:    event.Payload,
			Timestamp:  services.FormatChatTimestamp(time.Now().UTC()),
		})
		if err != nil {
			log.Printf("chat hub: encode envelope: %v", err)
			return
		}

		h.deliveries <- &delivery{recipients: recipients, payload: payload}
	})
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
		default:
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

// ReadPump consumes frames from one connection until it closes. Sends
// go through the chat service; delivery to the other side happens over
// the broker bridge, so the pump never writes to peers directly.
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
			Type       string `json:"type"`
			ReceiverID string `json:"receiverId"`
			Text       string `json:"text"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil {
			writeError(c, "invalid message payload")
			continue
		}
		if incoming.Type != "message" {
			writeError(c, "unsupported message type")
			continue
		}

		_, err = service.SendMessage(context.Background(), c.userID, incoming.ReceiverID, incoming.Text, "", nil)
		if err != nil {
			writeError(c, "failed to send message")
			continue
		}
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

func writeError(client *Client, message string) {
	payload, err := json.Marshal(Envelope{
		Type:      "error",
		Error:     message,
		Timestamp: services.FormatChatTimestamp(time.Now().UTC()),
	})
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
		client.hub.Unregister(client)
	}
}
