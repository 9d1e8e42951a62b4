package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeError       MessageType = "error"

	// Pipeline events pushed to the owner's dashboard
	MessageTypeNewMessage    MessageType = "new_message"
	MessageTypeDraftCreated  MessageType = "draft_created"
	MessageTypeDraftUpdated  MessageType = "draft_updated"
	MessageTypeBatchProgress MessageType = "batch_progress"
	MessageTypeActivity      MessageType = "activity"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    MessageType `json:"type"`
	OwnerID uint        `json:"owner_id,omitempty"`
	Data    any         `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// NewMessagePayload represents the payload for new message notifications
type NewMessagePayload struct {
	ID          uint   `json:"id"`
	SenderEmail string `json:"sender_email"`
	SenderName  string `json:"sender_name,omitempty"`
	Subject     string `json:"subject,omitempty"`
	ReceivedAt  string `json:"received_at"`
}

// Hub maintains the set of active clients and pushes owner events to them
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Owner subscriptions: ownerID -> set of clients
	subscriptions map[uint]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Subscribe to owner events
	subscribe chan *subscriptionRequest

	// Unsubscribe from owner events
	unsubscribeOwner chan *subscriptionRequest

	// Broadcast to owner subscribers
	broadcast chan *broadcastMessage

	done     chan struct{}
	stopOnce sync.Once

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger
	logger *slog.Logger
}

type subscriptionRequest struct {
	client  *Client
	ownerID uint
}

type broadcastMessage struct {
	ownerID uint
	message []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:          make(map[*Client]bool),
		subscriptions:    make(map[uint]map[*Client]bool),
		register:         make(chan *Client),
		unregister:       make(chan *Client),
		subscribe:        make(chan *subscriptionRequest),
		unsubscribeOwner: make(chan *subscriptionRequest),
		broadcast:        make(chan *broadcastMessage, 256),
		done:             make(chan struct{}),
		logger:           logger,
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[*Client]bool)
			h.subscriptions = make(map[uint]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if client.ownerID != 0 {
				h.addSubscription(client, client.ownerID)
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client registered", slog.Uint64("owner_id", uint64(client.ownerID)))
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				// Remove from all subscriptions
				for ownerID, subscribers := range h.subscriptions {
					delete(subscribers, client)
					if len(subscribers) == 0 {
						delete(h.subscriptions, ownerID)
					}
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unregistered")
			}

		case req := <-h.subscribe:
			h.mu.Lock()
			h.addSubscription(req.client, req.ownerID)
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client subscribed to owner events", slog.Uint64("owner_id", uint64(req.ownerID)))
			}

		case req := <-h.unsubscribeOwner:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.ownerID]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.ownerID)
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unsubscribed from owner events", slog.Uint64("owner_id", uint64(req.ownerID)))
			}

		case msg := <-h.broadcast:
			h.mu.RLock()
			subscribers := h.subscriptions[msg.ownerID]
			for client := range subscribers {
				select {
				case client.send <- msg.message:
				default:
					// Client buffer full, skip
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) addSubscription(client *Client, ownerID uint) {
	if h.subscriptions[ownerID] == nil {
		h.subscriptions[ownerID] = make(map[*Client]bool)
	}
	h.subscriptions[ownerID][client] = true
}

// Stop ends Run and closes every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe subscribes a client to an owner's events
func (h *Hub) Subscribe(client *Client, ownerID uint) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, ownerID: ownerID}:
	case <-h.done:
	}
}

// Unsubscribe unsubscribes a client from an owner's events
func (h *Hub) Unsubscribe(client *Client, ownerID uint) {
	select {
	case h.unsubscribeOwner <- &subscriptionRequest{client: client, ownerID: ownerID}:
	case <-h.done:
	}
}

// SubscriberCount returns how many clients listen to an owner's events
func (h *Hub) SubscriberCount(ownerID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[ownerID])
}

// Publish queues an event for the owner's subscribers. It never blocks the
// caller: when the queue is full the event is dropped.
func (h *Hub) Publish(ownerID uint, msgType MessageType, payload any) {
	msg := WSMessage{
		Type:    msgType,
		OwnerID: ownerID,
		Data:    payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		}
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{ownerID: ownerID, message: data}:
	default:
		if h.logger != nil {
			h.logger.Warn("websocket broadcast queue full, dropping event",
				slog.String("type", string(msgType)),
				slog.Uint64("owner_id", uint64(ownerID)))
		}
	}
}

// BroadcastNewMessage notifies the owner's subscribers about a newly synced message
func (h *Hub) BroadcastNewMessage(ownerID uint, payload *NewMessagePayload) {
	h.Publish(ownerID, MessageTypeNewMessage, payload)
}
