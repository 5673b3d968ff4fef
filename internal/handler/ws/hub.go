package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatlink-backend/internal/domain"
	"chatlink-backend/pkg/constants"
	"chatlink-backend/pkg/logger"
	"chatlink-backend/pkg/metrics"
)

// PresenceRegistry tracks user -> live connection in the presence directory
type PresenceRegistry interface {
	Register(ctx context.Context, userID uuid.UUID, connID string) error
	Clear(ctx context.Context, userID uuid.UUID, connID string) error
	Heartbeat(ctx context.Context, userID uuid.UUID) error
}

// InboundHandler consumes frames and disconnects from the hub
type InboundHandler interface {
	HandleFrame(ctx context.Context, client *Client, frame *Frame)
	HandleDisconnect(ctx context.Context, userID uuid.UUID)
}

// Frame is one inbound client request. Every frame is acknowledged by an
// ack frame carrying the same AckID.
type Frame struct {
	Type    string          `json:"type"`
	AckID   string          `json:"ack_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub manages call WebSocket connections: one socket per user, with room
// membership driven by the call engine. Room fan-out goes through Redis
// Pub/Sub so events reach clients on every process.
type Hub struct {
	// Connected clients by user; a new connection for the same user
	// replaces the previous one
	clients map[uuid.UUID]*Client

	// Room membership: roomID -> local member set
	rooms map[string]map[*Client]bool

	// Cancel functions for room subscriptions
	subscriptionCancels map[string]context.CancelFunc

	redisClient *redis.Client
	presence    PresenceRegistry
	handler     InboundHandler

	mu sync.RWMutex

	register   chan *Client
	unregister chan *Client

	// Concurrency limit: maxConnections is the maximum number of concurrent
	// WebSocket connections
	maxConnections int
	semaphore      chan struct{}
}

// Client represents one user's WebSocket connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
	connID string

	// done signals shutdown to the write pump and turns enqueue into a
	// no-op. The send channel itself is never closed: a frame handler may
	// still be acking on a connection the hub already replaced.
	done      chan struct{}
	closeOnce sync.Once
}

// close marks the client dead. Safe to call more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// UserID returns the authenticated user behind this connection
func (c *Client) UserID() uuid.UUID {
	return c.userID
}

// GetAllowedOrigins returns allowed WebSocket origins from environment or defaults
func GetAllowedOrigins() map[string]bool {
	allowedOrigins := map[string]bool{
		"http://localhost:3000": true,
		"http://localhost:8080": true,
		"http://127.0.0.1:3000": true,
		"http://127.0.0.1:8080": true,
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			allowedOrigins[strings.TrimSpace(origin)] = true
		}
	}

	return allowedOrigins
}

var callUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Reject empty origins - require explicit origin for security
			return false
		}

		allowedOrigins := GetAllowedOrigins()
		for allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	},
}

// NewHub creates a new call hub
func NewHub(redisClient *redis.Client, presence PresenceRegistry) *Hub {
	maxConns := 1000
	if val := os.Getenv("WS_MAX_CONNECTIONS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			maxConns = n
		}
	}

	hub := &Hub{
		clients:             make(map[uuid.UUID]*Client),
		rooms:               make(map[string]map[*Client]bool),
		subscriptionCancels: make(map[string]context.CancelFunc),
		redisClient:         redisClient,
		presence:            presence,
		register:            make(chan *Client),
		unregister:          make(chan *Client),
		maxConnections:      maxConns,
		semaphore:           make(chan struct{}, maxConns),
	}

	go hub.run()

	return hub
}

// SetHandler wires the inbound frame handler. Must be called before the
// first connection is accepted.
func (h *Hub) SetHandler(handler InboundHandler) {
	h.handler = handler
}

// run handles connection registration
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if prev, ok := h.clients[client.userID]; ok {
				// A reconnect replaces the stale connection
				prev.close()
				h.removeFromRoomsLocked(prev)
			}
			h.clients[client.userID] = client
			h.mu.Unlock()

			metrics.WebSocketConnectionsActive.Inc()

		case client := <-h.unregister:
			h.mu.Lock()
			current, ok := h.clients[client.userID]
			if ok && current == client {
				delete(h.clients, client.userID)
				client.close()
				h.removeFromRoomsLocked(client)
			}
			h.mu.Unlock()

			if ok && current == client {
				metrics.WebSocketConnectionsActive.Dec()
			}
		}
	}
}

// removeFromRoomsLocked drops a client from every room it is in.
// Caller must hold h.mu.
func (h *Hub) removeFromRoomsLocked(client *Client) {
	for roomID, members := range h.rooms {
		if members[client] {
			delete(members, client)
			if len(members) == 0 {
				h.dropRoomLocked(roomID)
			}
		}
	}
}

// dropRoomLocked tears down an empty room's subscription.
// Caller must hold h.mu.
func (h *Hub) dropRoomLocked(roomID string) {
	if cancel, ok := h.subscriptionCancels[roomID]; ok {
		cancel()
		delete(h.subscriptionCancels, roomID)
	}
	delete(h.rooms, roomID)
	metrics.RoomSubscriptionsActive.Dec()
}

// Join adds the user's live connection to a room, subscribing to the room's
// Redis channel on first local member. A user with no live connection is
// skipped; they re-join on reconnect.
func (h *Hub) Join(roomID string, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[userID]
	if !ok {
		return
	}

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)

		ctx, cancel := context.WithCancel(context.Background())
		h.subscriptionCancels[roomID] = cancel
		go h.subscribeToRoom(ctx, roomID)

		metrics.RoomSubscriptionsActive.Inc()
	}
	h.rooms[roomID][client] = true
}

// Leave removes the user's connection from a room
func (h *Hub) Leave(roomID string, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[userID]
	if !ok {
		return
	}
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if members[client] {
		delete(members, client)
		if len(members) == 0 {
			h.dropRoomLocked(roomID)
		}
	}
}

// ToRoom publishes an event to the room's Redis channel. Local members
// receive it through the subscription loop, same as members on other
// processes.
func (h *Hub) ToRoom(ctx context.Context, event *domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := roomChannel(event.RoomID)
	if err := h.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to room channel: %w", err)
	}
	return nil
}

// ToUser delivers an event to one user's live connection on this process.
// A missing connection is a silent no-op; the target is presumed
// reconnecting.
func (h *Hub) ToUser(ctx context.Context, userID uuid.UUID, event *domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	client.enqueue(payload)
	return nil
}

// subscribeToRoom pumps the room's Redis channel into local members
func (h *Hub) subscribeToRoom(ctx context.Context, roomID string) {
	pubsub := h.redisClient.Subscribe(ctx, roomChannel(roomID))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		logger.Error("Failed to subscribe to room channel",
			zap.String("room_id", roomID),
			zap.Error(err))
		return
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			if msg == nil {
				continue
			}
			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn("Failed to unmarshal room event",
					zap.String("room_id", roomID),
					zap.Error(err))
				continue
			}
			h.deliverToRoom(roomID, &event, []byte(msg.Payload))
		}
	}
}

// deliverToRoom fans an event out to local room members, honoring the
// exclude-sender flag
func (h *Hub) deliverToRoom(roomID string, event *domain.Event, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for client := range members {
		if event.ExcludeSender && client.userID == event.SenderID {
			continue
		}
		client.enqueue(payload)
	}
}

// enqueue drops the message if the client is closed or its buffer is full;
// a slow reader is disconnected by the write pump timing out, not blocked on
func (c *Client) enqueue(payload []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- payload:
	case <-c.done:
	default:
		logger.Warn("Dropping event for slow client",
			zap.String("user_id", c.userID.String()))
	}
}

// ServeWS handles WebSocket requests for the call endpoint
func (h *Hub) ServeWS(c *gin.Context) {
	// Acquire semaphore to limit concurrent connections
	select {
	case h.semaphore <- struct{}{}:
	default:
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", h.maxConnections))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server at capacity, please try again later"})
		return
	}

	// Get user ID from context (set by auth middleware)
	userIDVal, exists := c.Get("user_id")
	if !exists {
		<-h.semaphore
		c.JSON(401, gin.H{"error": "unauthorized"})
		return
	}

	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		<-h.semaphore
		c.JSON(500, gin.H{"error": "invalid user_id"})
		return
	}

	conn, err := callUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		<-h.semaphore
		logger.Warn("WebSocket upgrade failed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
		connID: uuid.NewString(),
		done:   make(chan struct{}),
	}

	ctx := c.Request.Context()
	if err := h.presence.Register(ctx, userID, client.connID); err != nil {
		logger.Warn("Failed to register presence",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}

	client.hub.register <- client

	logger.Info("Call socket connected",
		zap.String("user_id", userID.String()),
		zap.String("conn_id", client.connID))

	go client.writePump()
	go client.readPump()
}

// readPump reads frames from the WebSocket and dispatches them
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		<-c.hub.semaphore

		ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
		defer cancel()

		if err := c.hub.presence.Clear(ctx, c.userID, c.connID); err != nil {
			logger.Warn("Failed to clear presence",
				zap.String("user_id", c.userID.String()),
				zap.Error(err))
		}
		if c.hub.handler != nil {
			c.hub.handler.HandleDisconnect(ctx, c.userID)
		}

		logger.Info("Call socket disconnected",
			zap.String("user_id", c.userID.String()),
			zap.String("conn_id", c.connID))
	}()

	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket connection closed",
					zap.String("user_id", c.userID.String()),
					zap.Error(err))
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			logger.Warn("Invalid frame from WebSocket",
				zap.String("user_id", c.userID.String()),
				zap.Error(err))
			continue
		}

		if c.hub.handler == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
		c.hub.handler.HandleFrame(ctx, c, &frame)
		cancel()

		if err := c.hub.presence.Heartbeat(context.Background(), c.userID); err != nil {
			logger.Debug("Presence heartbeat failed",
				zap.String("user_id", c.userID.String()),
				zap.Error(err))
		}
	}
}

// writePump writes messages to the WebSocket
func (c *Client) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func roomChannel(roomID string) string {
	return fmt.Sprintf("call:%s", roomID)
}
