package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voiceassist/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Default maximum message size allowed from peer.
	defaultMaxMessageSize = 512 * 1024

	// Requests a client may have waiting behind the one being answered.
	maxPendingRequests = 4
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Assistant answers text messages and audio clips
type Assistant interface {
	HandleText(ctx context.Context, input string) (string, error)
	HandleVoice(ctx context.Context, upload domain.AudioUpload) (string, error)
}

// Hub maintains the set of active clients.
type Hub struct {
	// Registered clients.
	clients map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	assistant      Assistant
	validator      *MessageValidator
	maxMessageSize int64

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub. maxMessageSize bounds a single frame,
// which for binary frames is a whole audio clip.
func NewHub(assistant Assistant, maxMessageSize int64, logger *zap.Logger) *Hub {
	if maxMessageSize <= 0 {
		maxMessageSize = defaultMaxMessageSize
	}
	return &Hub{
		clients:        make(map[*Client]struct{}),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		assistant:      assistant,
		validator:      NewMessageValidator(),
		maxMessageSize: maxMessageSize,
		logger:         logger,
	}
}

// Run starts the hub's main loop. When ctx ends every client is disconnected.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.cancel()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.cancel()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("Hub stopped")
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// inbound is a frame waiting to be answered
type inbound struct {
	messageType int
	payload     []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Frames waiting to be answered, in arrival order.
	requests chan inbound

	// Cancelled when the client disconnects or the hub stops.
	ctx    context.Context
	cancel context.CancelFunc

	id     string
	logger *zap.Logger
}

// HandleWebSocket handles websocket requests from the peer.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 16),
		requests: make(chan inbound, maxPendingRequests),
		ctx:      ctx,
		cancel:   cancel,
		id:       id,
		logger:   logger.With(zap.String("clientID", id)),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		cancel()
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.processLoop()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the request queue.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.cancel()
	}()

	c.conn.SetReadLimit(c.hub.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && c.ctx.Err() == nil {
				c.logger.Warn("WebSocket error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			select {
			case c.requests <- inbound{messageType: messageType, payload: message}:
			default:
				c.sendError("", domain.CodeInvalidInput, "too many pending requests")
			}
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the send channel to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Warn("Failed to write message", zap.Error(err))
				c.cancel()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// processLoop answers queued frames one at a time
func (c *Client) processLoop() {
	for {
		select {
		case req := <-c.requests:
			if req.messageType == websocket.BinaryMessage {
				c.processAudioClip(req.payload)
			} else {
				c.processMessage(req.payload)
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// processMessage processes incoming JSON messages
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Debug("Rejected message", zap.Error(err))
		c.sendError("", domain.CodeInvalidInput, err.Error())
		return
	}

	switch m := msg.(type) {
	case *PingMessage:
		c.sendJSON(PongMessage{BaseMessage: newBase(MessageTypePong, m.MessageID), Data: m.Data})

	case *TextMessage:
		reply, err := c.hub.assistant.HandleText(c.ctx, m.Input)
		if err != nil {
			c.sendFailure(m.MessageID, err)
			return
		}
		c.sendJSON(ReplyMessage{BaseMessage: newBase(MessageTypeReply, m.MessageID), Reply: reply})
	}
}

// processAudioClip answers a binary frame holding a whole audio clip
func (c *Client) processAudioClip(data []byte) {
	c.logger.Debug("Received audio clip", zap.Int("size", len(data)))

	reply, err := c.hub.assistant.HandleVoice(c.ctx, domain.AudioUpload{
		Filename: "ws-clip",
		Content:  bytes.NewReader(data),
	})
	if err != nil {
		c.sendFailure("", err)
		return
	}
	c.sendJSON(ReplyMessage{BaseMessage: newBase(MessageTypeReply, ""), Reply: reply})
}

func (c *Client) sendFailure(messageID string, err error) {
	if c.ctx.Err() != nil {
		return
	}
	code, message := domain.Describe(err)
	if code == domain.CodeInternal {
		c.logger.Error("Request failed", zap.Error(err))
	} else {
		c.logger.Info("Request failed", zap.String("code", code), zap.Error(err))
	}
	c.sendError(messageID, code, message)
}

func (c *Client) sendError(messageID, code, message string) {
	c.sendJSON(ErrorMessage{
		BaseMessage: newBase(MessageTypeError, messageID),
		Code:        code,
		Message:     message,
	})
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	case <-c.ctx.Done():
	}
}
