package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
	"github.com/lorrc/support-chat-gateway/internal/infrastructure/logging"
	"golang.org/x/time/rate"
)

// ClientConfig holds per-connection transport settings.
type ClientConfig struct {
	// Buffered outbound events before the connection counts as saturated.
	SendBufferSize int
	// Maximum inbound frame size allowed from peer.
	MaxMessageSize int64
	// Send pings to peer with this period. Must be less than PongWait.
	PingInterval time.Duration
	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration
	// Time allowed to write a message to the peer.
	WriteWait time.Duration
	// Sustained inbound events per second and burst allowance.
	InboundRPS   float64
	InboundBurst int
}

// DefaultClientConfig returns the transport defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendBufferSize: 256,
		MaxMessageSize: 8192,
		PingInterval:   54 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		InboundRPS:     5,
		InboundBurst:   10,
	}
}

func (c ClientConfig) withDefaults() ClientConfig {
	d := DefaultClientConfig()
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = d.SendBufferSize
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = (c.PongWait * 9) / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.InboundRPS <= 0 {
		c.InboundRPS = d.InboundRPS
	}
	if c.InboundBurst <= 0 {
		c.InboundBurst = d.InboundBurst
	}
	return c
}

// Client is a middleman between the websocket connection and the gateway.
type Client struct {
	// ID is the connection ID the core services address this client by.
	ID string

	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound events.
	send chan domain.Event

	// mu guards closed so enqueue never races CloseSend
	mu     sync.Mutex
	closed bool

	limiter *rate.Limiter
	cfg     ClientConfig

	// inflight tracks dispatched inbound events still being handled
	inflight sync.WaitGroup

	// finished releases the hub's count once
	finished sync.Once

	// logger for this client
	logger *slog.Logger
}

// NewClient creates a new WebSocket client. It is not reachable through the
// hub until attached.
func NewClient(hub *Hub, conn *websocket.Conn, connectionID string, cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Client{
		ID:      connectionID,
		hub:     hub,
		conn:    conn,
		send:    make(chan domain.Event, cfg.SendBufferSize),
		limiter: rate.NewLimiter(rate.Limit(cfg.InboundRPS), cfg.InboundBurst),
		cfg:     cfg,
		logger:  logger.With("connection_id", connectionID),
	}
}

// enqueue queues an outbound event without blocking.
func (c *Client) enqueue(event domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return apperrors.ErrConnectionNotFound
	}
	select {
	case c.send <- event:
		return nil
	default:
		return apperrors.ErrConnectionSaturated
	}
}

// CloseSend safely closes the send channel exactly once
func (c *Client) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Serve runs the connection until the peer goes away or the hub closes it.
// It blocks; on return the session has been disconnected from the gateway.
func (c *Client) Serve(ctx context.Context, gateway ports.Gateway, session *domain.Session) {
	ctx = logging.WithConnectionID(logging.WithUserID(ctx, session.Identity.UserID), c.ID)
	readCtx, cancel := context.WithCancel(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.WritePump()
	}()

	c.ReadPump(readCtx, gateway, session)

	// In-flight handlers are abandoned with the connection.
	cancel()
	c.inflight.Wait()

	gateway.Disconnect(context.WithoutCancel(ctx), session)
	c.hub.Detach(c)
	<-done
	c.hub.Finish(c)
}

// ReadPump pumps frames from the websocket connection to the gateway. Each
// inbound event is handled on its own goroutine.
func (c *Client) ReadPump(ctx context.Context, gateway ports.Gateway, session *domain.Session) {
	defer func() {
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		event, err := DecodeInbound(message)
		if err != nil {
			c.logger.Warn("failed to decode client frame", "error", err)
			c.rejectFrame(event, err)
			continue
		}

		if !c.limiter.Allow() {
			c.logger.Warn("inbound event rate limited", "type", string(event.Type))
			c.rejectFrame(event, apperrors.ErrInboundRateLimited)
			continue
		}

		c.inflight.Add(1)
		go func(event domain.InboundEvent) {
			defer c.inflight.Done()
			eventCtx := ctx
			if event.TicketID != "" {
				eventCtx = logging.WithTicketID(ctx, event.TicketID)
			}
			if err := gateway.Dispatch(eventCtx, session, event); err != nil {
				c.logger.Debug("inbound event not handled",
					"type", string(event.Type),
					"error", err,
				)
			}
		}(event)
	}
}

// rejectFrame answers a frame the gateway never saw.
func (c *Client) rejectFrame(event domain.InboundEvent, err error) {
	frame := domain.Event{
		Type:     domain.EventError,
		TicketID: event.TicketID,
		Payload: domain.ErrorPayload{
			Code:    apperrors.Code(err),
			Message: err.Error(),
		},
	}
	if err := c.enqueue(frame); err != nil {
		c.logger.Debug("failed to queue error frame", "error", err)
	}
}

// WritePump pumps events from the send channel to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel. Send close message.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.writeJSON(event); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// writeJSON writes a JSON message to the websocket connection
func (c *Client) writeJSON(event domain.Event) error {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(w).Encode(event); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// --- Incoming Message Handling ---

// ClientMessage is the structure for frames sent from the client.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RoomPayload is the payload shared by room and message frames. Message text
// arrives as "message" and older clients send "content".
type RoomPayload struct {
	TicketID ticketID `json:"ticketId"`
	Message  string   `json:"message"`
	Content  string   `json:"content"`
}

// ticketID accepts a JSON string or number.
type ticketID string

func (t *ticketID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = ticketID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("ticketId must be a string or number")
	}
	*t = ticketID(n.String())
	return nil
}

// DecodeInbound decodes a raw client frame. Unknown types are passed through
// so the gateway can account for them.
func DecodeInbound(raw []byte) (domain.InboundEvent, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.InboundEvent{}, fmt.Errorf("%w: malformed frame: %w", apperrors.ErrBadRequest, err)
	}
	if msg.Type == "" {
		return domain.InboundEvent{}, fmt.Errorf("%w: frame type is required", apperrors.ErrBadRequest)
	}

	event := domain.InboundEvent{Type: domain.InboundEventType(msg.Type)}

	if len(msg.Payload) == 0 || string(msg.Payload) == "null" {
		return event, nil
	}

	var p RoomPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return event, fmt.Errorf("%w: malformed payload: %w", apperrors.ErrBadRequest, err)
	}

	event.TicketID = string(p.TicketID)
	event.Content = p.Message
	if event.Content == "" {
		event.Content = p.Content
	}
	return event, nil
}
