package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

// Inbound outcome labels.
const (
	OutcomeHandled         = "handled"
	OutcomeRejected        = "rejected"
	OutcomeUnknown         = "unknown"
	OutcomeAccepted        = "accepted"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeClosed          = "closed"
)

type inboundHandler func(ctx context.Context, session *domain.Session, event domain.InboundEvent) error

// GatewayOrchestrator drives a connection through its lifecycle and routes
// inbound events to the room manager and the fan-out.
type GatewayOrchestrator struct {
	auth          *SessionAuthenticator
	registry      *ConnectionRegistry
	rooms         *RoomManager
	announcer     ports.Announcer
	users         ports.UserStore
	conversations ports.ConversationStore
	emitter       ports.EventEmitter
	metrics       ports.MetricsRecorder
	presence      *presenceWriter
	handlers      map[domain.InboundEventType]inboundHandler
	logger        *slog.Logger
}

var _ ports.Gateway = (*GatewayOrchestrator)(nil)

// GatewayDeps groups the collaborators of a GatewayOrchestrator.
type GatewayDeps struct {
	Authenticator *SessionAuthenticator
	Registry      *ConnectionRegistry
	Rooms         *RoomManager
	Announcer     ports.Announcer
	Users         ports.UserStore
	Conversations ports.ConversationStore
	Emitter       ports.EventEmitter
	Metrics       ports.MetricsRecorder
	Logger        *slog.Logger
}

// NewGatewayOrchestrator creates the orchestrator and its dispatch table.
func NewGatewayOrchestrator(deps GatewayDeps) *GatewayOrchestrator {
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	g := &GatewayOrchestrator{
		auth:          deps.Authenticator,
		registry:      deps.Registry,
		rooms:         deps.Rooms,
		announcer:     deps.Announcer,
		users:         deps.Users,
		conversations: deps.Conversations,
		emitter:       deps.Emitter,
		metrics:       deps.Metrics,
		presence:      newPresenceWriter(deps.Registry, deps.Users),
		logger:        deps.Logger.With("component", "gateway"),
	}
	g.handlers = map[domain.InboundEventType]inboundHandler{
		domain.InboundJoinRoom:  g.handleJoinRoom,
		domain.InboundLeaveRoom: g.handleLeaveRoom,
		domain.InboundMessage:   g.handleMessage,
		domain.InboundPing:      g.handlePing,
	}
	return g
}

// Connect authenticates the connection and registers it. Only an
// authentication failure is returned; the caller must then close the
// transport. Room setup failures are logged and leave the session unjoined.
func (g *GatewayOrchestrator) Connect(ctx context.Context, connectionID, credential string) (*domain.Session, error) {
	// 1. Authenticate.
	session := domain.NewPendingSession(connectionID)
	identity, err := g.auth.Authenticate(ctx, credential)
	if err != nil {
		session.MarkDisconnected()
		g.metrics.RecordConnection(OutcomeUnauthenticated)
		g.logger.WarnContext(ctx, "connection rejected",
			"connection_id", connectionID,
			"error", err,
		)
		return nil, err
	}

	log := g.logger.With("connection_id", connectionID, "user_id", identity.UserID)

	// 2. Make sure the user exists.
	if err := g.ensureUser(ctx, identity); err != nil {
		log.ErrorContext(ctx, "failed to ensure user record", "error", err)
	}

	// 3. Register and persist a presence transition.
	session.Authenticate(identity)
	change := g.registry.Register(identity, connectionID)
	g.metrics.RecordConnection(OutcomeAccepted)
	g.metrics.SetLiveConnections(g.registry.ConnectionCount(), g.registry.UserCount())
	if change.Changed {
		g.persistPresence(ctx, identity.UserID)
	}
	log.InfoContext(ctx, "client connected", "role", string(identity.Role))

	// 4. Clients are placed in their conversation straight away.
	if identity.IsClient() {
		conv, err := g.rooms.EnsureConversationFor(ctx, identity)
		if err != nil {
			log.ErrorContext(ctx, "failed to ensure conversation", "error", err)
			return session, nil
		}
		if err := g.rooms.JoinRoom(ctx, session, conv.TicketID); err != nil {
			log.WarnContext(ctx, "failed to join conversation",
				"ticket_id", conv.TicketID,
				"error", err,
			)
		}
	}
	return session, nil
}

func (g *GatewayOrchestrator) ensureUser(ctx context.Context, identity domain.Identity) error {
	_, err := g.users.FindByID(ctx, identity.UserID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		return err
	}
	_, err = g.users.Create(ctx, identity)
	return err
}

// persistPresence records the registry's presence for the user. Writes are
// serialized per user and always store the registry's latest value.
func (g *GatewayOrchestrator) persistPresence(ctx context.Context, userID string) {
	if err := g.presence.Sync(ctx, userID); err != nil {
		g.logger.ErrorContext(ctx, "failed to persist presence",
			"user_id", userID,
			"error", err,
		)
	}
}

// Dispatch routes one inbound event. Rejected operations are reported to the
// sender as an error event and returned.
func (g *GatewayOrchestrator) Dispatch(ctx context.Context, session *domain.Session, event domain.InboundEvent) error {
	if session == nil || !session.IsActive() {
		g.metrics.RecordInbound(event.Type, OutcomeUnauthenticated)
		return apperrors.ErrUnauthorized
	}

	handler, ok := g.handlers[event.Type]
	if !ok {
		g.metrics.RecordInbound(event.Type, OutcomeUnknown)
		g.logger.WarnContext(ctx, "ignoring unknown inbound event",
			"connection_id", session.ConnectionID,
			"event", string(event.Type),
		)
		return apperrors.ErrUnknownInboundEvent
	}

	if err := handler(ctx, session, event); err != nil {
		g.metrics.RecordInbound(event.Type, OutcomeRejected)
		g.reject(ctx, session, event, err)
		return err
	}
	g.metrics.RecordInbound(event.Type, OutcomeHandled)
	return nil
}

func (g *GatewayOrchestrator) reject(ctx context.Context, session *domain.Session, event domain.InboundEvent, err error) {
	code := apperrors.Code(err)
	attrs := []any{
		"connection_id", session.ConnectionID,
		"user_id", session.Identity.UserID,
		"ticket_id", event.TicketID,
		"event", string(event.Type),
		"error", err,
	}
	message := err.Error()
	if code == "INTERNAL_ERROR" {
		message = "An unexpected error occurred"
		g.logger.ErrorContext(ctx, "inbound event failed", attrs...)
	} else {
		g.logger.WarnContext(ctx, "inbound event rejected", attrs...)
	}

	if emitErr := g.emitter.Emit(session.ConnectionID, domain.Event{
		Type:     domain.EventError,
		TicketID: event.TicketID,
		Payload:  domain.ErrorPayload{Code: code, Message: message},
	}); emitErr != nil {
		g.metrics.RecordEmission(domain.EventError, OutcomeFailed)
		return
	}
	g.metrics.RecordEmission(domain.EventError, OutcomeSent)
}

func (g *GatewayOrchestrator) handleJoinRoom(ctx context.Context, session *domain.Session, event domain.InboundEvent) error {
	return g.rooms.JoinRoom(ctx, session, event.TicketID)
}

func (g *GatewayOrchestrator) handleLeaveRoom(ctx context.Context, session *domain.Session, event domain.InboundEvent) error {
	return g.rooms.LeaveRoom(ctx, session, event.TicketID)
}

func (g *GatewayOrchestrator) handlePing(_ context.Context, session *domain.Session, _ domain.InboundEvent) error {
	return g.emitter.Emit(session.ConnectionID, domain.Event{Type: domain.EventPong})
}

func (g *GatewayOrchestrator) handleMessage(ctx context.Context, session *domain.Session, event domain.InboundEvent) error {
	// 1. Validate the body before touching any store.
	if event.TicketID == "" {
		return apperrors.ErrTicketIDRequired
	}
	if err := domain.ValidateMessageContent(event.Content); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrBadRequest, err)
	}

	// 2. Only members may post.
	conv, err := g.rooms.VerifyMembership(ctx, session.Identity, event.TicketID)
	if err != nil {
		return err
	}

	// 3. Persist.
	msg, err := g.conversations.RecordMessage(ctx, conv.ID, session.Identity.UserID, event.Content)
	if err != nil {
		return err
	}

	// 4. Notify everyone else.
	payload := domain.NewMessagePayload(msg)
	g.announcer.Fanout(ctx, session.Identity.UserID, event.TicketID,
		fmt.Sprintf("New message from %s on ticket %s", session.Identity.Email, event.TicketID), &payload)
	return nil
}

// Disconnect tears the session down. It always drops room subscriptions and
// unregisters the connection; repeated calls are no-ops.
func (g *GatewayOrchestrator) Disconnect(ctx context.Context, session *domain.Session) {
	if session == nil || !session.MarkDisconnected() {
		return
	}

	rooms := g.rooms.DropConnection(session.ConnectionID)
	change := g.registry.Unregister(session.Identity.UserID, session.ConnectionID)
	g.metrics.RecordConnection(OutcomeClosed)
	g.metrics.SetLiveConnections(g.registry.ConnectionCount(), g.registry.UserCount())
	if change.Changed {
		g.persistPresence(ctx, session.Identity.UserID)
	}

	g.logger.InfoContext(ctx, "client disconnected",
		"connection_id", session.ConnectionID,
		"user_id", session.Identity.UserID,
		"rooms", rooms,
	)
}
