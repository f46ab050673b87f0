package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
	"golang.org/x/sync/singleflight"
)

// RoomManager binds tickets to conversation rooms and decides who may enter them.
// Membership is always read from the conversation store; only the
// connection-to-room subscriptions are held in memory.
type RoomManager struct {
	conversations ports.ConversationStore
	users         ports.UserStore
	assignment    ports.AssignmentService
	announcer     ports.Announcer
	emitter       ports.EventEmitter
	subs          *roomSubscriptions
	ensure        singleflight.Group
	logger        *slog.Logger
}

// RoomManagerDeps groups the collaborators of a RoomManager.
type RoomManagerDeps struct {
	Conversations ports.ConversationStore
	Users         ports.UserStore
	Assignment    ports.AssignmentService
	Announcer     ports.Announcer
	Emitter       ports.EventEmitter
	ShardCount    int
	Logger        *slog.Logger
}

// NewRoomManager creates a RoomManager.
func NewRoomManager(deps RoomManagerDeps) *RoomManager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomManager{
		conversations: deps.Conversations,
		users:         deps.Users,
		assignment:    deps.Assignment,
		announcer:     deps.Announcer,
		emitter:       deps.Emitter,
		subs:          newRoomSubscriptions(deps.ShardCount),
		logger:        logger.With("component", "room_manager"),
	}
}

// EnsureConversationFor returns the client's open conversation, creating and
// assigning one if needed. Concurrent calls for the same client share one
// store round trip.
func (m *RoomManager) EnsureConversationFor(ctx context.Context, identity domain.Identity) (*domain.Conversation, error) {
	if !identity.IsClient() {
		return nil, apperrors.ErrClientOnly
	}

	v, err, _ := m.ensure.Do(identity.UserID, func() (interface{}, error) {
		return m.ensureConversation(ctx, identity)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Conversation), nil
}

func (m *RoomManager) ensureConversation(ctx context.Context, identity domain.Identity) (*domain.Conversation, error) {
	// 1. Reuse an open conversation if the client already has one.
	existing, err := m.conversations.ListByParticipant(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	var conv *domain.Conversation
	for _, c := range existing {
		if c.IsOpen() {
			conv = c
			break
		}
	}

	// 2. Otherwise let the store create one.
	created := false
	if conv == nil {
		conv, created, err = m.conversations.CreateOrGetConversation(ctx, identity)
		if err != nil {
			return nil, err
		}
	}

	// 3. Fresh rooms, and rooms whose earlier assignment failed, get a staff member.
	if !created && len(conv.RecipientsExcluding(identity.UserID)) > 0 {
		return conv, nil
	}
	if err := m.assignStaff(ctx, conv); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "conversation ready",
		"ticket_id", conv.TicketID,
		"user_id", identity.UserID,
		"created", created,
	)
	return conv, nil
}

func (m *RoomManager) assignStaff(ctx context.Context, conv *domain.Conversation) error {
	staff, err := m.assignment.AssignTicket(ctx, conv.TicketID)
	if err != nil {
		return fmt.Errorf("%w: ticket %s: %w", apperrors.ErrAssignmentFailed, conv.TicketID, err)
	}

	if _, err := m.users.FindByID(ctx, staff.UserID); err != nil {
		if !errors.Is(err, apperrors.ErrUserNotFound) {
			return err
		}
		if _, err := m.users.Create(ctx, staff); err != nil {
			return err
		}
	}

	if err := m.conversations.AddParticipant(ctx, conv.ID, staff.UserID); err != nil {
		return err
	}
	if !conv.HasParticipant(staff.UserID) {
		conv.Participants = append(conv.Participants, staff.UserID)
	}
	return nil
}

// VerifyMembership returns the ticket's conversation if the identity is a
// recorded participant or the staff member currently assigned to it.
func (m *RoomManager) VerifyMembership(ctx context.Context, identity domain.Identity, ticketID string) (*domain.Conversation, error) {
	if ticketID == "" {
		return nil, apperrors.ErrTicketIDRequired
	}

	conv, err := m.conversations.FindByTicketID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if conv.HasParticipant(identity.UserID) {
		return conv, nil
	}

	if identity.IsStaff() {
		staff, err := m.assignment.AssignedStaffOf(ctx, ticketID)
		switch {
		case err == nil && staff.UserID == identity.UserID:
			return conv, nil
		case err != nil && !errors.Is(err, apperrors.ErrStaffNotAssigned):
			return nil, err
		}
	}
	return nil, apperrors.ErrNotParticipant
}

// JoinRoom subscribes the session's connection to the ticket's room and
// announces the arrival to the other participants.
func (m *RoomManager) JoinRoom(ctx context.Context, session *domain.Session, ticketID string) error {
	if _, err := m.VerifyMembership(ctx, session.Identity, ticketID); err != nil {
		return err
	}

	added := m.subs.subscribe(ticketID, session.ConnectionID)
	// A disconnect that raced the store lookup has already dropped this
	// connection's rooms; undo the subscription it could not see.
	if !session.IsActive() {
		m.subs.unsubscribe(ticketID, session.ConnectionID)
		return apperrors.ErrConnectionNotFound
	}
	session.MarkJoined()

	if !added {
		return nil
	}

	m.logger.InfoContext(ctx, "joined room",
		"ticket_id", ticketID,
		"user_id", session.Identity.UserID,
		"connection_id", session.ConnectionID,
	)
	m.announcer.Fanout(ctx, session.Identity.UserID, ticketID,
		fmt.Sprintf("%s joined the conversation on ticket %s", session.Identity.Email, ticketID), nil)
	return nil
}

// LeaveRoom unsubscribes the session's connection and tells the room's
// remaining subscribers. The notice is not persisted.
func (m *RoomManager) LeaveRoom(ctx context.Context, session *domain.Session, ticketID string) error {
	if _, err := m.VerifyMembership(ctx, session.Identity, ticketID); err != nil {
		return err
	}

	if !m.subs.unsubscribe(ticketID, session.ConnectionID) {
		return nil
	}

	m.logger.InfoContext(ctx, "left room",
		"ticket_id", ticketID,
		"user_id", session.Identity.UserID,
		"connection_id", session.ConnectionID,
	)
	m.broadcast(ticketID, domain.Event{
		Type:     domain.EventNotification,
		TicketID: ticketID,
		Payload: domain.RoomNotice{
			TicketID: ticketID,
			Content:  fmt.Sprintf("%s left the conversation on ticket %s", session.Identity.Email, ticketID),
		},
	})
	return nil
}

func (m *RoomManager) broadcast(ticketID string, event domain.Event) {
	for _, connID := range m.subs.subscribersOf(ticketID) {
		if err := m.emitter.Emit(connID, event); err != nil {
			m.logger.Debug("room broadcast skipped connection",
				"ticket_id", ticketID,
				"connection_id", connID,
				"error", err,
			)
		}
	}
}

// DropConnection removes the connection from every room it joined.
func (m *RoomManager) DropConnection(connectionID string) []string {
	return m.subs.drop(connectionID)
}

// RoomsOf returns the tickets the connection is subscribed to.
func (m *RoomManager) RoomsOf(connectionID string) []string {
	return m.subs.roomsOf(connectionID)
}

// SubscribersOf returns the connections subscribed to the ticket's room.
func (m *RoomManager) SubscribersOf(ticketID string) []string {
	return m.subs.subscribersOf(ticketID)
}

// IsSubscribed reports whether the connection is in the ticket's room.
func (m *RoomManager) IsSubscribed(ticketID, connectionID string) bool {
	return m.subs.isSubscribed(ticketID, connectionID)
}
