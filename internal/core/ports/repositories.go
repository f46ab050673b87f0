package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/lorrc/support-chat-gateway/internal/core/domain"
)

// UserStore persists the user projection of authenticated identities.
type UserStore interface {
	// FindByID returns errors.ErrUserNotFound when the user is absent.
	FindByID(ctx context.Context, userID string) (*domain.User, error)
	Create(ctx context.Context, identity domain.Identity) (*domain.User, error)
	SetPresence(ctx context.Context, userID string, presence domain.Presence) error
}

// ConversationStore is the authoritative source of rooms, participants and messages.
type ConversationStore interface {
	// CreateOrGetConversation returns the client's open conversation, creating
	// one with a fresh ticket ID when none exists. created reports which happened.
	CreateOrGetConversation(ctx context.Context, client domain.Identity) (conv *domain.Conversation, created bool, err error)
	// FindByTicketID returns the room with its current participant set, or
	// errors.ErrConversationNotFound when absent.
	FindByTicketID(ctx context.Context, ticketID string) (*domain.Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]*domain.Conversation, error)
	AddParticipant(ctx context.Context, conversationID uuid.UUID, userID string) error
	RecordMessage(ctx context.Context, conversationID uuid.UUID, senderID, content string) (*domain.Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error)
}

// NotificationStore persists per-recipient notifications.
type NotificationStore interface {
	Create(ctx context.Context, recipientID string, conversation *domain.Conversation, content string) (*domain.Notification, error)
	// FindByID returns errors.ErrNotificationNotFound when absent.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	ListForUser(ctx context.Context, userID string, includeDismissed bool) ([]*domain.Notification, error)
	Acknowledge(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	Dismiss(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
}

// TransactionManager defines the port for running atomic operations.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
