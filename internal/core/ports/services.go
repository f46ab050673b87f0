package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/lorrc/support-chat-gateway/internal/core/domain"
)

// TokenVerifier validates a bearer credential and extracts the identity it carries.
// Every failure wraps errors.ErrAuthentication.
type TokenVerifier interface {
	Verify(credential string) (domain.Identity, error)
}

// AssignmentService is the external ticket-assignment collaborator.
type AssignmentService interface {
	// AssignTicket binds a staff member to the ticket and returns them.
	AssignTicket(ctx context.Context, ticketID string) (domain.Identity, error)
	// AssignedStaffOf returns errors.ErrStaffNotAssigned when nobody is assigned.
	AssignedStaffOf(ctx context.Context, ticketID string) (domain.Identity, error)
}

// EventEmitter pushes an event onto a single live transport connection.
// Emit must not block on a slow peer.
type EventEmitter interface {
	Emit(connectionID string, event domain.Event) error
}

// Gateway is the entry point the transport drives for each connection.
type Gateway interface {
	Connect(ctx context.Context, connectionID, credential string) (*domain.Session, error)
	Dispatch(ctx context.Context, session *domain.Session, event domain.InboundEvent) error
	Disconnect(ctx context.Context, session *domain.Session)
}

// Announcer fans a rendered notice out to a ticket's participants other than the actor.
type Announcer interface {
	Fanout(ctx context.Context, actorUserID, ticketID, rendered string, payload *domain.MessagePayload) FanoutReport
}

// FanoutReport summarizes one fan-out run. Counts are per recipient except
// Emitted and EmitFailed, which count individual events.
type FanoutReport struct {
	Recipients    int
	Persisted     int
	PersistFailed int
	Offline       int
	Emitted       int
	EmitFailed    int
}

// MetricsRecorder receives gateway and fan-out outcomes.
type MetricsRecorder interface {
	RecordNotification(outcome string)
	RecordEmission(event domain.EventType, outcome string)
	RecordInbound(event domain.InboundEventType, outcome string)
	RecordConnection(outcome string)
	SetLiveConnections(connections, users int)
	ObserveFanout(seconds float64)
}

// AssignmentNotifier tells the assigned staff member about a ticket.
type AssignmentNotifier interface {
	NotifyAssignment(ctx context.Context, ticketID, content string) error
}

// NotificationService backs the notification pull API.
type NotificationService interface {
	ListForUser(ctx context.Context, userID string, includeDismissed bool) ([]*domain.Notification, error)
	Acknowledge(ctx context.Context, userID string, id uuid.UUID) (*domain.Notification, error)
	Dismiss(ctx context.Context, userID string, id uuid.UUID) (*domain.Notification, error)
}

// ConversationService backs the conversation read API.
type ConversationService interface {
	ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error)
	ListMessages(ctx context.Context, params ListMessagesParams) ([]*domain.Message, error)
}

// ListMessagesParams defines the input for reading a conversation's history.
type ListMessagesParams struct {
	Viewer   domain.Identity
	TicketID string
	Limit    int
	Offset   int
}

const (
	DefaultMessagePageSize = 50
	MaxMessagePageSize     = 200
)

// Page returns the limit and offset clamped to the allowed page window.
func (p ListMessagesParams) Page() (limit, offset int) {
	limit, offset = p.Limit, p.Offset
	if limit <= 0 {
		limit = DefaultMessagePageSize
	}
	if limit > MaxMessagePageSize {
		limit = MaxMessagePageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
