package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockUserStore is a mock implementation of ports.UserStore
type MockUserStore struct {
	mock.Mock
}

func NewMockUserStore() *MockUserStore {
	return &MockUserStore{}
}

func (m *MockUserStore) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) Create(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) SetPresence(ctx context.Context, userID string, presence domain.Presence) error {
	args := m.Called(ctx, userID, presence)
	return args.Error(0)
}

// MockConversationStore is a mock implementation of ports.ConversationStore
type MockConversationStore struct {
	mock.Mock
}

func NewMockConversationStore() *MockConversationStore {
	return &MockConversationStore{}
}

func (m *MockConversationStore) CreateOrGetConversation(ctx context.Context, client domain.Identity) (*domain.Conversation, bool, error) {
	args := m.Called(ctx, client)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Conversation), args.Bool(1), args.Error(2)
}

func (m *MockConversationStore) FindByTicketID(ctx context.Context, ticketID string) (*domain.Conversation, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) ListByParticipant(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) AddParticipant(ctx context.Context, conversationID uuid.UUID, userID string) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *MockConversationStore) RecordMessage(ctx context.Context, conversationID uuid.UUID, senderID, content string) (*domain.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockConversationStore) ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

// MockNotificationStore is a mock implementation of ports.NotificationStore
type MockNotificationStore struct {
	mock.Mock
}

func NewMockNotificationStore() *MockNotificationStore {
	return &MockNotificationStore{}
}

func (m *MockNotificationStore) Create(ctx context.Context, recipientID string, conversation *domain.Conversation, content string) (*domain.Notification, error) {
	args := m.Called(ctx, recipientID, conversation, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationStore) ListForUser(ctx context.Context, userID string, includeDismissed bool) ([]*domain.Notification, error) {
	args := m.Called(ctx, userID, includeDismissed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *MockNotificationStore) Acknowledge(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationStore) Dismiss(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

// MockAssignmentService is a mock implementation of ports.AssignmentService
type MockAssignmentService struct {
	mock.Mock
}

func NewMockAssignmentService() *MockAssignmentService {
	return &MockAssignmentService{}
}

func (m *MockAssignmentService) AssignTicket(ctx context.Context, ticketID string) (domain.Identity, error) {
	args := m.Called(ctx, ticketID)
	return args.Get(0).(domain.Identity), args.Error(1)
}

func (m *MockAssignmentService) AssignedStaffOf(ctx context.Context, ticketID string) (domain.Identity, error) {
	args := m.Called(ctx, ticketID)
	return args.Get(0).(domain.Identity), args.Error(1)
}

// MockTokenVerifier is a mock implementation of ports.TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func NewMockTokenVerifier() *MockTokenVerifier {
	return &MockTokenVerifier{}
}

func (m *MockTokenVerifier) Verify(credential string) (domain.Identity, error) {
	args := m.Called(credential)
	return args.Get(0).(domain.Identity), args.Error(1)
}

// MockAnnouncer is a mock implementation of ports.Announcer
type MockAnnouncer struct {
	mock.Mock
}

func NewMockAnnouncer() *MockAnnouncer {
	return &MockAnnouncer{}
}

func (m *MockAnnouncer) Fanout(ctx context.Context, actorUserID, ticketID, rendered string, payload *domain.MessagePayload) ports.FanoutReport {
	args := m.Called(ctx, actorUserID, ticketID, rendered, payload)
	if r, ok := args.Get(0).(ports.FanoutReport); ok {
		return r
	}
	return ports.FanoutReport{}
}

// MockTransactionManager runs the callback inline.
type MockTransactionManager struct {
	mock.Mock
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// MockGateway is a mock implementation of ports.Gateway
type MockGateway struct {
	mock.Mock
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) Connect(ctx context.Context, connectionID, credential string) (*domain.Session, error) {
	args := m.Called(ctx, connectionID, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockGateway) Dispatch(ctx context.Context, session *domain.Session, event domain.InboundEvent) error {
	args := m.Called(ctx, session, event)
	return args.Error(0)
}

func (m *MockGateway) Disconnect(ctx context.Context, session *domain.Session) {
	m.Called(ctx, session)
}

// MockNotificationService is a mock implementation of ports.NotificationService
type MockNotificationService struct {
	mock.Mock
}

func NewMockNotificationService() *MockNotificationService {
	return &MockNotificationService{}
}

func (m *MockNotificationService) ListForUser(ctx context.Context, userID string, includeDismissed bool) ([]*domain.Notification, error) {
	args := m.Called(ctx, userID, includeDismissed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *MockNotificationService) Acknowledge(ctx context.Context, userID string, id uuid.UUID) (*domain.Notification, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationService) Dismiss(ctx context.Context, userID string, id uuid.UUID) (*domain.Notification, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

// MockConversationService is a mock implementation of ports.ConversationService
type MockConversationService struct {
	mock.Mock
}

func NewMockConversationService() *MockConversationService {
	return &MockConversationService{}
}

func (m *MockConversationService) ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}

func (m *MockConversationService) ListMessages(ctx context.Context, params ports.ListMessagesParams) ([]*domain.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

// MockAssignmentNotifier is a mock implementation of ports.AssignmentNotifier
type MockAssignmentNotifier struct {
	mock.Mock
}

func NewMockAssignmentNotifier() *MockAssignmentNotifier {
	return &MockAssignmentNotifier{}
}

func (m *MockAssignmentNotifier) NotifyAssignment(ctx context.Context, ticketID, content string) error {
	args := m.Called(ctx, ticketID, content)
	return args.Error(0)
}

// RecordingEmitter is an in-memory ports.EventEmitter that keeps every
// emitted event per connection. Connections listed in Fail reject emission.
type RecordingEmitter struct {
	mu     sync.Mutex
	events map[string][]domain.Event
	Fail   map[string]bool
}

func NewRecordingEmitter() *RecordingEmitter {
	return &RecordingEmitter{
		events: make(map[string][]domain.Event),
		Fail:   make(map[string]bool),
	}
}

func (e *RecordingEmitter) Emit(connectionID string, event domain.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Fail[connectionID] {
		return apperrors.ErrConnectionSaturated
	}
	e.events[connectionID] = append(e.events[connectionID], event)
	return nil
}

// Events returns a copy of what the connection received.
func (e *RecordingEmitter) Events(connectionID string) []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Event, len(e.events[connectionID]))
	copy(out, e.events[connectionID])
	return out
}

// EventsOfType returns the connection's events of one type.
func (e *RecordingEmitter) EventsOfType(connectionID string, t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, ev := range e.Events(connectionID) {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Total returns the number of events recorded across all connections.
func (e *RecordingEmitter) Total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, evs := range e.events {
		n += len(evs)
	}
	return n
}
