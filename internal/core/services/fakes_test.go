package services_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
)

// memoryStore is an in-memory conversation, user and notification store.
type memoryStore struct {
	mu            sync.Mutex
	users         map[string]*domain.User
	presence      []presenceWrite
	conversations map[string]*domain.Conversation
	messages      []*domain.Message
	notifications []*domain.Notification
	failFor       map[string]bool
	createCalls   int
}

type presenceWrite struct {
	UserID   string
	Presence domain.Presence
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:         make(map[string]*domain.User),
		conversations: make(map[string]*domain.Conversation),
		failFor:       make(map[string]bool),
	}
}

func (s *memoryStore) FindByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memoryStore) Create(_ context.Context, identity domain.Identity) (*domain.User, error) {
	u, err := domain.NewUser(identity)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[identity.UserID] = u
	return u, nil
}

func (s *memoryStore) SetPresence(_ context.Context, userID string, presence domain.Presence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.Status = presence
	}
	s.presence = append(s.presence, presenceWrite{UserID: userID, Presence: presence})
	return nil
}

func (s *memoryStore) status(userID string) domain.Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return u.Status
	}
	return ""
}

func (s *memoryStore) CreateOrGetConversation(_ context.Context, client domain.Identity) (*domain.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	for _, c := range s.conversations {
		if c.IsOpen() && c.HasParticipant(client.UserID) {
			return cloneConversation(c), false, nil
		}
	}
	c := &domain.Conversation{
		ID:           uuid.New(),
		TicketID:     uuid.NewString(),
		Participants: []string{client.UserID},
		StartedAt:    time.Now().UTC(),
	}
	s.conversations[c.TicketID] = c
	return cloneConversation(c), true, nil
}

func (s *memoryStore) addConversation(ticketID string, participants ...string) *domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &domain.Conversation{
		ID:           uuid.New(),
		TicketID:     ticketID,
		Participants: participants,
		StartedAt:    time.Now().UTC(),
	}
	s.conversations[ticketID] = c
	return cloneConversation(c)
}

func (s *memoryStore) FindByTicketID(_ context.Context, ticketID string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[ticketID]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	return cloneConversation(c), nil
}

func (s *memoryStore) ListByParticipant(_ context.Context, userID string) ([]*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Conversation
	for _, c := range s.conversations {
		if c.HasParticipant(userID) {
			out = append(out, cloneConversation(c))
		}
	}
	return out, nil
}

func (s *memoryStore) AddParticipant(_ context.Context, conversationID uuid.UUID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.ID == conversationID {
			if !c.HasParticipant(userID) {
				c.Participants = append(c.Participants, userID)
			}
			return nil
		}
	}
	return apperrors.ErrConversationNotFound
}

func (s *memoryStore) RecordMessage(_ context.Context, conversationID uuid.UUID, senderID, content string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	s.messages = append(s.messages, m)
	return m, nil
}

func (s *memoryStore) ListMessages(_ context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// notificationStore adapts memoryStore to ports.NotificationStore, whose
// method names collide with the user store.
type notificationStore struct{ s *memoryStore }

func (n notificationStore) Create(_ context.Context, recipientID string, conv *domain.Conversation, content string) (*domain.Notification, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	if n.s.failFor[recipientID] {
		return nil, apperrors.Persistence("create notification", errors.New("connection reset"))
	}
	rec := &domain.Notification{
		ID:             uuid.New(),
		RecipientID:    recipientID,
		ConversationID: conv.ID,
		TicketID:       conv.TicketID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	n.s.notifications = append(n.s.notifications, rec)
	return rec, nil
}

func (n notificationStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Notification, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	for _, rec := range n.s.notifications {
		if rec.ID == id {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotificationNotFound
}

func (n notificationStore) ListForUser(_ context.Context, userID string, includeDismissed bool) ([]*domain.Notification, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	var out []*domain.Notification
	for _, rec := range n.s.notifications {
		if rec.RecipientID == userID && (includeDismissed || !rec.Dismissed) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (n notificationStore) Acknowledge(_ context.Context, id uuid.UUID) (*domain.Notification, error) {
	return n.update(id, func(rec *domain.Notification) { rec.Acknowledged = true })
}

func (n notificationStore) Dismiss(_ context.Context, id uuid.UUID) (*domain.Notification, error) {
	return n.update(id, func(rec *domain.Notification) { rec.Dismissed = true })
}

func (n notificationStore) update(id uuid.UUID, fn func(*domain.Notification)) (*domain.Notification, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	for _, rec := range n.s.notifications {
		if rec.ID == id {
			fn(rec)
			cp := *rec
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotificationNotFound
}

// notificationsFor returns the recipients' persisted notifications.
func (s *memoryStore) notificationsFor(userID string) []*domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Notification
	for _, rec := range s.notifications {
		if rec.RecipientID == userID {
			out = append(out, rec)
		}
	}
	return out
}

func (s *memoryStore) notificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

func cloneConversation(c *domain.Conversation) *domain.Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	sort.Strings(cp.Participants)
	return &cp
}

// fakeAssignment hands every new ticket to the same staff member.
type fakeAssignment struct {
	mu       sync.Mutex
	staff    domain.Identity
	assigned map[string]string
	calls    int
	err      error
}

func newFakeAssignment(staff domain.Identity) *fakeAssignment {
	return &fakeAssignment{staff: staff, assigned: make(map[string]string)}
}

func (a *fakeAssignment) AssignTicket(_ context.Context, ticketID string) (domain.Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return domain.Identity{}, a.err
	}
	a.assigned[ticketID] = a.staff.UserID
	return a.staff, nil
}

func (a *fakeAssignment) AssignedStaffOf(_ context.Context, ticketID string) (domain.Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.assigned[ticketID] != a.staff.UserID {
		return domain.Identity{}, apperrors.ErrStaffNotAssigned
	}
	return a.staff, nil
}

func (a *fakeAssignment) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// staticVerifier maps tokens to identities.
type staticVerifier map[string]domain.Identity

func (v staticVerifier) Verify(credential string) (domain.Identity, error) {
	identity, ok := v[credential]
	if !ok {
		return domain.Identity{}, apperrors.ErrInvalidCredential
	}
	return identity, nil
}
