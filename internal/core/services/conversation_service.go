package services

import (
	"context"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

// MembershipVerifier checks whether an identity belongs to a ticket's conversation.
type MembershipVerifier interface {
	VerifyMembership(ctx context.Context, identity domain.Identity, ticketID string) (*domain.Conversation, error)
}

// ConversationService implements read access to conversations and history.
type ConversationService struct {
	conversations ports.ConversationStore
	membership    MembershipVerifier
}

var _ ports.ConversationService = (*ConversationService)(nil)

// NewConversationService creates a new conversation service.
func NewConversationService(conversations ports.ConversationStore, membership MembershipVerifier) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		membership:    membership,
	}
}

// ListForUser returns every conversation the user participates in.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	if userID == "" {
		return nil, apperrors.ErrUserIDRequired
	}
	return s.conversations.ListByParticipant(ctx, userID)
}

// ListMessages returns a page of a conversation's history to one of its members.
func (s *ConversationService) ListMessages(ctx context.Context, params ports.ListMessagesParams) ([]*domain.Message, error) {
	conv, err := s.membership.VerifyMembership(ctx, params.Viewer, params.TicketID)
	if err != nil {
		return nil, err
	}

	limit, offset := params.Page()
	return s.conversations.ListMessages(ctx, conv.ID, limit, offset)
}
