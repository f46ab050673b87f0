package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/mocks"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
	"github.com/lorrc/support-chat-gateway/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubMembership struct {
	conv *domain.Conversation
	err  error
}

func (s stubMembership) VerifyMembership(context.Context, domain.Identity, string) (*domain.Conversation, error) {
	return s.conv, s.err
}

func TestConversationService_ListMessages(t *testing.T) {
	ctx := context.Background()
	viewer := domain.Identity{UserID: "c1", Role: domain.RoleClient}
	conv := &domain.Conversation{ID: uuid.New(), TicketID: "T1", Participants: []string{"c1"}}

	t.Run("member gets a clamped page", func(t *testing.T) {
		store := mocks.NewMockConversationStore()
		svc := services.NewConversationService(store, stubMembership{conv: conv})
		want := []*domain.Message{{ID: uuid.New(), Content: "hi"}}
		store.On("ListMessages", ctx, conv.ID, ports.MaxMessagePageSize, 0).Return(want, nil)

		got, err := svc.ListMessages(ctx, ports.ListMessagesParams{Viewer: viewer, TicketID: "T1", Limit: 10_000, Offset: -3})

		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("default page size", func(t *testing.T) {
		store := mocks.NewMockConversationStore()
		svc := services.NewConversationService(store, stubMembership{conv: conv})
		store.On("ListMessages", ctx, conv.ID, ports.DefaultMessagePageSize, 5).Return([]*domain.Message{}, nil)

		_, err := svc.ListMessages(ctx, ports.ListMessagesParams{Viewer: viewer, TicketID: "T1", Offset: 5})

		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("non-member is refused before reading history", func(t *testing.T) {
		store := mocks.NewMockConversationStore()
		svc := services.NewConversationService(store, stubMembership{err: apperrors.ErrNotParticipant})

		_, err := svc.ListMessages(ctx, ports.ListMessagesParams{Viewer: viewer, TicketID: "T1"})

		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		store.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestConversationService_ListForUser(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockConversationStore()
	svc := services.NewConversationService(store, stubMembership{})
	convs := []*domain.Conversation{{ID: uuid.New(), TicketID: "T1"}}
	store.On("ListByParticipant", ctx, "u1").Return(convs, nil)

	got, err := svc.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, convs, got)

	_, err = svc.ListForUser(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrUserIDRequired)
}
