package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

// NotificationService implements the pull side of notifications.
type NotificationService struct {
	notifications ports.NotificationStore
	txManager     ports.TransactionManager
}

var _ ports.NotificationService = (*NotificationService)(nil)

// NewNotificationService creates a new notification service.
func NewNotificationService(notifications ports.NotificationStore, txManager ports.TransactionManager) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		txManager:     txManager,
	}
}

// ListForUser returns the caller's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, includeDismissed bool) ([]*domain.Notification, error) {
	if userID == "" {
		return nil, apperrors.ErrUserIDRequired
	}
	return s.notifications.ListForUser(ctx, userID, includeDismissed)
}

// Acknowledge marks a notification as read. Only its recipient may do so.
func (s *NotificationService) Acknowledge(ctx context.Context, userID string, id uuid.UUID) (*domain.Notification, error) {
	return s.mutateOwned(ctx, userID, id, s.notifications.Acknowledge)
}

// Dismiss hides a notification. Only its recipient may do so.
func (s *NotificationService) Dismiss(ctx context.Context, userID string, id uuid.UUID) (*domain.Notification, error) {
	return s.mutateOwned(ctx, userID, id, s.notifications.Dismiss)
}

func (s *NotificationService) mutateOwned(
	ctx context.Context,
	userID string,
	id uuid.UUID,
	mutate func(ctx context.Context, id uuid.UUID) (*domain.Notification, error),
) (*domain.Notification, error) {
	var updated *domain.Notification
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := s.notifications.FindByID(ctx, id)
		if err != nil {
			return err
		}
		// Report foreign notifications as absent so IDs cannot be enumerated.
		if !n.IsOwnedBy(userID) {
			return apperrors.ErrNotificationNotFound
		}
		updated, err = mutate(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
