package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

// NotificationRepository handles persistence for per-recipient notifications.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

var _ ports.NotificationStore = (*NotificationRepository)(nil)

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

const notificationColumns = `id, recipient_id, conversation_id, ticket_id, content, acknowledged, dismissed, created_at`

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(&n.ID, &n.RecipientID, &n.ConversationID, &n.TicketID,
		&n.Content, &n.Acknowledged, &n.Dismissed, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}

func (r *NotificationRepository) Create(ctx context.Context, recipientID string, conversation *domain.Conversation, content string) (*domain.Notification, error) {
	const query = `
INSERT INTO notifications (id, recipient_id, conversation_id, ticket_id, content, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + notificationColumns

	n, err := scanNotification(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		uuid.New(), recipientID, conversation.ID, conversation.TicketID, content, time.Now().UTC()))
	if err != nil {
		return nil, apperrors.Persistence("create notification", err)
	}
	return n, nil
}

func (r *NotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	const query = `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	return r.one(ctx, "find notification", query, id)
}

// ListForUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, includeDismissed bool) ([]*domain.Notification, error) {
	const query = `
SELECT ` + notificationColumns + `
FROM notifications
WHERE recipient_id = $1 AND ($2 OR NOT dismissed)
ORDER BY created_at DESC, id`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, userID, includeDismissed)
	if err != nil {
		return nil, apperrors.Persistence("list notifications", err)
	}
	defer rows.Close()

	list := make([]*domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, apperrors.Persistence("scan notification", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence("list notifications", err)
	}
	return list, nil
}

func (r *NotificationRepository) Acknowledge(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	const query = `UPDATE notifications SET acknowledged = TRUE WHERE id = $1 RETURNING ` + notificationColumns

	return r.one(ctx, "acknowledge notification", query, id)
}

func (r *NotificationRepository) Dismiss(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	const query = `UPDATE notifications SET dismissed = TRUE WHERE id = $1 RETURNING ` + notificationColumns

	return r.one(ctx, "dismiss notification", query, id)
}

func (r *NotificationRepository) one(ctx context.Context, op, query string, id uuid.UUID) (*domain.Notification, error) {
	n, err := scanNotification(GetDBTX(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotificationNotFound
		}
		return nil, apperrors.Persistence(op, err)
	}
	return n, nil
}
