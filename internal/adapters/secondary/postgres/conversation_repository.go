package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
	"github.com/lorrc/support-chat-gateway/internal/core/utils"
)

// ConversationRepository is the secondary adapter for rooms, participants
// and messages.
type ConversationRepository struct {
	pool *pgxpool.Pool
	tx   *TransactionManager
}

var _ ports.ConversationStore = (*ConversationRepository)(nil)

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool, tx: NewTransactionManager(pool)}
}

// participants are aggregated so a conversation is always read with its
// current member set.
const conversationSelect = `
SELECT c.id, c.ticket_id, c.started_at, c.ended_at,
       COALESCE(ARRAY_AGG(p.user_id ORDER BY p.joined_at) FILTER (WHERE p.user_id IS NOT NULL), '{}')
FROM conversations c
LEFT JOIN conversation_participants p ON p.conversation_id = c.id
`

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var (
		c       domain.Conversation
		endedAt pgtype.Timestamptz
	)
	if err := row.Scan(&c.ID, &c.TicketID, &c.StartedAt, &endedAt, &c.Participants); err != nil {
		return nil, err
	}
	c.StartedAt = c.StartedAt.UTC()
	c.EndedAt = utils.FromTimestamptz(endedAt)
	return &c, nil
}

// CreateOrGetConversation returns the client's open conversation or opens a
// new one with a generated ticket ID and the client as its first participant.
func (r *ConversationRepository) CreateOrGetConversation(ctx context.Context, client domain.Identity) (*domain.Conversation, bool, error) {
	var (
		conv    *domain.Conversation
		created bool
	)
	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		db := GetDBTX(ctx, r.pool)

		id := uuid.New()
		tag, err := db.Exec(ctx, `
INSERT INTO conversations (id, ticket_id, client_id)
VALUES ($1, $2, $3)
ON CONFLICT (client_id) WHERE ended_at IS NULL DO NOTHING`,
			id, uuid.NewString(), client.UserID)
		if err != nil {
			return err
		}
		created = tag.RowsAffected() == 1

		if created {
			if _, err := db.Exec(ctx, `
INSERT INTO conversation_participants (conversation_id, user_id)
VALUES ($1, $2)`, id, client.UserID); err != nil {
				return err
			}
		}

		conv, err = scanConversation(db.QueryRow(ctx, conversationSelect+`
WHERE c.client_id = $1 AND c.ended_at IS NULL
GROUP BY c.id`, client.UserID))
		return err
	})
	if err != nil {
		return nil, false, apperrors.Persistence("create or get conversation", err)
	}
	return conv, created, nil
}

func (r *ConversationRepository) FindByTicketID(ctx context.Context, ticketID string) (*domain.Conversation, error) {
	conv, err := scanConversation(GetDBTX(ctx, r.pool).QueryRow(ctx, conversationSelect+`
WHERE c.ticket_id = $1
GROUP BY c.id`, ticketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		return nil, apperrors.Persistence("find conversation", err)
	}
	return conv, nil
}

// ListByParticipant returns the user's conversations, newest first.
func (r *ConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	rows, err := GetDBTX(ctx, r.pool).Query(ctx, conversationSelect+`
WHERE c.id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = $1)
GROUP BY c.id
ORDER BY c.started_at DESC, c.id`, userID)
	if err != nil {
		return nil, apperrors.Persistence("list conversations", err)
	}
	defer rows.Close()

	convs := make([]*domain.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, apperrors.Persistence("scan conversation", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence("list conversations", err)
	}
	return convs, nil
}

// AddParticipant records the user as a member. Adding an existing member is
// a no-op.
func (r *ConversationRepository) AddParticipant(ctx context.Context, conversationID uuid.UUID, userID string) error {
	const query = `
INSERT INTO conversation_participants (conversation_id, user_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`

	if _, err := GetDBTX(ctx, r.pool).Exec(ctx, query, conversationID, userID); err != nil {
		return apperrors.Persistence("add participant", err)
	}
	return nil
}

func (r *ConversationRepository) RecordMessage(ctx context.Context, conversationID uuid.UUID, senderID, content string) (*domain.Message, error) {
	const query = `
INSERT INTO messages (id, conversation_id, sender_id, content, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, conversation_id, sender_id, content, created_at`

	m, err := scanMessage(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		uuid.New(), conversationID, senderID, content, time.Now().UTC()))
	if err != nil {
		return nil, apperrors.Persistence("record message", err)
	}
	return m, nil
}

// ListMessages returns a page of history in chronological order.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	const query = `
SELECT id, conversation_id, sender_id, content, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at, id
LIMIT $2 OFFSET $3`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, apperrors.Persistence("list messages", err)
	}
	defer rows.Close()

	msgs := make([]*domain.Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, apperrors.Persistence("scan message", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence("list messages", err)
	}
	return msgs, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}
