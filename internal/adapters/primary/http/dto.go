package http

import (
	"time"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
)

// NotificationDTO is the JSON shape of a persisted notification.
type NotificationDTO struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	TicketID       string    `json:"ticketId"`
	Content        string    `json:"content"`
	Acknowledged   bool      `json:"acknowledged"`
	Dismissed      bool      `json:"dismissed"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toNotificationDTO(n *domain.Notification) NotificationDTO {
	return NotificationDTO{
		ID:             n.ID.String(),
		ConversationID: n.ConversationID.String(),
		TicketID:       n.TicketID,
		Content:        n.Content,
		Acknowledged:   n.Acknowledged,
		Dismissed:      n.Dismissed,
		CreatedAt:      n.CreatedAt,
	}
}

// ConversationDTO is the JSON shape of a conversation room.
type ConversationDTO struct {
	ID           string     `json:"id"`
	TicketID     string     `json:"ticketId"`
	Participants []string   `json:"participants"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	Open         bool       `json:"open"`
}

func toConversationDTO(c *domain.Conversation) ConversationDTO {
	participants := c.Participants
	if participants == nil {
		participants = []string{}
	}
	return ConversationDTO{
		ID:           c.ID.String(),
		TicketID:     c.TicketID,
		Participants: participants,
		StartedAt:    c.StartedAt,
		EndedAt:      c.EndedAt,
		Open:         c.IsOpen(),
	}
}

// MessageDTO is the JSON shape of a chat message.
type MessageDTO struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func toMessageDTO(m *domain.Message) MessageDTO {
	return MessageDTO{
		ID:        m.ID.String(),
		Sender:    m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func mapSlice[T, D any](items []T, fn func(T) D) []D {
	out := make([]D, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
