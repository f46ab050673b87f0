package domain

import "time"

// NotificationSnapshot matches the wire shape of a persisted notification.
type NotificationSnapshot struct {
	ID             string `json:"id"`
	RecipientID    string `json:"recipientId"`
	ConversationID string `json:"conversationId"`
	TicketID       string `json:"ticketId"`
	Content        string `json:"content"`
	Acknowledged   bool   `json:"acknowledged"`
	Dismissed      bool   `json:"dismissed"`
	CreatedAt      string `json:"createdAt"`
}

// MessagePayload is the body of an outbound message event.
type MessagePayload struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// RoomNotice is a transient, non-persisted notice broadcast to a room.
type RoomNotice struct {
	TicketID string `json:"ticketId"`
	Content  string `json:"content"`
}

// AssignmentNotice tells staff about a ticket assigned to them.
type AssignmentNotice struct {
	TicketID string `json:"ticketId"`
	Message  string `json:"message"`
}

// ErrorPayload reports a rejected inbound operation back to its sender.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewNotificationSnapshot builds the wire shape from a domain notification.
func NewNotificationSnapshot(n *Notification) NotificationSnapshot {
	return NotificationSnapshot{
		ID:             n.ID.String(),
		RecipientID:    n.RecipientID,
		ConversationID: n.ConversationID.String(),
		TicketID:       n.TicketID,
		Content:        n.Content,
		Acknowledged:   n.Acknowledged,
		Dismissed:      n.Dismissed,
		CreatedAt:      n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// NewMessagePayload builds an outbound message body from a stored message.
func NewMessagePayload(m *Message) MessagePayload {
	return MessagePayload{
		Sender:    m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}
