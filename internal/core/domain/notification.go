package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a persisted notice addressed to a single recipient.
// The fan-out creates it; acknowledgement and dismissal happen elsewhere.
type Notification struct {
	ID             uuid.UUID
	RecipientID    string
	ConversationID uuid.UUID
	TicketID       string
	Content        string
	Acknowledged   bool
	Dismissed      bool
	CreatedAt      time.Time
}

// IsOwnedBy reports whether the notification belongs to the given user.
func (n *Notification) IsOwnedBy(userID string) bool {
	return n.RecipientID == userID
}
