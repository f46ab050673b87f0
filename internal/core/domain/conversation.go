package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
)

// MaxMessageLength is the maximum size of a chat message body in bytes.
const MaxMessageLength = 4096

// Conversation is the room bound to a single support ticket.
type Conversation struct {
	ID           uuid.UUID
	TicketID     string
	Participants []string
	StartedAt    time.Time
	EndedAt      *time.Time
}

// IsOpen reports whether the conversation has not been ended.
func (c *Conversation) IsOpen() bool {
	return c.EndedAt == nil
}

// HasParticipant reports whether the given user is recorded as a participant.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// RecipientsExcluding returns the distinct participants other than actorID.
func (c *Conversation) RecipientsExcluding(actorID string) []string {
	seen := make(map[string]struct{}, len(c.Participants))
	recipients := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p == actorID || p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		recipients = append(recipients, p)
	}
	return recipients
}

// Message is a single chat line within a conversation.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       string
	Content        string
	CreatedAt      time.Time
}

// ValidateMessageContent enforces the body constraints for inbound messages.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperrors.ErrMessageBodyRequired
	}
	if len(content) > MaxMessageLength {
		return apperrors.ErrMessageBodyTooLong
	}
	if !utf8.ValidString(content) {
		return apperrors.ErrMessageBodyInvalid
	}
	return nil
}
