package domain

// EventType defines the type of outbound real-time event.
type EventType string

const (
	EventNotification  EventType = "notification"
	EventMessage       EventType = "message"
	EventNewAssignment EventType = "newAssignment"
	EventPong          EventType = "pong"
	EventError         EventType = "error"
)

// Event is the frame pushed over WebSocket.
type Event struct {
	Type     EventType   `json:"type"`
	TicketID string      `json:"ticketId,omitempty"`
	Payload  interface{} `json:"payload,omitempty"`
}

// InboundEventType names a frame sent by a connected client.
type InboundEventType string

const (
	InboundJoinRoom  InboundEventType = "joinRoom"
	InboundLeaveRoom InboundEventType = "leaveRoom"
	InboundMessage   InboundEventType = "message"
	InboundPing      InboundEventType = "ping"
)

// InboundEvent is a decoded client frame.
type InboundEvent struct {
	Type     InboundEventType
	TicketID string
	Content  string
}
