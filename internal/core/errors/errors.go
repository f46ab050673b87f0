package errors

import (
	"errors"
	"fmt"
)

// Taxonomy roots. Specific errors wrap one of these so callers can classify
// failures with errors.Is.
var (
	// ErrAuthentication means the connection credential was missing, malformed,
	// expired or badly signed. It terminates the connection.
	ErrAuthentication = errors.New("authentication failed")
	// ErrForbidden means the identity may not perform the operation.
	ErrForbidden = errors.New("action forbidden")
	// ErrNotFound means a referenced conversation, user or notification is absent.
	ErrNotFound = errors.New("resource not found")
	// ErrPersistence means an external store failed.
	ErrPersistence = errors.New("persistence failure")
)

// Authentication & identity
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrMissingCredential = fmt.Errorf("%w: missing credential", ErrAuthentication)
	ErrInvalidCredential = fmt.Errorf("%w: invalid credential", ErrAuthentication)
	ErrUserIDRequired    = errors.New("user ID is required")
	ErrInvalidRole       = errors.New("invalid role")
)

// Lookups
var (
	ErrUserNotFound         = fmt.Errorf("%w: user", ErrNotFound)
	ErrConversationNotFound = fmt.Errorf("%w: conversation", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("%w: notification", ErrNotFound)
	ErrStaffNotAssigned     = fmt.Errorf("%w: assigned staff", ErrNotFound)
)

// Rooms & messages
var (
	ErrNotParticipant      = fmt.Errorf("%w: not a participant of this conversation", ErrForbidden)
	ErrClientOnly          = fmt.Errorf("%w: only clients open conversations", ErrForbidden)
	ErrTicketIDRequired    = errors.New("ticket ID is required")
	ErrMessageBodyRequired = errors.New("message body is required")
	ErrMessageBodyTooLong  = errors.New("message body exceeds maximum length")
	ErrMessageBodyInvalid  = errors.New("message body is not valid UTF-8")
	ErrAssignmentFailed    = errors.New("ticket assignment failed")
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrConnectionSaturated = errors.New("connection send buffer full")
	ErrUnknownInboundEvent = errors.New("unknown inbound event type")
	ErrInboundRateLimited  = errors.New("inbound event rate limit exceeded")
)

// Generic
var (
	ErrInternal    = errors.New("internal server error")
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Persistence wraps a store failure so it classifies as ErrPersistence while
// keeping the underlying cause reachable.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// AppError carries a caller-facing HTTP response for an underlying error.
type AppError struct {
	Err        error
	Message    string
	Code       string
	StatusCode int
	Details    map[string]any
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError builds an AppError for an arbitrary status.
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{Err: err, Message: message, Code: code, StatusCode: status}
}

// NewBadRequestError reports a malformed request; err is usually ErrBadRequest.
func NewBadRequestError(err error, message string) *AppError {
	return NewAppError(400, "BAD_REQUEST", message, err)
}

// WithDetail attaches a structured field to the response body.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Code returns the machine-readable code used in WebSocket error frames.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAuthentication):
		return "UNAUTHENTICATED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInboundRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrTicketIDRequired),
		errors.Is(err, ErrMessageBodyRequired),
		errors.Is(err, ErrMessageBodyTooLong),
		errors.Is(err, ErrMessageBodyInvalid),
		errors.Is(err, ErrUnknownInboundEvent):
		return "BAD_REQUEST"
	default:
		return "INTERNAL_ERROR"
	}
}
