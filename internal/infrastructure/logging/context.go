package logging

import (
	"context"
	"log/slog"
)

type fieldKey string

// Correlation fields, in the order they appear on a record.
const (
	fieldRequestID    fieldKey = "request_id"
	fieldUserID       fieldKey = "user_id"
	fieldConnectionID fieldKey = "connection_id"
	fieldTicketID     fieldKey = "ticket_id"
)

var correlationFields = [...]fieldKey{fieldRequestID, fieldUserID, fieldConnectionID, fieldTicketID}

func withField(ctx context.Context, key fieldKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func fieldsOf(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, key := range correlationFields {
		if v, ok := ctx.Value(key).(string); ok {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}

// WithRequestID tags the context with the HTTP request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withField(ctx, fieldRequestID, requestID)
}

// WithUserID tags the context with the acting user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withField(ctx, fieldUserID, userID)
}

// WithConnectionID tags the context with a gateway connection.
func WithConnectionID(ctx context.Context, connectionID string) context.Context {
	return withField(ctx, fieldConnectionID, connectionID)
}

// WithTicketID tags the context with the ticket an event concerns.
func WithTicketID(ctx context.Context, ticketID string) context.Context {
	return withField(ctx, fieldTicketID, ticketID)
}

// GetRequestID returns the request ID, or "" when none is set.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(fieldRequestID).(string)
	return id
}

// LoggerFromContext binds the context's correlation fields to logger, for
// code that logs without passing ctx along.
func LoggerFromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	attrs := fieldsOf(ctx)
	if len(attrs) == 0 {
		return logger
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return logger.With(args...)
}
