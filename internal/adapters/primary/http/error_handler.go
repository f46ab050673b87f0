package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// errorRule maps a sentinel to a response. An empty message means the
// error's own text is safe to show the caller.
type errorRule struct {
	target  error
	status  int
	code    string
	message string
}

// errorRules are matched in order, so specific sentinels precede the
// taxonomy roots they wrap.
var errorRules = []errorRule{
	{apperrors.ErrAuthentication, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"},

	{apperrors.ErrNotParticipant, http.StatusForbidden, "NOT_PARTICIPANT", "You are not a participant of this conversation"},
	{apperrors.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action"},

	{apperrors.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND", "User not found"},
	{apperrors.ErrConversationNotFound, http.StatusNotFound, "CONVERSATION_NOT_FOUND", "Conversation not found"},
	{apperrors.ErrNotificationNotFound, http.StatusNotFound, "NOTIFICATION_NOT_FOUND", "Notification not found"},
	{apperrors.ErrStaffNotAssigned, http.StatusNotFound, "STAFF_NOT_ASSIGNED", "No staff member is assigned to this ticket"},
	{apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Resource not found"},

	{apperrors.ErrBadRequest, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrTicketIDRequired, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrUserIDRequired, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrMessageBodyRequired, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrMessageBodyTooLong, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrMessageBodyInvalid, http.StatusBadRequest, "VALIDATION_ERROR", ""},

	{apperrors.ErrAssignmentFailed, http.StatusBadGateway, "ASSIGNMENT_FAILED", "Ticket assignment service is unavailable"},
	{apperrors.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later."},
}

var internalError = errorRule{status: http.StatusInternalServerError, code: "INTERNAL_ERROR", message: "An unexpected error occurred"}

// ErrorHandler turns service errors into JSON responses and logs them.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates an error handler. A nil logger uses slog.Default.
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{logger: logger}
}

// Handle writes the response for err. An *apperrors.AppError anywhere in the
// chain is rendered as-is; anything else goes through errorRules.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	status, body := resolve(err)
	h.log(r, status, err)
	writeError(w, status, body)
}

func resolve(err error) (int, ErrorResponse) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode, ErrorResponse{Error: appErr.Message, Code: appErr.Code, Details: appErr.Details}
	}

	rule := internalError
	for _, candidate := range errorRules {
		if errors.Is(err, candidate.target) {
			rule = candidate
			break
		}
	}

	msg := rule.message
	if msg == "" {
		msg = err.Error()
	}
	return rule.status, ErrorResponse{Error: msg, Code: rule.code}
}

func (h *ErrorHandler) log(r *http.Request, status int, err error) {
	level := slog.LevelWarn
	msg := "client error"
	if status >= http.StatusInternalServerError {
		level, msg = slog.LevelError, "server error"
	}

	h.logger.LogAttrs(r.Context(), level, msg,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status_code", status),
		slog.String("error", err.Error()),
	)
}

func writeError(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// HandleError writes err through handler when it is non-nil and reports
// whether it did.
func HandleError(w http.ResponseWriter, r *http.Request, err error, handler *ErrorHandler) bool {
	if err == nil {
		return false
	}
	handler.Handle(w, r, err)
	return true
}
