package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/lorrc/support-chat-gateway/internal/adapters/primary/http/middleware"
	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

// NotificationHandler serves the caller's persisted notifications.
type NotificationHandler struct {
	notifications ports.NotificationService
	errorHandler  *ErrorHandler
	logger        *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(
	notifications ports.NotificationService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{
		notifications: notifications,
		errorHandler:  errorHandler,
		logger:        logger.With("handler", "notifications"),
	}
}

// RegisterRoutes registers the /notifications routes.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/{id}/acknowledge", h.HandleAcknowledge)
	r.Post("/{id}/dismiss", h.HandleDismiss)
}

// HandleList handles GET /notifications.
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	identity, ok := mw.GetIdentity(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.ErrUnauthorized)
		return
	}

	includeDismissed := false
	if raw := r.URL.Query().Get("includeDismissed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "includeDismissed must be a boolean"))
			return
		}
		includeDismissed = v
	}

	list, err := h.notifications.ListForUser(r.Context(), identity.UserID, includeDismissed)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteList(w, mapSlice(list, toNotificationDTO))
}

// HandleAcknowledge handles POST /notifications/{id}/acknowledge.
func (h *NotificationHandler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.notifications.Acknowledge)
}

// HandleDismiss handles POST /notifications/{id}/dismiss.
func (h *NotificationHandler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.notifications.Dismiss)
}

type notificationMutation func(ctx context.Context, userID string, id uuid.UUID) (*domain.Notification, error)

func (h *NotificationHandler) mutate(w http.ResponseWriter, r *http.Request, apply notificationMutation) {
	identity, ok := mw.GetIdentity(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.ErrUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid notification ID"))
		return
	}

	n, err := apply(r.Context(), identity.UserID, id)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteSuccess(w, toNotificationDTO(n))
}
