package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

// UserStatusResponse is the live presence of one user.
type UserStatusResponse struct {
	UserID      string          `json:"userId"`
	Status      domain.Presence `json:"status"`
	Connections int             `json:"connections"`
}

// UserStatusHandler answers presence lookups for staff and integrations.
type UserStatusHandler struct {
	presence     PresenceReader
	users        ports.UserStore
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

func NewUserStatusHandler(
	presence PresenceReader,
	users ports.UserStore,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *UserStatusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserStatusHandler{
		presence:     presence,
		users:        users,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "user_status"),
	}
}

// RegisterRoutes registers the /users routes.
func (h *UserStatusHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{userId}/status", h.HandleStatus)
}

// HandleStatus handles GET /users/{userId}/status. The registry is
// authoritative; the store is only consulted to tell offline from unknown.
func (h *UserStatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	if connections := h.presence.LiveConnectionsOf(userID); len(connections) > 0 {
		WriteJSON(w, http.StatusOK, UserStatusResponse{
			UserID:      userID,
			Status:      domain.PresenceOnline,
			Connections: len(connections),
		})
		return
	}

	if _, err := h.users.FindByID(r.Context(), userID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, UserStatusResponse{
		UserID: userID,
		Status: h.presence.Presence(userID),
	})
}
