package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/lorrc/support-chat-gateway/internal/adapters/primary/http/middleware"
	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
)

// PresenceReader exposes live presence from the connection registry.
type PresenceReader interface {
	Presence(userID string) domain.Presence
	LiveConnectionsOf(userID string) []string
}

// MeResponse defines the JSON response for the authenticated user.
type MeResponse struct {
	UserID      string          `json:"userId"`
	Email       string          `json:"email"`
	Role        domain.Role     `json:"role"`
	Presence    domain.Presence `json:"presence"`
	Connections int             `json:"connections"`
}

// MeHandler handles HTTP requests for the authenticated user.
type MeHandler struct {
	presence     PresenceReader
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(
	presence PresenceReader,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *MeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MeHandler{
		presence:     presence,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "me"),
	}
}

// RegisterRoutes registers the /me routes.
func (h *MeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleMe)
}

// HandleMe handles GET /me.
func (h *MeHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := mw.GetIdentity(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.ErrUnauthorized)
		return
	}

	WriteJSON(w, http.StatusOK, MeResponse{
		UserID:      identity.UserID,
		Email:       identity.Email,
		Role:        identity.Role,
		Presence:    h.presence.Presence(identity.UserID),
		Connections: len(h.presence.LiveConnectionsOf(identity.UserID)),
	})
}
