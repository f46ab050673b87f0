package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	mw "github.com/lorrc/support-chat-gateway/internal/adapters/primary/http/middleware"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

// ConversationHandler serves conversation rooms and their history.
type ConversationHandler struct {
	conversations ports.ConversationService
	errorHandler  *ErrorHandler
	logger        *slog.Logger
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(
	conversations ports.ConversationService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *ConversationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationHandler{
		conversations: conversations,
		errorHandler:  errorHandler,
		logger:        logger.With("handler", "conversations"),
	}
}

// RegisterRoutes registers the /conversations routes.
func (h *ConversationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Get("/{ticketId}/messages", h.HandleMessages)
}

// HandleList handles GET /conversations.
func (h *ConversationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	identity, ok := mw.GetIdentity(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.ErrUnauthorized)
		return
	}

	convs, err := h.conversations.ListForUser(r.Context(), identity.UserID)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteList(w, mapSlice(convs, toConversationDTO))
}

// HandleMessages handles GET /conversations/{ticketId}/messages.
func (h *ConversationHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := mw.GetIdentity(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.ErrUnauthorized)
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "limit must be an integer").WithDetail("param", "limit"))
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "offset must be an integer").WithDetail("param", "offset"))
		return
	}

	params := ports.ListMessagesParams{
		Viewer:   identity,
		TicketID: chi.URLParam(r, "ticketId"),
		Limit:    limit,
		Offset:   offset,
	}

	msgs, err := h.conversations.ListMessages(r.Context(), params)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	limit, offset = params.Page()
	WritePage(w, mapSlice(msgs, toMessageDTO), limit, offset)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
