package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

// AssignmentHandler lets the ticketing backend tell the gateway that a ticket
// was assigned, so the staff member is notified in real time.
type AssignmentHandler struct {
	notifier     ports.AssignmentNotifier
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(
	notifier ports.AssignmentNotifier,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *AssignmentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentHandler{
		notifier:     notifier,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "assignment"),
	}
}

// RegisterRoutes registers the internal ticket routes.
func (h *AssignmentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/{ticketId}/assignment", h.HandleNotify)
}

// AssignmentNoticeRequest is the optional body of an assignment notice.
type AssignmentNoticeRequest struct {
	Message string `json:"message"`
}

// HandleNotify handles POST /internal/tickets/{ticketId}/assignment.
func (h *AssignmentHandler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")

	var req AssignmentNoticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid request body"))
		return
	}

	if err := h.notifier.NotifyAssignment(r.Context(), ticketID, req.Message); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "assignment notice delivered", "ticket_id", ticketID)
	WriteJSON(w, http.StatusAccepted, SuccessResponse{Message: "assignment notice delivered"})
}
