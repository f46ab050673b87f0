// Package assignment is the HTTP client for the external ticket-assignment
// service.
package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

const (
	assignPath       = "/tickets/{ticketId}/assign"
	assignedUserPath = "/auth/ticket-user/{ticketId}"
	apiKeyHeader     = "X-API-Key"
)

// Config holds the client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	APIKey     string
}

// Client talks to the assignment service over HTTP.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

var _ ports.AssignmentService = (*Client)(nil)

// staffResponse is the user record the assignment service returns.
type staffResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// NewClient creates an assignment client. Only the idempotent lookup is
// retried, on transport errors and 5xx responses. Assignments are sent once.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(100*time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(retryable).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "support-chat-gateway/1.0")
	if cfg.APIKey != "" {
		httpClient.SetHeader(apiKeyHeader, cfg.APIKey)
	}

	return &Client{
		http:   httpClient,
		logger: logger.With("component", "assignment_client"),
	}
}

// AssignTicket asks the service to bind a staff member to the ticket.
func (c *Client) AssignTicket(ctx context.Context, ticketID string) (domain.Identity, error) {
	var staff staffResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("ticketId", ticketID).
		SetResult(&staff).
		Post(assignPath)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrAssignmentFailed, err)
	}
	if resp.IsError() {
		return domain.Identity{}, fmt.Errorf("%w: status %d: %s",
			apperrors.ErrAssignmentFailed, resp.StatusCode(), resp.String())
	}

	identity, err := staff.identity()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrAssignmentFailed, err)
	}

	c.logger.InfoContext(ctx, "ticket assigned", "ticket_id", ticketID, "staff_id", identity.UserID)
	return identity, nil
}

// AssignedStaffOf looks up the staff member currently assigned to the ticket.
func (c *Client) AssignedStaffOf(ctx context.Context, ticketID string) (domain.Identity, error) {
	var staff staffResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("ticketId", ticketID).
		SetResult(&staff).
		Get(assignedUserPath)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("lookup assigned staff: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return domain.Identity{}, apperrors.ErrStaffNotAssigned
	}
	if resp.IsError() {
		return domain.Identity{}, fmt.Errorf("lookup assigned staff: status %d: %s", resp.StatusCode(), resp.String())
	}
	if strings.TrimSpace(staff.ID) == "" {
		return domain.Identity{}, apperrors.ErrStaffNotAssigned
	}

	return staff.identity()
}

func retryable(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil {
		return false
	}
	switch resp.Request.Method {
	case http.MethodGet, http.MethodHead:
	default:
		return false
	}
	return err != nil || resp.StatusCode() >= http.StatusInternalServerError
}

func (s staffResponse) identity() (domain.Identity, error) {
	role := domain.RoleStaff
	if s.Role != "" {
		parsed, err := domain.ParseRole(s.Role)
		if err != nil {
			return domain.Identity{}, err
		}
		role = parsed
	}
	identity := domain.Identity{UserID: strings.TrimSpace(s.ID), Email: s.Email, Role: role}
	if err := identity.Validate(); err != nil {
		return domain.Identity{}, err
	}
	return identity, nil
}
