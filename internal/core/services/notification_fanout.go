package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
	"golang.org/x/sync/errgroup"
)

// Fan-out outcome labels.
const (
	OutcomePersisted           = "persisted"
	OutcomePersistFailed       = "persist_failed"
	OutcomeDeliveryMiss        = "delivery_miss"
	OutcomeConversationMissing = "conversation_missing"
	OutcomeLookupFailed        = "lookup_failed"
	OutcomeSent                = "sent"
	OutcomeFailed              = "failed"
)

const (
	defaultFanoutConcurrency = 16
	defaultFanoutTimeout     = 10 * time.Second
)

// LiveConnections resolves the delivery targets of a user.
type LiveConnections interface {
	LiveConnectionsOf(userID string) []string
}

// NotificationFanout persists one notification per recipient and pushes it to
// every live connection of that recipient. Recipients are processed
// independently: a failure for one never affects the others.
type NotificationFanout struct {
	conversations ports.ConversationStore
	notifications ports.NotificationStore
	assignment    ports.AssignmentService
	connections   LiveConnections
	emitter       ports.EventEmitter
	metrics       ports.MetricsRecorder
	concurrency   int
	timeout       time.Duration
	logger        *slog.Logger
}

var _ ports.Announcer = (*NotificationFanout)(nil)
var _ ports.AssignmentNotifier = (*NotificationFanout)(nil)

// NotificationFanoutDeps groups the collaborators of a NotificationFanout.
type NotificationFanoutDeps struct {
	Conversations ports.ConversationStore
	Notifications ports.NotificationStore
	Assignment    ports.AssignmentService
	Connections   LiveConnections
	Emitter       ports.EventEmitter
	Metrics       ports.MetricsRecorder
	// Concurrency bounds how many recipients are processed at once.
	Concurrency int
	// Timeout bounds a single fan-out run. It is detached from the caller's
	// cancellation so a sender hanging up does not abort delivery to others.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewNotificationFanout creates a NotificationFanout.
func NewNotificationFanout(deps NotificationFanoutDeps) *NotificationFanout {
	if deps.Concurrency <= 0 {
		deps.Concurrency = defaultFanoutConcurrency
	}
	if deps.Timeout <= 0 {
		deps.Timeout = defaultFanoutTimeout
	}
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &NotificationFanout{
		conversations: deps.Conversations,
		notifications: deps.Notifications,
		assignment:    deps.Assignment,
		connections:   deps.Connections,
		emitter:       deps.Emitter,
		metrics:       deps.Metrics,
		concurrency:   deps.Concurrency,
		timeout:       deps.Timeout,
		logger:        deps.Logger.With("component", "notification_fanout"),
	}
}

// Fanout notifies every participant of the ticket except the actor. When
// payload is non-nil each live connection also receives a message event.
// A missing conversation is logged and counted, never returned.
func (f *NotificationFanout) Fanout(ctx context.Context, actorUserID, ticketID, rendered string, payload *domain.MessagePayload) ports.FanoutReport {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	log := f.logger.With("ticket_id", ticketID, "actor_id", actorUserID)

	// 1. Resolve participants.
	conv, err := f.conversations.FindByTicketID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.WarnContext(ctx, "fan-out skipped: conversation not found")
			f.metrics.RecordNotification(OutcomeConversationMissing)
		} else {
			log.ErrorContext(ctx, "fan-out aborted: conversation lookup failed", "error", err)
			f.metrics.RecordNotification(OutcomeLookupFailed)
		}
		return ports.FanoutReport{}
	}

	// 2. Exclude the actor.
	recipients := conv.RecipientsExcluding(actorUserID)

	// 3. Persist and deliver per recipient.
	var extra []domain.Event
	if payload != nil {
		extra = append(extra, domain.Event{
			Type:     domain.EventMessage,
			TicketID: ticketID,
			Payload:  *payload,
		})
	}
	return f.deliver(ctx, log, conv, recipients, rendered, extra)
}

// NotifyAssignment tells the staff member assigned to the ticket. The
// notification is persisted like any other and accompanied by a
// newAssignment event on each live connection.
func (f *NotificationFanout) NotifyAssignment(ctx context.Context, ticketID, content string) error {
	if ticketID == "" {
		return apperrors.ErrTicketIDRequired
	}

	staff, err := f.assignment.AssignedStaffOf(ctx, ticketID)
	if err != nil {
		return err
	}
	conv, err := f.conversations.FindByTicketID(ctx, ticketID)
	if err != nil {
		return err
	}

	if content == "" {
		content = fmt.Sprintf("You have been assigned ticket %s", ticketID)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	log := f.logger.With("ticket_id", ticketID, "staff_id", staff.UserID)
	report := f.deliver(ctx, log, conv, []string{staff.UserID}, content, []domain.Event{{
		Type:     domain.EventNewAssignment,
		TicketID: ticketID,
		Payload:  domain.AssignmentNotice{TicketID: ticketID, Message: content},
	}})
	if report.PersistFailed > 0 {
		return fmt.Errorf("assignment notice for ticket %s: %w", ticketID, apperrors.ErrPersistence)
	}
	return nil
}

func (f *NotificationFanout) deliver(
	ctx context.Context,
	log *slog.Logger,
	conv *domain.Conversation,
	recipients []string,
	content string,
	extra []domain.Event,
) ports.FanoutReport {
	start := time.Now()
	defer func() { f.metrics.ObserveFanout(time.Since(start).Seconds()) }()

	var (
		mu     sync.Mutex
		report = ports.FanoutReport{Recipients: len(recipients)}
	)

	g := new(errgroup.Group)
	g.SetLimit(f.concurrency)
	for _, recipient := range recipients {
		g.Go(func() error {
			r := f.deliverTo(ctx, log.With("recipient_id", recipient), conv, recipient, content, extra)
			mu.Lock()
			report.Persisted += r.Persisted
			report.PersistFailed += r.PersistFailed
			report.Offline += r.Offline
			report.Emitted += r.Emitted
			report.EmitFailed += r.EmitFailed
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	log.DebugContext(ctx, "fan-out complete",
		"recipients", report.Recipients,
		"persisted", report.Persisted,
		"persist_failed", report.PersistFailed,
		"offline", report.Offline,
		"emitted", report.Emitted,
		"emit_failed", report.EmitFailed,
	)
	return report
}

func (f *NotificationFanout) deliverTo(
	ctx context.Context,
	log *slog.Logger,
	conv *domain.Conversation,
	recipient string,
	content string,
	extra []domain.Event,
) ports.FanoutReport {
	var r ports.FanoutReport

	// a. Persist.
	n, err := f.notifications.Create(ctx, recipient, conv, content)
	if err != nil {
		log.ErrorContext(ctx, "notification persist failed", "error", err)
		f.metrics.RecordNotification(OutcomePersistFailed)
		r.PersistFailed = 1
		return r
	}
	f.metrics.RecordNotification(OutcomePersisted)
	r.Persisted = 1

	// b. Resolve live connections.
	connections := f.connections.LiveConnectionsOf(recipient)
	if len(connections) == 0 {
		log.InfoContext(ctx, "delivery miss: recipient has no live connections",
			"notification_id", n.ID.String(),
		)
		f.metrics.RecordNotification(OutcomeDeliveryMiss)
		r.Offline = 1
		return r
	}

	// c. Emit to each of them.
	events := make([]domain.Event, 0, 1+len(extra))
	events = append(events, domain.Event{
		Type:     domain.EventNotification,
		TicketID: conv.TicketID,
		Payload:  domain.NewNotificationSnapshot(n),
	})
	events = append(events, extra...)

	for _, connID := range connections {
		for _, ev := range events {
			if err := f.emitter.Emit(connID, ev); err != nil {
				log.WarnContext(ctx, "emit failed",
					"connection_id", connID,
					"event", string(ev.Type),
					"error", err,
				)
				f.metrics.RecordEmission(ev.Type, OutcomeFailed)
				r.EmitFailed++
				continue
			}
			f.metrics.RecordEmission(ev.Type, OutcomeSent)
			r.Emitted++
		}
	}
	return r
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RecordNotification(string)                     {}
func (NopMetrics) RecordEmission(domain.EventType, string)       {}
func (NopMetrics) RecordInbound(domain.InboundEventType, string) {}
func (NopMetrics) RecordConnection(string)                       {}
func (NopMetrics) SetLiveConnections(int, int)                   {}
func (NopMetrics) ObserveFanout(float64)                         {}
