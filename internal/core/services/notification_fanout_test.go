package services_test

import (
	"context"
	"testing"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/mocks"
	"github.com/lorrc/support-chat-gateway/internal/core/services"
	"github.com/lorrc/support-chat-gateway/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fanoutFixture struct {
	store      *memoryStore
	registry   *services.ConnectionRegistry
	emitter    *mocks.RecordingEmitter
	assignment *fakeAssignment
	metrics    *metrics.Registry
	fanout     *services.NotificationFanout
}

func newFanoutFixture(staff domain.Identity) *fanoutFixture {
	f := &fanoutFixture{
		store:      newMemoryStore(),
		registry:   services.NewConnectionRegistry(4),
		emitter:    mocks.NewRecordingEmitter(),
		assignment: newFakeAssignment(staff),
		metrics:    metrics.NewRegistry(prometheus.NewRegistry()),
	}
	f.fanout = services.NewNotificationFanout(services.NotificationFanoutDeps{
		Conversations: f.store,
		Notifications: notificationStore{f.store},
		Assignment:    f.assignment,
		Connections:   f.registry,
		Emitter:       f.emitter,
		Metrics:       f.metrics,
		Concurrency:   2,
	})
	return f
}

func (f *fanoutFixture) notificationOutcome(outcome string) float64 {
	return testutil.ToFloat64(f.metrics.Notifications.WithLabelValues(outcome))
}

func TestNotificationFanout_Fanout(t *testing.T) {
	ctx := context.Background()
	staff := identity("staff-1", domain.RoleStaff)
	actor := identity("actor", domain.RoleClient)
	a := identity("alice", domain.RoleStaff)
	b := identity("bob", domain.RoleStaff)

	t.Run("one notification per non-sender participant", func(t *testing.T) {
		f := newFanoutFixture(staff)
		f.store.addConversation("T1", a.UserID, b.UserID, actor.UserID)
		f.registry.Register(actor, "conn-actor")
		f.registry.Register(a, "conn-a")
		f.registry.Register(b, "conn-b")

		payload := &domain.MessagePayload{Sender: actor.UserID, Content: "hi"}
		report := f.fanout.Fanout(ctx, actor.UserID, "T1", "hi", payload)

		assert.Equal(t, 2, report.Recipients)
		assert.Equal(t, 2, report.Persisted)
		assert.Len(t, f.store.notificationsFor(a.UserID), 1)
		assert.Len(t, f.store.notificationsFor(b.UserID), 1)
		assert.Empty(t, f.store.notificationsFor(actor.UserID))
		assert.Empty(t, f.emitter.Events("conn-actor"))

		for _, conn := range []string{"conn-a", "conn-b"} {
			require.Len(t, f.emitter.EventsOfType(conn, domain.EventNotification), 1)
			messages := f.emitter.EventsOfType(conn, domain.EventMessage)
			require.Len(t, messages, 1)
			assert.Equal(t, *payload, messages[0].Payload)
		}
		assert.Equal(t, float64(2), f.notificationOutcome(services.OutcomePersisted))
	})

	t.Run("every live connection of a recipient is targeted", func(t *testing.T) {
		f := newFanoutFixture(staff)
		f.store.addConversation("T1", a.UserID, actor.UserID)
		f.registry.Register(a, "conn-a1")
		f.registry.Register(a, "conn-a2")

		report := f.fanout.Fanout(ctx, actor.UserID, "T1", "hi", nil)

		assert.Equal(t, 1, report.Persisted)
		assert.Len(t, f.store.notificationsFor(a.UserID), 1, "one record regardless of connection count")
		for _, conn := range []string{"conn-a1", "conn-a2"} {
			events := f.emitter.Events(conn)
			require.Len(t, events, 1)
			assert.Equal(t, domain.EventNotification, events[0].Type)
			snapshot, ok := events[0].Payload.(domain.NotificationSnapshot)
			require.True(t, ok)
			assert.Equal(t, a.UserID, snapshot.RecipientID)
			assert.Equal(t, "T1", snapshot.TicketID)
		}
	})

	t.Run("offline recipient is persisted and counted as a miss", func(t *testing.T) {
		f := newFanoutFixture(staff)
		f.store.addConversation("T1", a.UserID, actor.UserID)

		report := f.fanout.Fanout(ctx, actor.UserID, "T1", "hi", &domain.MessagePayload{Content: "hi"})

		assert.Equal(t, 1, report.Persisted)
		assert.Equal(t, 1, report.Offline)
		assert.Equal(t, 0, f.emitter.Total())
		assert.Len(t, f.store.notificationsFor(a.UserID), 1)
		assert.Equal(t, float64(1), f.notificationOutcome(services.OutcomeDeliveryMiss))
	})

	t.Run("persist failure is isolated to one recipient", func(t *testing.T) {
		f := newFanoutFixture(staff)
		f.store.addConversation("T1", a.UserID, b.UserID, actor.UserID)
		f.store.failFor[a.UserID] = true
		f.registry.Register(a, "conn-a")
		f.registry.Register(b, "conn-b")

		report := f.fanout.Fanout(ctx, actor.UserID, "T1", "hi", nil)

		assert.Equal(t, 1, report.PersistFailed)
		assert.Equal(t, 1, report.Persisted)
		assert.Empty(t, f.emitter.Events("conn-a"), "nothing is emitted without a persisted record")
		assert.Len(t, f.emitter.Events("conn-b"), 1)
		assert.Equal(t, float64(1), f.notificationOutcome(services.OutcomePersistFailed))
	})

	t.Run("emit failure is counted and does not stop other connections", func(t *testing.T) {
		f := newFanoutFixture(staff)
		f.store.addConversation("T1", a.UserID, actor.UserID)
		f.registry.Register(a, "conn-a1")
		f.registry.Register(a, "conn-a2")
		f.emitter.Fail["conn-a1"] = true

		report := f.fanout.Fanout(ctx, actor.UserID, "T1", "hi", nil)

		assert.Equal(t, 1, report.EmitFailed)
		assert.Equal(t, 1, report.Emitted)
		assert.Len(t, f.emitter.Events("conn-a2"), 1)
		assert.Equal(t, float64(1),
			testutil.ToFloat64(f.metrics.Emissions.WithLabelValues(string(domain.EventNotification), services.OutcomeFailed)))
	})

	t.Run("missing conversation is silent", func(t *testing.T) {
		f := newFanoutFixture(staff)

		report := f.fanout.Fanout(ctx, actor.UserID, "gone", "hi", nil)

		assert.Equal(t, 0, report.Recipients)
		assert.Equal(t, 0, f.store.notificationCount())
		assert.Equal(t, float64(1), f.notificationOutcome(services.OutcomeConversationMissing))
	})

	t.Run("duplicate participants are notified once", func(t *testing.T) {
		f := newFanoutFixture(staff)
		f.store.addConversation("T1", a.UserID, a.UserID, actor.UserID)

		report := f.fanout.Fanout(ctx, actor.UserID, "T1", "hi", nil)

		assert.Equal(t, 1, report.Recipients)
		assert.Len(t, f.store.notificationsFor(a.UserID), 1)
	})

	t.Run("cancelled caller does not abort delivery", func(t *testing.T) {
		f := newFanoutFixture(staff)
		f.store.addConversation("T1", a.UserID, actor.UserID)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		report := f.fanout.Fanout(cctx, actor.UserID, "T1", "hi", nil)

		assert.Equal(t, 1, report.Persisted)
	})
}

func TestNotificationFanout_NotifyAssignment(t *testing.T) {
	ctx := context.Background()
	staff := identity("staff-1", domain.RoleStaff)
	client := identity("client-1", domain.RoleClient)

	t.Run("assigned staff receives notification and newAssignment", func(t *testing.T) {
		f := newFanoutFixture(staff)
		f.store.addConversation("T1", client.UserID)
		_, _ = f.assignment.AssignTicket(ctx, "T1")
		f.registry.Register(staff, "conn-s")

		err := f.fanout.NotifyAssignment(ctx, "T1", "")

		require.NoError(t, err)
		require.Len(t, f.emitter.EventsOfType("conn-s", domain.EventNotification), 1)
		assignments := f.emitter.EventsOfType("conn-s", domain.EventNewAssignment)
		require.Len(t, assignments, 1)
		assert.Equal(t, domain.AssignmentNotice{
			TicketID: "T1",
			Message:  "You have been assigned ticket T1",
		}, assignments[0].Payload)
		assert.Len(t, f.store.notificationsFor(staff.UserID), 1)
	})

	t.Run("nobody assigned", func(t *testing.T) {
		f := newFanoutFixture(staff)
		f.store.addConversation("T1", client.UserID)

		err := f.fanout.NotifyAssignment(ctx, "T1", "")

		assert.ErrorIs(t, err, apperrors.ErrStaffNotAssigned)
		assert.Equal(t, 0, f.store.notificationCount())
	})

	t.Run("persist failure is reported", func(t *testing.T) {
		f := newFanoutFixture(staff)
		f.store.addConversation("T1", client.UserID)
		_, _ = f.assignment.AssignTicket(ctx, "T1")
		f.store.failFor[staff.UserID] = true

		err := f.fanout.NotifyAssignment(ctx, "T1", "custom")

		assert.ErrorIs(t, err, apperrors.ErrPersistence)
	})
}
