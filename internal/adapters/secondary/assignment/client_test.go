package assignment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Timeout: time.Second, RetryCount: retries, APIKey: "secret"}, nil)
}

func TestClient_AssignTicket(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tickets/T-1/assign", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"staff-9","email":"s@example.com"}`))
	}, 0)

	staff, err := client.AssignTicket(context.Background(), "T-1")

	require.NoError(t, err)
	assert.Equal(t, domain.Identity{UserID: "staff-9", Email: "s@example.com", Role: domain.RoleStaff}, staff)
}

func TestClient_AssignTicketFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		retries int
		calls   int32
	}{
		{"server error is not retried", http.StatusInternalServerError, `{}`, 2, 1},
		{"client error is not retried", http.StatusConflict, `{}`, 2, 1},
		{"missing staff id", http.StatusOK, `{"email":"x"}`, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, tt.retries)

			_, err := client.AssignTicket(context.Background(), "T-1")

			assert.ErrorIs(t, err, apperrors.ErrAssignmentFailed)
			assert.Equal(t, tt.calls, calls.Load())
		})
	}
}

func TestClient_AssignedStaffOf(t *testing.T) {
	t.Run("assigned", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/auth/ticket-user/T-2", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"staff-2","email":"two@example.com","role":"staff"}`))
		}, 0)

		staff, err := client.AssignedStaffOf(context.Background(), "T-2")

		require.NoError(t, err)
		assert.Equal(t, "staff-2", staff.UserID)
		assert.True(t, staff.IsStaff())
	})

	t.Run("not found", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}, 0)

		_, err := client.AssignedStaffOf(context.Background(), "T-2")

		assert.ErrorIs(t, err, apperrors.ErrStaffNotAssigned)
	})

	t.Run("empty body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		}, 0)

		_, err := client.AssignedStaffOf(context.Background(), "T-2")

		assert.ErrorIs(t, err, apperrors.ErrStaffNotAssigned)
	})

	t.Run("unknown role", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","role":"admin"}`))
		}, 0)

		_, err := client.AssignedStaffOf(context.Background(), "T-2")

		assert.ErrorIs(t, err, apperrors.ErrInvalidRole)
	})

	t.Run("server error is retried", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`{"id":"staff-2"}`))
		}, 2)

		staff, err := client.AssignedStaffOf(context.Background(), "T-2")

		require.NoError(t, err)
		assert.Equal(t, "staff-2", staff.UserID)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("context deadline", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}, 0)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := client.AssignedStaffOf(ctx, "T-2")

		require.Error(t, err)
		assert.NotErrorIs(t, err, apperrors.ErrStaffNotAssigned)
	})
}
