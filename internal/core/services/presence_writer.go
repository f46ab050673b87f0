package services

import (
	"context"
	"sync"

	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

// maxPresenceWrites bounds how often one sync chases a registry that keeps
// flipping underneath it. The next transition triggers another sync anyway.
const maxPresenceWrites = 4

// presenceWriter persists registry presence. Writes for one user run one at
// a time and each stores the registry's current value, re-reading it after
// the store call, so the last write for a user matches the registry.
// No registry lock is held while the store is called.
type presenceWriter struct {
	registry *ConnectionRegistry
	users    ports.UserStore

	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newPresenceWriter(registry *ConnectionRegistry, users ports.UserStore) *presenceWriter {
	return &presenceWriter{
		registry: registry,
		users:    users,
		locks:    make(map[string]*userLock),
	}
}

func (w *presenceWriter) acquire(userID string) *userLock {
	w.mu.Lock()
	l, ok := w.locks[userID]
	if !ok {
		l = &userLock{}
		w.locks[userID] = l
	}
	l.refs++
	w.mu.Unlock()

	l.mu.Lock()
	return l
}

func (w *presenceWriter) release(userID string, l *userLock) {
	l.mu.Unlock()

	w.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(w.locks, userID)
	}
	w.mu.Unlock()
}

// Sync writes the user's current presence. The write outlives ctx
// cancellation so a closing connection still records going offline.
func (w *presenceWriter) Sync(ctx context.Context, userID string) error {
	l := w.acquire(userID)
	defer w.release(userID, l)

	ctx = context.WithoutCancel(ctx)
	want := w.registry.Presence(userID)
	for attempt := 1; ; attempt++ {
		if err := w.users.SetPresence(ctx, userID, want); err != nil {
			return err
		}
		now := w.registry.Presence(userID)
		if now == want || attempt == maxPresenceWrites {
			return nil
		}
		want = now
	}
}
