package services

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
)

// PresenceChange reports the presence of a user after a registry mutation.
// Changed is true only when the mutation crossed the online/offline boundary.
type PresenceChange struct {
	UserID   string
	Presence domain.Presence
	Changed  bool
}

type registryEntry struct {
	identity    domain.Identity
	connections map[string]struct{}
}

type registryShard struct {
	mu    sync.RWMutex
	users map[string]*registryEntry
}

// ConnectionRegistry maps users to their live connections.
// Mutations for one user are serialized by that user's shard lock, so presence
// is always consistent with the live set when a call returns.
type ConnectionRegistry struct {
	shards      []*registryShard
	connections atomic.Int64
	users       atomic.Int64
}

// NewConnectionRegistry creates a registry with the given number of shards.
func NewConnectionRegistry(shardCount int) *ConnectionRegistry {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	r := &ConnectionRegistry{shards: make([]*registryShard, shardCount)}
	for i := range r.shards {
		r.shards[i] = &registryShard{users: make(map[string]*registryEntry)}
	}
	return r
}

func (r *ConnectionRegistry) shard(userID string) *registryShard {
	return r.shards[shardIndex(userID, len(r.shards))]
}

// Register adds connectionID to the identity's live set.
func (r *ConnectionRegistry) Register(identity domain.Identity, connectionID string) PresenceChange {
	sh := r.shard(identity.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.users[identity.UserID]
	if !ok {
		entry = &registryEntry{
			identity:    identity,
			connections: make(map[string]struct{}),
		}
		sh.users[identity.UserID] = entry
		r.users.Add(1)
	}
	if _, exists := entry.connections[connectionID]; !exists {
		entry.connections[connectionID] = struct{}{}
		r.connections.Add(1)
	}

	return PresenceChange{
		UserID:   identity.UserID,
		Presence: domain.PresenceOnline,
		Changed:  !ok,
	}
}

// Unregister removes connectionID from the user's live set. Unknown
// connections are ignored.
func (r *ConnectionRegistry) Unregister(userID, connectionID string) PresenceChange {
	sh := r.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.users[userID]
	if !ok {
		return PresenceChange{UserID: userID, Presence: domain.PresenceOffline}
	}
	if _, exists := entry.connections[connectionID]; !exists {
		return PresenceChange{UserID: userID, Presence: domain.PresenceOnline}
	}

	delete(entry.connections, connectionID)
	r.connections.Add(-1)
	if len(entry.connections) > 0 {
		return PresenceChange{UserID: userID, Presence: domain.PresenceOnline}
	}

	delete(sh.users, userID)
	r.users.Add(-1)
	return PresenceChange{UserID: userID, Presence: domain.PresenceOffline, Changed: true}
}

// LiveConnectionsOf returns a snapshot of the user's live connection IDs.
func (r *ConnectionRegistry) LiveConnectionsOf(userID string) []string {
	sh := r.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	entry, ok := sh.users[userID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(entry.connections))
	for id := range entry.connections {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Presence derives the user's presence from the live set.
func (r *ConnectionRegistry) Presence(userID string) domain.Presence {
	sh := r.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	if _, ok := sh.users[userID]; ok {
		return domain.PresenceOnline
	}
	return domain.PresenceOffline
}

// IdentityOf returns the identity registered for an online user.
func (r *ConnectionRegistry) IdentityOf(userID string) (domain.Identity, bool) {
	sh := r.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	entry, ok := sh.users[userID]
	if !ok {
		return domain.Identity{}, false
	}
	return entry.identity, true
}

// ConnectionCount returns the number of live connections across all users.
func (r *ConnectionRegistry) ConnectionCount() int {
	return int(r.connections.Load())
}

// UserCount returns the number of online users.
func (r *ConnectionRegistry) UserCount() int {
	return int(r.users.Load())
}
