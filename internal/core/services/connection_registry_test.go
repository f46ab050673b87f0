package services_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	"github.com/lorrc/support-chat-gateway/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(userID string, role domain.Role) domain.Identity {
	return domain.Identity{UserID: userID, Email: userID + "@example.com", Role: role}
}

func TestConnectionRegistry_PresenceTransitions(t *testing.T) {
	reg := services.NewConnectionRegistry(4)
	alice := identity("alice", domain.RoleClient)

	change := reg.Register(alice, "c1")
	assert.True(t, change.Changed)
	assert.Equal(t, domain.PresenceOnline, change.Presence)

	change = reg.Register(alice, "c2")
	assert.False(t, change.Changed, "second connection is not a transition")
	assert.ElementsMatch(t, []string{"c1", "c2"}, reg.LiveConnectionsOf("alice"))

	change = reg.Unregister("alice", "c1")
	assert.False(t, change.Changed)
	assert.Equal(t, domain.PresenceOnline, reg.Presence("alice"))

	change = reg.Unregister("alice", "c2")
	assert.True(t, change.Changed)
	assert.Equal(t, domain.PresenceOffline, change.Presence)
	assert.Equal(t, domain.PresenceOffline, reg.Presence("alice"))
	assert.Empty(t, reg.LiveConnectionsOf("alice"))
}

func TestConnectionRegistry_UnknownConnectionIsNoop(t *testing.T) {
	reg := services.NewConnectionRegistry(0)

	change := reg.Unregister("ghost", "c1")
	assert.False(t, change.Changed)
	assert.Equal(t, domain.PresenceOffline, change.Presence)

	reg.Register(identity("bob", domain.RoleStaff), "c1")
	change = reg.Unregister("bob", "other")
	assert.False(t, change.Changed)
	assert.Equal(t, domain.PresenceOnline, reg.Presence("bob"))
	assert.Equal(t, 1, reg.ConnectionCount())
}

func TestConnectionRegistry_DuplicateRegisterCountsOnce(t *testing.T) {
	reg := services.NewConnectionRegistry(8)
	bob := identity("bob", domain.RoleStaff)

	reg.Register(bob, "c1")
	reg.Register(bob, "c1")

	assert.Equal(t, 1, reg.ConnectionCount())
	assert.Equal(t, 1, reg.UserCount())
	assert.True(t, reg.Unregister("bob", "c1").Changed)
}

// Presence must equal "live set non-empty" after every mutation.
func TestConnectionRegistry_PresenceMatchesLiveSet(t *testing.T) {
	reg := services.NewConnectionRegistry(3)
	rng := rand.New(rand.NewSource(42))
	users := []string{"u1", "u2", "u3", "u4"}
	live := make(map[string]map[string]bool)

	for step := 0; step < 2000; step++ {
		user := users[rng.Intn(len(users))]
		conn := fmt.Sprintf("%s-c%d", user, rng.Intn(4))
		if live[user] == nil {
			live[user] = make(map[string]bool)
		}
		wasOnline := len(live[user]) > 0

		var change services.PresenceChange
		if rng.Intn(2) == 0 {
			change = reg.Register(identity(user, domain.RoleClient), conn)
			live[user][conn] = true
		} else {
			change = reg.Unregister(user, conn)
			delete(live[user], conn)
		}
		isOnline := len(live[user]) > 0

		require.Equal(t, wasOnline != isOnline, change.Changed, "step %d", step)
		require.Len(t, reg.LiveConnectionsOf(user), len(live[user]), "step %d", step)
		if isOnline {
			require.Equal(t, domain.PresenceOnline, reg.Presence(user), "step %d", step)
		} else {
			require.Equal(t, domain.PresenceOffline, reg.Presence(user), "step %d", step)
		}
	}
}

func TestConnectionRegistry_ConcurrentMutations(t *testing.T) {
	reg := services.NewConnectionRegistry(16)
	const users, connsPerUser = 20, 10

	var online sync.Map
	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		for c := 0; c < connsPerUser; c++ {
			wg.Add(1)
			go func(u, c int) {
				defer wg.Done()
				userID := fmt.Sprintf("user-%d", u)
				if reg.Register(identity(userID, domain.RoleClient), fmt.Sprintf("%d-%d", u, c)).Changed {
					_, dup := online.LoadOrStore(userID, true)
					assert.False(t, dup, "user %s came online twice", userID)
				}
				_ = reg.LiveConnectionsOf(userID)
			}(u, c)
		}
	}
	wg.Wait()

	assert.Equal(t, users*connsPerUser, reg.ConnectionCount())
	assert.Equal(t, users, reg.UserCount())

	var offline sync.Map
	for u := 0; u < users; u++ {
		for c := 0; c < connsPerUser; c++ {
			wg.Add(1)
			go func(u, c int) {
				defer wg.Done()
				userID := fmt.Sprintf("user-%d", u)
				if reg.Unregister(userID, fmt.Sprintf("%d-%d", u, c)).Changed {
					_, dup := offline.LoadOrStore(userID, true)
					assert.False(t, dup, "user %s went offline twice", userID)
				}
			}(u, c)
		}
	}
	wg.Wait()

	assert.Equal(t, 0, reg.ConnectionCount())
	assert.Equal(t, 0, reg.UserCount())
	for u := 0; u < users; u++ {
		_, ok := offline.Load(fmt.Sprintf("user-%d", u))
		assert.True(t, ok)
	}
}

func TestConnectionRegistry_IdentityOf(t *testing.T) {
	reg := services.NewConnectionRegistry(2)
	staff := identity("s1", domain.RoleStaff)
	reg.Register(staff, "c1")

	got, ok := reg.IdentityOf("s1")
	require.True(t, ok)
	assert.Equal(t, staff, got)

	_, ok = reg.IdentityOf("nobody")
	assert.False(t, ok)
}
