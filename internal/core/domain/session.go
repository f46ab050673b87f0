package domain

import (
	"sync/atomic"
	"time"
)

// SessionState is the lifecycle stage of a live connection.
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateAuthenticating
	StateAuthenticated
	StateJoined
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

// Session binds a transport connection to the identity that authenticated it.
type Session struct {
	ConnectionID string
	Identity     Identity
	ConnectedAt  time.Time

	state atomic.Int32
}

// NewPendingSession returns a session whose credential is still being
// checked. It accepts no inbound events until Authenticate succeeds.
func NewPendingSession(connectionID string) *Session {
	s := &Session{
		ConnectionID: connectionID,
		ConnectedAt:  time.Now().UTC(),
	}
	s.state.Store(int32(StateAuthenticating))
	return s
}

// NewSession returns an authenticated session for the connection.
func NewSession(connectionID string, identity Identity) *Session {
	s := NewPendingSession(connectionID)
	s.Authenticate(identity)
	return s
}

// Authenticate binds the verified identity and moves the session from
// authenticating to authenticated. It reports false in any other state.
func (s *Session) Authenticate(identity Identity) bool {
	if s.State() != StateAuthenticating {
		return false
	}
	s.Identity = identity
	return s.state.CompareAndSwap(int32(StateAuthenticating), int32(StateAuthenticated))
}

// State returns the current lifecycle stage.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// IsActive reports whether the session still accepts inbound events.
func (s *Session) IsActive() bool {
	st := s.State()
	return st == StateAuthenticated || st == StateJoined
}

// MarkJoined records that the connection is subscribed to at least one room.
// It has no effect once the session is disconnected.
func (s *Session) MarkJoined() {
	s.state.CompareAndSwap(int32(StateAuthenticated), int32(StateJoined))
}

// MarkDisconnected moves the session to its terminal state. It reports false
// if the session was already disconnected.
func (s *Session) MarkDisconnected() bool {
	return SessionState(s.state.Swap(int32(StateDisconnected))) != StateDisconnected
}
