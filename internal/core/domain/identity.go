package domain

import (
	"strings"
	"time"

	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
)

// Role distinguishes customers from support staff.
type Role string

const (
	RoleClient Role = "client"
	RoleStaff  Role = "staff"
)

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleClient || r == RoleStaff
}

// ParseRole normalizes a role claim into a Role.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.IsValid() {
		return "", apperrors.ErrInvalidRole
	}
	return role, nil
}

// Presence is the derived online state of a user.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
)

// Identity is the authenticated principal behind a connection.
// It is immutable for the lifetime of that connection.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

// Validate checks that the identity carries a usable user ID and role.
func (i Identity) Validate() error {
	if strings.TrimSpace(i.UserID) == "" {
		return apperrors.ErrUserIDRequired
	}
	if !i.Role.IsValid() {
		return apperrors.ErrInvalidRole
	}
	return nil
}

// IsClient reports whether the identity belongs to a customer.
func (i Identity) IsClient() bool {
	return i.Role == RoleClient
}

// IsStaff reports whether the identity belongs to a staff member.
func (i Identity) IsStaff() bool {
	return i.Role == RoleStaff
}

// User is the persisted projection of an identity.
type User struct {
	UserID    string
	Email     string
	Role      Role
	Status    Presence
	CreatedAt time.Time
}

// NewUser builds an offline user record from an identity.
func NewUser(identity Identity) (*User, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	return &User{
		UserID:    identity.UserID,
		Email:     identity.Email,
		Role:      identity.Role,
		Status:    PresenceOffline,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Identity returns the identity the user record was created from.
func (u *User) Identity() Identity {
	return Identity{
		UserID: u.UserID,
		Email:  u.Email,
		Role:   u.Role,
	}
}
