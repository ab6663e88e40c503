package model

import (
	"fmt"
	"strings"
)

// Role is the authorization level of an authenticated actor.
type Role string

const (
	RoleMember  Role = "member"
	RoleTrainer Role = "trainer"
	RoleAdmin   Role = "admin"
)

// ParseRole accepts the canonical lowercase names. Empty means member.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleMember, nil
	case RoleMember, RoleTrainer, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Actor is a caller already resolved by the identity provider.
type Actor struct {
	ID   string
	Role Role
}

// IsStaff reports whether the actor may perform administrative corrections.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleTrainer
}

// IsAdmin reports whether the actor is an administrator.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
