package model

import (
	"fmt"
	"time"
)

// Role is the capability set attached to a user through its profile.
type Role string

const (
	RoleRegular       Role = "regular"
	RoleAdministrator Role = "administrator"
)

// Roles lists every assignable role.
var Roles = []Role{RoleRegular, RoleAdministrator}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleRegular || r == RoleAdministrator
}

// OrDefault returns r, or RoleRegular when r is empty.
func (r Role) OrDefault() Role {
	if r == "" {
		return RoleRegular
	}
	return r
}

// Label returns the display name of the role.
func (r Role) Label() string {
	switch r {
	case RoleRegular:
		return "Regular user"
	case RoleAdministrator:
		return "Administrator"
	default:
		return string(r)
	}
}

// UserProfile carries the role of a user account. Exactly one exists per user.
type UserProfile struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	Role      Role      `json:"role" gorm:"type:varchar(20);not null;default:'regular';index"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserProfile builds the profile created alongside a user account.
func NewUserProfile(userID uint, role Role) *UserProfile {
	return &UserProfile{UserID: userID, Role: role.OrDefault()}
}

// IsAdministrator reports whether the profile grants catalog management.
func (p *UserProfile) IsAdministrator() bool {
	return p != nil && p.Role == RoleAdministrator
}

// IsRegular reports whether the profile grants borrowing.
func (p *UserProfile) IsRegular() bool {
	return p != nil && p.Role == RoleRegular
}

func (p *UserProfile) String() string {
	return fmt.Sprintf("user %d - %s", p.UserID, p.Role.Label())
}
