// Package authz decides whether a caller may use a role-gated capability.
//
// Administrators manage the catalog; regular users borrow, return, and read
// their own loan history. A caller is authorized only when authenticated,
// holding a profile, and that profile's role is the one required.
package authz

import (
	apperrors "biblioteca/internal/errors"
	"biblioteca/internal/model"
)

// Principal is the caller of a request as far as authorization cares.
type Principal struct {
	UserID  uint
	Profile *model.UserProfile
}

// Anonymous is the principal of a request without a valid session.
var Anonymous = Principal{}

// Authenticated reports whether the principal is a logged-in user.
func (p Principal) Authenticated() bool {
	return p.UserID != 0
}

// Authorize returns nil when p may act with the required role.
// A missing profile counts as no permission.
func Authorize(p Principal, required model.Role) error {
	if !p.Authenticated() {
		return apperrors.ErrUnauthenticated
	}
	switch required {
	case model.RoleAdministrator:
		if p.Profile.IsAdministrator() {
			return nil
		}
	case model.RoleRegular:
		if p.Profile.IsRegular() {
			return nil
		}
	}
	return apperrors.ErrForbidden
}
