package service

import (
	"errors"
	"fmt"

	"parking_reservation/internal/domain"
)

var ErrForbidden = errors.New("operation not permitted for this account")

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID   int
	Username string
	Role     string
}

func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

type Capability string

const (
	CapabilityManageLots       Capability = "manage_lots"
	CapabilityManageUsers      Capability = "manage_users"
	CapabilityViewAdminSummary Capability = "view_admin_summary"
)

// capabilityRoles lists the roles granted each capability.
var capabilityRoles = map[Capability][]string{
	CapabilityManageLots:       {domain.RoleAdmin},
	CapabilityManageUsers:      {domain.RoleAdmin},
	CapabilityViewAdminSummary: {domain.RoleAdmin},
}

// Authorize returns ErrForbidden unless actor's role grants c.
func Authorize(actor Actor, c Capability) error {
	for _, role := range capabilityRoles[c] {
		if actor.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: %s requires %v role", ErrForbidden, c, capabilityRoles[c])
}
