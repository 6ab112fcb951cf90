package lifecycle

import "slices"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleOwner    Role = "owner"
	RoleSystem   Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleOwner, RoleSystem:
		return true
	}
	return false
}

// Actor is whoever requested a change. Guests act as customers with an empty ID.
// Outlets lists where staff and owners work.
type Actor struct {
	ID      string
	Role    Role
	Outlets []string
}

// ServesOutlet reports whether the actor may run the outlet's kitchen.
// System actors serve every outlet.
func (a Actor) ServesOutlet(outletID string) bool {
	switch a.Role {
	case RoleSystem:
		return true
	case RoleStaff, RoleOwner:
		return outletID != "" && slices.Contains(a.Outlets, outletID)
	}
	return false
}

func (a Actor) String() string {
	if a.ID == "" {
		return string(a.Role)
	}
	return string(a.Role) + ":" + a.ID
}
