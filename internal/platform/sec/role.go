// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # User Roles

// UserRole represents the authorization level granted to an account.
type UserRole string

const (
	// Platform owners, may manage administrators
	RoleSuperAdmin UserRole = "SUPER_ADMIN"

	// Back-office staff
	RoleAdmin UserRole = "ADMIN"

	// Installers and other service providers
	RoleContractor UserRole = "CONTRACTOR"

	// Default role for homeowners
	RoleUser UserRole = "USER"
)

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	return r.level() > 0
}

// SelfAssignable reports whether r may be chosen by a user at registration.
func (r UserRole) SelfAssignable() bool {
	return r == RoleUser || r == RoleContractor
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {
	switch r {
	case RoleSuperAdmin:
		return 40
	case RoleAdmin:
		return 30
	case RoleContractor:
		return 20
	case RoleUser:
		return 10
	default:
		return 0
	}
}
