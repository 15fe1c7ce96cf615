package enum

// Role is the account type chosen at registration.
type Role string

const (
	RoleCommunity Role = "community"
	RoleNGO       Role = "NGO"
	// RoleGovt accounts act as administrators.
	RoleGovt Role = "govt"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleCommunity || r == RoleNGO || r == RoleGovt
}

// IsAdmin reports whether the role may review and moderate submissions.
func (r Role) IsAdmin() bool {
	return r == RoleGovt
}

// UserStatus is the account standing.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusBanned   UserStatus = "banned"
	UserStatusInactive UserStatus = "inactive"
)
