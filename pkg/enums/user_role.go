package enums

// UserRole distinguishes administrative callers from regular users.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// IsAdmin reports whether the role carries administrative privilege.
func (r UserRole) IsAdmin() bool {
	return r == UserRoleAdmin
}

// IsValid reports whether the role is recognized.
func (r UserRole) IsValid() bool {
	return r == UserRoleUser || r == UserRoleAdmin
}
