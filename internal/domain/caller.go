package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Caller is the authenticated identity attached to every request by the auth middleware.
// It is trusted as-is; credentials are never re-verified below the middleware.
type Caller struct {
	UserID string
	Email  string
	Role   string
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}
