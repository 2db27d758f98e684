package domain

// Role enumerates the two actor roles the lifecycle engine distinguishes.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Requester identifies the acting user on every engine and controller call.
// Identity is supplied by the external session layer; nothing in this service
// reads it from ambient state.
type Requester struct {
	UserID int64
	Role   Role
}

// IsAdmin reports whether the requester holds the elevated role.
func (r Requester) IsAdmin() bool {
	return r.Role == RoleAdmin
}
