package auth

import "time"

// Roles assignable to a user. There is no finer-grained permission model:
// admins can do everything, viewers can read.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// ValidRole reports whether role is one of the two assignable roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleViewer
}

// User is a staff identity record.
type User struct {
	ID                 int64     `json:"id"`
	Username           string    `json:"username"`
	Email              string    `json:"email,omitempty"`
	PasswordHash       string    `json:"-"`
	Role               string    `json:"role"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Identity is the resolved subject of a verified bearer token.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// LoginResult is what a successful login returns to the transport layer.
type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
