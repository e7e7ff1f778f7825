package auth

import "time"

// User represents a system account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	FullName     string    `json:"full_name,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastLogin    time.Time `json:"last_login,omitempty"`
}

// RefreshToken is the persisted half of an opaque refresh credential.
// The secret part is never stored, only its hash.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// Principal is an authenticated user with a resolved permission set.
type Principal struct {
	User        User
	Permissions map[string]struct{}
}

// NewPrincipal materializes the permission set for the user's role.
func NewPrincipal(user User) Principal {
	return Principal{User: user, Permissions: PermissionSet(user.Role)}
}

// HasPermission reports whether the principal can execute the action
// identified by key. Admin passes unconditionally.
func (p Principal) HasPermission(key string) bool {
	if p.User.Role == RoleAdmin {
		return true
	}
	_, ok := p.Permissions[key]
	return ok
}
