package account

import "time"

// Role is the access level of an account
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is a user of the service with a points balance
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Points       int64     `json:"points"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the account holds the admin role
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAfford reports whether the balance covers cost
func (a *Account) CanAfford(cost int64) bool {
	return a.Points >= cost
}
