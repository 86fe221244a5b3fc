package model

import "time"

// User roles. Admins provision studios, occurrences and assets; members
// book seats and borrow assets.
const (
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// User is an account able to authenticate against the API. Only the
// bcrypt hash of the password is stored.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
