package snmsmodels

import "time"

// User represents a user in the system. Company-scoped roles live on the
// company membership rows, not here; SuperAdmin short-circuits them all.
type User struct {
	UserID     string    `json:"user_id" db:"user_id"`
	Username   string    `json:"username" db:"username"`
	Email      string    `json:"email" db:"email"`
	Password   string    `json:"-" db:"password"`
	SuperAdmin bool      `json:"super_admin" db:"super_admin"`
	Active     bool      `json:"active" db:"active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
