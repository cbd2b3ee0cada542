package snmsmodels

import "time"

// Company is the owning tenant of sensors and users.
type Company struct {
	ID        int64     `json:"-" db:"id"`
	UID       string    `json:"uid" db:"uid"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Deleted   bool      `json:"-" db:"deleted"`
}
