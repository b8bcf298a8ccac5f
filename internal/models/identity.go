package models

import "time"

// Identity is the authenticated user as reported by the identity service.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// IsZero reports whether no identity is set
func (i Identity) IsZero() bool {
	return i.ID == ""
}
