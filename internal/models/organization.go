package models

import "time"

// Organization represents an organisation (tenant) in the system.
// Each organisation owns a set of users and, through them, a set of tickets.
type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
