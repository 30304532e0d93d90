package models

import "time"

// User is a member of exactly one organisation.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	TenantID     int64     `json:"organisationId"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewUser carries the fields required to create a user.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	TenantID     int64
	Role         Role
}
