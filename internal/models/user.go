package models

import (
	"time"

	"github.com/google/uuid"
)

// Roles for marketplace accounts.
const (
	RoleCompany  = "company"
	RoleStreamer = "streamer"
	RoleAdmin    = "admin"
)

// User represents a marketplace account (company or streamer owner).
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
