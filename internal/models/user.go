package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	Username       string
	Email          string
	Name           string
	HashedPassword string

	// The only refresh token that may be exchanged for a new pair; nil when logged out
	RefreshToken *string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time // nil for live accounts
}

// Identity proven by a valid access token
type Principal struct {
	ID       uuid.UUID
	Username string
	Email    string
}
