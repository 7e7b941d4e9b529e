package auth

import (
	"time"

	"github.com/kitarena/kitarena/internal/shared"
)

// User is an account able to authenticate against the API.
type User struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Role         shared.Role `json:"role"`
	PasswordHash string      `json:"-"`
	IsActive     bool        `json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
}
