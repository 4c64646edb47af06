package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User represents an account allowed to call the API.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// CreateUserInput carries the payload for user creation.
type CreateUserInput struct {
	Email    string `json:"email" validate:"required,email,max=200"`
	Name     string `json:"name" validate:"required,max=200"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required"`
}

// UpdateUserInput carries the payload for user updates. An empty password
// keeps the current one.
type UpdateUserInput struct {
	Email    string `json:"email" validate:"required,email,max=200"`
	Name     string `json:"name" validate:"required,max=200"`
	Password string `json:"password" validate:"omitempty,min=8,max=72"`
	Role     string `json:"role" validate:"required"`
	IsActive *bool  `json:"is_active"`
}
