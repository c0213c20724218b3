package domain

import (
	"strings"
	"time"
)

// RoleAdminClaim is the role carried in every issued token.
const RoleAdminClaim = "admin"

// Admin is a registered broadcaster account.
type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UsernameKey is the case-insensitive lookup key for a username.
func UsernameKey(username string) string {
	return strings.ToLower(username)
}

// RegisterRequest represents a registration request. Length rules are
// checked after the admin secret, so only presence is validated on binding.
type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	AdminSecret string `json:"admin_secret" binding:"required"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresAt int64  `json:"expires_at"`
}

// TokenUser is the identity carried by a verified token.
type TokenUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// VerifyResponse is returned by the token verification endpoint.
type VerifyResponse struct {
	Valid bool      `json:"valid"`
	User  TokenUser `json:"user"`
}
