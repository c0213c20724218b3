package domain

import (
	"sync"
	"time"
)

// Session represents a client's WebSocket session.
type Session struct {
	ID           string
	UserID       string
	Username     string
	Admin        bool
	CreatedAt    time.Time
	LastActiveAt time.Time
	mu           sync.RWMutex
}

// NewSession creates a new session with a unique ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// GrantAdmin attaches the admin capability after a token was verified.
func (s *Session) GrantAdmin(userID, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UserID = userID
	s.Username = username
	s.Admin = true
	s.LastActiveAt = time.Now()
}

// IsAdmin returns whether the session holds the admin capability.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Admin
}

// GetUsername returns the authenticated username, if any.
func (s *Session) GetUsername() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Username
}

// GetUserID returns the authenticated user ID, if any.
func (s *Session) GetUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UserID
}

// UpdateActivity updates the last active timestamp.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
