package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/live-relay/internal/domain"
)

var (
	ErrAdminNotFound  = errors.New("admin not found")
	ErrUsernameExists = errors.New("username already exists")
)

// AdminRepository stores admin accounts. Usernames are unique regardless of case.
type AdminRepository interface {
	Create(ctx context.Context, admin *domain.Admin) error
	GetByUsername(ctx context.Context, username string) (*domain.Admin, error)
}
