package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weiawesome/live-relay/internal/domain"
)

// MemoryAdminRepository keeps accounts in process memory; they are gone after
// a restart.
type MemoryAdminRepository struct {
	mu     sync.RWMutex
	admins map[string]domain.Admin // username key -> admin
}

// NewMemoryAdminRepository creates an empty repository.
func NewMemoryAdminRepository() *MemoryAdminRepository {
	return &MemoryAdminRepository{admins: make(map[string]domain.Admin)}
}

// Create stores a new admin, assigning its ID and creation time.
func (r *MemoryAdminRepository) Create(ctx context.Context, admin *domain.Admin) error {
	key := domain.UsernameKey(admin.Username)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.admins[key]; ok {
		return ErrUsernameExists
	}
	admin.ID = uuid.New().String()
	admin.CreatedAt = time.Now().UTC()
	r.admins[key] = *admin
	return nil
}

// GetByUsername looks an admin up case-insensitively.
func (r *MemoryAdminRepository) GetByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.admins[domain.UsernameKey(username)]
	if !ok {
		return nil, ErrAdminNotFound
	}
	return &a, nil
}
