package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weiawesome/live-relay/internal/domain"
)

// GormAdminRepository implements AdminRepository using GORM.
type GormAdminRepository struct {
	db *gorm.DB
}

// NewGormAdminRepository creates a new GORM-based admin repository.
func NewGormAdminRepository(db *gorm.DB) *GormAdminRepository {
	return &GormAdminRepository{db: db}
}

// Create creates a new admin.
func (r *GormAdminRepository) Create(ctx context.Context, admin *domain.Admin) error {
	admin.ID = uuid.New().String()

	model := domain.AdminToModel(admin)
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		return r.handleError(result.Error)
	}

	admin.CreatedAt = model.CreatedAt
	return nil
}

// GetByUsername retrieves an admin by username, ignoring case.
func (r *GormAdminRepository) GetByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	var model domain.AdminModel
	result := r.db.WithContext(ctx).First(&model, "username_key = ?", domain.UsernameKey(username))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// handleError converts database-specific errors to domain errors.
func (r *GormAdminRepository) handleError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUsernameExists
	}

	errStr := err.Error()
	// PostgreSQL, SQLite, MySQL unique violations
	if strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "UNIQUE constraint") ||
		strings.Contains(errStr, "Duplicate entry") {
		return ErrUsernameExists
	}
	return err
}
