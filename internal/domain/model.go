package domain

import (
	"time"
)

// AdminModel is the GORM model for the admins table.
type AdminModel struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	Username     string    `gorm:"type:varchar(20);not null"`
	UsernameKey  string    `gorm:"type:varchar(20);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for AdminModel.
func (AdminModel) TableName() string {
	return "admins"
}

// ToDomain converts AdminModel to domain Admin.
func (m *AdminModel) ToDomain() *Admin {
	return &Admin{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

// AdminToModel converts domain Admin to AdminModel.
func AdminToModel(a *Admin) *AdminModel {
	return &AdminModel{
		ID:           a.ID,
		Username:     a.Username,
		UsernameKey:  UsernameKey(a.Username),
		PasswordHash: a.PasswordHash,
		CreatedAt:    a.CreatedAt,
	}
}
