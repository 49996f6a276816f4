package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/h2hthailand/h2h-backend/pkg/enums"
)

// User represents the canonical identity entity. PasswordHash is empty for
// accounts provisioned through an external identity provider.
type User struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email          string         `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash   string         `gorm:"column:password_hash"`
	DisplayName    string         `gorm:"column:display_name;not null"`
	Phone          *string        `gorm:"column:phone"`
	Role           enums.UserRole `gorm:"column:role;type:text;not null;default:'user'"`
	IsActive       bool           `gorm:"column:is_active;not null;default:true"`
	NotifyByEmail  bool           `gorm:"column:notify_by_email;not null;default:true"`
	LastLoginAt    *time.Time     `gorm:"column:last_login_at"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
