package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/h2hthailand/h2h-backend/pkg/enums"
)

// Item represents a seller listing. Rows are soft-deleted, never destroyed.
type Item struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	Title       string              `gorm:"column:title;not null"`
	Description *string             `gorm:"column:description"`
	Price       decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity    int                 `gorm:"column:quantity;not null;default:1"`
	Images      pq.StringArray      `gorm:"column:images;type:text[];not null;default:ARRAY[]::text[]"`
	Category    string              `gorm:"column:category;not null"`
	Condition   enums.ItemCondition `gorm:"column:condition;type:text;not null"`
	Status      enums.ItemStatus    `gorm:"column:status;type:text;not null;default:'draft'"`
	DeletedAt   *time.Time          `gorm:"column:deleted_at;index"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
