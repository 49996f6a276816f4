package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/h2hthailand/h2h-backend/pkg/enums"
)

// Order snapshots a buyer/seller transaction for one item. Item fields are
// denormalized at order time so later listing edits do not rewrite history.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber string    `gorm:"column:order_number;not null;index"`
	ItemID      uuid.UUID `gorm:"column:item_id;type:uuid;not null;index"`
	BuyerID     uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID    uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`

	ItemTitle  string          `gorm:"column:item_title;not null"`
	ItemPrice  decimal.Decimal `gorm:"column:item_price;type:numeric(12,2);not null"`
	ItemImages pq.StringArray  `gorm:"column:item_images;type:text[];not null;default:ARRAY[]::text[]"`

	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	SlipURL       *string             `gorm:"column:slip_url"`

	// ProviderOrderID holds the remote payment session id so the webhook can
	// find its way back to this row.
	ProviderOrderID *string `gorm:"column:provider_order_id;uniqueIndex"`
	ProviderMeta    []byte  `gorm:"column:provider_meta;type:jsonb"`

	PaidAt      *time.Time `gorm:"column:paid_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	DeletedAt   *time.Time `gorm:"column:deleted_at;index"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Locked reports whether further non-admin mutation is blocked.
func (o Order) Locked() bool {
	return o.Status == enums.OrderStatusCompleted || o.PaymentStatus == enums.PaymentStatusPaid
}
