package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/h2hthailand/h2h-backend/pkg/enums"
)

// TokenLedgerEntry is an immutable reward record. The unique index on
// IdempotencyKey is what makes reward issuance exactly-once.
type TokenLedgerEntry struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID        *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	Amount         int64                 `gorm:"column:amount;not null"`
	Symbol         string                `gorm:"column:symbol;not null"`
	Type           enums.LedgerEntryType `gorm:"column:type;type:text;not null"`
	Reason         string                `gorm:"column:reason;not null"`
	IdempotencyKey string                `gorm:"column:idempotency_key;not null;uniqueIndex:idx_token_ledger_idempotency_key"`
	Meta           []byte                `gorm:"column:meta;type:jsonb"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}

// TokenBalance is the materialized per-user token sum, maintained in the same
// transaction as each ledger insert. It is the single source of truth for a
// user's balance.
type TokenBalance struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Balance   int64     `gorm:"column:balance;not null;default:0"`
	Symbol    string    `gorm:"column:symbol;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
