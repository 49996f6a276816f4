package tokens

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/h2hthailand/h2h-backend/pkg/db/models"
	"github.com/h2hthailand/h2h-backend/pkg/pagination"
)

// Repository exposes persistence helpers for the token ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateEntry(ctx context.Context, entry *models.TokenLedgerEntry) error
	CreateEntryIdempotent(ctx context.Context, entry *models.TokenLedgerEntry) (bool, error)
	IncrementBalance(ctx context.Context, userID uuid.UUID, amount int64, symbol string) error
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.TokenBalance, error)
	ListEntries(ctx context.Context, params listEntriesParams) ([]models.TokenLedgerEntry, *pagination.Cursor, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a token ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listEntriesParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateEntry(ctx context.Context, entry *models.TokenLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// CreateEntryIdempotent inserts the entry unless its idempotency key already
// exists, reporting whether a row was written. The conflict is absorbed by the
// database, so a duplicate inside a surrounding transaction does not abort it.
func (r *repositoryImpl) CreateEntryIdempotent(ctx context.Context, entry *models.TokenLedgerEntry) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementBalance upserts the materialized balance row. The caller must run
// this in the same transaction as the matching ledger insert.
func (r *repositoryImpl) IncrementBalance(ctx context.Context, userID uuid.UUID, amount int64, symbol string) error {
	balance := models.TokenBalance{
		UserID:  userID,
		Balance: amount,
		Symbol:  symbol,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance":    gorm.Expr("token_balances.balance + ?", amount),
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(&balance).Error
}

func (r *repositoryImpl) GetBalance(ctx context.Context, userID uuid.UUID) (*models.TokenBalance, error) {
	var balance models.TokenBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&balance).Error
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repositoryImpl) ListEntries(ctx context.Context, params listEntriesParams) ([]models.TokenLedgerEntry, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.TokenLedgerEntry{}).Where("user_id = ?", params.UserID)
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var entries []models.TokenLedgerEntry
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	if len(entries) > normalized {
		next := entries[normalized]
		entries = entries[:normalized]
		return entries, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return entries, nil, nil
}
