package items

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/h2hthailand/h2h-backend/pkg/db/models"
	"github.com/h2hthailand/h2h-backend/pkg/enums"
	"github.com/h2hthailand/h2h-backend/pkg/pagination"
)

// Repository exposes persistence helpers for listings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Item, error)
	List(ctx context.Context, params ListQuery) ([]models.Item, *pagination.Cursor, error)
	Update(ctx context.Context, item *models.Item) error
	SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	DecrementQuantity(ctx context.Context, id uuid.UUID) (bool, error)
	RestoreQuantity(ctx context.Context, id uuid.UUID) error
	MarkSoldIfDepleted(ctx context.Context, id uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an items repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type ListQuery struct {
	SellerID      uuid.UUID
	Statuses      []enums.ItemStatus
	Category      string
	Search        string
	Limit         int
	Cursor        *pagination.Cursor
	IncludeHidden bool
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repositoryImpl) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	err := r.db.WithContext(ctx).
		Clauses(forUpdateClause()).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repositoryImpl) List(ctx context.Context, params ListQuery) ([]models.Item, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Item{}).Where("deleted_at IS NULL")
	if params.SellerID != uuid.Nil {
		query = query.Where("seller_id = ?", params.SellerID)
	}
	if len(params.Statuses) > 0 {
		query = query.Where("status IN ?", params.Statuses)
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		query = query.Where("title ILIKE ?", pattern)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var items []models.Item
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&items).Error; err != nil {
		return nil, nil, err
	}

	if len(items) > normalized {
		next := items[normalized]
		items = items[:normalized]
		return items, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return items, nil, nil
}

func (r *repositoryImpl) Update(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repositoryImpl) SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND deleted_at IS NULL", id).
		UpdateColumn("deleted_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func forUpdateClause() clause.Expression {
	return clause.Locking{Strength: "UPDATE"}
}

// DecrementQuantity atomically reduces stock by one and marks the listing
// reserved when the last unit goes. Returns false when no stock remained.
func (r *repositoryImpl) DecrementQuantity(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND deleted_at IS NULL AND quantity > 0", id).
		Updates(map[string]any{
			"quantity": gorm.Expr("quantity - 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	reserve := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND quantity = 0 AND status = ?", id, enums.ItemStatusActive).
		UpdateColumn("status", enums.ItemStatusReserved)
	if reserve.Error != nil {
		return false, reserve.Error
	}
	return true, nil
}

// RestoreQuantity returns one unit to stock, reactivating a reserved listing.
func (r *repositoryImpl) RestoreQuantity(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{
			"quantity": gorm.Expr("quantity + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND quantity > 0 AND status = ?", id, enums.ItemStatusReserved).
		UpdateColumn("status", enums.ItemStatusActive).Error
}

// MarkSoldIfDepleted flips a listing to sold once its stock is exhausted.
func (r *repositoryImpl) MarkSoldIfDepleted(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND quantity = 0 AND status IN ?", id,
			[]enums.ItemStatus{enums.ItemStatusActive, enums.ItemStatusReserved}).
		UpdateColumn("status", enums.ItemStatusSold).Error
}
