package items

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/h2hthailand/h2h-backend/pkg/db/models"
	"github.com/h2hthailand/h2h-backend/pkg/enums"
	pkgerrors "github.com/h2hthailand/h2h-backend/pkg/errors"
	"github.com/h2hthailand/h2h-backend/pkg/pagination"
)

const maxImages = 10

// Service defines listing lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Item, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Item, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, input UpdateInput) (*models.Item, error)
	Delete(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, id uuid.UUID) error
}

type service struct {
	repo Repository
}

// CreateInput carries the fields a seller submits for a new listing.
type CreateInput struct {
	SellerID    uuid.UUID
	Title       string
	Description *string
	Price       decimal.Decimal
	Quantity    int
	Images      []string
	Category    string
	Condition   enums.ItemCondition
	Status      enums.ItemStatus
}

// UpdateInput carries a partial listing edit. Nil fields are left untouched.
type UpdateInput struct {
	ActorID     uuid.UUID
	ActorRole   enums.UserRole
	ItemID      uuid.UUID
	Title       *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	Images      []string
	Category    *string
	Condition   *enums.ItemCondition
	Status      *enums.ItemStatus
}

// ListParams configures filtering and pagination for listings.
type ListParams struct {
	SellerID uuid.UUID
	Statuses []enums.ItemStatus
	Category string
	Search   string
	Limit    int
	Cursor   string
}

// ListResult wraps returned listings and the cursor for the next page.
type ListResult struct {
	Items  []models.Item `json:"items"`
	Cursor string        `json:"cursor"`
}

// NewService wires items dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "items repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Item, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if input.Price.IsNegative() || input.Price.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.Quantity <= 0 {
		input.Quantity = 1
	}
	if len(input.Images) > maxImages {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many images").
			WithDetails(map[string]any{"max": maxImages})
	}
	if !input.Condition.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid condition")
	}
	status := input.Status
	if status == "" {
		status = enums.ItemStatusDraft
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}
	if strings.TrimSpace(input.Category) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category required")
	}

	item := &models.Item{
		SellerID:    input.SellerID,
		Title:       title,
		Description: input.Description,
		Price:       input.Price,
		Quantity:    input.Quantity,
		Images:      pq.StringArray(input.Images),
		Category:    strings.TrimSpace(input.Category),
		Condition:   input.Condition,
		Status:      status,
	}
	if item.Images == nil {
		item.Images = pq.StringArray{}
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
	}
	return item, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	return item, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	for _, status := range params.Statuses {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
		}
	}

	query := ListQuery{
		SellerID: params.SellerID,
		Statuses: params.Statuses,
		Category: strings.TrimSpace(params.Category),
		Search:   strings.TrimSpace(params.Search),
		Limit:    params.Limit,
	}
	// Public browsing without an explicit filter only surfaces active listings.
	if len(query.Statuses) == 0 && params.SellerID == uuid.Nil {
		query.Statuses = []enums.ItemStatus{enums.ItemStatusActive}
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.Item, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	item, err := s.repo.GetByID(ctx, input.ItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}

	if !canManage(input.ActorID, input.ActorRole, item) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not the listing owner")
	}
	if item.Status == enums.ItemStatusSold && input.ActorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sold listings cannot be edited")
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
		}
		item.Title = title
	}
	if input.Description != nil {
		item.Description = input.Description
	}
	if input.Price != nil {
		if input.Price.IsNegative() || input.Price.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		item.Price = *input.Price
	}
	if input.Quantity != nil {
		if *input.Quantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
		}
		item.Quantity = *input.Quantity
	}
	if input.Images != nil {
		if len(input.Images) > maxImages {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many images").
				WithDetails(map[string]any{"max": maxImages})
		}
		item.Images = pq.StringArray(input.Images)
	}
	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if category == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "category required")
		}
		item.Category = category
	}
	if input.Condition != nil {
		if !input.Condition.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid condition")
		}
		item.Condition = *input.Condition
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
		}
		item.Status = *input.Status
	}

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
	}
	return item, nil
}

func (s *service) Delete(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	if !canManage(actorID, actorRole, item) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not the listing owner")
	}

	deleted, err := s.repo.SoftDelete(ctx, id, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete item")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return nil
}

func canManage(actorID uuid.UUID, role enums.UserRole, item *models.Item) bool {
	if role == enums.UserRoleAdmin {
		return true
	}
	return item.SellerID == actorID
}
