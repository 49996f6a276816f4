package items

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/h2hthailand/h2h-backend/pkg/db/models"
	"github.com/h2hthailand/h2h-backend/pkg/enums"
	pkgerrors "github.com/h2hthailand/h2h-backend/pkg/errors"
	paginationpkg "github.com/h2hthailand/h2h-backend/pkg/pagination"
)

type fakeRepository struct {
	createFn     func(ctx context.Context, item *models.Item) error
	getByIDFn    func(ctx context.Context, id uuid.UUID) (*models.Item, error)
	listFn       func(ctx context.Context, params ListQuery) ([]models.Item, *paginationpkg.Cursor, error)
	updateFn     func(ctx context.Context, item *models.Item) error
	softDeleteFn func(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, item *models.Item) error {
	if f.createFn != nil {
		return f.createFn(ctx, item)
	}
	return nil
}

func (f *fakeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeRepository) List(ctx context.Context, params ListQuery) ([]models.Item, *paginationpkg.Cursor, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil, nil
}

func (f *fakeRepository) Update(ctx context.Context, item *models.Item) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, item)
	}
	return nil
}

func (f *fakeRepository) SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	if f.softDeleteFn != nil {
		return f.softDeleteFn(ctx, id, now)
	}
	return false, nil
}

func (f *fakeRepository) DecrementQuantity(ctx context.Context, id uuid.UUID) (bool, error) {
	return true, nil
}

func (f *fakeRepository) RestoreQuantity(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeRepository) MarkSoldIfDepleted(ctx context.Context, id uuid.UUID) error { return nil }

func newServiceWithRepo(repo Repository) Service {
	svc, _ := NewService(repo)
	return svc
}

func TestService_CreateDefaultsDraft(t *testing.T) {
	var created *models.Item
	repo := &fakeRepository{
		createFn: func(ctx context.Context, item *models.Item) error {
			created = item
			return nil
		},
	}
	svc := newServiceWithRepo(repo)

	item, err := svc.Create(context.Background(), CreateInput{
		SellerID:  uuid.New(),
		Title:     "  Used bicycle  ",
		Price:     decimal.NewFromInt(1500),
		Category:  "sports",
		Condition: enums.ItemConditionGood,
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if created == nil {
		t.Fatal("expected repo create call")
	}
	if item.Status != enums.ItemStatusDraft {
		t.Fatalf("expected draft status, got %s", item.Status)
	}
	if item.Title != "Used bicycle" {
		t.Fatalf("expected trimmed title, got %q", item.Title)
	}
	if item.Quantity != 1 {
		t.Fatalf("expected default quantity 1, got %d", item.Quantity)
	}
}

func TestService_CreateRejectsNonPositivePrice(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{})
	_, err := svc.Create(context.Background(), CreateInput{
		SellerID:  uuid.New(),
		Title:     "Free stuff",
		Price:     decimal.Zero,
		Category:  "misc",
		Condition: enums.ItemConditionFair,
	})
	if err == nil {
		t.Fatal("expected error for zero price")
	}
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %s", code)
	}
}

func TestService_ListDefaultsToActiveForPublicBrowse(t *testing.T) {
	repo := &fakeRepository{
		listFn: func(ctx context.Context, params ListQuery) ([]models.Item, *paginationpkg.Cursor, error) {
			if len(params.Statuses) != 1 || params.Statuses[0] != enums.ItemStatusActive {
				t.Fatalf("expected active-only filter, got %v", params.Statuses)
			}
			return nil, nil, nil
		},
	}
	svc := newServiceWithRepo(repo)
	if _, err := svc.List(context.Background(), ListParams{}); err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
}

func TestService_ListKeepsSellerFilterUnscoped(t *testing.T) {
	sellerID := uuid.New()
	repo := &fakeRepository{
		listFn: func(ctx context.Context, params ListQuery) ([]models.Item, *paginationpkg.Cursor, error) {
			if len(params.Statuses) != 0 {
				t.Fatalf("expected no status filter for own listings, got %v", params.Statuses)
			}
			if params.SellerID != sellerID {
				t.Fatalf("expected seller filter %s, got %s", sellerID, params.SellerID)
			}
			return nil, nil, nil
		},
	}
	svc := newServiceWithRepo(repo)
	if _, err := svc.List(context.Background(), ListParams{SellerID: sellerID}); err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
}

func TestService_ListEncodesNextCursor(t *testing.T) {
	next := paginationpkg.Cursor{CreatedAt: time.Now().UTC(), ID: uuid.New()}
	repo := &fakeRepository{
		listFn: func(ctx context.Context, params ListQuery) ([]models.Item, *paginationpkg.Cursor, error) {
			return []models.Item{{ID: uuid.New()}}, &next, nil
		},
	}
	svc := newServiceWithRepo(repo)
	result, err := svc.List(context.Background(), ListParams{Limit: 1})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	decoded, err := paginationpkg.ParseCursor(result.Cursor)
	if err != nil {
		t.Fatalf("invalid cursor: %v", err)
	}
	if decoded.ID != next.ID {
		t.Fatalf("expected cursor id %s, got %s", next.ID, decoded.ID)
	}
}

func TestService_UpdateRejectsNonOwner(t *testing.T) {
	owner := uuid.New()
	repo := &fakeRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Item, error) {
			return &models.Item{ID: id, SellerID: owner, Status: enums.ItemStatusActive}, nil
		},
	}
	svc := newServiceWithRepo(repo)

	_, err := svc.Update(context.Background(), UpdateInput{
		ActorID:   uuid.New(),
		ActorRole: enums.UserRoleUser,
		ItemID:    uuid.New(),
	})
	if err == nil {
		t.Fatal("expected forbidden error")
	}
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %s", code)
	}
}

func TestService_UpdateAllowsAdmin(t *testing.T) {
	repo := &fakeRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Item, error) {
			return &models.Item{ID: id, SellerID: uuid.New(), Status: enums.ItemStatusActive}, nil
		},
	}
	svc := newServiceWithRepo(repo)

	title := "Admin edit"
	item, err := svc.Update(context.Background(), UpdateInput{
		ActorID:   uuid.New(),
		ActorRole: enums.UserRoleAdmin,
		ItemID:    uuid.New(),
		Title:     &title,
	})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if item.Title != title {
		t.Fatalf("expected title %q, got %q", title, item.Title)
	}
}

func TestService_UpdateRejectsSoldListing(t *testing.T) {
	owner := uuid.New()
	repo := &fakeRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Item, error) {
			return &models.Item{ID: id, SellerID: owner, Status: enums.ItemStatusSold}, nil
		},
	}
	svc := newServiceWithRepo(repo)

	title := "New title"
	_, err := svc.Update(context.Background(), UpdateInput{
		ActorID:   owner,
		ActorRole: enums.UserRoleUser,
		ItemID:    uuid.New(),
		Title:     &title,
	})
	if err == nil {
		t.Fatal("expected state conflict")
	}
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %s", code)
	}
}

func TestService_DeleteSoftDeletesOwnListing(t *testing.T) {
	owner := uuid.New()
	itemID := uuid.New()
	deleted := false
	repo := &fakeRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Item, error) {
			return &models.Item{ID: id, SellerID: owner, Status: enums.ItemStatusActive}, nil
		},
		softDeleteFn: func(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
			deleted = true
			return true, nil
		},
	}
	svc := newServiceWithRepo(repo)

	if err := svc.Delete(context.Background(), owner, enums.UserRoleUser, itemID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if !deleted {
		t.Fatal("expected soft delete call")
	}
}

func TestService_GetNotFound(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{})
	_, err := svc.Get(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected not found error")
	}
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %s", code)
	}
}
