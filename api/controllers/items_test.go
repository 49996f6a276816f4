package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/h2hthailand/h2h-backend/internal/items"
	"github.com/h2hthailand/h2h-backend/pkg/db/models"
	"github.com/h2hthailand/h2h-backend/pkg/enums"
)

type testItemsService struct {
	createFn func(ctx context.Context, input items.CreateInput) (*models.Item, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*models.Item, error)
	listFn   func(ctx context.Context, params items.ListParams) (*items.ListResult, error)
	updateFn func(ctx context.Context, input items.UpdateInput) (*models.Item, error)
	deleteFn func(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, id uuid.UUID) error
}

func (s *testItemsService) Create(ctx context.Context, input items.CreateInput) (*models.Item, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &models.Item{}, nil
}

func (s *testItemsService) Get(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return &models.Item{}, nil
}

func (s *testItemsService) List(ctx context.Context, params items.ListParams) (*items.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &items.ListResult{}, nil
}

func (s *testItemsService) Update(ctx context.Context, input items.UpdateInput) (*models.Item, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, input)
	}
	return &models.Item{}, nil
}

func (s *testItemsService) Delete(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, id uuid.UUID) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, actorID, actorRole, id)
	}
	return nil
}

func TestItemCreateCreated(t *testing.T) {
	sellerID := uuid.New()
	svc := &testItemsService{
		createFn: func(ctx context.Context, input items.CreateInput) (*models.Item, error) {
			if input.SellerID != sellerID {
				t.Fatalf("unexpected seller %s", input.SellerID)
			}
			if input.Condition != enums.ItemConditionGood {
				t.Fatalf("unexpected condition %s", input.Condition)
			}
			if !input.Price.Equal(decimal.NewFromInt(1500)) {
				t.Fatalf("unexpected price %s", input.Price)
			}
			return &models.Item{ID: uuid.New(), SellerID: sellerID}, nil
		},
	}

	body := `{"title":"Used phone","price":1500,"category":"electronics","condition":"good"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader(body))
	req = withActor(req, sellerID, enums.UserRoleUser)
	resp := httptest.NewRecorder()

	ItemCreate(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestItemCreateRejectsUnknownCondition(t *testing.T) {
	body := `{"title":"Used phone","price":1500,"category":"electronics","condition":"slightly_haunted"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader(body))
	req = withActor(req, uuid.New(), enums.UserRoleUser)
	resp := httptest.NewRecorder()

	ItemCreate(&testItemsService{}, testLogger(t))(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestItemCreateRequiresAuth(t *testing.T) {
	body := `{"title":"Used phone","price":1500,"category":"electronics","condition":"good"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader(body))
	resp := httptest.NewRecorder()

	ItemCreate(&testItemsService{}, testLogger(t))(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestItemListPassesFilters(t *testing.T) {
	sellerID := uuid.New()
	svc := &testItemsService{
		listFn: func(ctx context.Context, params items.ListParams) (*items.ListResult, error) {
			if params.SellerID != sellerID {
				t.Fatalf("unexpected seller filter %s", params.SellerID)
			}
			if params.Limit != 10 {
				t.Fatalf("unexpected limit %d", params.Limit)
			}
			if len(params.Statuses) != 1 || params.Statuses[0] != enums.ItemStatusSold {
				t.Fatalf("unexpected statuses %v", params.Statuses)
			}
			return &items.ListResult{Items: []models.Item{{ID: uuid.New()}}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items?sellerId="+sellerID.String()+"&limit=10&status=sold", nil)
	resp := httptest.NewRecorder()

	ItemList(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data items.ListResult `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(envelope.Data.Items))
	}
}

func TestItemListRejectsBadLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items?limit=nope", nil)
	resp := httptest.NewRecorder()

	ItemList(&testItemsService{}, testLogger(t))(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestItemGetInvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/not-a-uuid", nil)
	req = addRouteParam(req, "itemId", "not-a-uuid")
	resp := httptest.NewRecorder()

	ItemGet(&testItemsService{}, testLogger(t))(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestItemDeleteForwardsActor(t *testing.T) {
	actorID := uuid.New()
	itemID := uuid.New()
	called := false
	svc := &testItemsService{
		deleteFn: func(ctx context.Context, aid uuid.UUID, role enums.UserRole, id uuid.UUID) error {
			called = true
			if aid != actorID || role != enums.UserRoleAdmin || id != itemID {
				t.Fatalf("unexpected delete args %s %s %s", aid, role, id)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/items/"+itemID.String(), nil)
	req = withActor(req, actorID, enums.UserRoleAdmin)
	req = addRouteParam(req, "itemId", itemID.String())
	resp := httptest.NewRecorder()

	ItemDelete(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !called {
		t.Fatal("expected service called")
	}
}
