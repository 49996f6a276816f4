package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/h2hthailand/h2h-backend/pkg/db/models"
	"github.com/h2hthailand/h2h-backend/pkg/enums"
	pkgerrors "github.com/h2hthailand/h2h-backend/pkg/errors"
	"github.com/h2hthailand/h2h-backend/pkg/paypal"
)

// PaymentProvider creates remote checkout sessions.
type PaymentProvider interface {
	CreateOrder(ctx context.Context, input paypal.CreateOrderInput) (*paypal.RemoteOrder, error)
}

// PaymentInput identifies the order a buyer wants to pay online.
type PaymentInput struct {
	ActorID   uuid.UUID
	ActorRole enums.UserRole
	OrderID   uuid.UUID
}

// PaymentSession is returned to the client for provider redirect.
type PaymentSession struct {
	OrderID         uuid.UUID `json:"orderId"`
	ProviderOrderID string    `json:"providerOrderId"`
	ApprovalURL     string    `json:"approvalUrl"`
}

// CreatePayment opens a provider checkout session for an unpaid order and
// records the provider order id so the webhook can reconcile later.
func (s *service) CreatePayment(ctx context.Context, input PaymentInput) (*PaymentSession, error) {
	if s.provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment provider not configured")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.GetByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	actor := actorFor(order, input.ActorID, input.ActorRole)
	if actor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")
	}
	if actor == ActorSeller {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can pay")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
	}

	remote, err := s.provider.CreateOrder(ctx, paypal.CreateOrderInput{
		Amount:      order.Amount,
		Description: fmt.Sprintf("%s (%s)", order.ItemTitle, order.OrderNumber),
		Reference:   order.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	var updated *models.Order
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.GetByIDForUpdate(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if locked.PaymentStatus == enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
		}

		providerID := remote.ID
		locked.ProviderOrderID = &providerID
		if meta, marshalErr := json.Marshal(remote); marshalErr == nil {
			locked.ProviderMeta = meta
		}
		if err := repo.Update(ctx, locked); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store provider order id")
		}
		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &PaymentSession{
		OrderID:         updated.ID,
		ProviderOrderID: remote.ID,
		ApprovalURL:     remote.ApprovalURL,
	}, nil
}
