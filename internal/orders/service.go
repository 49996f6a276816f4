package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/h2hthailand/h2h-backend/internal/items"
	"github.com/h2hthailand/h2h-backend/internal/notifications"
	"github.com/h2hthailand/h2h-backend/internal/tokens"
	"github.com/h2hthailand/h2h-backend/pkg/db/models"
	"github.com/h2hthailand/h2h-backend/pkg/enums"
	pkgerrors "github.com/h2hthailand/h2h-backend/pkg/errors"
	"github.com/h2hthailand/h2h-backend/pkg/logger"
	"github.com/h2hthailand/h2h-backend/pkg/pagination"
)

// Service defines order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, actorID uuid.UUID, role enums.UserRole, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	AttachSlip(ctx context.Context, input SlipInput) (*models.Order, error)
	MarkPaidByProvider(ctx context.Context, providerOrderID string, providerMeta []byte) (*MarkPaidResult, error)
	CreatePayment(ctx context.Context, input PaymentInput) (*PaymentSession, error)
}

// TxRunner abstracts the transactional database entry point.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier records best-effort user notifications.
type Notifier interface {
	Notify(ctx context.Context, input notifications.NotifyInput) error
}

// Rewarder credits buyer token rewards inside the caller's transaction.
type Rewarder interface {
	IssueOrderReward(ctx context.Context, tx *gorm.DB, order *models.Order) (*tokens.RewardResult, error)
}

type service struct {
	db       TxRunner
	repo     Repository
	items    items.Repository
	notifier Notifier
	rewarder Rewarder
	provider PaymentProvider
	logger   *logger.Logger
}

// CreateInput carries the fields a buyer submits when placing an order.
type CreateInput struct {
	BuyerID uuid.UUID
	ItemID  uuid.UUID
	// Amount overrides the item price when the parties negotiated one.
	Amount *decimal.Decimal
}

// UpdateStatusInput carries a status and/or payment status change request.
type UpdateStatusInput struct {
	ActorID       uuid.UUID
	ActorRole     enums.UserRole
	OrderID       uuid.UUID
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
}

// SlipInput attaches, replaces, or clears (nil URL) a payment slip.
type SlipInput struct {
	ActorID   uuid.UUID
	ActorRole enums.UserRole
	OrderID   uuid.UUID
	SlipURL   *string
}

// ListParams configures filtering and pagination for order history.
type ListParams struct {
	ActorID   uuid.UUID
	ActorRole enums.UserRole
	// View selects "buyer" (default) or "seller" history. Admins may pass
	// "all" to drop the actor scoping.
	View          string
	Status        enums.OrderStatus
	PaymentStatus enums.PaymentStatus
	Limit         int
	Cursor        string
}

// ListResult wraps returned orders and the cursor for the next page.
type ListResult struct {
	Orders []models.Order `json:"orders"`
	Cursor string         `json:"cursor"`
}

// MarkPaidResult reports a provider-driven payment reconciliation.
type MarkPaidResult struct {
	Order       *models.Order
	AlreadyPaid bool
	Reward      *tokens.RewardResult
}

// NewService wires order dependencies.
func NewService(
	runner TxRunner,
	repo Repository,
	itemsRepo items.Repository,
	notifier Notifier,
	rewarder Rewarder,
	provider PaymentProvider,
	logg *logger.Logger,
) (Service, error) {
	if runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if itemsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "items repository required")
	}
	if rewarder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "rewarder required")
	}
	return &service{
		db:       runner,
		repo:     repo,
		items:    itemsRepo,
		notifier: notifier,
		rewarder: rewarder,
		provider: provider,
		logger:   logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.Amount != nil && !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	var order *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		itemsRepo := s.items.WithTx(tx)
		item, err := itemsRepo.GetByIDForUpdate(ctx, input.ItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
		}
		if item.SellerID == input.BuyerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot order your own listing")
		}
		if item.Status != enums.ItemStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "item is not available").
				WithDetails(map[string]any{"status": item.Status})
		}

		taken, err := itemsRepo.DecrementQuantity(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve item stock")
		}
		if !taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "item is out of stock")
		}

		amount := item.Price
		if input.Amount != nil {
			amount = *input.Amount
		}

		number, err := GenerateOrderNumber(time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}

		order = &models.Order{
			OrderNumber:   number,
			ItemID:        item.ID,
			BuyerID:       input.BuyerID,
			SellerID:      item.SellerID,
			ItemTitle:     item.Title,
			ItemPrice:     item.Price,
			ItemImages:    item.Images,
			Amount:        amount,
			Status:        enums.OrderStatusPending,
			PaymentStatus: enums.PaymentStatusUnpaid,
		}
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notifications.NotifyInput{
		UserID:  order.BuyerID,
		Type:    enums.NotificationTypeOrderPlaced,
		Title:   "Order placed",
		Message: fmt.Sprintf("Your order %s for %q is pending.", order.OrderNumber, order.ItemTitle),
	})
	s.notify(ctx, notifications.NotifyInput{
		UserID:  order.SellerID,
		Type:    enums.NotificationTypeOrderReceived,
		Title:   "New order",
		Message: fmt.Sprintf("You received order %s for %q.", order.OrderNumber, order.ItemTitle),
	})

	return order, nil
}

func (s *service) Get(ctx context.Context, actorID uuid.UUID, role enums.UserRole, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if actorFor(order, actorID, role) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if params.Status != "" && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if params.PaymentStatus != "" && !params.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status filter")
	}

	query := listOrdersParams{
		Status:        params.Status,
		PaymentStatus: params.PaymentStatus,
		Limit:         params.Limit,
	}
	switch params.View {
	case "seller":
		query.SellerID = params.ActorID
	case "all":
		if params.ActorRole != enums.UserRoleAdmin {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin view requires admin role")
		}
	default:
		query.BuyerID = params.ActorID
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Orders: rows, Cursor: cursor}, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Status == nil && input.PaymentStatus == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status or payment status required")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}
	if input.PaymentStatus != nil && !input.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}

	var updated *models.Order
	var reward *tokens.RewardResult
	var becamePaid bool

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.GetByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		actor := actorFor(order, input.ActorID, input.ActorRole)
		if actor == "" {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")
		}
		if order.Locked() && actor != ActorAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order is locked")
		}

		now := time.Now().UTC()

		if input.Status != nil {
			from := order.Status
			to := *input.Status
			if !CanTransition(actor, from, to) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
					WithDetails(map[string]any{"from": from, "to": to, "actor": actor})
			}
			order.Status = to
			switch to {
			case enums.OrderStatusCompleted:
				order.CompletedAt = &now
				if err := s.items.WithTx(tx).MarkSoldIfDepleted(ctx, order.ItemID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark item sold")
				}
			case enums.OrderStatusCancelled:
				if err := s.items.WithTx(tx).RestoreQuantity(ctx, order.ItemID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore item stock")
				}
			}
		}

		if input.PaymentStatus != nil {
			if actor == ActorBuyer {
				return pkgerrors.New(pkgerrors.CodeForbidden, "buyers cannot set payment status")
			}
			to := *input.PaymentStatus
			if to == enums.PaymentStatusPaid && order.PaymentStatus != enums.PaymentStatusPaid {
				order.PaymentStatus = to
				order.PaidAt = &now
				becamePaid = true
				result, err := s.rewarder.IssueOrderReward(ctx, tx, order)
				if err != nil {
					return err
				}
				reward = result
			} else {
				order.PaymentStatus = to
			}
		}

		if err := repo.Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyStatusChange(ctx, updated, input, becamePaid, reward)
	return updated, nil
}

func (s *service) AttachSlip(ctx context.Context, input SlipInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var updated *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.GetByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		actor := actorFor(order, input.ActorID, input.ActorRole)
		if actor == "" {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")
		}
		if order.Locked() && actor != ActorAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order is locked")
		}

		order.SlipURL = input.SlipURL
		if err := repo.Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order slip")
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if input.SlipURL != nil {
		counterpart := updated.SellerID
		if input.ActorID == updated.SellerID {
			counterpart = updated.BuyerID
		}
		s.notify(ctx, notifications.NotifyInput{
			UserID:  counterpart,
			Type:    enums.NotificationTypeOrderUpdated,
			Title:   "Payment slip uploaded",
			Message: fmt.Sprintf("Order %s has a new payment slip.", updated.OrderNumber),
		})
	}
	return updated, nil
}

// MarkPaidByProvider reconciles a provider payment event with the local
// order. Reward issuance rides the same transaction; a replayed event finds
// the order already paid and does nothing.
func (s *service) MarkPaidByProvider(ctx context.Context, providerOrderID string, providerMeta []byte) (*MarkPaidResult, error) {
	if providerOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider order id required")
	}

	result := &MarkPaidResult{}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.GetByProviderOrderID(ctx, providerOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found for provider id")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by provider id")
		}

		order, err = repo.GetByIDForUpdate(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}

		if order.PaymentStatus == enums.PaymentStatusPaid {
			result.Order = order
			result.AlreadyPaid = true
			return nil
		}

		now := time.Now().UTC()
		order.PaymentStatus = enums.PaymentStatusPaid
		order.PaidAt = &now
		if len(providerMeta) > 0 {
			order.ProviderMeta = providerMeta
		}

		reward, err := s.rewarder.IssueOrderReward(ctx, tx, order)
		if err != nil {
			return err
		}
		result.Reward = reward

		if err := repo.Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment")
		}
		result.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyPaid {
		s.notifyPaid(ctx, result.Order, result.Reward)
	}
	return result, nil
}

func (s *service) notifyStatusChange(ctx context.Context, order *models.Order, input UpdateStatusInput, becamePaid bool, reward *tokens.RewardResult) {
	if order == nil {
		return
	}
	if input.Status != nil {
		counterpart := order.SellerID
		if input.ActorID == order.SellerID {
			counterpart = order.BuyerID
		}
		s.notify(ctx, notifications.NotifyInput{
			UserID:  counterpart,
			Type:    enums.NotificationTypeOrderUpdated,
			Title:   "Order updated",
			Message: fmt.Sprintf("Order %s is now %s.", order.OrderNumber, order.Status),
		})
	}
	if becamePaid {
		s.notifyPaid(ctx, order, reward)
	}
}

func (s *service) notifyPaid(ctx context.Context, order *models.Order, reward *tokens.RewardResult) {
	s.notify(ctx, notifications.NotifyInput{
		UserID:  order.SellerID,
		Type:    enums.NotificationTypePaymentPaid,
		Title:   "Payment received",
		Message: fmt.Sprintf("Order %s has been paid.", order.OrderNumber),
	})
	s.notify(ctx, notifications.NotifyInput{
		UserID:  order.BuyerID,
		Type:    enums.NotificationTypePaymentPaid,
		Title:   "Payment confirmed",
		Message: fmt.Sprintf("Your payment for order %s was confirmed.", order.OrderNumber),
	})
	if reward != nil && reward.Issued {
		s.notify(ctx, notifications.NotifyInput{
			UserID:  order.BuyerID,
			Type:    enums.NotificationTypeTokenReward,
			Title:   "Tokens earned",
			Message: fmt.Sprintf("You earned %d tokens for order %s.", reward.Tokens, order.OrderNumber),
		})
	}
}

// notify is best-effort: a notification failure never fails the request.
func (s *service) notify(ctx context.Context, input notifications.NotifyInput) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, input); err != nil && s.logger != nil {
		s.logger.Warn(s.logger.WithField(ctx, "notification_type", input.Type), "notification delivery failed")
	}
}

func actorFor(order *models.Order, actorID uuid.UUID, role enums.UserRole) Actor {
	if role == enums.UserRoleAdmin {
		return ActorAdmin
	}
	switch actorID {
	case order.BuyerID:
		return ActorBuyer
	case order.SellerID:
		return ActorSeller
	default:
		return ""
	}
}
