package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/h2hthailand/h2h-backend/pkg/config"
	"github.com/h2hthailand/h2h-backend/pkg/db"
	"github.com/h2hthailand/h2h-backend/pkg/db/models"
	"github.com/h2hthailand/h2h-backend/pkg/enums"
	pkgerrors "github.com/h2hthailand/h2h-backend/pkg/errors"
	"github.com/h2hthailand/h2h-backend/pkg/metrics"
	"github.com/h2hthailand/h2h-backend/pkg/pagination"
)

const rewardIdempotencyConstraint = "idx_token_ledger_idempotency_key"

// Service defines reward issuance and balance read operations.
type Service interface {
	IssueOrderReward(ctx context.Context, tx *gorm.DB, order *models.Order) (*RewardResult, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.TokenLedgerEntry, error)
	Balance(ctx context.Context, userID uuid.UUID) (*BalanceResult, error)
	ListLedger(ctx context.Context, params LedgerParams) (*LedgerResult, error)
}

type service struct {
	repo    Repository
	cfg     config.TokenRewardConfig
	metrics *metrics.PaymentMetrics
}

// RewardResult reports what reward issuance did. Issued is false when the
// reward for this order was already recorded.
type RewardResult struct {
	Issued bool
	Tokens int64
	Entry  *models.TokenLedgerEntry
}

// AdjustInput captures an admin-initiated balance correction.
type AdjustInput struct {
	UserID         uuid.UUID
	Amount         int64
	Reason         string
	IdempotencyKey string
}

// BalanceResult is the user-facing balance view. Users without ledger
// activity get a zero balance, not an error.
type BalanceResult struct {
	UserID  uuid.UUID `json:"userId"`
	Balance int64     `json:"balance"`
	Symbol  string    `json:"symbol"`
}

// LedgerParams configures pagination for ledger history.
type LedgerParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

// LedgerResult wraps returned entries and the cursor for the next page.
type LedgerResult struct {
	Entries []models.TokenLedgerEntry `json:"entries"`
	Cursor  string                    `json:"cursor"`
}

// NewService wires token ledger dependencies.
func NewService(repo Repository, cfg config.TokenRewardConfig, paymentMetrics *metrics.PaymentMetrics) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tokens repository required")
	}
	if cfg.Rate < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reward rate cannot be negative")
	}
	return &service{repo: repo, cfg: cfg, metrics: paymentMetrics}, nil
}

// RewardIdempotencyKey builds the canonical per-order reward key.
func RewardIdempotencyKey(orderID uuid.UUID) string {
	return fmt.Sprintf("reward:order:%s", orderID)
}

// ComputeReward applies the configured rate with a floor and minimum.
func ComputeReward(amount decimal.Decimal, cfg config.TokenRewardConfig) int64 {
	tokens := amount.Mul(decimal.NewFromFloat(cfg.Rate)).Floor().IntPart()
	if tokens < cfg.Min {
		return cfg.Min
	}
	return tokens
}

// IssueOrderReward credits the buyer for a paid order. The ledger insert is
// an on-conflict no-op on the idempotency key, so a retried webhook or a
// re-paid order skips the credit without erroring, and the caller's
// transaction stays usable for the statements that follow. Callers hand in
// the surrounding transaction so the ledger insert and balance bump commit
// atomically with the order update.
func (s *service) IssueOrderReward(ctx context.Context, tx *gorm.DB, order *models.Order) (*RewardResult, error) {
	if order == nil || order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order buyer required")
	}

	tokens := ComputeReward(order.Amount, s.cfg)
	orderID := order.ID
	entry := &models.TokenLedgerEntry{
		UserID:         order.BuyerID,
		OrderID:        &orderID,
		Amount:         tokens,
		Symbol:         s.cfg.Symbol,
		Type:           enums.LedgerEntryTypeReward,
		Reason:         fmt.Sprintf("order %s paid", order.OrderNumber),
		IdempotencyKey: RewardIdempotencyKey(order.ID),
	}

	repo := s.repo.WithTx(tx)
	inserted, err := repo.CreateEntryIdempotent(ctx, entry)
	if err != nil {
		s.metrics.IncReward("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reward entry")
	}
	if !inserted {
		s.metrics.IncReward("skipped")
		return &RewardResult{Issued: false, Tokens: 0}, nil
	}

	if err := repo.IncrementBalance(ctx, order.BuyerID, tokens, s.cfg.Symbol); err != nil {
		s.metrics.IncReward("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update token balance")
	}

	s.metrics.IncReward("issued")
	s.metrics.AddRewardTokens(tokens)
	return &RewardResult{Issued: true, Tokens: tokens, Entry: entry}, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.TokenLedgerEntry, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Amount == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be zero")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		key = fmt.Sprintf("adjustment:%s", uuid.New())
	}

	entry := &models.TokenLedgerEntry{
		UserID:         input.UserID,
		Amount:         input.Amount,
		Symbol:         s.cfg.Symbol,
		Type:           enums.LedgerEntryTypeAdjustment,
		Reason:         reason,
		IdempotencyKey: key,
	}

	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, rewardIdempotencyConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "adjustment already recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record adjustment")
	}
	if err := s.repo.IncrementBalance(ctx, input.UserID, input.Amount, s.cfg.Symbol); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update token balance")
	}
	return entry, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*BalanceResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &BalanceResult{UserID: userID, Balance: 0, Symbol: s.cfg.Symbol}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load token balance")
	}
	return &BalanceResult{UserID: balance.UserID, Balance: balance.Balance, Symbol: balance.Symbol}, nil
}

func (s *service) ListLedger(ctx context.Context, params LedgerParams) (*LedgerResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := listEntriesParams{
		UserID: params.UserID,
		Limit:  params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListEntries(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &LedgerResult{Entries: rows, Cursor: cursor}, nil
}
