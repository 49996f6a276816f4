package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/h2hthailand/h2h-backend/api/responses"
	"github.com/h2hthailand/h2h-backend/api/validators"
	"github.com/h2hthailand/h2h-backend/internal/tokens"
	pkgerrors "github.com/h2hthailand/h2h-backend/pkg/errors"
	"github.com/h2hthailand/h2h-backend/pkg/logger"
	"github.com/h2hthailand/h2h-backend/pkg/pagination"
)

type tokenAdjustRequest struct {
	UserID         uuid.UUID `json:"userId" validate:"required"`
	Amount         int64     `json:"amount" validate:"required"`
	Reason         string    `json:"reason" validate:"required,min=1,max=500"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty" validate:"omitempty,max=200"`
}

// TokenBalance returns the caller's token balance.
func TokenBalance(svc tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tokens service unavailable"))
			return
		}

		actorID, _, err := actor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

// TokenLedger returns the caller's paginated ledger history.
func TokenLedger(svc tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tokens service unavailable"))
			return
		}

		actorID, _, err := actor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := tokens.LedgerParams{
			UserID: actorID,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit

		resp, err := svc.ListLedger(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// TokenAdjust lets an admin correct a user's balance with an audited entry.
func TokenAdjust(svc tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tokens service unavailable"))
			return
		}

		var req tokenAdjustRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Adjust(r.Context(), tokens.AdjustInput{
			UserID:         req.UserID,
			Amount:         req.Amount,
			Reason:         req.Reason,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}
