package orders

import (
	"github.com/h2hthailand/h2h-backend/pkg/enums"
)

// Actor is the caller's relationship to a specific order, not their account
// role. An admin account is always ActorAdmin; everyone else is classified by
// whether they are the order's buyer or seller.
type Actor string

const (
	ActorBuyer  Actor = "buyer"
	ActorSeller Actor = "seller"
	ActorAdmin  Actor = "admin"
)

type transitionKey struct {
	actor Actor
	from  enums.OrderStatus
	to    enums.OrderStatus
}

// allowedTransitions is the single authority on order status moves. Admins
// bypass the table entirely in CanTransition.
var allowedTransitions = map[transitionKey]struct{}{
	{ActorBuyer, enums.OrderStatusPending, enums.OrderStatusCancelled}:    {},
	{ActorSeller, enums.OrderStatusPending, enums.OrderStatusConfirmed}:   {},
	{ActorSeller, enums.OrderStatusConfirmed, enums.OrderStatusCompleted}: {},
}

// CanTransition reports whether actor may move an order from one status to
// another.
func CanTransition(actor Actor, from, to enums.OrderStatus) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	if from == to {
		return false
	}
	if actor == ActorAdmin {
		return true
	}
	_, ok := allowedTransitions[transitionKey{actor: actor, from: from, to: to}]
	return ok
}
