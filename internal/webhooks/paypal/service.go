package paypal

import (
	"context"
	"net/http"
	"time"

	"github.com/h2hthailand/h2h-backend/internal/orders"
	"github.com/h2hthailand/h2h-backend/pkg/config"
	pkgerrors "github.com/h2hthailand/h2h-backend/pkg/errors"
	"github.com/h2hthailand/h2h-backend/pkg/logger"
	"github.com/h2hthailand/h2h-backend/pkg/metrics"
	paypalpkg "github.com/h2hthailand/h2h-backend/pkg/paypal"
)

const (
	eventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	eventOrderApproved    = "CHECKOUT.ORDER.APPROVED"

	replayGuardScope = "paypal:event"
	replayGuardTTL   = 24 * time.Hour
)

// Outcome labels what the webhook handler did with a delivery. Every outcome
// except a signature failure in prod is acked with 200.
type Outcome string

const (
	OutcomeProcessed        Outcome = "processed"
	OutcomeAlreadyPaid      Outcome = "already_paid"
	OutcomeIgnoredEventType Outcome = "ignored_event_type"
	OutcomeUnknownOrder     Outcome = "unknown_order"
	OutcomeDuplicateEvent   Outcome = "duplicate_event"
	OutcomeMalformed        Outcome = "malformed"
)

// Result reports webhook handling back to the controller.
type Result struct {
	Outcome Outcome `json:"outcome"`
	EventID string  `json:"eventId,omitempty"`
}

// Service handles provider webhook deliveries.
type Service interface {
	HandleEvent(ctx context.Context, headers http.Header, rawBody []byte) (*Result, error)
}

// SignatureVerifier checks a webhook delivery against the provider.
type SignatureVerifier interface {
	VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error)
}

// OrderMarker reconciles a provider payment with the local order.
type OrderMarker interface {
	MarkPaidByProvider(ctx context.Context, providerOrderID string, providerMeta []byte) (*orders.MarkPaidResult, error)
}

// ReplayGuard short-circuits redelivered events before they hit the database.
type ReplayGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

type service struct {
	verifier SignatureVerifier
	marker   OrderMarker
	guard    ReplayGuard
	metrics  *metrics.PaymentMetrics
	logger   *logger.Logger
	app      config.AppConfig
}

// NewService wires webhook handling dependencies. The replay guard and
// metrics are optional.
func NewService(
	verifier SignatureVerifier,
	marker OrderMarker,
	guard ReplayGuard,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
	app config.AppConfig,
) (Service, error) {
	if verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "signature verifier required")
	}
	if marker == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order marker required")
	}
	return &service{
		verifier: verifier,
		marker:   marker,
		guard:    guard,
		metrics:  paymentMetrics,
		logger:   logg,
		app:      app,
	}, nil
}

// HandleEvent verifies, deduplicates, and reconciles one webhook delivery.
// Unknown orders, irrelevant event types, and malformed payloads are acked so
// the provider stops retrying them; only a signature failure in prod errors.
func (s *service) HandleEvent(ctx context.Context, headers http.Header, rawBody []byte) (*Result, error) {
	verified, err := s.verifier.VerifyWebhookSignature(ctx, headers, rawBody)
	if err != nil || !verified {
		if s.app.IsProd() {
			s.metrics.IncWebhookEvent("invalid_signature")
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "webhook signature verification failed")
		}
		s.warn(ctx, "webhook signature not verified, processing anyway")
	}

	event, err := paypalpkg.ParseWebhookEvent(rawBody)
	if err != nil {
		s.warn(ctx, "webhook payload undecodable, acking to stop retries")
		s.metrics.IncWebhookEvent("malformed")
		return &Result{Outcome: OutcomeMalformed}, nil
	}

	if event.ID != "" && s.guard != nil {
		key := s.guard.IdempotencyKey(replayGuardScope, event.ID)
		fresh, guardErr := s.guard.SetNX(ctx, key, "1", replayGuardTTL)
		if guardErr != nil {
			// The ledger's unique key still protects against double rewards.
			s.warn(ctx, "webhook replay guard unavailable")
		} else if !fresh {
			s.metrics.IncWebhookEvent("duplicate")
			return &Result{Outcome: OutcomeDuplicateEvent, EventID: event.ID}, nil
		}
	}

	if event.EventType != eventCaptureCompleted && event.EventType != eventOrderApproved {
		s.metrics.IncWebhookEvent("ignored")
		return &Result{Outcome: OutcomeIgnoredEventType, EventID: event.ID}, nil
	}

	resource, err := paypalpkg.ParseWebhookResource(event)
	if err != nil {
		s.warn(ctx, "webhook resource undecodable, acking to stop retries")
		s.metrics.IncWebhookEvent("malformed")
		return &Result{Outcome: OutcomeMalformed, EventID: event.ID}, nil
	}

	providerOrderID := resource.ID
	if event.EventType == eventCaptureCompleted && resource.SupplementaryData.RelatedIDs.OrderID != "" {
		providerOrderID = resource.SupplementaryData.RelatedIDs.OrderID
	}
	if providerOrderID == "" {
		s.metrics.IncWebhookEvent("ignored")
		return &Result{Outcome: OutcomeIgnoredEventType, EventID: event.ID}, nil
	}

	result, err := s.marker.MarkPaidByProvider(ctx, providerOrderID, event.Resource)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			s.metrics.IncWebhookEvent("unknown_order")
			return &Result{Outcome: OutcomeUnknownOrder, EventID: event.ID}, nil
		}
		s.metrics.IncWebhookEvent("error")
		return nil, err
	}

	if result.AlreadyPaid {
		s.metrics.IncWebhookEvent("already_paid")
		return &Result{Outcome: OutcomeAlreadyPaid, EventID: event.ID}, nil
	}

	s.metrics.IncWebhookEvent("processed")
	return &Result{Outcome: OutcomeProcessed, EventID: event.ID}, nil
}

func (s *service) warn(ctx context.Context, msg string) {
	if s.logger != nil {
		s.logger.Warn(ctx, msg)
	}
}
