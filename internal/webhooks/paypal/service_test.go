package paypal

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/h2hthailand/h2h-backend/internal/orders"
	"github.com/h2hthailand/h2h-backend/pkg/config"
	"github.com/h2hthailand/h2h-backend/pkg/db/models"
	pkgerrors "github.com/h2hthailand/h2h-backend/pkg/errors"
)

type fakeVerifier struct {
	verified bool
	err      error
}

func (f *fakeVerifier) VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error) {
	return f.verified, f.err
}

type fakeMarker struct {
	result     *orders.MarkPaidResult
	err        error
	calls      int
	providerID string
}

func (f *fakeMarker) MarkPaidByProvider(ctx context.Context, providerOrderID string, providerMeta []byte) (*orders.MarkPaidResult, error) {
	f.calls++
	f.providerID = providerOrderID
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &orders.MarkPaidResult{Order: &models.Order{ID: uuid.New()}}, nil
}

type fakeGuard struct {
	fresh bool
	err   error
	keys  []string
}

func (f *fakeGuard) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.fresh, f.err
}

func (f *fakeGuard) IdempotencyKey(scope, id string) string {
	return "h2h:idempotency:" + scope + ":" + id
}

func devApp() config.AppConfig {
	return config.AppConfig{Env: "development"}
}

func prodApp() config.AppConfig {
	return config.AppConfig{Env: "production"}
}

func captureEvent() []byte {
	return []byte(`{
		"id": "WH-1",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource_type": "capture",
		"resource": {
			"id": "CAP-1",
			"status": "COMPLETED",
			"supplementary_data": {"related_ids": {"order_id": "REMOTE-1"}}
		}
	}`)
}

func newTestService(t *testing.T, verifier SignatureVerifier, marker OrderMarker, guard ReplayGuard, app config.AppConfig) Service {
	t.Helper()
	svc, err := NewService(verifier, marker, guard, nil, nil, app)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestHandleEvent_ProcessesCapture(t *testing.T) {
	marker := &fakeMarker{}
	svc := newTestService(t, &fakeVerifier{verified: true}, marker, &fakeGuard{fresh: true}, devApp())

	result, err := svc.HandleEvent(context.Background(), http.Header{}, captureEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %s", result.Outcome)
	}
	if marker.providerID != "REMOTE-1" {
		t.Fatalf("expected related order id, got %q", marker.providerID)
	}
}

func TestHandleEvent_DuplicateEventShortCircuits(t *testing.T) {
	marker := &fakeMarker{}
	svc := newTestService(t, &fakeVerifier{verified: true}, marker, &fakeGuard{fresh: false}, devApp())

	result, err := svc.HandleEvent(context.Background(), http.Header{}, captureEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeDuplicateEvent {
		t.Fatalf("expected duplicate, got %s", result.Outcome)
	}
	if marker.calls != 0 {
		t.Fatalf("expected no reconciliation, got %d calls", marker.calls)
	}
}

func TestHandleEvent_IgnoresOtherEventTypes(t *testing.T) {
	marker := &fakeMarker{}
	svc := newTestService(t, &fakeVerifier{verified: true}, marker, &fakeGuard{fresh: true}, devApp())

	body := []byte(`{"id":"WH-2","event_type":"PAYMENT.CAPTURE.DENIED","resource":{"id":"CAP-2"}}`)
	result, err := svc.HandleEvent(context.Background(), http.Header{}, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeIgnoredEventType {
		t.Fatalf("expected ignored, got %s", result.Outcome)
	}
	if marker.calls != 0 {
		t.Fatalf("expected no reconciliation, got %d calls", marker.calls)
	}
}

func TestHandleEvent_MalformedBodyAcked(t *testing.T) {
	marker := &fakeMarker{}
	svc := newTestService(t, &fakeVerifier{verified: true}, marker, &fakeGuard{fresh: true}, devApp())

	result, err := svc.HandleEvent(context.Background(), http.Header{}, []byte(`{"not json`))
	if err != nil {
		t.Fatalf("malformed bodies must be acked, got %v", err)
	}
	if result.Outcome != OutcomeMalformed {
		t.Fatalf("expected malformed, got %s", result.Outcome)
	}
	if marker.calls != 0 {
		t.Fatalf("expected no reconciliation, got %d calls", marker.calls)
	}
}

func TestHandleEvent_UndecodableResourceAcked(t *testing.T) {
	marker := &fakeMarker{}
	svc := newTestService(t, &fakeVerifier{verified: true}, marker, &fakeGuard{fresh: true}, devApp())

	body := []byte(`{"id":"WH-3","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":"not-an-object"}`)
	result, err := svc.HandleEvent(context.Background(), http.Header{}, body)
	if err != nil {
		t.Fatalf("undecodable resources must be acked, got %v", err)
	}
	if result.Outcome != OutcomeMalformed {
		t.Fatalf("expected malformed, got %s", result.Outcome)
	}
	if result.EventID != "WH-3" {
		t.Fatalf("expected event id carried through, got %q", result.EventID)
	}
	if marker.calls != 0 {
		t.Fatalf("expected no reconciliation, got %d calls", marker.calls)
	}
}

func TestHandleEvent_UnknownOrderAcked(t *testing.T) {
	marker := &fakeMarker{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found for provider id")}
	svc := newTestService(t, &fakeVerifier{verified: true}, marker, &fakeGuard{fresh: true}, devApp())

	result, err := svc.HandleEvent(context.Background(), http.Header{}, captureEvent())
	if err != nil {
		t.Fatalf("unknown orders must be acked, got %v", err)
	}
	if result.Outcome != OutcomeUnknownOrder {
		t.Fatalf("expected unknown order, got %s", result.Outcome)
	}
}

func TestHandleEvent_InvalidSignatureRejectedInProd(t *testing.T) {
	svc := newTestService(t, &fakeVerifier{verified: false}, &fakeMarker{}, nil, prodApp())

	_, err := svc.HandleEvent(context.Background(), http.Header{}, captureEvent())
	if err == nil {
		t.Fatal("expected signature error in prod")
	}
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %s", code)
	}
}

func TestHandleEvent_InvalidSignatureToleratedInDev(t *testing.T) {
	marker := &fakeMarker{}
	svc := newTestService(t, &fakeVerifier{verified: false}, marker, &fakeGuard{fresh: true}, devApp())

	result, err := svc.HandleEvent(context.Background(), http.Header{}, captureEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %s", result.Outcome)
	}
	if marker.calls != 1 {
		t.Fatalf("expected one reconciliation call, got %d", marker.calls)
	}
}

func TestHandleEvent_GuardFailureFallsThrough(t *testing.T) {
	marker := &fakeMarker{result: &orders.MarkPaidResult{AlreadyPaid: true, Order: &models.Order{ID: uuid.New()}}}
	guard := &fakeGuard{err: context.DeadlineExceeded}
	svc := newTestService(t, &fakeVerifier{verified: true}, marker, guard, devApp())

	result, err := svc.HandleEvent(context.Background(), http.Header{}, captureEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeAlreadyPaid {
		t.Fatalf("expected already paid, got %s", result.Outcome)
	}
}
