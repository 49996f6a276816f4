package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	paypalwebhook "github.com/h2hthailand/h2h-backend/internal/webhooks/paypal"
	pkgerrors "github.com/h2hthailand/h2h-backend/pkg/errors"
	"github.com/h2hthailand/h2h-backend/pkg/logger"
)

type testWebhookService struct {
	handleFn func(ctx context.Context, headers http.Header, rawBody []byte) (*paypalwebhook.Result, error)
}

func (s *testWebhookService) HandleEvent(ctx context.Context, headers http.Header, rawBody []byte) (*paypalwebhook.Result, error) {
	if s.handleFn != nil {
		return s.handleFn(ctx, headers, rawBody)
	}
	return &paypalwebhook.Result{Outcome: paypalwebhook.OutcomeProcessed}, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestPayPalWebhookAcksProcessed(t *testing.T) {
	payload := `{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED"}`
	svc := &testWebhookService{
		handleFn: func(ctx context.Context, headers http.Header, rawBody []byte) (*paypalwebhook.Result, error) {
			if string(rawBody) != payload {
				t.Fatalf("unexpected body %q", rawBody)
			}
			return &paypalwebhook.Result{Outcome: paypalwebhook.OutcomeProcessed, EventID: "WH-1"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paypal", strings.NewReader(payload))
	resp := httptest.NewRecorder()

	PayPalWebhook(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data paypalwebhook.Result `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Outcome != paypalwebhook.OutcomeProcessed {
		t.Fatalf("unexpected outcome %s", envelope.Data.Outcome)
	}
}

func TestPayPalWebhookAcksUnknownOrder(t *testing.T) {
	svc := &testWebhookService{
		handleFn: func(ctx context.Context, headers http.Header, rawBody []byte) (*paypalwebhook.Result, error) {
			return &paypalwebhook.Result{Outcome: paypalwebhook.OutcomeUnknownOrder}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paypal", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()

	PayPalWebhook(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unknown orders must be acked with 200, got %d", resp.Code)
	}
}

func TestPayPalWebhookAcksMalformedBody(t *testing.T) {
	svc := &testWebhookService{
		handleFn: func(ctx context.Context, headers http.Header, rawBody []byte) (*paypalwebhook.Result, error) {
			return &paypalwebhook.Result{Outcome: paypalwebhook.OutcomeMalformed}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paypal", strings.NewReader(`{"not json`))
	resp := httptest.NewRecorder()

	PayPalWebhook(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("malformed payloads must be acked with 200, got %d", resp.Code)
	}
}

func TestPayPalWebhookRejectsBadSignature(t *testing.T) {
	svc := &testWebhookService{
		handleFn: func(ctx context.Context, headers http.Header, rawBody []byte) (*paypalwebhook.Result, error) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook signature verification failed")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paypal", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()

	PayPalWebhook(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
