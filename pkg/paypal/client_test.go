package paypal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2hthailand/h2h-backend/pkg/config"
	"github.com/h2hthailand/h2h-backend/pkg/logger"
)

func testPayPalConfig(baseURL string) config.PayPalConfig {
	return config.PayPalConfig{
		BaseURL:      baseURL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		WebhookID:    "WH-123",
		Currency:     "thb",
		Timeout:      5 * time.Second,
		ReturnURL:    "https://h2hthailand.com/checkout/return",
		CancelURL:    "https://h2hthailand.com/checkout/cancel",
	}
}

func testPayPalLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newSandboxServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "bearer-abc", "expires_in": 3600})
	})
	mux.HandleFunc("/", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestNewClientValidatesCredentials(t *testing.T) {
	cfg := testPayPalConfig("https://api-m.sandbox.paypal.com")
	cfg.ClientID = " "

	_, err := NewClient(context.Background(), cfg, testPayPalLogger(t))
	assert.ErrorIs(t, err, errClientIDRequired)

	cfg = testPayPalConfig("https://api-m.sandbox.paypal.com")
	cfg.WebhookID = ""
	_, err = NewClient(context.Background(), cfg, testPayPalLogger(t))
	assert.ErrorIs(t, err, errWebhookIDRequired)
}

func TestCreateOrderPicksApprovalLink(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	server := newSandboxServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ordersPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "REMOTE-42",
			"status": "CREATED",
			"links": []map[string]string{
				{"rel": "self", "href": "https://sandbox/self"},
				{"rel": "approve", "href": "https://sandbox/approve"},
			},
		})
	})

	client, err := NewClient(context.Background(), testPayPalConfig(server.URL), testPayPalLogger(t))
	require.NoError(t, err)

	order, err := client.CreateOrder(context.Background(), CreateOrderInput{
		Amount:      decimal.NewFromInt(1500),
		Description: "Vintage camera",
		Reference:   "H2H-2025-0001",
	})
	require.NoError(t, err)

	assert.Equal(t, "REMOTE-42", order.ID)
	assert.Equal(t, "CREATED", order.Status)
	assert.Equal(t, "https://sandbox/approve", order.ApprovalURL)
	assert.Equal(t, "Bearer bearer-abc", gotAuth)
	assert.Equal(t, "CAPTURE", gotBody["intent"])

	units, ok := gotBody["purchase_units"].([]any)
	require.True(t, ok)
	require.Len(t, units, 1)
	unit := units[0].(map[string]any)
	amount := unit["amount"].(map[string]any)
	assert.Equal(t, "THB", amount["currency_code"])
	assert.Equal(t, "1500.00", amount["value"])
}

func TestCreateOrderRejectsNonPositiveAmount(t *testing.T) {
	client, err := NewClient(context.Background(), testPayPalConfig("http://unused"), testPayPalLogger(t))
	require.NoError(t, err)

	_, err = client.CreateOrder(context.Background(), CreateOrderInput{Amount: decimal.Zero})
	assert.Error(t, err)
}

func TestBearerTokenIsCached(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		json.NewEncoder(w).Encode(map[string]any{"access_token": "bearer-abc", "expires_in": 3600})
	})
	mux.HandleFunc(ordersPath, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "X", "status": "CREATED"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), testPayPalConfig(server.URL), testPayPalLogger(t))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = client.CreateOrder(context.Background(), CreateOrderInput{Amount: decimal.NewFromInt(100)})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, tokenCalls)
}

func TestVerifyWebhookSignature(t *testing.T) {
	var gotBody map[string]any
	server := newSandboxServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != verifyWebhookPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{"verification_status": "SUCCESS"})
	})

	client, err := NewClient(context.Background(), testPayPalConfig(server.URL), testPayPalLogger(t))
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set("Paypal-Transmission-Id", "tid-1")
	headers.Set("Paypal-Transmission-Sig", "sig-1")

	ok, err := client.VerifyWebhookSignature(context.Background(), headers, []byte(`{"id":"WH-EVT-1"}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "WH-123", gotBody["webhook_id"])
	assert.Equal(t, "tid-1", gotBody["transmission_id"])
}

func TestParseWebhookEventAndResource(t *testing.T) {
	raw := []byte(`{
		"id": "WH-EVT-9",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource_type": "capture",
		"resource": {
			"id": "CAP-1",
			"status": "COMPLETED",
			"supplementary_data": {"related_ids": {"order_id": "REMOTE-42"}}
		}
	}`)

	event, err := ParseWebhookEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "WH-EVT-9", event.ID)
	assert.Equal(t, "PAYMENT.CAPTURE.COMPLETED", event.EventType)

	resource, err := ParseWebhookResource(event)
	require.NoError(t, err)
	assert.Equal(t, "CAP-1", resource.ID)
	assert.Equal(t, "COMPLETED", resource.Status)
	assert.Equal(t, "REMOTE-42", resource.SupplementaryData.RelatedIDs.OrderID)
}

func TestParseWebhookResourceRequiresPayload(t *testing.T) {
	_, err := ParseWebhookResource(nil)
	assert.Error(t, err)

	_, err = ParseWebhookResource(&WebhookEvent{ID: "WH-EVT-10"})
	assert.Error(t, err)
}
