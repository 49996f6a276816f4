package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/h2hthailand/h2h-backend/pkg/config"
	pkgerrors "github.com/h2hthailand/h2h-backend/pkg/errors"
	"github.com/h2hthailand/h2h-backend/pkg/logger"
)

const (
	tokenPath         = "/v1/oauth2/token"
	ordersPath        = "/v2/checkout/orders"
	verifyWebhookPath = "/v1/notifications/verify-webhook-signature"

	verificationSuccess = "SUCCESS"

	// tokenExpirySkew renews the cached bearer token early so in-flight
	// requests never carry a nearly expired credential.
	tokenExpirySkew = 60 * time.Second
)

var (
	errClientIDRequired  = errors.New("paypal client id is required")
	errSecretRequired    = errors.New("paypal client secret is required")
	errWebhookIDRequired = errors.New("paypal webhook id is required")
)

// Client wraps the PayPal REST API: client-credentials auth, checkout order
// creation and webhook signature verification.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	webhookID  string
	currency   string
	returnURL  string
	cancelURL  string
	logger     *logger.Logger

	mu          sync.Mutex
	bearerToken string
	tokenExpiry time.Time
}

// CreateOrderInput carries the fields for a remote checkout order.
type CreateOrderInput struct {
	Amount      decimal.Decimal
	Description string
	Reference   string
}

// RemoteOrder is the subset of the provider response the platform keeps.
type RemoteOrder struct {
	ID          string
	Status      string
	ApprovalURL string
}

// WebhookEvent is a decoded provider notification.
type WebhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

// WebhookResource holds the fields reconciliation needs from an event resource.
type WebhookResource struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

// NewClient validates the configuration and returns a ready client.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	secret := strings.TrimSpace(cfg.ClientSecret)
	if secret == "" {
		return nil, errSecretRequired
	}
	webhookID := strings.TrimSpace(cfg.WebhookID)
	if webhookID == "" {
		return nil, errWebhookIDRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "THB"
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		clientID:   clientID,
		secret:     secret,
		webhookID:  webhookID,
		currency:   currency,
		returnURL:  cfg.ReturnURL,
		cancelURL:  cfg.CancelURL,
		logger:     logg,
	}

	if logg != nil {
		logg.Info(ctx, "paypal client initialized")
	}
	return c, nil
}

// WebhookID returns the configured webhook identifier.
func (c *Client) WebhookID() string {
	if c == nil {
		return ""
	}
	return c.webhookID
}

// Currency returns the configured checkout currency.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

// CreateOrder creates a remote checkout order and returns its id plus the
// approval URL the buyer must visit.
func (c *Client) CreateOrder(ctx context.Context, input CreateOrderInput) (*RemoteOrder, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	purchaseUnit := map[string]any{
		"amount": map[string]any{
			"currency_code": c.currency,
			"value":         input.Amount.StringFixed(2),
		},
	}
	if input.Description != "" {
		purchaseUnit["description"] = input.Description
	}
	if input.Reference != "" {
		purchaseUnit["reference_id"] = input.Reference
	}

	body := map[string]any{
		"intent":         "CAPTURE",
		"purchase_units": []any{purchaseUnit},
	}
	if c.returnURL != "" || c.cancelURL != "" {
		body["application_context"] = map[string]any{
			"return_url": c.returnURL,
			"cancel_url": c.cancelURL,
		}
	}

	var decoded struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := c.doJSON(ctx, http.MethodPost, ordersPath, body, &decoded); err != nil {
		return nil, err
	}

	order := &RemoteOrder{ID: decoded.ID, Status: decoded.Status}
	for _, link := range decoded.Links {
		if link.Rel == "approve" {
			order.ApprovalURL = link.Href
			break
		}
	}
	return order, nil
}

// VerifyWebhookSignature asks the provider to validate the raw event payload
// against the transmission headers. It returns true only on SUCCESS.
func (c *Client) VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error) {
	body := map[string]any{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(rawBody),
	}

	var decoded struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, verifyWebhookPath, body, &decoded); err != nil {
		return false, err
	}
	return decoded.VerificationStatus == verificationSuccess, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, dest any) error {
	token, err := c.bearer(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode paypal request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paypal request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call paypal")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read paypal response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.New(pkgerrors.CodeDependency, "paypal request failed").
			WithDetails(map[string]any{"status": resp.StatusCode, "body": string(raw)})
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal response")
	}
	return nil
}

// bearer returns a cached access token, exchanging client credentials when the
// cache is empty or about to expire.
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bearerToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpirySkew)) {
		return c.bearerToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build token request")
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "exchange client credentials")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "paypal token exchange failed").
			WithDetails(map[string]any{"status": resp.StatusCode, "body": string(raw)})
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode token response")
	}
	if decoded.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "paypal token response missing access_token")
	}

	c.bearerToken = decoded.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(decoded.ExpiresIn) * time.Second)
	return c.bearerToken, nil
}

// ParseWebhookEvent decodes the raw webhook payload.
func ParseWebhookEvent(rawBody []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	return &event, nil
}

// ParseWebhookResource decodes the resource portion of an event.
func ParseWebhookResource(event *WebhookEvent) (*WebhookResource, error) {
	if event == nil || len(event.Resource) == 0 {
		return nil, fmt.Errorf("webhook event resource missing")
	}
	var resource WebhookResource
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		return nil, fmt.Errorf("decode webhook resource: %w", err)
	}
	return &resource, nil
}
