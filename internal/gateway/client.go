package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rifapix/rifapix/internal/config"
)

const (
	defaultRequestTimeout = 20 * time.Second
	maxErrorBodyBytes     = 512
	// tokenExpirySlack renews the cached token slightly before the gateway
	// would reject it.
	tokenExpirySlack = 30 * time.Second
)

// ErrNotConfigured indicates the gateway credentials are missing.
var ErrNotConfigured = errors.New("gateway: not configured")

// RequestError carries the HTTP status of a failed gateway call.
type RequestError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("gateway: %s status=%d body=%s", e.Operation, e.StatusCode, e.Body)
}

// CreateChargeRequest holds the inputs for a PIX charge.
type CreateChargeRequest struct {
	PayerName   string            // Display name of the paying user.
	AmountCents int64             // Charge amount in centavos.
	ExternalID  string            // Our idempotency id for the charge.
	Description string            // Human-readable charge description.
	Metadata    map[string]string // Opaque metadata echoed back on the webhook.
}

// Charge is the gateway's response to a charge creation.
type Charge struct {
	TransactionID string    // Gateway transaction id, webhook correlation key.
	PixPayload    string    // Copy-paste PIX payload for the payer.
	StatusCode    string    // Gateway-side status at creation time.
	ExpiresAt     time.Time // When the charge stops being payable.
}

// Client calls the PIX payment gateway over HTTP.
// It caches the OAuth access token until shortly before expiry.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	webhookURL   string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient builds a gateway client from config.
func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		clientID:     strings.TrimSpace(cfg.ClientID),
		clientSecret: strings.TrimSpace(cfg.ClientSecret),
		webhookURL:   strings.TrimSpace(cfg.WebhookURL),
		httpClient:   &http.Client{Timeout: defaultRequestTimeout},
	}
}

// authResponse is the gateway's token endpoint response.
type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// authenticate fetches or reuses a cached access token.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	if c.baseURL == "" || c.clientID == "" || c.clientSecret == "" {
		return "", ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpirySlack)) {
		return c.accessToken, nil
	}

	body, _ := json.Marshal(map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"grant_type":    "client_credentials",
	})
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", bytes.NewReader(body))
	if errReq != nil {
		return "", errReq
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return "", fmt.Errorf("gateway: authenticate: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &RequestError{Operation: "authenticate", StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	var auth authResponse
	if errDecode := json.NewDecoder(resp.Body).Decode(&auth); errDecode != nil {
		return "", fmt.Errorf("gateway: decode auth response: %w", errDecode)
	}
	if strings.TrimSpace(auth.AccessToken) == "" {
		return "", errors.New("gateway: empty access token")
	}

	c.accessToken = auth.AccessToken
	expiresIn := auth.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 300
	}
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	return c.accessToken, nil
}

// chargeResponse is the gateway's charge endpoint response.
type chargeResponse struct {
	TransactionID string `json:"transaction_id"`
	PixPayload    string `json:"pix_payload"`
	Status        string `json:"status"`
	ExpiresAt     string `json:"expires_at"`
}

// CreateCharge creates a PIX charge and returns its payable payload.
func (c *Client) CreateCharge(ctx context.Context, in CreateChargeRequest) (*Charge, error) {
	token, errAuth := c.authenticate(ctx)
	if errAuth != nil {
		return nil, errAuth
	}

	payload := map[string]any{
		"payer_name":   in.PayerName,
		"amount":       in.AmountCents,
		"external_id":  in.ExternalID,
		"description":  in.Description,
		"metadata":     in.Metadata,
		"callback_url": c.webhookURL,
	}
	body, _ := json.Marshal(payload)
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/pix/charges", bytes.NewReader(body))
	if errReq != nil {
		return nil, errReq
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("gateway: create charge: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &RequestError{Operation: "create_charge", StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	var out chargeResponse
	if errDecode := json.NewDecoder(resp.Body).Decode(&out); errDecode != nil {
		return nil, fmt.Errorf("gateway: decode charge response: %w", errDecode)
	}
	if strings.TrimSpace(out.TransactionID) == "" {
		return nil, errors.New("gateway: charge missing transaction id")
	}

	charge := &Charge{
		TransactionID: out.TransactionID,
		PixPayload:    out.PixPayload,
		StatusCode:    out.Status,
	}
	if out.ExpiresAt != "" {
		if parsed, errParse := time.Parse(time.RFC3339, out.ExpiresAt); errParse == nil {
			charge.ExpiresAt = parsed
		}
	}
	return charge, nil
}

// readErrorBody reads a bounded prefix of an error response body.
func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	return strings.TrimSpace(string(data))
}
