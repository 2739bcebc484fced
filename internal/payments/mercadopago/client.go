// Package mercadopago talks to the Mercado Pago REST API: checkout
// preferences, payment lookups and the lightweight status request the
// degradation engine probes with.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/servifield/servifield/internal/degradation"
	"github.com/servifield/servifield/internal/provider"
	"github.com/servifield/servifield/internal/provider/resilience"
)

const (
	// ProviderName identifies this payment provider.
	ProviderName = "mercadopago"

	// DefaultBaseURL is the Mercado Pago API base URL.
	DefaultBaseURL = "https://api.mercadopago.com"
)

// ClientConfig holds configuration for the Mercado Pago client.
type ClientConfig struct {
	// AccessToken is the Mercado Pago access token (required).
	AccessToken string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// Registry records request outcomes for health reporting (optional).
	Registry *resilience.Registry

	// Observer receives per-request latency and outcome (optional).
	Observer resilience.RequestObserver

	// HTTPClient is the HTTP client to use (optional).
	// If nil, a resilient client is built and registered.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Mercado Pago API client.
type Client struct {
	accessToken string
	baseURL     string
	registry    *resilience.Registry
	httpClient  *resilience.Client
	logger      zerolog.Logger
}

// NewClient creates a new Mercado Pago client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rcfg := resilience.DefaultClientConfig(ProviderName)
		rcfg.Registry = cfg.Registry
		rcfg.Observer = cfg.Observer
		rcfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(rcfg)
	}

	return &Client{
		accessToken: cfg.AccessToken,
		baseURL:     baseURL,
		registry:    cfg.Registry,
		httpClient:  httpClient,
		logger:      cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Probe returns the health probe for this provider.
func (c *Client) Probe() degradation.ServiceProbe {
	return provider.NewProbe(ProviderName, c.registry, c.CheckStatus)
}

// CheckStatus performs the cheapest authenticated request the API offers.
func (c *Client) CheckStatus(ctx context.Context) error {
	_, err := c.ListPaymentMethods(ctx)
	return err
}

// ListPaymentMethods fetches the payment methods available to the account.
func (c *Client) ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/payment_methods", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var methods []PaymentMethod
	if err := json.NewDecoder(resp.Body).Decode(&methods); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return methods, nil
}

// GetPayment fetches a single payment by id.
func (c *Client) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/payments/%d", id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("payment %d not found", id)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &payment, nil
}

// CreatePreference creates a checkout preference and returns the payment
// links for it.
func (c *Client) CreatePreference(ctx context.Context, pref PreferenceRequest) (*Preference, error) {
	body, err := json.Marshal(pref)
	if err != nil {
		return nil, fmt.Errorf("encoding preference: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var created Preference
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &created, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	return req, nil
}

// PaymentMethod is one way a customer can pay.
type PaymentMethod struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PaymentTypeID string `json:"payment_type_id"`
	Status        string `json:"status"`
}

// Payment is the state of a payment on the provider side.
type Payment struct {
	ID                int64     `json:"id"`
	Status            string    `json:"status"`
	StatusDetail      string    `json:"status_detail"`
	TransactionAmount float64   `json:"transaction_amount"`
	CurrencyID        string    `json:"currency_id"`
	ExternalReference string    `json:"external_reference"`
	DateApproved      time.Time `json:"date_approved"`
}

// PreferenceItem is one line of a checkout preference.
type PreferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id,omitempty"`
}

// PreferenceRequest creates a checkout for a work order.
type PreferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference,omitempty"`
	NotificationURL   string           `json:"notification_url,omitempty"`
}

// Preference is a created checkout preference.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}
