// Package whatsapp sends messages through the WhatsApp Business Cloud API
// and exposes the phone number metadata request used as its health check.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/servifield/servifield/internal/degradation"
	"github.com/servifield/servifield/internal/provider"
	"github.com/servifield/servifield/internal/provider/resilience"
)

const (
	// ProviderName identifies this messaging provider.
	ProviderName = "messaging"

	// DefaultBaseURL is the Graph API base URL.
	DefaultBaseURL = "https://graph.facebook.com/v19.0"
)

// ClientConfig holds configuration for the WhatsApp Business client.
type ClientConfig struct {
	// AccessToken is the Graph API access token (required).
	AccessToken string

	// PhoneNumberID is the business phone number id messages are sent
	// from (required).
	PhoneNumberID string

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

// Client is a WhatsApp Business Cloud API client.
type Client struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	registry      *resilience.Registry
	httpClient    *resilience.Client
	logger        zerolog.Logger
}

// NewClient creates a new WhatsApp Business client.
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
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       baseURL,
		registry:      cfg.Registry,
		httpClient:    httpClient,
		logger:        cfg.Logger,
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

// CheckStatus fetches the phone number metadata, the cheapest request that
// exercises authentication without sending anything.
func (c *Client) CheckStatus(ctx context.Context) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, c.phoneNumberID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// SendText sends a plain text message to a phone number in E.164 format.
func (c *Client) SendText(ctx context.Context, to, body string) (*MessageResponse, error) {
	payload := sendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &textPayload{Body: body},
	}
	return c.send(ctx, payload)
}

// SendTemplate sends a pre-approved message template.
func (c *Client) SendTemplate(ctx context.Context, to, templateName, languageCode string) (*MessageResponse, error) {
	payload := sendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "template",
		Template: &templatePayload{
			Name:     templateName,
			Language: templateLanguage{Code: languageCode},
		},
	}
	return c.send(ctx, payload)
}

func (c *Client) send(ctx context.Context, payload sendMessageRequest) (*MessageResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var sent MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &sent, nil
}

// MessageResponse is the provider acknowledgement for a sent message.
type MessageResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Messages         []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// MessageID returns the id of the first accepted message, empty if none.
func (r *MessageResponse) MessageID() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// Graph API request structures.

type sendMessageRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *textPayload     `json:"text,omitempty"`
	Template         *templatePayload `json:"template,omitempty"`
}

type textPayload struct {
	Body string `json:"body"`
}

type templatePayload struct {
	Name     string           `json:"name"`
	Language templateLanguage `json:"language"`
}

type templateLanguage struct {
	Code string `json:"code"`
}
