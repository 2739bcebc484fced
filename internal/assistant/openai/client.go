// Package openai wraps the OpenAI REST API for assisted replies and exposes
// the model listing request used as its health check.
package openai

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
	// ProviderName identifies this provider to the degradation engine.
	ProviderName = "ai"

	// DefaultBaseURL is the OpenAI API base URL.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when a request does not name one.
	DefaultModel = "gpt-4o-mini"
)

// ClientConfig holds configuration for the OpenAI client.
type ClientConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// Model overrides the default chat model (optional).
	Model string

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

// Client is an OpenAI API client.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	registry   *resilience.Registry
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenAI client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
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
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		registry:   cfg.Registry,
		httpClient: httpClient,
		logger:     cfg.Logger,
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

// CheckStatus lists available models, a free request that exercises
// authentication and the API path without consuming tokens.
func (c *Client) CheckStatus(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

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

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete sends the conversation and returns the assistant's reply.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	payload := chatRequest{
		Model:    c.model,
		Messages: messages,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var completion chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("response contained no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// SuggestReply drafts a reply to a customer message in the tone of a field
// service business.
func (c *Client) SuggestReply(ctx context.Context, customerMessage string) (string, error) {
	return c.Complete(ctx, []Message{
		{
			Role:    "system",
			Content: "You draft short, courteous replies for a field service business in Spanish. Answer with the reply only.",
		},
		{Role: "user", Content: customerMessage},
	})
}

// OpenAI API structures.

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
