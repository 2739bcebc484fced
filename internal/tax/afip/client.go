// Package afip talks to the AFIP electronic invoicing web service (wsfev1).
// Only the status surface lives here: the FEDummy operation reports the
// availability of AFIP's application, database and authentication servers,
// which is exactly what the degradation engine needs to gate invoicing.
package afip

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/servifield/servifield/internal/degradation"
	"github.com/servifield/servifield/internal/provider"
	"github.com/servifield/servifield/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider to the degradation engine.
	ProviderName = "afip"

	// DefaultBaseURL is the production wsfev1 endpoint.
	DefaultBaseURL = "https://servicios1.afip.gov.ar/wsfev1/service.asmx"

	// HomoBaseURL is the homologation (testing) endpoint.
	HomoBaseURL = "https://wswhomo.afip.gov.ar/wsfev1/service.asmx"

	soapAction = "http://ar.gov.afip.dif.FEV1/FEDummy"
)

const feDummyEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ar="http://ar.gov.afip.dif.FEV1/">
  <soapenv:Header/>
  <soapenv:Body>
    <ar:FEDummy/>
  </soapenv:Body>
</soapenv:Envelope>`

// ClientConfig holds configuration for the AFIP client.
type ClientConfig struct {
	// BaseURL is the wsfev1 endpoint (optional, defaults to production).
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

// Client is an AFIP wsfev1 client.
type Client struct {
	baseURL    string
	registry   *resilience.Registry
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new AFIP client.
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
		baseURL:    baseURL,
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

// ServerStatus is AFIP's own report of its three server tiers.
type ServerStatus struct {
	AppServer  string
	DbServer   string
	AuthServer string
}

// OK reports whether every tier answered "OK".
func (s *ServerStatus) OK() bool {
	return s.AppServer == "OK" && s.DbServer == "OK" && s.AuthServer == "OK"
}

func (s *ServerStatus) String() string {
	return fmt.Sprintf("app=%s db=%s auth=%s", s.AppServer, s.DbServer, s.AuthServer)
}

// FEDummy calls the wsfev1 status operation. It needs no authentication
// ticket, which makes it safe to poll.
func (c *Client) FEDummy(ctx context.Context) (*ServerStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(feDummyEnvelope))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapAction)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var envelope feDummyResponseEnvelope
	if err := xml.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	result := envelope.Body.Response.Result
	return &ServerStatus{
		AppServer:  result.AppServer,
		DbServer:   result.DbServer,
		AuthServer: result.AuthServer,
	}, nil
}

// CheckStatus runs FEDummy and fails when AFIP reports any tier down.
func (c *Client) CheckStatus(ctx context.Context) error {
	status, err := c.FEDummy(ctx)
	if err != nil {
		return err
	}
	if !status.OK() {
		return fmt.Errorf("afip reports trouble: %s", status)
	}
	return nil
}

type feDummyResponseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Result struct {
				AppServer  string `xml:"AppServer"`
				DbServer   string `xml:"DbServer"`
				AuthServer string `xml:"AuthServer"`
			} `xml:"FEDummyResult"`
		} `xml:"FEDummyResponse"`
	} `xml:"Body"`
}
