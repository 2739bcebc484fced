package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Errors returned by resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects the call.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMaxRetriesExceeded wraps the last error once every retry attempt
	// has been spent.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// RequestObserver receives the outcome of every upstream request, on top of
// the registry's health accounting. The api middleware's ProviderMetrics
// satisfies it.
type RequestObserver interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client in the registry, breaker and logs.
	Name string

	// Registry receives this client and its request outcomes. Optional;
	// without it no health accounting happens.
	Registry *Registry

	// Observer additionally receives per-request telemetry. Optional.
	Observer RequestObserver

	// Logger records breaker transitions. Optional.
	Logger zerolog.Logger

	// Timeout is the request timeout for individual HTTP calls.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts.
	// Default: 3
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 5 seconds
	MaxInterval time.Duration

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig
}

// DefaultClientConfig returns sensible defaults for the resilient client.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cbConfig,
	}
}

// Client is a resilient HTTP client: circuit breaker, bounded exponential
// retries and automatic health accounting in the provider registry.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	registry       *Registry
	config         ClientConfig
	breakerTimeout time.Duration
}

// NewClient creates a resilient HTTP client. When cfg.Registry is set the
// client registers itself and reports every request outcome to it.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		registry:       cfg.Registry,
		config:         cfg,
		breakerTimeout: cbConfig.Timeout,
	}
	if c.breakerTimeout == 0 {
		c.breakerTimeout = 60 * time.Second
	}

	userHook := cbConfig.OnStateChange
	logger := cfg.Logger
	cbConfig.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn().
			Str("provider", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
		if cfg.Registry != nil {
			cfg.Registry.noteStateChange(name, to)
		}
		if userHook != nil {
			userHook(name, from, to)
		}
	}
	c.circuitBreaker = NewCircuitBreaker[*http.Response](cbConfig) //nolint:bodyclose // type param, not response

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name this client was built for.
func (c *Client) Name() string {
	return c.config.Name
}

// Do executes an HTTP request with circuit breaker protection and retry
// logic. Transient failures (5xx, network errors) are retried with
// exponential backoff; an open breaker fails fast with ErrCircuitOpen.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes an HTTP request with the given context.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // retries are bounded by MaxRetries, not time

	backoffWithRetries := backoff.WithMaxRetries(bo, c.config.MaxRetries)
	backoffWithContext := backoff.WithContext(backoffWithRetries, ctx)

	var lastResp *http.Response

	operation := func() error {
		// 5xx responses come back as errors so they count against the
		// breaker and trigger a retry.
		resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			reqClone := req.Clone(ctx)
			start := time.Now()
			r, doErr := c.httpClient.Do(reqClone)
			latency := time.Since(start)
			if doErr != nil {
				c.recordFailure(reqClone, doErr, latency)
				return nil, doErr
			}
			if r.StatusCode >= 500 {
				srvErr := &ServerError{StatusCode: r.StatusCode}
				c.recordFailure(reqClone, srvErr, latency)
				return r, srvErr
			}
			// 4xx means the provider answered; that is a healthy
			// provider and an unhealthy request.
			c.recordSuccess(reqClone, latency)
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				lastResp = resp
			}
			return err
		}

		lastResp = resp
		return nil
	}

	err := backoff.Retry(operation, backoffWithContext)
	if err != nil {
		// A 5xx that survived every retry is still a response the
		// caller may want to inspect.
		if lastResp != nil {
			return lastResp, nil
		}
		if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, err)
	}

	return lastResp, nil
}

func (c *Client) recordSuccess(req *http.Request, latency time.Duration) {
	if c.registry != nil {
		c.registry.RecordSuccess(c.config.Name, latency)
	}
	if c.config.Observer != nil {
		c.config.Observer.RecordRequest(c.config.Name, req.URL.Path, latency, nil)
	}
}

func (c *Client) recordFailure(req *http.Request, err error, latency time.Duration) {
	if c.registry != nil {
		c.registry.RecordFailure(c.config.Name, err, latency)
	}
	if c.config.Observer != nil {
		c.config.Observer.RecordRequest(c.config.Name, req.URL.Path, latency, err)
	}
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}

// BreakerTimeout returns how long the breaker stays open before half-open.
func (c *Client) BreakerTimeout() time.Duration {
	return c.breakerTimeout
}
