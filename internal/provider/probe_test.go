package provider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servifield/servifield/internal/degradation"
	"github.com/servifield/servifield/internal/provider"
	"github.com/servifield/servifield/internal/provider/resilience"
)

// probeHarness wires a resilient client against a switchable test server.
type probeHarness struct {
	server   *httptest.Server
	status   atomic.Int32
	registry *resilience.Registry
	client   *resilience.Client
	probe    *provider.Probe
}

func newProbeHarness(t *testing.T, trip func(gobreaker.Counts) bool) *probeHarness {
	t.Helper()

	h := &probeHarness{registry: resilience.NewRegistry()}
	h.status.Store(http.StatusOK)
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(h.status.Load()))
	}))
	t.Cleanup(h.server.Close)

	cbConfig := resilience.DefaultCircuitBreakerConfig("testprovider")
	if trip != nil {
		cbConfig.ReadyToTrip = trip
	}
	h.client = resilience.NewClient(resilience.ClientConfig{
		Name:            "testprovider",
		Registry:        h.registry,
		Timeout:         time.Second,
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		CircuitBreaker:  &cbConfig,
	})

	h.probe = provider.NewProbe("testprovider", h.registry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.server.URL, http.NoBody)
		if err != nil {
			return err
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &resilience.ServerError{StatusCode: resp.StatusCode}
		}
		return nil
	})
	return h
}

func TestProbe_HealthyProvider(t *testing.T) {
	h := newProbeHarness(t, nil)

	state, err := h.probe.CheckState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, degradation.StatusHealthy, state.Status)
	assert.Equal(t, degradation.CircuitClosed, state.CircuitState)
	assert.InDelta(t, 100.0, state.SuccessRate, 0.01)
	assert.False(t, state.LastSuccess.IsZero())
	assert.True(t, state.RecoveryETA.IsZero())
}

func TestProbe_FailingRequestWithClosedBreakerIsDegraded(t *testing.T) {
	// A breaker that never trips keeps the circuit closed through failures.
	h := newProbeHarness(t, func(gobreaker.Counts) bool { return false })
	h.status.Store(http.StatusInternalServerError)

	state, err := h.probe.CheckState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, degradation.StatusDegraded, state.Status)
	assert.Equal(t, degradation.CircuitClosed, state.CircuitState)
	assert.Less(t, state.SuccessRate, 100.0)
	assert.Contains(t, state.LastErrorMessage, "server error")
	assert.False(t, state.LastError.IsZero())
}

func TestProbe_OpenBreakerIsUnavailable(t *testing.T) {
	h := newProbeHarness(t, nil)
	h.status.Store(http.StatusInternalServerError)

	// Drive enough failures through the default trip rule to open it.
	for i := 0; i < 4; i++ {
		_, err := h.probe.CheckState(context.Background())
		require.NoError(t, err)
	}

	state, err := h.probe.CheckState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, degradation.StatusUnavailable, state.Status)
	assert.Equal(t, degradation.CircuitOpen, state.CircuitState)
	assert.False(t, state.RecoveryETA.IsZero(), "open breaker should carry a recovery estimate")
	assert.False(t, state.RecoveryETA.Before(time.Now()), "recovery estimate should be in the future")
}

func TestProbe_UnregisteredProviderFallsBackToCheck(t *testing.T) {
	registry := resilience.NewRegistry()

	p := provider.NewProbe("ghost", registry, func(context.Context) error { return nil })
	state, err := p.CheckState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, degradation.StatusHealthy, state.Status)

	p = provider.NewProbe("ghost", registry, func(context.Context) error { return assert.AnError })
	_, err = p.CheckState(context.Background())
	assert.Error(t, err)
}
