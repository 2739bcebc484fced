package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is a point-in-time view of one provider: breaker state,
// rolling request statistics and the most recent success and failure.
type ProviderHealth struct {
	// Name is the provider identifier.
	Name string

	// CircuitState is the current circuit breaker state.
	CircuitState gobreaker.State

	// Counts contains circuit breaker statistics.
	Counts gobreaker.Counts

	// SuccessRate is the share of successful requests in the rolling
	// window, 0-100.
	SuccessRate float64

	// AvgLatencyMs is the mean request latency in the rolling window.
	AvgLatencyMs float64

	// LastSuccessAt is when the provider last answered successfully.
	LastSuccessAt *time.Time

	// LastFailureAt is when a request last failed.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string

	// RecoveryETA estimates when an open breaker will try half-open.
	// Nil unless the breaker is open.
	RecoveryETA *time.Time
}

// IsHealthy reports whether the breaker is closed.
func (h *ProviderHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded reports whether the breaker is half-open.
func (h *ProviderHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy reports whether the breaker is open.
func (h *ProviderHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks provider clients and their request history. Construct one
// at startup and hand it to every client; there is no process-wide instance.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*registeredProvider
}

type registeredProvider struct {
	client        *Client
	stats         OutcomeWindow
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
	openedAt      *time.Time
}

// providerSnapshot is the registry-owned half of a health report, copied out
// under the lock. The breaker is queried afterwards: gobreaker runs its state
// change hook under its own mutex, so the registry must never hold its lock
// while touching the breaker.
type providerSnapshot struct {
	name          string
	client        *Client
	successRate   float64
	avgLatencyMs  float64
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
	openedAt      *time.Time
}

func (p *registeredProvider) snapshot(name string) providerSnapshot {
	return providerSnapshot{
		name:          name,
		client:        p.client,
		successRate:   p.stats.SuccessRate(),
		avgLatencyMs:  p.stats.AvgLatencyMs(),
		lastSuccessAt: p.lastSuccessAt,
		lastFailureAt: p.lastFailureAt,
		lastError:     p.lastError,
		openedAt:      p.openedAt,
	}
}

func (s providerSnapshot) health() *ProviderHealth {
	h := &ProviderHealth{
		Name:          s.name,
		CircuitState:  s.client.CircuitBreakerState(),
		Counts:        s.client.CircuitBreakerCounts(),
		SuccessRate:   s.successRate,
		AvgLatencyMs:  s.avgLatencyMs,
		LastSuccessAt: s.lastSuccessAt,
		LastFailureAt: s.lastFailureAt,
		LastError:     s.lastError,
	}
	if h.CircuitState == gobreaker.StateOpen && s.openedAt != nil {
		eta := s.openedAt.Add(s.client.BreakerTimeout())
		h.RecoveryETA = &eta
	}
	return h
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*registeredProvider),
	}
}

// Register adds a provider client to the registry. Clients built with a
// Registry in their config register themselves.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &registeredProvider{
		client: client,
	}
}

// Unregister removes a provider from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, name)
}

// RecordSuccess records a successful request and its latency.
func (r *Registry) RecordSuccess(name string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		now := time.Now()
		p.lastSuccessAt = &now
		p.stats.Record(true, latency)
	}
}

// RecordFailure records a failed request, its latency and the error.
func (r *Registry) RecordFailure(name string, err error, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		now := time.Now()
		p.lastFailureAt = &now
		if err != nil {
			p.lastError = err.Error()
		}
		p.stats.Record(false, latency)
	}
}

// noteStateChange tracks breaker transitions so health reports can estimate
// when an open breaker will try half-open again.
func (r *Registry) noteStateChange(name string, to gobreaker.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[name]
	if !ok {
		return
	}
	if to == gobreaker.StateOpen {
		now := time.Now()
		p.openedAt = &now
	} else {
		p.openedAt = nil
	}
}

// GetHealth returns the health of one provider, nil if it is not registered.
func (r *Registry) GetHealth(name string) *ProviderHealth {
	r.mu.RLock()
	p, ok := r.providers[name]
	var snap providerSnapshot
	if ok {
		snap = p.snapshot(name)
	}
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	return snap.health()
}

// GetAllHealth returns the health of every registered provider.
func (r *Registry) GetAllHealth() []*ProviderHealth {
	r.mu.RLock()
	snaps := make([]providerSnapshot, 0, len(r.providers))
	for name, p := range r.providers {
		snaps = append(snaps, p.snapshot(name))
	}
	r.mu.RUnlock()

	health := make([]*ProviderHealth, 0, len(snaps))
	for _, snap := range snaps {
		health = append(health, snap.health())
	}
	return health
}

// GetProviderNames returns the names of all registered providers.
func (r *Registry) GetProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// ProviderCount returns the number of registered providers.
func (r *Registry) ProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
