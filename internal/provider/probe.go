// Package provider adapts outbound provider clients into health probes for
// the degradation engine. Each provider package builds its Probe from the
// cheap status request it exposes; the breaker and request history kept by
// the resilience registry turn that into a service state.
package provider

import (
	"context"

	"github.com/sony/gobreaker/v2"

	"github.com/servifield/servifield/internal/degradation"
	"github.com/servifield/servifield/internal/provider/resilience"
)

// StatusFunc performs a provider's cheapest authenticated request. A nil
// return means the provider answered normally.
type StatusFunc func(ctx context.Context) error

// Probe reports a provider's state from its circuit breaker and rolling
// request statistics. The status request keeps traffic flowing so an idle
// provider's breaker still reflects reality.
type Probe struct {
	name     string
	registry *resilience.Registry
	check    StatusFunc
}

// NewProbe builds a probe for the named provider. The registry must be the
// one the provider's client records into.
func NewProbe(name string, registry *resilience.Registry, check StatusFunc) *Probe {
	return &Probe{
		name:     name,
		registry: registry,
		check:    check,
	}
}

// CheckState implements degradation.ServiceProbe.
//
// The breaker is authoritative: closed reads healthy, half-open degraded,
// open unavailable. A failed status request with a closed breaker means the
// provider is answering badly but not yet tripped, which reads as degraded.
// The returned error is non-nil only when no state could be derived at all.
func (p *Probe) CheckState(ctx context.Context) (degradation.ServiceState, error) {
	checkErr := p.check(ctx)

	health := p.registry.GetHealth(p.name)
	if health == nil {
		if checkErr != nil {
			return degradation.ServiceState{}, checkErr
		}
		return degradation.ServiceState{
			Status:      degradation.StatusHealthy,
			SuccessRate: 100,
		}, nil
	}

	state := degradation.ServiceState{
		CircuitState: circuitState(health.CircuitState),
		SuccessRate:  health.SuccessRate,
		AvgLatencyMs: health.AvgLatencyMs,
	}
	state.Status = degradation.StatusFromCircuit(state.CircuitState)
	if checkErr != nil && state.Status == degradation.StatusHealthy {
		state.Status = degradation.StatusDegraded
	}

	if health.LastSuccessAt != nil {
		state.LastSuccess = *health.LastSuccessAt
	}
	if health.LastFailureAt != nil {
		state.LastError = *health.LastFailureAt
	}
	state.LastErrorMessage = health.LastError
	if health.RecoveryETA != nil {
		state.RecoveryETA = *health.RecoveryETA
	}

	return state, nil
}

func circuitState(s gobreaker.State) degradation.CircuitState {
	switch s {
	case gobreaker.StateClosed:
		return degradation.CircuitClosed
	case gobreaker.StateHalfOpen:
		return degradation.CircuitHalfOpen
	case gobreaker.StateOpen:
		return degradation.CircuitOpen
	default:
		return ""
	}
}
