package degradation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultProbeTimeout bounds a single probe call.
const DefaultProbeTimeout = 5 * time.Second

// aggregator runs every registered probe and assembles the per-service state
// map. Each probe call is independently timed out and error-isolated: one
// misbehaving dependency never blocks or fails the cycle.
type aggregator struct {
	catalog *Catalog
	probes  map[ServiceID]ServiceProbe
	timeout time.Duration
	logger  zerolog.Logger
}

func newAggregator(catalog *Catalog, probes map[ServiceID]ServiceProbe, timeout time.Duration, logger zerolog.Logger) *aggregator {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &aggregator{
		catalog: catalog,
		probes:  probes,
		timeout: timeout,
		logger:  logger,
	}
}

type probeResult struct {
	id    ServiceID
	state ServiceState
}

// Collect probes every configured service concurrently and returns a complete
// map: one entry per catalog service, unknown where the probe failed, timed
// out, panicked, or was never registered.
func (a *aggregator) Collect(ctx context.Context) map[ServiceID]ServiceState {
	services := a.catalog.Services()
	results := make(chan probeResult, len(services))

	var wg sync.WaitGroup
	for _, svc := range services {
		wg.Add(1)
		go func(svc Service) {
			defer wg.Done()
			results <- probeResult{id: svc.ID, state: a.probeOne(ctx, svc)}
		}(svc)
	}
	wg.Wait()
	close(results)

	states := make(map[ServiceID]ServiceState, len(services))
	for r := range results {
		states[r.id] = r.state
	}
	return states
}

// probeOne runs a single probe under its own timeout. The probe call itself
// runs in a separate goroutine so a probe that ignores ctx still cannot hold
// up the cycle past the timeout.
func (a *aggregator) probeOne(ctx context.Context, svc Service) ServiceState {
	probe, ok := a.probes[svc.ID]
	if !ok {
		return a.unknownState(ErrProbeNotRegistered)
	}

	probeCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type outcome struct {
		state ServiceState
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("probe panicked: %v", r)}
			}
		}()
		state, err := probe.CheckState(probeCtx)
		done <- outcome{state: state, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			a.logger.Warn().
				Str("service", string(svc.ID)).
				Err(out.err).
				Msg("probe failed")
			return a.unknownState(out.err)
		}
		out.state.UpdatedAt = time.Now()
		return out.state
	case <-probeCtx.Done():
		a.logger.Warn().
			Str("service", string(svc.ID)).
			Dur("timeout", a.timeout).
			Msg("probe did not answer in time")
		return a.unknownState(probeCtx.Err())
	}
}

// unknownState is the synthetic state substituted for a failed probe.
func (a *aggregator) unknownState(err error) ServiceState {
	now := time.Now()
	return ServiceState{
		Status:           StatusUnknown,
		LastError:        now,
		LastErrorMessage: err.Error(),
		UpdatedAt:        now,
	}
}
