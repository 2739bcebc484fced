package degradation

import (
	"context"
)

// ServiceProbe reports the current state of one external dependency.
//
// CheckState must honor ctx and return promptly; the aggregator enforces a
// timeout around every call and treats errors and timeouts as an unknown
// state. Probes must not retry indefinitely and must not mutate any shared
// manager state.
type ServiceProbe interface {
	CheckState(ctx context.Context) (ServiceState, error)
}

// ProbeFunc adapts a plain function to the ServiceProbe interface.
type ProbeFunc func(ctx context.Context) (ServiceState, error)

// CheckState calls f.
func (f ProbeFunc) CheckState(ctx context.Context) (ServiceState, error) {
	return f(ctx)
}

// StaticProbe returns a probe that always reports the given state. Useful
// for dependencies without a live check and in tests.
func StaticProbe(state ServiceState) ServiceProbe {
	return ProbeFunc(func(context.Context) (ServiceState, error) {
		return state, nil
	})
}
