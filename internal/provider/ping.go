package provider

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/servifield/servifield/internal/degradation"
	"github.com/servifield/servifield/internal/provider/resilience"
)

// PingFunc checks one infrastructure dependency. A nil return means it is
// reachable and serving.
type PingFunc func(ctx context.Context) error

// PingProbe adapts a ping into a probe for dependencies that have no circuit
// breaker in front of them, such as the database pool or Redis. A successful
// ping reads as healthy, a failed one as unavailable; the circuit state stays
// empty.
type PingProbe struct {
	name   string
	ping   PingFunc
	logger zerolog.Logger

	mu          sync.Mutex
	window      resilience.OutcomeWindow
	lastSuccess time.Time
	lastError   time.Time
	lastMessage string
}

// NewPingProbe builds a probe that derives service state from ping outcomes.
func NewPingProbe(name string, ping PingFunc, logger zerolog.Logger) *PingProbe {
	return &PingProbe{
		name:   name,
		ping:   ping,
		logger: logger.With().Str("probe", name).Logger(),
	}
}

// CheckState implements degradation.ServiceProbe.
func (p *PingProbe) CheckState(ctx context.Context) (degradation.ServiceState, error) {
	start := time.Now()
	err := p.ping(ctx)
	latency := time.Since(start)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.window.Record(err == nil, latency)
	now := time.Now()

	state := degradation.ServiceState{
		SuccessRate:  p.window.SuccessRate(),
		AvgLatencyMs: p.window.AvgLatencyMs(),
		UpdatedAt:    now,
	}

	if err != nil {
		p.lastError = now
		p.lastMessage = err.Error()
		p.logger.Warn().Err(err).Msg("ping failed")

		state.Status = degradation.StatusUnavailable
		state.LastSuccess = p.lastSuccess
		state.LastError = p.lastError
		state.LastErrorMessage = p.lastMessage
		return state, nil
	}

	p.lastSuccess = now

	state.Status = degradation.StatusHealthy
	state.LastSuccess = p.lastSuccess
	state.LastError = p.lastError
	return state, nil
}
