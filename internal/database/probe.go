package database

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/servifield/servifield/internal/degradation"
	"github.com/servifield/servifield/internal/provider"
)

// Pinger is the slice of a connection pool the health probe needs.
// *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewProbe creates a health probe over a connection pool. A reachable
// database reads as healthy, anything else as unavailable.
func NewProbe(pinger Pinger, logger zerolog.Logger) degradation.ServiceProbe {
	return provider.NewPingProbe("database", pinger.Ping, logger)
}
