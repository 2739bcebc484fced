package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/servifield/servifield/internal/degradation"
	"github.com/servifield/servifield/internal/provider"
)

// Pinger is the slice of a Redis client the health probe needs. *Client and
// *redis.Client both satisfy it.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewProbe creates a health probe over a Redis client. A reachable server
// reads as healthy, anything else as unavailable.
func NewProbe(pinger Pinger, logger zerolog.Logger) degradation.ServiceProbe {
	return provider.NewPingProbe("cache", func(ctx context.Context) error {
		return pinger.Ping(ctx).Err()
	}, logger)
}
