package blobstore

import (
	"github.com/rs/zerolog"

	"github.com/servifield/servifield/internal/degradation"
	"github.com/servifield/servifield/internal/provider"
)

// NewProbe creates a health probe over the store. A reachable bucket reads
// as healthy, anything else as unavailable.
func NewProbe(store *Store, logger zerolog.Logger) degradation.ServiceProbe {
	return provider.NewPingProbe("storage", store.Ping, logger)
}
