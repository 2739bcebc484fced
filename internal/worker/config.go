// Package worker provides background job processing for ServiField's health
// engine: the periodic check scheduler and the Pub/Sub job consumer.
package worker

import (
	"time"
)

// Job types accepted on the worker subscription.
const (
	// JobHealthCheck forces an immediate out-of-band health check.
	JobHealthCheck = "health_check"
)

// CheckConfig holds configuration for the on-demand check job.
type CheckConfig struct {
	// Timeout bounds one forced health check.
	// Default: 30 seconds
	Timeout time.Duration

	// MinInterval drops forced checks arriving closer together than this,
	// so a misbehaving publisher cannot stampede the probes.
	// Default: 5 seconds
	MinInterval time.Duration
}

// DefaultCheckConfig returns the default check job configuration.
func DefaultCheckConfig() CheckConfig {
	return CheckConfig{
		Timeout:     30 * time.Second,
		MinInterval: 5 * time.Second,
	}
}

// withDefaults fills in zero fields.
func (c CheckConfig) withDefaults() CheckConfig {
	d := DefaultCheckConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MinInterval <= 0 {
		c.MinInterval = d.MinInterval
	}
	return c
}
