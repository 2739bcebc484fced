package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/servifield/servifield/internal/degradation"
)

// ErrCheckThrottled is returned when a forced check arrives before the
// minimum interval since the previous one has elapsed.
var ErrCheckThrottled = errors.New("health check throttled")

// HealthChecker is the slice of the degradation manager the worker needs.
// *degradation.Manager satisfies it.
type HealthChecker interface {
	GetSystemHealth(ctx context.Context) (*degradation.SystemHealth, error)
}

// CheckJob runs forced health checks on behalf of Pub/Sub job messages. The
// periodic schedule lives inside the manager itself; this job only covers
// operator- and automation-triggered out-of-band checks.
type CheckJob struct {
	config  CheckConfig
	checker HealthChecker
	logger  zerolog.Logger

	metrics CheckMetrics

	mu      sync.Mutex
	lastRun time.Time
}

// CheckMetrics tracks check job statistics.
type CheckMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalChecks     int64
	FailedChecks    int64
	ThrottledChecks int64

	// Timings
	LastCheckAt       time.Time
	LastCheckDuration time.Duration
	TotalDuration     time.Duration

	// LastStatus is the system status of the most recent check.
	LastStatus degradation.SystemStatus
}

// NewCheckJob creates a new check job processor.
func NewCheckJob(cfg CheckConfig, checker HealthChecker, logger zerolog.Logger) *CheckJob {
	return &CheckJob{
		config:  cfg.withDefaults(),
		checker: checker,
		logger:  logger,
	}
}

// CheckResult contains the result of one forced check.
type CheckResult struct {
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
	Status          degradation.SystemStatus
	HealthyServices int
	TotalServices   int
	ActiveIncidents int
}

// Run executes one forced health check. Checks arriving within MinInterval
// of the previous run return ErrCheckThrottled without touching the probes.
func (j *CheckJob) Run(ctx context.Context) (*CheckResult, error) {
	j.mu.Lock()
	if since := time.Since(j.lastRun); since < j.config.MinInterval {
		j.mu.Unlock()
		j.recordThrottled()
		j.logger.Debug().
			Dur("since_last", since).
			Msg("forced health check throttled")
		return nil, ErrCheckThrottled
	}
	j.lastRun = time.Now()
	j.mu.Unlock()

	startTime := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	snap, err := j.checker.GetSystemHealth(checkCtx)
	if err != nil {
		j.recordFailure(startTime)
		return nil, err
	}

	result := &CheckResult{
		StartTime:       startTime,
		EndTime:         time.Now(),
		Status:          snap.Status,
		HealthyServices: snap.HealthyCount,
		TotalServices:   snap.TotalServices,
		ActiveIncidents: len(snap.ActiveIncidents),
	}
	result.Duration = result.EndTime.Sub(startTime)

	j.recordSuccess(result)

	j.logger.Info().
		Str("status", string(result.Status)).
		Int("healthy", result.HealthyServices).
		Int("services", result.TotalServices).
		Int("active_incidents", result.ActiveIncidents).
		Dur("duration", result.Duration).
		Msg("forced health check completed")

	return result, nil
}

func (j *CheckJob) recordSuccess(result *CheckResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalChecks++
	j.metrics.LastCheckAt = result.EndTime
	j.metrics.LastCheckDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
	j.metrics.LastStatus = result.Status
}

func (j *CheckJob) recordFailure(startTime time.Time) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalChecks++
	j.metrics.FailedChecks++
	j.metrics.LastCheckAt = time.Now()
	j.metrics.LastCheckDuration = time.Since(startTime)
}

func (j *CheckJob) recordThrottled() {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.ThrottledChecks++
}

// GetMetrics returns a copy of the current metrics.
func (j *CheckJob) GetMetrics() CheckMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return CheckMetrics{
		TotalChecks:       j.metrics.TotalChecks,
		FailedChecks:      j.metrics.FailedChecks,
		ThrottledChecks:   j.metrics.ThrottledChecks,
		LastCheckAt:       j.metrics.LastCheckAt,
		LastCheckDuration: j.metrics.LastCheckDuration,
		TotalDuration:     j.metrics.TotalDuration,
		LastStatus:        j.metrics.LastStatus,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *CheckJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_checks":        m.TotalChecks,
		"failed_checks":       m.FailedChecks,
		"throttled_checks":    m.ThrottledChecks,
		"last_check_at":       m.LastCheckAt,
		"last_check_duration": m.LastCheckDuration.String(),
		"total_duration":      m.TotalDuration.String(),
		"last_status":         string(m.LastStatus),
	}
}
