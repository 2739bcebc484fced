package degradation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors the engine state into Prometheus gauges and counters. It
// is optional: a nil Metrics on the manager disables collection.
type Metrics struct {
	serviceStatus      *prometheus.GaugeVec
	serviceSuccessRate *prometheus.GaugeVec
	serviceLatency     *prometheus.GaugeVec
	featureAvailable   *prometheus.GaugeVec
	systemStatus       prometheus.Gauge
	servicesHealthy    prometheus.Gauge
	incidentsActive    *prometheus.GaugeVec
	incidentsTotal     *prometheus.CounterVec
	cycleDuration      prometheus.Histogram
}

// NewMetrics registers the engine metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		serviceStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "degradation_service_status",
				Help: "Service health (1=healthy, 0.5=degraded, 0=unavailable, -1=unknown)",
			},
			[]string{"service"},
		),
		serviceSuccessRate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "degradation_service_success_rate",
				Help: "Rolling probe success rate per service (0-100)",
			},
			[]string{"service"},
		),
		serviceLatency: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "degradation_service_latency_ms",
				Help: "Rolling average probe latency per service in milliseconds",
			},
			[]string{"service"},
		),
		featureAvailable: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "degradation_feature_available",
				Help: "Whether the feature is available (1) or not (0)",
			},
			[]string{"feature"},
		),
		systemStatus: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "degradation_system_status",
				Help: "System status (3=operational, 2=degraded, 1=partial_outage, 0=major_outage)",
			},
		),
		servicesHealthy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "degradation_services_healthy",
				Help: "Number of services currently healthy",
			},
		),
		incidentsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "degradation_incidents_active",
				Help: "Number of currently active incidents",
			},
			[]string{"severity"},
		),
		incidentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "degradation_incidents_total",
				Help: "Total number of incidents opened",
			},
			[]string{"severity"},
		),
		cycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "degradation_check_cycle_duration_seconds",
				Help:    "Duration of full aggregation cycles in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
	}
}

// ObserveSnapshot records one published snapshot.
func (m *Metrics) ObserveSnapshot(snap *SystemHealth) {
	for id, state := range snap.Services {
		labels := prometheus.Labels{"service": string(id)}
		m.serviceStatus.With(labels).Set(statusValue(state.Status))
		m.serviceSuccessRate.With(labels).Set(state.SuccessRate)
		m.serviceLatency.With(labels).Set(state.AvgLatencyMs)
	}

	for id, state := range snap.Features {
		available := 0.0
		if state.Available {
			available = 1.0
		}
		m.featureAvailable.With(prometheus.Labels{"feature": string(id)}).Set(available)
	}

	m.systemStatus.Set(systemStatusValue(snap.Status))
	m.servicesHealthy.Set(float64(snap.HealthyCount))

	counts := map[IncidentSeverity]int{}
	for _, inc := range snap.ActiveIncidents {
		counts[inc.Severity]++
	}
	for _, sev := range []IncidentSeverity{IncidentMinor, IncidentMajor, IncidentCritical} {
		m.incidentsActive.With(prometheus.Labels{"severity": string(sev)}).Set(float64(counts[sev]))
	}
}

// ObserveCycle records the duration of one aggregation cycle.
func (m *Metrics) ObserveCycle(d time.Duration) {
	m.cycleDuration.Observe(d.Seconds())
}

// RecordIncidentEvent counts newly opened incidents.
func (m *Metrics) RecordIncidentEvent(ev IncidentEvent) {
	if ev.Type == EventIncidentCreated {
		m.incidentsTotal.With(prometheus.Labels{"severity": string(ev.Incident.Severity)}).Inc()
	}
}

func statusValue(s ServiceStatus) float64 {
	switch s {
	case StatusHealthy:
		return 1
	case StatusDegraded:
		return 0.5
	case StatusUnavailable:
		return 0
	default:
		return -1
	}
}

func systemStatusValue(s SystemStatus) float64 {
	switch s {
	case SystemOperational:
		return 3
	case SystemDegraded:
		return 2
	case SystemPartialOutage:
		return 1
	default:
		return 0
	}
}
