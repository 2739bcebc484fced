package degradation_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servifield/servifield/internal/degradation"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) (float64, bool) {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	metric:
		for _, m := range fam.GetMetric() {
			for k, v := range labels {
				if !hasLabel(m, k, v) {
					continue metric
				}
			}
			switch {
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue(), true
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue(), true
			}
		}
	}
	return 0, false
}

func hasLabel(m *dto.Metric, key, value string) bool {
	for _, l := range m.GetLabel() {
		if l.GetName() == key && l.GetValue() == value {
			return true
		}
	}
	return false
}

func TestMetrics_SnapshotExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, func(cfg *degradation.Config) {
		cfg.Metrics = degradation.NewMetrics(reg)
	})

	f.probes[degradation.ServiceMessaging].setStatus(degradation.StatusUnavailable)
	f.check(t)

	v, ok := gatherValue(t, reg, "degradation_system_status", nil)
	require.True(t, ok)
	assert.Equal(t, 2.0, v, "degraded maps to 2")

	v, ok = gatherValue(t, reg, "degradation_service_status", map[string]string{"service": "messaging"})
	require.True(t, ok)
	assert.Equal(t, 0.0, v, "unavailable maps to 0")

	v, ok = gatherValue(t, reg, "degradation_service_status", map[string]string{"service": "database"})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok = gatherValue(t, reg, "degradation_feature_available", map[string]string{"feature": "whatsapp_messaging"})
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	v, ok = gatherValue(t, reg, "degradation_services_healthy", nil)
	require.True(t, ok)
	assert.Equal(t, 6.0, v)
}

func TestMetrics_IncidentCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, func(cfg *degradation.Config) {
		cfg.Metrics = degradation.NewMetrics(reg)
		cfg.AutoResolveDelay = 30 * time.Millisecond
	})

	f.probes[degradation.ServiceDatabase].setStatus(degradation.StatusUnavailable)
	f.check(t)

	v, ok := gatherValue(t, reg, "degradation_incidents_total", map[string]string{"severity": "critical"})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok = gatherValue(t, reg, "degradation_incidents_active", map[string]string{"severity": "critical"})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	// Recovery drains the active gauge on the next snapshot.
	f.probes[degradation.ServiceDatabase].setStatus(degradation.StatusHealthy)
	f.check(t)
	require.Eventually(t, func() bool {
		return len(f.manager.GetActiveIncidents()) == 0
	}, time.Second, 5*time.Millisecond)
	f.check(t)

	v, ok = gatherValue(t, reg, "degradation_incidents_active", map[string]string{"severity": "critical"})
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	// The total is monotonic.
	v, ok = gatherValue(t, reg, "degradation_incidents_total", map[string]string{"severity": "critical"})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}
