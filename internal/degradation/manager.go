package degradation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Manager defaults.
const (
	DefaultPollInterval     = 30 * time.Second
	DefaultAutoResolveDelay = 5 * time.Minute

	// cycleGrace pads the aggregation deadline beyond the per-probe
	// timeout. Probes run in parallel, so one timeout plus slack bounds
	// the whole cycle.
	cycleGrace = 2 * time.Second

	// sinkTimeout bounds a single incident sink notification.
	sinkTimeout = 10 * time.Second
)

// Config configures a Manager. Zero values fall back to defaults.
type Config struct {
	// Catalog is the static dependency map (default: DefaultCatalog()).
	Catalog *Catalog

	// Probes maps each service to its health probe. A catalog service
	// without a probe reports unknown; a probe for a service the catalog
	// does not know is a construction error.
	Probes map[ServiceID]ServiceProbe

	// Logger for manager operations.
	Logger zerolog.Logger

	// PollInterval is the background check period (default: 30s).
	PollInterval time.Duration

	// ProbeTimeout bounds each individual probe call (default: 5s).
	ProbeTimeout time.Duration

	// AutoResolveDelay is how long an incident must stay quiet in
	// monitoring before it resolves automatically (default: 5m).
	AutoResolveDelay time.Duration

	// DisableAutoIncidents turns off automatic incident creation for
	// critical services.
	DisableAutoIncidents bool

	// Sinks receive incident lifecycle events.
	Sinks []IncidentSink

	// Metrics mirrors snapshots and incident transitions into Prometheus
	// when set.
	Metrics *Metrics
}

// Manager owns the aggregation cycle, the cached snapshot, the incident set
// and the subscriber registry. Construct one at startup and share it; it is
// safe for concurrent use.
type Manager struct {
	catalog          *Catalog
	agg              *aggregator
	incidents        *incidentStore
	logger           zerolog.Logger
	sinks            []IncidentSink
	metrics          *Metrics
	pollInterval     time.Duration
	probeTimeout     time.Duration
	autoResolveDelay time.Duration
	autoIncidents    bool

	// mu serializes the aggregate-reconcile-publish sequence and every
	// incident mutation, including delayed auto-resolves.
	mu sync.Mutex

	snapMu   sync.RWMutex
	snapshot *SystemHealth

	subMu     sync.RWMutex
	subs      map[int]func(*SystemHealth)
	nextSubID int

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewManager builds a Manager from cfg.
func NewManager(cfg Config) (*Manager, error) {
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	for id := range cfg.Probes {
		if _, ok := catalog.Service(id); !ok {
			return nil, fmt.Errorf("%w: probe registered for %q", ErrUnknownService, id)
		}
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	autoResolveDelay := cfg.AutoResolveDelay
	if autoResolveDelay <= 0 {
		autoResolveDelay = DefaultAutoResolveDelay
	}

	return &Manager{
		catalog:          catalog,
		agg:              newAggregator(catalog, cfg.Probes, probeTimeout, cfg.Logger),
		incidents:        newIncidentStore(catalog, cfg.Logger),
		logger:           cfg.Logger,
		sinks:            cfg.Sinks,
		metrics:          cfg.Metrics,
		pollInterval:     pollInterval,
		probeTimeout:     probeTimeout,
		autoResolveDelay: autoResolveDelay,
		autoIncidents:    !cfg.DisableAutoIncidents,
		subs:             make(map[int]func(*SystemHealth)),
	}, nil
}

// Catalog returns the static dependency map.
func (m *Manager) Catalog() *Catalog {
	return m.catalog
}

// GetSystemHealth runs a full aggregation cycle: probe every service,
// resolve features, classify the system, reconcile incidents, publish the
// snapshot. Safe to call concurrently with the scheduler; cycles are
// serialized so readers never observe a half-built snapshot.
//
// The cycle itself is bounded by the probe timeout plus slack rather than
// ctx, so one caller's cancellation cannot poison the shared snapshot with
// synthetic unknowns; ctx gates entry only. Probe failures degrade the
// snapshot instead of failing the call.
func (m *Manager) GetSystemHealth(ctx context.Context) (*SystemHealth, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	cycleCtx, cancel := context.WithTimeout(context.Background(), m.probeTimeout+cycleGrace)
	defer cancel()

	states := m.agg.Collect(cycleCtx)
	features := ResolveFeatures(m.catalog, states)
	status := Classify(m.catalog, states)
	events := m.incidents.reconcile(states, m.autoIncidents, time.Now())

	snap := m.buildSnapshot(status, states, features)

	m.snapMu.Lock()
	m.snapshot = snap
	m.snapMu.Unlock()

	if m.metrics != nil {
		m.metrics.ObserveSnapshot(snap)
		m.metrics.ObserveCycle(time.Since(start))
	}
	m.afterTransitions(events)
	m.notifySubscribers(snap)

	m.logger.Debug().
		Str("status", string(snap.Status)).
		Int("healthy", snap.HealthyCount).
		Int("services", snap.TotalServices).
		Int("active_incidents", len(snap.ActiveIncidents)).
		Dur("took", time.Since(start)).
		Msg("health snapshot computed")

	return snap, nil
}

// GetCachedHealth returns the last published snapshot without recomputation,
// nil before the first cycle completes.
func (m *Manager) GetCachedHealth() *SystemHealth {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snapshot
}

// Subscribe registers fn to receive every freshly published snapshot. Each
// invocation runs on its own goroutine; a slow or panicking subscriber never
// blocks the cycle or other subscribers. The returned function removes the
// subscription.
func (m *Manager) Subscribe(fn func(*SystemHealth)) (unsubscribe func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = fn

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

// StartHealthChecks launches the periodic scheduler. It checks immediately,
// then on every poll interval. Calling it while running is a no-op.
func (m *Manager) StartHealthChecks() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.run(m.stopCh, m.doneCh)

	m.logger.Info().
		Dur("interval", m.pollInterval).
		Msg("health checks started")
}

// StopHealthChecks stops the scheduler and waits for the loop to exit.
// Calling it while stopped is a no-op.
func (m *Manager) StopHealthChecks() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if !m.running {
		return
	}
	close(m.stopCh)
	<-m.doneCh
	m.running = false

	m.logger.Info().Msg("health checks stopped")
}

// CreateIncident opens an incident on behalf of an operator. The one active
// incident per service rule applies to manual incidents too.
func (m *Manager) CreateIncident(ctx context.Context, p CreateIncidentParams) (*Incident, error) {
	m.mu.Lock()
	inc, err := m.incidents.create(p, time.Now())
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	ev := IncidentEvent{Type: EventIncidentCreated, Incident: inc.Clone(), OccurredAt: time.Now()}
	m.mu.Unlock()

	m.logger.Info().
		Str("incident_id", ev.Incident.ID).
		Str("severity", string(ev.Incident.Severity)).
		Msg("incident opened by operator")
	m.afterTransitions([]IncidentEvent{ev})

	out := ev.Incident
	return &out, nil
}

// UpdateIncident applies an operator update: a status change, a note, or
// both. Status changes only move the lifecycle forward.
func (m *Manager) UpdateIncident(ctx context.Context, id string, p UpdateIncidentParams) (*Incident, error) {
	m.mu.Lock()
	inc, err := m.incidents.update(id, p, time.Now())
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	ev := IncidentEvent{Type: EventIncidentUpdated, Incident: inc.Clone(), OccurredAt: time.Now()}
	if inc.Resolved() {
		ev.Type = EventIncidentResolved
	}
	m.mu.Unlock()

	m.afterTransitions([]IncidentEvent{ev})

	out := ev.Incident
	return &out, nil
}

// ResolveIncident closes an incident on behalf of an operator.
func (m *Manager) ResolveIncident(ctx context.Context, id, message string) (*Incident, error) {
	m.mu.Lock()
	inc, err := m.incidents.resolve(id, message, time.Now())
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	ev := IncidentEvent{Type: EventIncidentResolved, Incident: inc.Clone(), OccurredAt: time.Now()}
	m.mu.Unlock()

	m.logger.Info().
		Str("incident_id", ev.Incident.ID).
		Msg("incident resolved by operator")
	m.afterTransitions([]IncidentEvent{ev})

	out := ev.Incident
	return &out, nil
}

// GetActiveIncidents returns copies of every non-resolved incident in
// creation order.
func (m *Manager) GetActiveIncidents() []Incident {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.incidents.active()
}

// GetIncident returns a copy of one incident, resolved or not.
func (m *Manager) GetIncident(id string) (*Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inc, ok := m.incidents.get(id)
	if !ok {
		return nil, ErrIncidentNotFound
	}
	out := inc.Clone()
	return &out, nil
}

// run is the scheduler loop.
func (m *Manager) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	m.checkOnce()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkOnce()
		case <-stop:
			return
		}
	}
}

func (m *Manager) checkOnce() {
	if _, err := m.GetSystemHealth(context.Background()); err != nil {
		m.logger.Error().Err(err).Msg("scheduled health check failed")
	}
}

// buildSnapshot assembles the immutable snapshot for the cycle. Callers hold
// m.mu.
func (m *Manager) buildSnapshot(status SystemStatus, states map[ServiceID]ServiceState, features map[FeatureID]FeatureState) *SystemHealth {
	healthy := 0
	for _, st := range states {
		if st.Status == StatusHealthy {
			healthy++
		}
	}
	unavailableFeatures := 0
	for _, fs := range features {
		if !fs.Available {
			unavailableFeatures++
		}
	}

	return &SystemHealth{
		Status:               status,
		Message:              StatusMessage(status, unavailableFeatures),
		Services:             states,
		Features:             features,
		ActiveIncidents:      m.incidents.active(),
		HealthyCount:         healthy,
		TotalServices:        m.catalog.ServiceCount(),
		DegradedFeatureCount: unavailableFeatures,
		UpdatedAt:            time.Now(),
	}
}

// afterTransitions performs the bookkeeping every lifecycle transition
// needs: arming the auto-resolve for incidents entering monitoring,
// recording metrics, and notifying sinks.
func (m *Manager) afterTransitions(events []IncidentEvent) {
	for _, ev := range events {
		if ev.Incident.Status == IncidentMonitoring {
			m.scheduleAutoResolve(ev.Incident.ID, ev.Incident.monitoringEpoch)
		}
		if m.metrics != nil {
			m.metrics.RecordIncidentEvent(ev)
		}
	}
	m.dispatchEvents(events)
}

// scheduleAutoResolve arms the delayed resolution for an incident that just
// entered monitoring. The handler re-validates status and monitoring epoch
// under the lock: a timer left over from before a regression fires as a
// no-op even when the incident has since recovered into a new monitoring
// stint, which gets its own timer and a full cool-down.
func (m *Manager) scheduleAutoResolve(id string, epoch uint64) {
	time.AfterFunc(m.autoResolveDelay, func() {
		m.mu.Lock()
		ev, ok := m.incidents.autoResolve(id, epoch, time.Now())
		m.mu.Unlock()
		if !ok {
			return
		}
		if m.metrics != nil {
			m.metrics.RecordIncidentEvent(ev)
		}
		m.dispatchEvents([]IncidentEvent{ev})
	})
}

// dispatchEvents fans incident events out to sinks, one goroutine per sink
// and event, each isolated and bounded.
func (m *Manager) dispatchEvents(events []IncidentEvent) {
	if len(events) == 0 || len(m.sinks) == 0 {
		return
	}
	for _, ev := range events {
		for _, sink := range m.sinks {
			go func(sink IncidentSink, ev IncidentEvent) {
				defer func() {
					if r := recover(); r != nil {
						m.logger.Error().
							Interface("panic", r).
							Str("incident_id", ev.Incident.ID).
							Msg("incident sink panicked")
					}
				}()

				ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
				defer cancel()

				if err := sink.RecordIncident(ctx, ev); err != nil {
					m.logger.Error().
						Err(err).
						Str("incident_id", ev.Incident.ID).
						Str("event", string(ev.Type)).
						Msg("incident sink failed")
				}
			}(sink, ev)
		}
	}
}

// notifySubscribers hands the snapshot to every subscriber, each on its own
// goroutine with panic isolation.
func (m *Manager) notifySubscribers(snap *SystemHealth) {
	m.subMu.RLock()
	fns := make([]func(*SystemHealth), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.RUnlock()

	for _, fn := range fns {
		go func(fn func(*SystemHealth)) {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error().
						Interface("panic", r).
						Msg("health subscriber panicked")
				}
			}()
			fn(snap)
		}(fn)
	}
}
