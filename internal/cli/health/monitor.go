// Package health polls the backend's detailed health endpoint until every
// tracked subsystem is up. It hides cold-start latency: callers wait on
// Settled before sending real work.
package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ragdesk-dev/ragdesk/internal/cli/client"
)

// PollInterval is the fixed delay between health checks
const PollInterval = 5 * time.Second

// DefaultDependency is the subsystem tracked alongside the backend
const DefaultDependency = "milvus"

// Checker fetches the detailed health payload
type Checker interface {
	DetailedHealth(ctx context.Context) (*client.HealthResponse, error)
}

// Snapshot is the monitor's view after the latest applied check
type Snapshot struct {
	BackendUp    bool `json:"backend_up"`
	DependencyUp bool `json:"dependency_up"`
	IsPolling    bool `json:"is_polling"`
	AllHealthy   bool `json:"all_healthy"`
}

// Monitor polls until the backend and its dependency both report healthy.
// Once settled it never polls again; a new Monitor is needed to start over.
type Monitor struct {
	checker    Checker
	logger     zerolog.Logger
	interval   time.Duration
	dependency string
	onChange   func(Snapshot)

	mu      sync.Mutex
	snap    Snapshot
	started bool
	stopped bool
	cancel  context.CancelFunc
	settled chan struct{}
	done    chan struct{}
}

// Option configures a Monitor
type Option func(*Monitor)

// WithDependency sets the name of the tracked dependency service
func WithDependency(name string) Option {
	return func(m *Monitor) {
		if name != "" {
			m.dependency = name
		}
	}
}

// WithOnChange registers a callback run after every applied check. It runs
// with the monitor's lock held, so it must not block or call back into the Monitor.
func WithOnChange(fn func(Snapshot)) Option {
	return func(m *Monitor) {
		m.onChange = fn
	}
}

// New creates a monitor. It does nothing until Start is called.
func New(checker Checker, logger zerolog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		checker:    checker,
		logger:     logger,
		interval:   PollInterval,
		dependency: DefaultDependency,
		settled:    make(chan struct{}),
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start checks health immediately and then every PollInterval until settled,
// ctx is cancelled or Stop is called. Calling Start more than once has no effect.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.snap.IsPolling = true
	m.mu.Unlock()

	go m.run(ctx)
}

// Stop cancels the schedule and any in-flight check. A check that completes
// after Stop is discarded. Stop does not wait; use Done for that.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.stopped = true
	if m.cancel != nil {
		m.cancel()
	}
	if !m.started {
		close(m.done)
	}
}

// Snapshot returns the latest health snapshot
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Settled is closed once both subsystems have been seen healthy together
func (m *Monitor) Settled() <-chan struct{} {
	return m.settled
}

// Done is closed when the polling goroutine has exited
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	defer m.cancel()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Check immediately, then on every tick
	for {
		if m.tick(ctx) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one check and applies it. It reports whether polling is over.
func (m *Monitor) tick(ctx context.Context) bool {
	health, err := m.checker.DetailedHealth(ctx)
	next := m.classify(health, err)

	m.mu.Lock()
	if m.stopped || ctx.Err() != nil {
		m.mu.Unlock()
		return true
	}
	m.snap = next
	// Delivered under the lock so nothing reaches the consumer once Stop returns
	if m.onChange != nil {
		m.onChange(next)
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn().
			Err(err).
			Bool("backend_up", next.BackendUp).
			Bool("dependency_up", next.DependencyUp).
			Msg("Health check failed")
	} else if health != nil {
		m.logger.Debug().
			Str("status", health.Status).
			Str("dependency", m.dependency).
			Str("dependency_status", health.ServiceState(m.dependency)).
			Msg("Health check")
	}

	if next.AllHealthy {
		close(m.settled)
		m.logger.Info().Msg("All services healthy")
		return true
	}
	return false
}

func (m *Monitor) classify(health *client.HealthResponse, err error) Snapshot {
	snap := Snapshot{IsPolling: true}

	if err != nil {
		// A completed non-2xx response proves the backend is up but never
		// settles the monitor, whatever its body says. Anything else, an
		// unusable 2xx payload included, counts as a failed request.
		var apiErr *client.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode != 0 && !isSuccess(apiErr.StatusCode) {
			snap.BackendUp = true
		}
		return snap
	}

	if health != nil {
		snap.BackendUp = health.Status == "healthy" || health.Status == "degraded"
		snap.DependencyUp = health.ServiceState(m.dependency) == "healthy"
	}

	if snap.BackendUp && snap.DependencyUp {
		snap.AllHealthy = true
		snap.IsPolling = false
	}
	return snap
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
