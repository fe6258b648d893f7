package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragdesk-dev/ragdesk/internal/cli/client"
)

type response struct {
	health *client.HealthResponse
	err    error
}

// scriptedChecker replays responses in order and repeats the last one
type scriptedChecker struct {
	mu        sync.Mutex
	responses []response
	calls     int
}

func (s *scriptedChecker) DetailedHealth(ctx context.Context) (*client.HealthResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return s.responses[i].health, s.responses[i].err
}

func (s *scriptedChecker) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func healthResp(status, milvus string) *client.HealthResponse {
	return &client.HealthResponse{
		Status:   status,
		Services: map[string]client.ServiceStatus{"milvus": {Status: milvus}},
	}
}

var (
	networkFailure = &client.Error{Kind: client.KindNetwork, Message: "Unable to reach the server. Please try again later."}
	badGateway     = &client.Error{Kind: client.KindServer, StatusCode: http.StatusBadGateway, Message: "An unexpected error occurred"}
)

func newFastMonitor(checker Checker, opts ...Option) *Monitor {
	m := New(checker, zerolog.Nop(), opts...)
	m.interval = 10 * time.Millisecond
	return m
}

func waitDone(t *testing.T, m *Monitor) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestMonitor_ScriptedSequence(t *testing.T) {
	checker := &scriptedChecker{responses: []response{
		{err: networkFailure},
		{health: healthResp("degraded", "unhealthy")},
		{health: healthResp("healthy", "healthy")},
	}}

	var mu sync.Mutex
	var seen []Snapshot
	m := newFastMonitor(checker, WithOnChange(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}))

	m.Start(context.Background())
	waitDone(t, m)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Equal(t, Snapshot{IsPolling: true}, seen[0])
	assert.Equal(t, Snapshot{BackendUp: true, IsPolling: true}, seen[1])
	assert.Equal(t, Snapshot{BackendUp: true, DependencyUp: true, AllHealthy: true}, seen[2])

	assert.Equal(t, seen[2], m.Snapshot())

	select {
	case <-m.Settled():
	default:
		t.Fatal("expected Settled to be closed")
	}

	// Nothing is scheduled after settling
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, checker.callCount())
}

func TestMonitor_ChecksImmediately(t *testing.T) {
	checker := &scriptedChecker{responses: []response{{health: healthResp("healthy", "healthy")}}}
	m := New(checker, zerolog.Nop())

	// With the real interval, settling quickly proves the first check did not wait
	m.Start(context.Background())
	select {
	case <-m.Settled():
	case <-time.After(time.Second):
		t.Fatal("first check should run without waiting for the interval")
	}
	waitDone(t, m)
	assert.Equal(t, 1, checker.callCount())
}

func TestMonitor_ReachableButFailingKeepsPolling(t *testing.T) {
	checker := &scriptedChecker{responses: []response{
		{err: badGateway},
		{err: badGateway},
		{health: healthResp("healthy", "healthy")},
	}}

	var first Snapshot
	var once sync.Once
	m := newFastMonitor(checker, WithOnChange(func(s Snapshot) {
		once.Do(func() { first = s })
	}))

	m.Start(context.Background())
	waitDone(t, m)

	assert.Equal(t, Snapshot{BackendUp: true, IsPolling: true}, first)
	assert.Equal(t, 3, checker.callCount())
	assert.True(t, m.Snapshot().AllHealthy)
}

func TestMonitor_DependencyMustBeExactlyHealthy(t *testing.T) {
	m := New(nil, zerolog.Nop())

	tests := []struct {
		name string
		resp *client.HealthResponse
		want Snapshot
	}{
		{"both healthy", healthResp("healthy", "healthy"), Snapshot{BackendUp: true, DependencyUp: true, AllHealthy: true}},
		{"degraded backend counts as up", healthResp("degraded", "healthy"), Snapshot{BackendUp: true, DependencyUp: true, AllHealthy: true}},
		{"degraded dependency is down", healthResp("healthy", "degraded"), Snapshot{BackendUp: true, IsPolling: true}},
		{"unhealthy backend", healthResp("unhealthy", "healthy"), Snapshot{DependencyUp: true, IsPolling: true}},
		{"missing dependency", &client.HealthResponse{Status: "healthy"}, Snapshot{BackendUp: true, IsPolling: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.classify(tt.resp, nil))
		})
	}
}

func TestMonitor_ClassifyFailedChecks(t *testing.T) {
	m := New(nil, zerolog.Nop())

	tests := []struct {
		name string
		resp *client.HealthResponse
		err  error
		want Snapshot
	}{
		{"network failure", nil, networkFailure, Snapshot{IsPolling: true}},
		{"unusable success payload", nil, &client.Error{Kind: client.KindServer, StatusCode: http.StatusOK}, Snapshot{IsPolling: true}},
		{"unavailable with healthy body", healthResp("healthy", "healthy"), &client.Error{Kind: client.KindServer, StatusCode: http.StatusServiceUnavailable}, Snapshot{BackendUp: true, IsPolling: true}},
		{"unauthorized", nil, &client.Error{Kind: client.KindAuth, StatusCode: http.StatusUnauthorized}, Snapshot{BackendUp: true, IsPolling: true}},
		{"untyped error", nil, errors.New("boom"), Snapshot{IsPolling: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.classify(tt.resp, tt.err))
		})
	}
}

func TestMonitor_CustomDependency(t *testing.T) {
	m := New(nil, zerolog.Nop(), WithDependency("llm"))
	resp := &client.HealthResponse{
		Status: "healthy",
		Services: map[string]client.ServiceStatus{
			"milvus": {Status: "unhealthy"},
			"llm":    {Status: "healthy"},
		},
	}
	assert.True(t, m.classify(resp, nil).AllHealthy)
}

// blockingChecker holds each check until released, ignoring cancellation
type blockingChecker struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingChecker) DetailedHealth(ctx context.Context) (*client.HealthResponse, error) {
	close(b.started)
	<-b.release
	return healthResp("healthy", "healthy"), nil
}

func TestMonitor_StopDiscardsInFlightResult(t *testing.T) {
	checker := &blockingChecker{started: make(chan struct{}), release: make(chan struct{})}

	var changes atomic.Int32
	m := newFastMonitor(checker, WithOnChange(func(Snapshot) { changes.Add(1) }))
	m.Start(context.Background())

	<-checker.started
	before := m.Snapshot()
	m.Stop()
	close(checker.release)
	waitDone(t, m)

	assert.Equal(t, before, m.Snapshot())
	assert.Zero(t, changes.Load())
	select {
	case <-m.Settled():
		t.Fatal("a discarded result must not settle the monitor")
	default:
	}
}

func TestMonitor_ContextCancelStops(t *testing.T) {
	checker := &scriptedChecker{responses: []response{{err: networkFailure}}}
	m := newFastMonitor(checker)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()
	waitDone(t, m)

	calls := checker.callCount()
	assert.GreaterOrEqual(t, calls, 1)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, checker.callCount())
	assert.False(t, m.Snapshot().AllHealthy)
}

func TestMonitor_StopBeforeStart(t *testing.T) {
	checker := &scriptedChecker{responses: []response{{health: healthResp("healthy", "healthy")}}}
	m := newFastMonitor(checker)

	m.Stop()
	m.Start(context.Background())
	waitDone(t, m)
	assert.Zero(t, checker.callCount())

	// Stop is idempotent
	m.Stop()
}

func TestMonitor_StartTwice(t *testing.T) {
	checker := &scriptedChecker{responses: []response{{health: healthResp("healthy", "healthy")}}}
	m := newFastMonitor(checker)

	m.Start(context.Background())
	m.Start(context.Background())
	waitDone(t, m)
	assert.Equal(t, 1, checker.callCount())
}

func TestMonitor_WithClient(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch n {
		case 1:
			// Proxy in front of a sleeping backend
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(healthResp("degraded", "unhealthy"))
		default:
			json.NewEncoder(w).Encode(healthResp("healthy", "healthy"))
		}
	}))
	defer server.Close()

	var mu sync.Mutex
	var seen []Snapshot
	m := newFastMonitor(client.New(server.URL, nil, zerolog.Nop()), WithOnChange(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}))

	m.Start(context.Background())
	waitDone(t, m)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Equal(t, Snapshot{BackendUp: true, IsPolling: true}, seen[0])
	assert.Equal(t, Snapshot{BackendUp: true, IsPolling: true}, seen[1])
	assert.True(t, seen[2].AllHealthy)
}

func TestMonitor_ServiceUnavailableNeverSettles(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(healthResp("healthy", "healthy"))
	}))
	defer server.Close()

	m := newFastMonitor(client.New(server.URL, nil, zerolog.Nop()))
	m.Start(context.Background())
	defer func() {
		m.Stop()
		waitDone(t, m)
	}()

	require.Eventually(t, func() bool { return hits.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)

	select {
	case <-m.Settled():
		t.Fatal("a 503 must not settle the monitor")
	default:
	}
	assert.Equal(t, Snapshot{BackendUp: true, IsPolling: true}, m.Snapshot())
}

func TestMonitor_NoChangeDeliveredAfterStop(t *testing.T) {
	checker := &scriptedChecker{responses: []response{{err: networkFailure}}}
	var stopped atomic.Bool
	var late atomic.Int32
	m := newFastMonitor(checker, WithOnChange(func(Snapshot) {
		if stopped.Load() {
			late.Add(1)
		}
	}))

	m.Start(context.Background())
	require.Eventually(t, func() bool { return checker.callCount() >= 2 }, 5*time.Second, 5*time.Millisecond)
	m.Stop()
	stopped.Store(true)
	waitDone(t, m)

	assert.Zero(t, late.Load())
}
