package commands

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Healthy(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, runStatus(context.Background(), env.app, false, time.Minute))

	output := env.out.String()
	assert.Contains(t, output, "Backend:      up")
	assert.Contains(t, output, "milvus:       up")
	assert.Contains(t, output, "All services healthy")
}

func TestStatus_DependencyDown(t *testing.T) {
	env := newTestEnv(t)
	env.api.SetHealth(http.StatusServiceUnavailable, "degraded", map[string]string{
		"postgresql": "healthy",
		"milvus":     "unhealthy",
	})

	require.NoError(t, runStatus(context.Background(), env.app, false, time.Minute))

	output := env.out.String()
	assert.Contains(t, output, "Backend:      up")
	assert.Contains(t, output, "milvus:       down")
	assert.Contains(t, output, "Some services are unavailable")
}

func TestStatus_Unreachable(t *testing.T) {
	env := newTestEnv(t)
	env.api.Close()

	require.NoError(t, runStatus(context.Background(), env.app, false, time.Minute))
	assert.Contains(t, env.out.String(), "Backend:      down")
}

func TestStatus_WaitReturnsOnceHealthy(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, runStatus(context.Background(), env.app, true, time.Minute))
	assert.Contains(t, env.out.String(), "All services healthy")
}

func TestStatus_WaitTimesOut(t *testing.T) {
	env := newTestEnv(t)
	env.api.SetHealth(http.StatusOK, "healthy", map[string]string{"milvus": "starting"})

	err := runStatus(context.Background(), env.app, true, 100*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, "services not healthy after 100ms", err.Error())
	assert.Contains(t, env.out.String(), "Waiting for services to become available")
}

func TestStatus_CustomDependency(t *testing.T) {
	env := newTestEnv(t)
	env.app.Config.HealthDependency = "qdrant"
	env.api.SetHealth(http.StatusOK, "healthy", map[string]string{"milvus": "healthy", "qdrant": "healthy"})

	require.NoError(t, runStatus(context.Background(), env.app, false, time.Minute))
	assert.Contains(t, env.out.String(), "qdrant:       up")
}
