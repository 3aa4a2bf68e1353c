package services

import (
	"testing"
	"time"

	"dcspace-backend/internal/metrics"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, state string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.DBPoolConnections.WithLabelValues(state).Write(&m))
	return m.GetGauge().GetValue()
}

func TestMetricsCollectorExportsPoolStats(t *testing.T) {
	c := NewMetricsCollector(func() PoolStats {
		return PoolStats{Acquired: 3, Idle: 2, Total: 5}
	}, time.Hour)

	c.Start()
	c.Stop()

	assert.Equal(t, 3.0, gaugeValue(t, "acquired"))
	assert.Equal(t, 2.0, gaugeValue(t, "idle"))
	assert.Equal(t, 5.0, gaugeValue(t, "total"))
}
