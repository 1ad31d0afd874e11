package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	assert.True(t, names["lichtenstein_client_reconnects_total"])
	assert.True(t, names["lichtenstein_client_active_subscriptions"])
	assert.True(t, names["lichtenstein_client_frames_dispatched_total"])
	assert.True(t, names["lichtenstein_client_multicast_rekeys_total"])

	c.Reconnects.Inc()
	c.ActiveSubscriptions.Set(3)
	c.FramesDispatched.Add(5)
	c.Rekeys.Inc()

	assert.Equal(t, float64(1), readCounter(t, c.Reconnects))
	assert.Equal(t, float64(3), readGauge(t, c.ActiveSubscriptions))
	assert.Equal(t, float64(5), readCounter(t, c.FramesDispatched))
	assert.Equal(t, float64(1), readCounter(t, c.Rekeys))
}

func readCounter(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func readGauge(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}
