package analytics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordTickIncrementsSnapshotsAndAlerts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	alerts := []Alert{
		{Type: "SPOOFING", Severity: SeverityCritical},
		{Type: "LIQUIDITY_GAP", Severity: SeverityMedium},
	}
	c.RecordTick(engineTagPrimary, alerts, 12.5)

	require.Equal(t, float64(1), testutil.ToFloat64(c.SnapshotsProcessed.WithLabelValues(engineTagPrimary)))
	require.Equal(t, float64(1), testutil.ToFloat64(c.AlertsEmitted.WithLabelValues("SPOOFING", string(SeverityCritical))))
	require.Equal(t, float64(1), testutil.ToFloat64(c.AlertsEmitted.WithLabelValues("LIQUIDITY_GAP", string(SeverityMedium))))
}

func TestCollector_RecordSessionCountersAccumulates(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionCounters(SessionMetrics{QueueFull: 2, QueueBackpressure: 3, BroadcastFailures: 1})
	c.RecordSessionCounters(SessionMetrics{QueueFull: 1, QueueBackpressure: 0, BroadcastFailures: 1})

	require.Equal(t, float64(3), testutil.ToFloat64(c.QueueFullTotal))
	require.Equal(t, float64(3), testutil.ToFloat64(c.BackpressureTotal))
	require.Equal(t, float64(2), testutil.ToFloat64(c.BroadcastFailTotal))
}
