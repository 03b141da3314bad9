package analytics

import "github.com/prometheus/client_golang/prometheus"

// Collector is the process-wide Prometheus metrics surface. It is the one
// piece of process-wide mutable state besides EngineRouter (see §9): a set
// of atomic counters/gauges, never per-session data.
type Collector struct {
	SnapshotsProcessed *prometheus.CounterVec // labels: engine
	AlertsEmitted      *prometheus.CounterVec // labels: type, severity
	QueueFullTotal     prometheus.Counter
	BackpressureTotal  prometheus.Counter
	BroadcastFailTotal prometheus.Counter
	ActiveSessions     prometheus.Gauge
	ProcessingSeconds  prometheus.Histogram
}

// NewCollector constructs and registers the collector's metrics on reg.
// Passing prometheus.NewRegistry() keeps tests hermetic; production code
// typically passes prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		SnapshotsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lob_snapshots_processed_total",
			Help: "Snapshots processed, partitioned by originating engine tag.",
		}, []string{"engine"}),
		AlertsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lob_alerts_emitted_total",
			Help: "Alerts emitted after dedup/escalation, partitioned by type and severity.",
		}, []string{"type", "severity"}),
		QueueFullTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lob_queue_full_total",
			Help: "Ingest-queue-full drops across all sessions.",
		}),
		BackpressureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lob_queue_backpressure_total",
			Help: "Producer backpressure throttle events across all sessions.",
		}),
		BroadcastFailTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lob_broadcast_failures_total",
			Help: "Broadcaster send failures across all sessions.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lob_active_sessions",
			Help: "Currently active analytics sessions.",
		}),
		ProcessingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lob_tick_processing_seconds",
			Help:    "Per-tick analytics processing latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.SnapshotsProcessed,
		c.AlertsEmitted,
		c.QueueFullTotal,
		c.BackpressureTotal,
		c.BroadcastFailTotal,
		c.ActiveSessions,
		c.ProcessingSeconds,
	)
	return c
}

// RecordTick updates the collector from one session's processing outcome.
func (c *Collector) RecordTick(engine string, alerts []Alert, processingMS float64) {
	c.SnapshotsProcessed.WithLabelValues(engine).Inc()
	for _, a := range alerts {
		c.AlertsEmitted.WithLabelValues(a.Type, string(a.Severity)).Inc()
	}
	c.ProcessingSeconds.Observe(processingMS / 1000.0)
}

// RecordSessionCounters mirrors a session's drop/backpressure/broadcast
// counter deltas into the process-wide totals.
func (c *Collector) RecordSessionCounters(delta SessionMetrics) {
	c.QueueFullTotal.Add(float64(delta.QueueFull))
	c.BackpressureTotal.Add(float64(delta.QueueBackpressure))
	c.BroadcastFailTotal.Add(float64(delta.BroadcastFailures))
}
