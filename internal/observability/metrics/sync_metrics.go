package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics tracks provider sync runs for the /metrics endpoint.
type SyncMetrics struct {
	runs      *prometheus.CounterVec
	records   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	lastRunAt *prometheus.GaugeVec
}

func NewSyncMetrics() (*SyncMetrics, error) {
	return newSyncMetrics(prometheus.DefaultRegisterer)
}

func newSyncMetrics(reg prometheus.Registerer) (*SyncMetrics, error) {
	m := &SyncMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchboard_sync_runs_total",
			Help: "Provider sync runs by resource and outcome.",
		}, []string{"resource", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchboard_sync_records_total",
			Help: "Rows written by provider syncs.",
		}, []string{"resource"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "switchboard_sync_duration_seconds",
			Help:    "Provider sync latency by resource.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"resource"}),
		lastRunAt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "switchboard_sync_last_run_timestamp_seconds",
			Help: "Unix time of the last finished sync per resource.",
		}, []string{"resource"}),
	}
	for _, c := range []prometheus.Collector{m.runs, m.records, m.duration, m.lastRunAt} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records a finished sync. Safe on a nil receiver.
func (m *SyncMetrics) Observe(resource, status string, records int, elapsed time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(resource, status).Inc()
	if records > 0 {
		m.records.WithLabelValues(resource).Add(float64(records))
	}
	m.duration.WithLabelValues(resource).Observe(elapsed.Seconds())
	m.lastRunAt.WithLabelValues(resource).Set(float64(finishedAt.Unix()))
}
