package chainsync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are shared by all monitors of a process, labelled by source.
type Metrics struct {
	cycles        *prometheus.CounterVec
	events        *prometheus.CounterVec
	cursorVersion *prometheus.GaugeVec
	cycleDuration *prometheus.HistogramVec
}

// NewMetrics registers the monitor metrics on reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_monitor_cycles_total",
			Help: "Poll cycles by outcome.",
		}, []string{"source", "status"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_monitor_events_total",
			Help: "Bridge events dispatched to the handler.",
		}, []string{"source", "kind"}),
		cursorVersion: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bridge_monitor_cursor_version",
			Help: "Ledger version of the committed cursor per stream.",
		}, []string{"source", "stream"}),
		cycleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_monitor_cycle_duration_seconds",
			Help:    "Duration of poll cycles.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
	}
}

func (m *Metrics) observeCycle(source string, took time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.cycles.WithLabelValues(source, status).Inc()
	m.cycleDuration.WithLabelValues(source).Observe(took.Seconds())
}

func (m *Metrics) observeCommit(source string, kinds map[string]int, cursor Cursor) {
	if m == nil {
		return
	}
	for kind, n := range kinds {
		m.events.WithLabelValues(source, kind).Add(float64(n))
	}
	for stream, pos := range cursor {
		m.cursorVersion.WithLabelValues(source, stream).Set(float64(pos.Version))
	}
}
