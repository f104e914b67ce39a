package bot

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the reconciliation scheduler. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	roleChanges *prometheus.CounterVec
	cycles      prometheus.Counter
	cycleTime   prometheus.Histogram
	lastCycle   prometheus.Gauge
}

// NewMetrics creates the scheduler metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		roleChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "birthday_role_changes_total",
			Help: "Birthday role grants and revocations by outcome.",
		}, []string{"action", "outcome"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "birthday_reconcile_cycles_total",
			Help: "Completed reconciliation cycles.",
		}),
		cycleTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "birthday_reconcile_cycle_seconds",
			Help:    "Duration of a reconciliation cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "birthday_reconcile_last_cycle_timestamp_seconds",
			Help: "Unix time the last reconciliation cycle finished.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.roleChanges, m.cycles, m.cycleTime, m.lastCycle)
	}
	return m
}

func (m *Metrics) roleChange(action, outcome string) {
	if m == nil {
		return
	}
	m.roleChanges.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) cycleDone(started, finished time.Time) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleTime.Observe(finished.Sub(started).Seconds())
	m.lastCycle.Set(float64(finished.Unix()))
}
