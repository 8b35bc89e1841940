package batch

import (
	"fmt"

	"github.com/HerbHall/sshcheck/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by a Runner.
type Metrics struct {
	probesTotal   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	inFlight      prometheus.Gauge
}

// NewMetrics creates the probe collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sshcheck_probes_total",
				Help: "Total number of SSH probes by outcome status.",
			},
			[]string{"status"},
		),
		probeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sshcheck_probe_duration_seconds",
				Help:    "Elapsed time of measured SSH probes in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sshcheck_probes_in_flight",
			Help: "Number of SSH probes currently running.",
		}),
	}

	for _, c := range []prometheus.Collector{m.probesTotal, m.probeDuration, m.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register probe metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(r models.CheckResult) {
	status := string(r.Status)
	m.probesTotal.WithLabelValues(status).Inc()
	if r.Measured {
		m.probeDuration.WithLabelValues(status).Observe(r.ResponseTime.Seconds())
	}
}
