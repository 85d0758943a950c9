package inventory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const labelResult = "result"

const (
	resultOK          = "ok"
	resultNotFound    = "not_found"
	resultUnavailable = "unavailable"
	resultBadStatus   = "bad_status"
	resultMalformed   = "malformed"
)

type Metrics struct {
	Checks  *prometheus.CounterVec
	Latency prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_stock_checks_total",
				Help: "Live stock lookups by result",
			},
			[]string{labelResult},
		),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inventory_stock_check_duration_seconds",
			Help:    "Live stock lookup latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.Checks, m.Latency)
	return m
}

func (m *Metrics) observe(result string, start time.Time) {
	if m == nil {
		return
	}
	m.Checks.WithLabelValues(result).Inc()
	m.Latency.Observe(time.Since(start).Seconds())
}
