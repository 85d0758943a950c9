package cart

import "github.com/prometheus/client_golang/prometheus"

const (
	labelOp     = "op"
	labelReason = "reason"
)

type Metrics struct {
	Outcomes   *prometheus.CounterVec
	SaveErrors prometheus.Counter
	Lines      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_operations_total",
				Help: "Cart operations by outcome reason",
			},
			[]string{labelOp, labelReason},
		),
		SaveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cart_save_errors_total",
			Help: "Failed write-through saves of the cart",
		}),
		Lines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cart_lines",
			Help: "Distinct lines currently in the cart",
		}),
	}

	reg.MustRegister(m.Outcomes, m.SaveErrors, m.Lines)
	return m
}

func (m *Metrics) observe(op string, o Outcome) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(op, string(o.Reason)).Inc()
}

func (m *Metrics) saveFailed() {
	if m == nil {
		return
	}
	m.SaveErrors.Inc()
}

func (m *Metrics) setLines(n int) {
	if m == nil {
		return
	}
	m.Lines.Set(float64(n))
}
