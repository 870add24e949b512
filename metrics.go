package geotile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts worker activity. One instance is shared by every worker of
// a renderer.
type Metrics struct {
	Passes       *prometheus.CounterVec
	Absorbed     *prometheus.CounterVec
	Abandoned    *prometheus.CounterVec
	Errors       *prometheus.CounterVec
	PassDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "geotile",
				Subsystem: "worker",
				Name:      "passes_total",
				Help:      "Layout and placement passes that emitted a result",
			},
			[]string{"pass"},
		),
		Absorbed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "geotile",
				Subsystem: "worker",
				Name:      "absorbed_messages_total",
				Help:      "Messages coalesced into an already pending pass",
			},
			[]string{"message"},
		),
		Abandoned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "geotile",
				Subsystem: "worker",
				Name:      "abandoned_passes_total",
				Help:      "Passes abandoned because the tile became obsolete",
			},
			[]string{"pass"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "geotile",
				Subsystem: "worker",
				Name:      "errors_total",
				Help:      "Failures reported to the parent",
			},
			[]string{"op"},
		),
		PassDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "geotile",
				Subsystem: "worker",
				Name:      "pass_duration_seconds",
				Help:      "Duration of layout and placement passes",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pass"},
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Passes, m.Absorbed, m.Abandoned, m.Errors, m.PassDuration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observePass(pass string, start time.Time) {
	if m == nil {
		return
	}
	m.Passes.WithLabelValues(pass).Inc()
	m.PassDuration.WithLabelValues(pass).Observe(time.Since(start).Seconds())
}

func (m *Metrics) absorbed(msg string) {
	if m == nil {
		return
	}
	m.Absorbed.WithLabelValues(msg).Inc()
}

func (m *Metrics) abandoned(pass string) {
	if m == nil {
		return
	}
	m.Abandoned.WithLabelValues(pass).Inc()
}

func (m *Metrics) failed(op string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(op).Inc()
}
