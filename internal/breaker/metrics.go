package breaker

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors reporting circuit activity.
type Metrics struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. Collectors are created once to avoid
// duplicate registration panics when multiple breakers are constructed
// (as happens in tests).
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs the collectors against the provided registerer,
// panicking on registration errors the way promauto does.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flap",
			Subsystem: "breaker",
			Name:      "state_transitions_total",
			Help:      "Number of circuit state writes, by circuit and target state.",
		},
		[]string{"circuit", "to"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flap",
			Subsystem: "breaker",
			Name:      "recorded_failures_total",
			Help:      "Provider failures recorded against circuits, by failure class.",
		},
		[]string{"circuit", "class"},
	)

	for _, collector := range []*prometheus.CounterVec{transitions, failures} {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch collector {
				case transitions:
					transitions = already.ExistingCollector.(*prometheus.CounterVec)
				case failures:
					failures = already.ExistingCollector.(*prometheus.CounterVec)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{transitions: transitions, failures: failures}
}

// IncTransition records a state write.
func (m *Metrics) IncTransition(circuit, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(circuit, to).Inc()
}

// IncFailure records a provider failure by class.
func (m *Metrics) IncFailure(circuit, class string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(circuit, class).Inc()
}
