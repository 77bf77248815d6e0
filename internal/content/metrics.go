package content

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors reporting pipeline activity.
type Metrics struct {
	generations *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	sends       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

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
	generations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flap",
			Subsystem: "content",
			Name:      "generations_total",
			Help:      "Content generations, by update type and outcome.",
		},
		[]string{"update_type", "status"},
	)
	fallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flap",
			Subsystem: "content",
			Name:      "fallbacks_total",
			Help:      "Cycles that fell back to static content, by reason.",
		},
		[]string{"reason"},
	)
	sends := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flap",
			Subsystem: "content",
			Name:      "display_sends_total",
			Help:      "Frames pushed to the display, by outcome.",
		},
		[]string{"status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flap",
			Subsystem: "content",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of a full generation cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"update_type"},
	)

	if err := reg.Register(generations); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			generations = already.ExistingCollector.(*prometheus.CounterVec)
		} else {
			panic(err)
		}
	}
	if err := reg.Register(fallbacks); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			fallbacks = already.ExistingCollector.(*prometheus.CounterVec)
		} else {
			panic(err)
		}
	}
	if err := reg.Register(sends); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			sends = already.ExistingCollector.(*prometheus.CounterVec)
		} else {
			panic(err)
		}
	}
	if err := reg.Register(duration); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = already.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			panic(err)
		}
	}

	return &Metrics{generations: generations, fallbacks: fallbacks, sends: sends, duration: duration}
}

func (m *Metrics) IncGeneration(updateType, status string) {
	if m == nil || m.generations == nil {
		return
	}
	m.generations.WithLabelValues(updateType, status).Inc()
}

func (m *Metrics) IncFallback(reason string) {
	if m == nil || m.fallbacks == nil {
		return
	}
	m.fallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncSend(status string) {
	if m == nil || m.sends == nil {
		return
	}
	m.sends.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveDuration(updateType string, elapsed time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(updateType).Observe(elapsed.Seconds())
}
