package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcomes.
const (
	SearchParsed   = "parsed"
	SearchFallback = "fallback"
	SearchError    = "error"
)

// Image lookup outcomes.
const (
	ImageAttached = "attached"
	ImageRejected = "rejected"
	ImageFailed   = "failed"
	ImageCached   = "cached"
)

// Metrics holds the collectors for one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	searches        *prometheus.CounterVec
	imageLookups    *prometheus.CounterVec
	inferenceTiming *prometheus.HistogramVec
	submissions     prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopper",
			Name:      "searches_total",
			Help:      "Product searches by outcome.",
		}, []string{"outcome"}),
		imageLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopper",
			Name:      "image_lookups_total",
			Help:      "Per-product image lookups by outcome.",
		}, []string{"outcome"}),
		inferenceTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shopper",
			Name:      "inference_request_duration_seconds",
			Help:      "Latency of calls to the inference API.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"kind"}),
		submissions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shopper",
			Name:      "submissions_in_flight",
			Help:      "Submissions currently awaiting a response.",
		}),
	}
	reg.MustRegister(
		m.searches,
		m.imageLookups,
		m.inferenceTiming,
		m.submissions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Search(outcome string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ImageLookup(outcome string) {
	if m == nil {
		return
	}
	m.imageLookups.WithLabelValues(outcome).Inc()
}

// ObserveInference records the duration of one inference call of the given kind.
func (m *Metrics) ObserveInference(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.inferenceTiming.WithLabelValues(kind).Observe(d.Seconds())
}

// SubmissionStarted and SubmissionSettled track the in-flight gauge.
func (m *Metrics) SubmissionStarted() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}

func (m *Metrics) SubmissionSettled() {
	if m == nil {
		return
	}
	m.submissions.Dec()
}
