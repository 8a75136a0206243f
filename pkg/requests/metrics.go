package requests

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records request and discovery activity. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	rateLimited     prometheus.Counter
	discoveryLookup *prometheus.CounterVec
}

// NewMetrics registers the request metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "requests",
			Name:      "sent_total",
			Help:      "Total number of requests sent, by method and status code.",
		}, []string{"method", "status"}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: "requests",
			Name:      "rate_limited_total",
			Help:      "Total number of responses classified as rate limited.",
		}),
		discoveryLookup: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "requests",
			Name:      "discovery_cache_lookups_total",
			Help:      "Discovery cache lookups, by result (hit or miss).",
		}, []string{"result"}),
	}
}

func (m *Metrics) observeRequest(method string, status int) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(method, code).Inc()
}

func (m *Metrics) observeRateLimit() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) observeLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.discoveryLookup.WithLabelValues(result).Inc()
}
