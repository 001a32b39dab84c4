package metrics

import "github.com/prometheus/client_golang/prometheus"

// PayerMetrics exposes counters/histograms for payer API calls.
type PayerMetrics struct {
	callsTotal  *prometheus.CounterVec
	callLatency *prometheus.HistogramVec
	cacheTotal  *prometheus.CounterVec
}

func NewPayerMetrics(reg prometheus.Registerer) *PayerMetrics {
	m := &PayerMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "therabill",
			Subsystem: "payer",
			Name:      "calls_total",
			Help:      "Total payer API calls",
		}, []string{"payer", "capability", "status"}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "therabill",
			Subsystem: "payer",
			Name:      "call_latency_seconds",
			Help:      "Latency of payer API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"payer", "capability"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "therabill",
			Subsystem: "payer",
			Name:      "eligibility_cache_total",
			Help:      "Eligibility cache lookups by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.callLatency, m.cacheTotal)
	return m
}

// ObserveCall records one payer call outcome. Status is the error code, or
// "success".
func (m *PayerMetrics) ObserveCall(payerCode, capability, status string, seconds float64) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(payerCode, capability, status).Inc()
	m.callLatency.WithLabelValues(payerCode, capability).Observe(seconds)
}

// ObserveCacheHit records an eligibility cache hit.
func (m *PayerMetrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues("hit").Inc()
}

// ObserveCacheMiss records an eligibility cache miss.
func (m *PayerMetrics) ObserveCacheMiss() {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues("miss").Inc()
}
