package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPayerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPayerMetrics(reg)

	m.ObserveCall("medicare", "eligibility", "success", 0.41)
	m.ObserveCall("medicare", "eligibility", "success", 0.39)
	m.ObserveCall("aetna", "benefits", "MEMBER_NOT_FOUND", 0.2)
	m.ObserveCacheHit()
	m.ObserveCacheMiss()
	m.ObserveCacheMiss()

	if got := testutil.ToFloat64(m.callsTotal.WithLabelValues("medicare", "eligibility", "success")); got != 2 {
		t.Errorf("calls_total{medicare,eligibility,success} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.callsTotal.WithLabelValues("aetna", "benefits", "MEMBER_NOT_FOUND")); got != 1 {
		t.Errorf("calls_total{aetna,benefits,MEMBER_NOT_FOUND} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cacheTotal.WithLabelValues("miss")); got != 2 {
		t.Errorf("cache_total{miss} = %v, want 2", got)
	}
}

func TestPayerMetrics_NilReceiver(t *testing.T) {
	var m *PayerMetrics
	m.ObserveCall("medicare", "eligibility", "success", 0.1)
	m.ObserveCacheHit()
	m.ObserveCacheMiss()
}
