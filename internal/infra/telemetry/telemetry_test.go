package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAuthMetricsObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewAuthMetrics(reg, "")
	if err != nil {
		t.Fatalf("NewAuthMetrics returned error: %v", err)
	}

	m.ObserveOperation("login_password", "success")
	m.ObserveOperation("login_password", "success")
	m.ObserveOperation("login_password", "rejected")

	if got := testutil.ToFloat64(m.Operations().WithLabelValues("login_password", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.Operations().WithLabelValues("login_password", "rejected")); got != 1 {
		t.Fatalf("expected 1 rejection, got %v", got)
	}
	if n := testutil.CollectAndCount(m.Operations(), "auth_operations_total"); n != 2 {
		t.Fatalf("expected 2 series, got %d", n)
	}
}

func TestAuthMetricsReusesRegisteredCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewAuthMetrics(reg, "auth")
	if err != nil {
		t.Fatalf("first NewAuthMetrics returned error: %v", err)
	}
	second, err := NewAuthMetrics(reg, "auth")
	if err != nil {
		t.Fatalf("second NewAuthMetrics returned error: %v", err)
	}

	second.ObserveOperation("register", "success")
	if got := testutil.ToFloat64(first.Operations().WithLabelValues("register", "success")); got != 1 {
		t.Fatalf("expected shared collector, got %v", got)
	}
}

func TestNilAuthMetricsIsSafe(t *testing.T) {
	var m *AuthMetrics
	m.ObserveOperation("register", "error")
}
