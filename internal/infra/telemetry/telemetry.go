package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AuthMetrics counts authentication operations by outcome.
type AuthMetrics struct {
	operations *prometheus.CounterVec
}

// NewAuthMetrics registers the auth operation counter with reg, reusing an
// existing collector when one is already registered.
func NewAuthMetrics(reg prometheus.Registerer, namespace string) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "auth"
	}

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Authentication operations partitioned by operation and result.",
	}, []string{"operation", "result"})

	if err := reg.Register(operations); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("register operations collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing operations collector has unexpected type %T", already.ExistingCollector)
		}
		operations = existing
	}

	return &AuthMetrics{operations: operations}, nil
}

// ObserveOperation increments the counter for one finished operation.
func (m *AuthMetrics) ObserveOperation(operation, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

// Operations exposes the underlying collector.
func (m *AuthMetrics) Operations() *prometheus.CounterVec {
	return m.operations
}
