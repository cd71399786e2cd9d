// Package metrics holds the Prometheus instruments for account operations.
package metrics

import (
	"github.com/go-accounts-api/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AccountEvents counts account operations by outcome. The result label is
// "ok", a domain reason code such as "email_taken", or "error".
var AccountEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "accounts",
	Name:      "events_total",
	Help:      "Account operations partitioned by operation and result.",
}, []string{"operation", "result"})

// Observe records the outcome of operation.
func Observe(operation string, err error) {
	AccountEvents.WithLabelValues(operation, Result(err)).Inc()
}

// Result maps an operation error onto the bounded result label set.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if code := domain.Code(err); code != "" {
		return code
	}
	return "error"
}
